package boundcheck

import (
	"github.com/orizon-lang/tirguard/internal/simplify"
	"github.com/orizon-lang/tirguard/internal/tir"
)

// IndexIsValid reports whether an access at index can be checked. Scalar
// indices always can; a vector index must be a ramp with scalar base and
// stride and at least one lane.
func IndexIsValid(index tir.Expr) bool {
	if index == nil {
		return false
	}
	if index.Type().IsScalar() {
		return true
	}
	r, ok := index.(*tir.Ramp)
	if !ok {
		return false
	}
	return r.Lanes > 0 && r.Base.Type().IsScalar() && r.Stride.Type().IsScalar()
}

// lastLane returns base + stride*(lanes-1) computed in i64, so a lane count
// wider than the base type cannot wrap.
func lastLane(r *tir.Ramp) tir.Expr {
	base := tir.CastTo(tir.I64, r.Base)
	stride := tir.CastTo(tir.I64, r.Stride)
	return tir.Add(base, tir.Mul(stride, tir.IntConst(tir.I64, int64(r.Lanes-1))))
}

// normalize reduces index to the scalar expressions compared against zero and
// against the bound.
func normalize(index tir.Expr, policy VectorPolicy) (lower, upper tir.Expr) {
	r, ok := index.(*tir.Ramp)
	if !ok {
		return index, index
	}
	last := lastLane(r)
	if policy == VectorStrideAware {
		first := tir.CastTo(tir.I64, r.Base)
		return tir.Min(first, last), tir.Max(first, last)
	}
	return last, last
}

// toSigned simplifies e and moves it into the signed 64-bit domain.
func toSigned(e tir.Expr) tir.Expr {
	return simplify.Expr(tir.CastTo(tir.I64, simplify.Expr(e)))
}

// accessCondition builds 0 <= index < bound for one record.
func accessCondition(rec AccessRecord, policy VectorPolicy) tir.Expr {
	lower, upper := normalize(rec.Index, policy)
	bound := toSigned(rec.Bound)
	lo := tir.GE(toSigned(lower), tir.IntConst(tir.I64, 0))
	return tir.And(lo, tir.LT(toSigned(upper), bound))
}

// makeCondition conjoins the checks of every pending record in collection
// order. It fails when a record refers to a buffer with a degenerate shape.
func (in *Instrumenter) makeCondition() (tir.Expr, bool) {
	var cond tir.Expr
	for _, rec := range in.pending {
		if rec.Bound == nil {
			return nil, false
		}
		c := accessCondition(rec, in.opts.VectorPolicy)
		if cond == nil {
			cond = c
			continue
		}
		cond = tir.And(cond, c)
	}
	return cond, cond != nil
}
