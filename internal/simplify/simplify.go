// Package simplify folds and canonicalizes tir expressions.
//
// The rewriter works bottom-up: constants are folded with the wrap-around
// semantics of their type, constants are moved to the right of commutative
// operators, and chains such as (x + c1) + c2 are merged. Expr iterates the
// rewrite to a fixed point so that simplifying an already simplified
// expression returns it unchanged.
package simplify

import (
	"math"

	"github.com/orizon-lang/tirguard/internal/tir"
)

const maxRounds = 8

// Expr returns the simplified form of e.
func Expr(e tir.Expr) tir.Expr {
	if e == nil {
		return nil
	}
	out := e
	for i := 0; i < maxRounds; i++ {
		next := rewrite(out)
		if tir.Equal(next, out) {
			return next
		}
		out = next
	}
	return out
}

func rewrite(e tir.Expr) tir.Expr {
	switch e := e.(type) {
	case *tir.IntImm, *tir.FloatImm, *tir.Var:
		return e
	case *tir.Binary:
		return binary(e.Op, rewrite(e.A), rewrite(e.B))
	case *tir.Compare:
		return compare(e.Op, rewrite(e.A), rewrite(e.B))
	case *tir.Logical:
		return logical(e.Op, rewrite(e.A), rewrite(e.B))
	case *tir.Not:
		a := rewrite(e.A)
		if c, ok := a.(*tir.IntImm); ok && c.DType.IsBool() {
			return tir.BoolConst(c.Value == 0)
		}
		if inner, ok := a.(*tir.Not); ok {
			return inner.A
		}
		return &tir.Not{A: a}
	case *tir.Cast:
		return cast(e.To, rewrite(e.Value))
	case *tir.Ramp:
		base, stride := rewrite(e.Base), rewrite(e.Stride)
		if isIntConst(stride, 0) {
			return &tir.Broadcast{Value: base, Lanes: e.Lanes}
		}
		return &tir.Ramp{Base: base, Stride: stride, Lanes: e.Lanes}
	case *tir.Broadcast:
		return &tir.Broadcast{Value: rewrite(e.Value), Lanes: e.Lanes}
	case *tir.Load:
		return &tir.Load{DType: e.DType, Buffer: e.Buffer, Index: rewrite(e.Index)}
	case *tir.Call:
		args := make([]tir.Expr, len(e.Args))
		for i, a := range e.Args {
			args[i] = rewrite(a)
		}
		if e.IsIntrinsic(tir.IntrinsicLikely) && len(args) == 1 {
			return args[0]
		}
		return &tir.Call{DType: e.DType, Name: e.Name, Args: args, Kind: e.Kind}
	}
	return e
}

func isIntConst(e tir.Expr, v int64) bool {
	c, ok := e.(*tir.IntImm)
	return ok && c.Value == v && c.DType.IsInteger()
}

// splitConst views e as base + c. A bare constant has a nil base.
func splitConst(e tir.Expr) (tir.Expr, int64, bool) {
	switch x := e.(type) {
	case *tir.IntImm:
		if !x.DType.IsInteger() {
			return nil, 0, false
		}
		return nil, x.Value, true
	case *tir.Binary:
		if c, ok := x.B.(*tir.IntImm); ok && x.Op == tir.OpAdd && c.DType.IsInteger() {
			return x.A, c.Value, true
		}
	}
	if !e.Type().IsInteger() {
		return nil, 0, false
	}
	return e, 0, true
}

func binary(op tir.BinaryOp, a, b tir.Expr) tir.Expr {
	t := a.Type()
	ca, aConst := a.(*tir.IntImm)
	cb, bConst := b.(*tir.IntImm)
	if aConst && bConst && ca.DType == cb.DType && t.IsInteger() {
		if v, ok := foldInt(op, t, ca.Value, cb.Value); ok {
			return tir.IntConst(t, v)
		}
	}
	fa, aFloat := a.(*tir.FloatImm)
	fb, bFloat := b.(*tir.FloatImm)
	if aFloat && bFloat && fa.DType == fb.DType {
		if v, ok := foldFloat(op, fa.Value, fb.Value); ok {
			return tir.FloatConst(t, v)
		}
	}
	if !t.IsInteger() || !t.IsScalar() {
		return &tir.Binary{Op: op, A: a, B: b}
	}

	switch op {
	case tir.OpAdd:
		if isIntConst(a, 0) {
			return b
		}
		if isIntConst(b, 0) {
			return a
		}
		if aConst && !bConst {
			return &tir.Binary{Op: op, A: b, B: a}
		}
		if inner, ok := a.(*tir.Binary); ok && bConst && inner.Op == tir.OpAdd {
			if c, ok := inner.B.(*tir.IntImm); ok {
				return &tir.Binary{Op: tir.OpAdd, A: inner.A, B: tir.IntConst(t, c.Value+cb.Value)}
			}
		}
	case tir.OpSub:
		if isIntConst(b, 0) {
			return a
		}
		if tir.Equal(a, b) {
			return tir.IntConst(t, 0)
		}
		if bConst && t.IsInt() {
			return &tir.Binary{Op: tir.OpAdd, A: a, B: tir.IntConst(t, -cb.Value)}
		}
	case tir.OpMul:
		if isIntConst(a, 0) || isIntConst(b, 0) {
			return tir.IntConst(t, 0)
		}
		if isIntConst(a, 1) {
			return b
		}
		if isIntConst(b, 1) {
			return a
		}
		if aConst && !bConst {
			return &tir.Binary{Op: op, A: b, B: a}
		}
		if inner, ok := a.(*tir.Binary); ok && bConst && inner.Op == tir.OpMul {
			if c, ok := inner.B.(*tir.IntImm); ok {
				return &tir.Binary{Op: tir.OpMul, A: inner.A, B: tir.IntConst(t, c.Value*cb.Value)}
			}
		}
	case tir.OpDiv:
		if isIntConst(b, 1) {
			return a
		}
	case tir.OpMod:
		if isIntConst(b, 1) {
			return tir.IntConst(t, 0)
		}
	case tir.OpMin, tir.OpMax:
		if tir.Equal(a, b) {
			return a
		}
		baseA, offA, okA := splitConst(a)
		baseB, offB, okB := splitConst(b)
		if okA && okB && tir.Equal(baseA, baseB) && t.IsInt() {
			pickA := offA <= offB
			if op == tir.OpMax {
				pickA = offA >= offB
			}
			if pickA {
				return a
			}
			return b
		}
	}
	return &tir.Binary{Op: op, A: a, B: b}
}

func foldInt(op tir.BinaryOp, t tir.DType, x, y int64) (int64, bool) {
	unsigned := t.IsUInt()
	switch op {
	case tir.OpAdd:
		return x + y, true
	case tir.OpSub:
		return x - y, true
	case tir.OpMul:
		return x * y, true
	case tir.OpDiv:
		if y == 0 {
			return 0, false
		}
		if unsigned {
			return int64(uint64(x) / uint64(y)), true
		}
		return x / y, true
	case tir.OpMod:
		if y == 0 {
			return 0, false
		}
		if unsigned {
			return int64(uint64(x) % uint64(y)), true
		}
		return x % y, true
	case tir.OpMin:
		if less(unsigned, y, x) {
			return y, true
		}
		return x, true
	case tir.OpMax:
		if less(unsigned, x, y) {
			return y, true
		}
		return x, true
	}
	return 0, false
}

func foldFloat(op tir.BinaryOp, x, y float64) (float64, bool) {
	switch op {
	case tir.OpAdd:
		return x + y, true
	case tir.OpSub:
		return x - y, true
	case tir.OpMul:
		return x * y, true
	case tir.OpDiv:
		if y == 0 {
			return 0, false
		}
		return x / y, true
	case tir.OpMin:
		return math.Min(x, y), true
	case tir.OpMax:
		return math.Max(x, y), true
	}
	return 0, false
}

func less(unsigned bool, x, y int64) bool {
	if unsigned {
		return uint64(x) < uint64(y)
	}
	return x < y
}

func compare(op tir.CompareOp, a, b tir.Expr) tir.Expr {
	ca, aConst := a.(*tir.IntImm)
	cb, bConst := b.(*tir.IntImm)
	if aConst && bConst && ca.DType == cb.DType {
		unsigned := ca.DType.IsUInt()
		x, y := ca.Value, cb.Value
		switch op {
		case tir.OpEQ:
			return tir.BoolConst(x == y)
		case tir.OpNE:
			return tir.BoolConst(x != y)
		case tir.OpLT:
			return tir.BoolConst(less(unsigned, x, y))
		case tir.OpLE:
			return tir.BoolConst(!less(unsigned, y, x))
		case tir.OpGT:
			return tir.BoolConst(less(unsigned, y, x))
		case tir.OpGE:
			return tir.BoolConst(!less(unsigned, x, y))
		}
	}
	fa, aFloat := a.(*tir.FloatImm)
	fb, bFloat := b.(*tir.FloatImm)
	if aFloat && bFloat && fa.DType == fb.DType {
		x, y := fa.Value, fb.Value
		switch op {
		case tir.OpEQ:
			return tir.BoolConst(x == y)
		case tir.OpNE:
			return tir.BoolConst(x != y)
		case tir.OpLT:
			return tir.BoolConst(x < y)
		case tir.OpLE:
			return tir.BoolConst(x <= y)
		case tir.OpGT:
			return tir.BoolConst(x > y)
		case tir.OpGE:
			return tir.BoolConst(x >= y)
		}
	}
	if tir.Equal(a, b) && a.Type().IsInteger() && a.Type().IsScalar() {
		switch op {
		case tir.OpEQ, tir.OpLE, tir.OpGE:
			return tir.BoolConst(true)
		default:
			return tir.BoolConst(false)
		}
	}
	return &tir.Compare{Op: op, A: a, B: b}
}

func logical(op tir.LogicalOp, a, b tir.Expr) tir.Expr {
	ca, aConst := a.(*tir.IntImm)
	cb, bConst := b.(*tir.IntImm)
	if aConst && ca.DType.IsBool() {
		switch {
		case op == tir.OpAnd && ca.Value == 0:
			return tir.BoolConst(false)
		case op == tir.OpAnd:
			return b
		case ca.Value != 0:
			return tir.BoolConst(true)
		default:
			return b
		}
	}
	if bConst && cb.DType.IsBool() {
		switch {
		case op == tir.OpAnd && cb.Value == 0:
			return tir.BoolConst(false)
		case op == tir.OpAnd:
			return a
		case cb.Value != 0:
			return tir.BoolConst(true)
		default:
			return a
		}
	}
	return &tir.Logical{Op: op, A: a, B: b}
}

func cast(to tir.DType, v tir.Expr) tir.Expr {
	from := v.Type()
	if from == to {
		return v
	}
	if !to.IsScalar() || !from.IsScalar() {
		return &tir.Cast{To: to, Value: v}
	}
	switch c := v.(type) {
	case *tir.IntImm:
		switch {
		case to.IsBool():
			return tir.BoolConst(c.Value != 0)
		case to.IsInteger():
			return tir.IntConst(to, c.Value)
		case to.IsFloat():
			if from.IsUInt() {
				return tir.FloatConst(to, float64(uint64(c.Value)))
			}
			return tir.FloatConst(to, float64(c.Value))
		}
	case *tir.FloatImm:
		if to.IsFloat() {
			if to.Bits == 32 {
				return tir.FloatConst(to, float64(float32(c.Value)))
			}
			return tir.FloatConst(to, c.Value)
		}
		if to.IsInteger() && !math.IsNaN(c.Value) && !math.IsInf(c.Value, 0) {
			return tir.IntConst(to, int64(c.Value))
		}
	}
	return &tir.Cast{To: to, Value: v}
}
