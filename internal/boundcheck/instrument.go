// Package boundcheck instruments buffer writes with run-time bounds checks.
//
// The pass runs in two phases over one compilation unit. CollectShapes
// optionally seeds a Registry from buffer_bound annotations, then an
// Instrumenter walks the tree, records shapes from allocations, gathers the
// loads reachable from each store's value and wraps the store in
//
//	if cond { store } else { assert(cond, "OUT OF BOUNDS") }
//
// where cond checks 0 <= index < bound for every gathered access. Anything the
// pass cannot analyse is skipped silently: unknown buffers, malformed vector
// indices, values containing select, writes without reads and degenerate
// shapes never produce a compile-time error.
package boundcheck

import (
	"go.uber.org/zap"

	"github.com/orizon-lang/tirguard/internal/tir"
)

// AccessRecord is one access gathered while processing a store.
type AccessRecord struct {
	Buffer *tir.Var
	Index  tir.Expr
	Bound  tir.Expr
}

// Instrumenter rewrites one statement tree. It is not safe for concurrent use;
// create one per compilation unit.
type Instrumenter struct {
	opts   Options
	shapes *Registry
	log    *zap.Logger

	inStoreValue  bool
	unsafeRewrite bool
	pending       []AccessRecord

	stats Stats
}

// New returns an instrumenter that consumes and maintains shapes. A nil
// registry starts empty and a nil logger discards output.
func New(shapes *Registry, opts Options, logger *zap.Logger) *Instrumenter {
	if shapes == nil {
		shapes = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumenter{opts: opts, shapes: shapes, log: logger}
}

// Instrument runs the annotation pre-pass when collect is set and then
// rewrites s with a fresh instrumenter.
func Instrument(s tir.Stmt, collect bool, opts Options, logger *zap.Logger) (tir.Stmt, Stats) {
	var shapes *Registry
	if collect {
		shapes = CollectShapes(s)
	}
	in := New(shapes, opts, logger)
	out := in.Rewrite(s)
	return out, in.Stats()
}

// Shapes exposes the registry as maintained so far.
func (in *Instrumenter) Shapes() *Registry { return in.shapes }

// Stats returns the counters accumulated by Rewrite.
func (in *Instrumenter) Stats() Stats { return in.stats }

// Rewrite returns s with every instrumentable store guarded.
func (in *Instrumenter) Rewrite(s tir.Stmt) tir.Stmt {
	return in.mutate(s)
}

func (in *Instrumenter) push() {
	if in.opts.ScopedShapes {
		in.shapes.Push()
	}
}

func (in *Instrumenter) pop() {
	if in.opts.ScopedShapes {
		in.shapes.Pop()
	}
}

func (in *Instrumenter) scoped(s tir.Stmt) tir.Stmt {
	in.push()
	defer in.pop()
	return in.mutate(s)
}

func (in *Instrumenter) mutate(s tir.Stmt) tir.Stmt {
	switch s := s.(type) {
	case nil:
		return nil
	case *tir.Seq:
		var out []tir.Stmt
		for i, st := range s.Stmts {
			ns := in.mutate(st)
			if ns != st && out == nil {
				out = make([]tir.Stmt, len(s.Stmts))
				copy(out, s.Stmts[:i])
			}
			if out != nil {
				out[i] = ns
			}
		}
		if out == nil {
			return s
		}
		return &tir.Seq{Stmts: out}
	case *tir.IfThenElse:
		if in.opts.Idempotent && in.isGuard(s) {
			in.stats.Writes++
			in.stats.skip(SkipGuarded)
			return s
		}
		in.visitExpr(s.Cond)
		then := in.scoped(s.Then)
		els := in.scoped(s.Else)
		if then == s.Then && els == s.Else {
			return s
		}
		return &tir.IfThenElse{Cond: s.Cond, Then: then, Else: els}
	case *tir.For:
		in.visitExpr(s.Min)
		in.visitExpr(s.Extent)
		body := in.scoped(s.Body)
		if body == s.Body {
			return s
		}
		return &tir.For{Var: s.Var, Min: s.Min, Extent: s.Extent, Body: body}
	case *tir.Allocate:
		for _, e := range s.Extents {
			in.visitExpr(e)
		}
		in.push()
		defer in.pop()
		in.updateShape(s)
		body := in.mutate(s.Body)
		if body == s.Body {
			return s
		}
		return &tir.Allocate{Buffer: s.Buffer, DType: s.DType, Extents: s.Extents, Body: body}
	case *tir.AttrStmt:
		in.visitExpr(s.Value)
		body := in.mutate(s.Body)
		if body == s.Body {
			return s
		}
		return &tir.AttrStmt{Node: s.Node, Key: s.Key, Value: s.Value, Body: body}
	case *tir.AssertStmt:
		in.visitExpr(s.Cond)
		body := in.mutate(s.Body)
		if body == s.Body {
			return s
		}
		return &tir.AssertStmt{Cond: s.Cond, Message: s.Message, Body: body}
	case *tir.Evaluate:
		in.visitExpr(s.Value)
		return s
	case *tir.Store:
		return in.mutateStore(s)
	}
	return s
}

// visitExpr records loads and detects select intrinsics in e.
func (in *Instrumenter) visitExpr(e tir.Expr) {
	tir.InspectExpr(e, func(n tir.Expr) bool {
		switch n := n.(type) {
		case *tir.Call:
			if in.inStoreValue && n.IsIntrinsic(tir.IntrinsicSelect) {
				in.unsafeRewrite = true
			}
		case *tir.Load:
			in.collect(n.Buffer, n.Index)
		}
		return true
	})
}

func (in *Instrumenter) canInstrument(buf *tir.Var, index tir.Expr) (tir.Expr, bool) {
	if buf == nil || in.unsafeRewrite || !IndexIsValid(index) {
		return nil, false
	}
	return in.shapes.Lookup(buf)
}

func (in *Instrumenter) collect(buf *tir.Var, index tir.Expr) {
	bound, ok := in.canInstrument(buf, index)
	if !ok {
		return
	}
	in.pending = append(in.pending, AccessRecord{Buffer: buf, Index: index, Bound: bound})
}

func (in *Instrumenter) mutateStore(s *tir.Store) tir.Stmt {
	in.stats.Writes++

	in.pending = in.pending[:0]
	in.unsafeRewrite = false
	in.inStoreValue = true
	in.visitExpr(s.Value)
	in.inStoreValue = false

	if in.unsafeRewrite {
		return in.skipStore(s, SkipUnsafe)
	}
	// A write is only guarded when its value reads from a known buffer.
	if len(in.pending) == 0 {
		return in.skipStore(s, SkipNoReads)
	}
	in.collect(s.Buffer, s.Index)

	cond, ok := in.makeCondition()
	if !ok {
		return in.skipStore(s, SkipDegenerate)
	}
	in.stats.Instrumented++
	in.stats.Accesses += len(in.pending)
	in.log.Debug("instrumented write",
		zap.String("buffer", s.Buffer.Name),
		zap.Int("accesses", len(in.pending)))

	return &tir.IfThenElse{
		Cond: cond,
		Then: s,
		Else: tir.MakeAssert(cond, AbortMessage, nil),
	}
}

func (in *Instrumenter) skipStore(s *tir.Store, reason SkipReason) tir.Stmt {
	in.stats.skip(reason)
	in.log.Debug("write left unchecked",
		zap.String("buffer", s.Buffer.Name),
		zap.Stringer("reason", reason))
	return s
}

// isGuard recognises the exact shape of a guard emitted by this pass.
func (in *Instrumenter) isGuard(s *tir.IfThenElse) bool {
	if _, ok := s.Then.(*tir.Store); !ok {
		return false
	}
	a, ok := s.Else.(*tir.AssertStmt)
	return ok && a.Message == AbortMessage && tir.Equal(a.Cond, s.Cond) && tir.IsNop(a.Body)
}

// updateShape records the lane-scaled element count of an allocation. The
// entry is always overwritten: an extent that cannot form a bound leaves a
// degenerate shape, and a negative constant extent widens to a bound no index
// satisfies.
func (in *Instrumenter) updateShape(a *tir.Allocate) {
	if len(a.Extents) == 0 {
		in.shapes.Set(a.Buffer, nil)
		return
	}
	for _, e := range a.Extents {
		if e == nil || !e.Type().IsScalar() || !e.Type().IsInteger() {
			in.log.Debug("allocation shape unknown",
				zap.String("buffer", a.Buffer.Name),
				zap.String("extent", tir.ExprString(e)))
			in.shapes.Set(a.Buffer, nil)
			return
		}
		if isNegativeConst(e) {
			in.log.Debug("negative allocation extent",
				zap.String("buffer", a.Buffer.Name),
				zap.String("extent", tir.ExprString(e)))
		}
	}
	lanes := a.DType.Lanes
	if lanes < 1 {
		lanes = 1
	}
	// Extents are widened one by one so that narrow products cannot overflow.
	bound := tir.Expr(tir.IntConst(tir.U64, int64(lanes)))
	for _, e := range a.Extents {
		bound = tir.Mul(bound, tir.CastTo(tir.U64, e))
	}
	in.shapes.Set(a.Buffer, bound)
}

func isNegativeConst(e tir.Expr) bool {
	c, ok := e.(*tir.IntImm)
	return ok && c.DType.IsInt() && c.Value < 0
}
