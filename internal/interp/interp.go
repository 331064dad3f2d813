// Package interp executes tir functions over caller-provided buffers.
//
// It is a reference evaluator for checking instrumented programs: a failed
// assertion surfaces as errors.AssertionFailed, and any memory access outside
// a buffer surfaces as errors.IndexOutOfBounds instead of corrupting memory.
package interp

import (
	"context"
	"math"

	"go.uber.org/zap"

	rterrors "github.com/orizon-lang/tirguard/internal/errors"
	"github.com/orizon-lang/tirguard/internal/tir"
)

// Extern implements an external function.
type Extern func(args []Value) (Value, error)

// Inputs binds function parameters by name.
type Inputs struct {
	Buffers map[string]*Buffer
	Scalars map[string]Value
	Externs map[string]Extern
	Logger  *zap.Logger
}

type machine struct {
	ctx     context.Context
	buffers map[*tir.Var]*Buffer
	scalars map[*tir.Var]Value
	externs map[string]Extern
	log     *zap.Logger
}

// Run executes f. Buffers in in are modified in place.
func Run(ctx context.Context, f *tir.Func, in Inputs) error {
	m := &machine{
		ctx:     ctx,
		buffers: map[*tir.Var]*Buffer{},
		scalars: map[*tir.Var]Value{},
		externs: in.Externs,
		log:     in.Logger,
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}

	for _, p := range f.Params {
		if p.DType.IsHandle() {
			b, ok := in.Buffers[p.Name]
			if !ok {
				return rterrors.InvalidArgument(p.Name, "no buffer bound")
			}
			if b.Elem != p.Elem {
				return rterrors.InvalidArgument(p.Name, "element type "+b.Elem.String()+", want "+p.Elem.String())
			}
			m.buffers[p] = b
			continue
		}
		v, ok := in.Scalars[p.Name]
		if !ok {
			return rterrors.InvalidArgument(p.Name, "no value bound")
		}
		if v.Type != p.DType {
			return rterrors.InvalidArgument(p.Name, "type "+v.Type.String()+", want "+p.DType.String())
		}
		m.scalars[p] = v
	}
	return m.exec(f.Body)
}

func (m *machine) exec(s tir.Stmt) error {
	switch s := s.(type) {
	case nil:
		return nil
	case *tir.Seq:
		for _, st := range s.Stmts {
			if err := m.exec(st); err != nil {
				return err
			}
		}
		return nil
	case *tir.IfThenElse:
		c, err := m.eval(s.Cond)
		if err != nil {
			return err
		}
		if c.IsTrue() {
			return m.exec(s.Then)
		}
		return m.exec(s.Else)
	case *tir.For:
		return m.execFor(s)
	case *tir.Store:
		return m.execStore(s)
	case *tir.Allocate:
		return m.execAllocate(s)
	case *tir.AttrStmt:
		return m.exec(s.Body)
	case *tir.AssertStmt:
		c, err := m.eval(s.Cond)
		if err != nil {
			return err
		}
		if !c.IsTrue() {
			m.log.Debug("assertion failed", zap.String("message", s.Message))
			return rterrors.AssertionFailed(s.Message)
		}
		return m.exec(s.Body)
	case *tir.Evaluate:
		_, err := m.eval(s.Value)
		return err
	}
	return rterrors.InvalidArgument("statement", "unsupported node")
}

func (m *machine) execFor(s *tir.For) error {
	lo, err := m.eval(s.Min)
	if err != nil {
		return err
	}
	extent, err := m.eval(s.Extent)
	if err != nil {
		return err
	}

	prev, hadPrev := m.scalars[s.Var]
	defer func() {
		if hadPrev {
			m.scalars[s.Var] = prev
		} else {
			delete(m.scalars, s.Var)
		}
	}()

	start, n := lo.Ints[0], extent.Ints[0]
	for k := int64(0); k < n; k++ {
		if err := m.ctx.Err(); err != nil {
			return err
		}
		m.scalars[s.Var] = Int(s.Var.DType, start+k)
		if err := m.exec(s.Body); err != nil {
			return err
		}
	}
	return nil
}

func (m *machine) execAllocate(s *tir.Allocate) error {
	size := int64(s.DType.Lanes)
	for _, e := range s.Extents {
		v, err := m.eval(e)
		if err != nil {
			return err
		}
		ext := v.Index(0)
		if ext < 0 {
			return rterrors.InvalidSize(ext, "alloc "+s.Buffer.Name)
		}
		if ext > 0 && size > math.MaxInt32/ext {
			return rterrors.InvalidSize(ext, "alloc "+s.Buffer.Name)
		}
		size *= ext
	}
	if len(s.Extents) == 0 {
		size = 0
	}
	m.log.Debug("allocate", zap.String("buffer", s.Buffer.Name), zap.Int64("elements", size))

	prev, hadPrev := m.buffers[s.Buffer]
	m.buffers[s.Buffer] = NewBuffer(s.Buffer.Name, s.DType, int(size))
	defer func() {
		if hadPrev {
			m.buffers[s.Buffer] = prev
		} else {
			delete(m.buffers, s.Buffer)
		}
	}()
	return m.exec(s.Body)
}

func (m *machine) buffer(v *tir.Var) (*Buffer, error) {
	b, ok := m.buffers[v]
	if !ok {
		return nil, rterrors.InvalidArgument(v.Name, "buffer is not allocated")
	}
	return b, nil
}

func (m *machine) execStore(s *tir.Store) error {
	b, err := m.buffer(s.Buffer)
	if err != nil {
		return err
	}
	idx, err := m.eval(s.Index)
	if err != nil {
		return err
	}
	val, err := m.eval(s.Value)
	if err != nil {
		return err
	}
	var mask Value
	if s.Predicate != nil {
		if mask, err = m.eval(s.Predicate); err != nil {
			return err
		}
	}

	for lane := 0; lane < idx.Lanes(); lane++ {
		if s.Predicate != nil && mask.Ints[lane] == 0 {
			continue
		}
		off := idx.Index(lane)
		if off < 0 || off >= int64(b.Len()) {
			return rterrors.IndexOutOfBounds(b.Name, off, int64(b.Len()))
		}
		if b.Elem.IsFloat() {
			b.Floats[off] = roundFloat(b.Elem, val.Floats[lane])
		} else {
			b.Ints[off] = tir.Truncate(b.Elem, val.Ints[lane])
		}
	}
	return nil
}
