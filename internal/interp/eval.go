package interp

import (
	"math"

	rterrors "github.com/orizon-lang/tirguard/internal/errors"
	"github.com/orizon-lang/tirguard/internal/tir"
)

func (m *machine) eval(e tir.Expr) (Value, error) {
	switch e := e.(type) {
	case *tir.IntImm:
		return Int(e.DType, e.Value), nil
	case *tir.FloatImm:
		return Float(e.DType, e.Value), nil
	case *tir.Var:
		if e.DType.IsHandle() {
			b, err := m.buffer(e)
			if err != nil {
				return Value{}, err
			}
			return Value{Type: tir.Handle, Ints: []int64{0}, Buffer: b}, nil
		}
		v, ok := m.scalars[e]
		if !ok {
			return Value{}, rterrors.InvalidArgument(e.Name, "variable is not bound")
		}
		return v, nil
	case *tir.Binary:
		a, b, err := m.eval2(e.A, e.B)
		if err != nil {
			return Value{}, err
		}
		return binary(e.Op, a, b)
	case *tir.Compare:
		a, b, err := m.eval2(e.A, e.B)
		if err != nil {
			return Value{}, err
		}
		return compare(e.Op, a, b), nil
	case *tir.Logical:
		return m.logical(e)
	case *tir.Not:
		a, err := m.eval(e.A)
		if err != nil {
			return Value{}, err
		}
		out := Value{Type: a.Type, Ints: make([]int64, len(a.Ints))}
		for i, x := range a.Ints {
			out.Ints[i] = boolInt(x == 0)
		}
		return out, nil
	case *tir.Cast:
		v, err := m.eval(e.Value)
		if err != nil {
			return Value{}, err
		}
		return cast(e.To, v), nil
	case *tir.Ramp:
		base, stride, err := m.eval2(e.Base, e.Stride)
		if err != nil {
			return Value{}, err
		}
		t := e.Type()
		out := Value{Type: t, Ints: make([]int64, e.Lanes)}
		for k := range out.Ints {
			out.Ints[k] = tir.Truncate(t, base.Ints[0]+stride.Ints[0]*int64(k))
		}
		return out, nil
	case *tir.Broadcast:
		v, err := m.eval(e.Value)
		if err != nil {
			return Value{}, err
		}
		out := Value{Type: e.Type()}
		for k := 0; k < e.Lanes; k++ {
			out.Ints = append(out.Ints, v.Ints...)
			out.Floats = append(out.Floats, v.Floats...)
		}
		return out, nil
	case *tir.Load:
		return m.load(e)
	case *tir.Call:
		return m.call(e)
	}
	return Value{}, rterrors.InvalidArgument("expression", "unsupported node")
}

func (m *machine) eval2(a, b tir.Expr) (Value, Value, error) {
	x, err := m.eval(a)
	if err != nil {
		return Value{}, Value{}, err
	}
	y, err := m.eval(b)
	if err != nil {
		return Value{}, Value{}, err
	}
	return x, y, nil
}

func (m *machine) load(e *tir.Load) (Value, error) {
	b, err := m.buffer(e.Buffer)
	if err != nil {
		return Value{}, err
	}
	idx, err := m.eval(e.Index)
	if err != nil {
		return Value{}, err
	}
	out := Value{Type: b.Elem.WithLanes(idx.Lanes())}
	for lane := 0; lane < idx.Lanes(); lane++ {
		off := idx.Index(lane)
		if off < 0 || off >= int64(b.Len()) {
			return Value{}, rterrors.IndexOutOfBounds(b.Name, off, int64(b.Len()))
		}
		if b.Elem.IsFloat() {
			out.Floats = append(out.Floats, b.Floats[off])
		} else {
			out.Ints = append(out.Ints, b.Ints[off])
		}
	}
	return out, nil
}

// logical short-circuits scalar operands.
func (m *machine) logical(e *tir.Logical) (Value, error) {
	a, err := m.eval(e.A)
	if err != nil {
		return Value{}, err
	}
	if a.Lanes() == 1 {
		if e.Op == tir.OpAnd && !a.IsTrue() {
			return Bool(false), nil
		}
		if e.Op == tir.OpOr && a.IsTrue() {
			return Bool(true), nil
		}
	}
	b, err := m.eval(e.B)
	if err != nil {
		return Value{}, err
	}
	out := Value{Type: a.Type, Ints: make([]int64, len(a.Ints))}
	for i := range a.Ints {
		if e.Op == tir.OpAnd {
			out.Ints[i] = boolInt(a.Ints[i] != 0 && b.Ints[i] != 0)
		} else {
			out.Ints[i] = boolInt(a.Ints[i] != 0 || b.Ints[i] != 0)
		}
	}
	return out, nil
}

func (m *machine) call(e *tir.Call) (Value, error) {
	if e.Kind == tir.CallIntrinsic {
		switch e.Name {
		case tir.IntrinsicLikely:
			return m.eval(e.Args[0])
		case tir.IntrinsicSelect:
			return m.selectValue(e)
		}
		return Value{}, rterrors.UnknownFunction(e.Name)
	}

	fn, ok := m.externs[e.Name]
	if !ok {
		return Value{}, rterrors.UnknownFunction(e.Name)
	}
	args := make([]Value, len(e.Args))
	for i, a := range e.Args {
		v, err := m.eval(a)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	return fn(args)
}

// selectValue evaluates only the chosen operand of a scalar select.
func (m *machine) selectValue(e *tir.Call) (Value, error) {
	c, err := m.eval(e.Args[0])
	if err != nil {
		return Value{}, err
	}
	if c.Lanes() == 1 {
		if c.IsTrue() {
			return m.eval(e.Args[1])
		}
		return m.eval(e.Args[2])
	}
	a, b, err := m.eval2(e.Args[1], e.Args[2])
	if err != nil {
		return Value{}, err
	}
	out := Value{Type: a.Type}
	for i, x := range c.Ints {
		src := b
		if x != 0 {
			src = a
		}
		if a.Type.IsFloat() {
			out.Floats = append(out.Floats, src.Floats[i])
		} else {
			out.Ints = append(out.Ints, src.Ints[i])
		}
	}
	return out, nil
}

func binary(op tir.BinaryOp, a, b Value) (Value, error) {
	t := a.Type
	if t.IsFloat() {
		out := Value{Type: t, Floats: make([]float64, len(a.Floats))}
		for i := range a.Floats {
			x, y := a.Floats[i], b.Floats[i]
			var r float64
			switch op {
			case tir.OpAdd:
				r = x + y
			case tir.OpSub:
				r = x - y
			case tir.OpMul:
				r = x * y
			case tir.OpDiv:
				r = x / y
			case tir.OpMod:
				r = math.Mod(x, y)
			case tir.OpMin:
				r = math.Min(x, y)
			case tir.OpMax:
				r = math.Max(x, y)
			}
			out.Floats[i] = roundFloat(t, r)
		}
		return out, nil
	}

	unsigned := t.IsUInt()
	out := Value{Type: t, Ints: make([]int64, len(a.Ints))}
	for i := range a.Ints {
		x, y := a.Ints[i], b.Ints[i]
		var r int64
		switch op {
		case tir.OpAdd:
			r = x + y
		case tir.OpSub:
			r = x - y
		case tir.OpMul:
			r = x * y
		case tir.OpDiv, tir.OpMod:
			if y == 0 {
				return Value{}, rterrors.DivisionByZero(op.String())
			}
			switch {
			case unsigned && op == tir.OpDiv:
				r = int64(uint64(x) / uint64(y))
			case unsigned:
				r = int64(uint64(x) % uint64(y))
			case op == tir.OpDiv:
				r = x / y
			default:
				r = x % y
			}
		case tir.OpMin:
			r = x
			if less(unsigned, y, x) {
				r = y
			}
		case tir.OpMax:
			r = x
			if less(unsigned, x, y) {
				r = y
			}
		}
		out.Ints[i] = tir.Truncate(t, r)
	}
	return out, nil
}

func less(unsigned bool, x, y int64) bool {
	if unsigned {
		return uint64(x) < uint64(y)
	}
	return x < y
}

func compare(op tir.CompareOp, a, b Value) Value {
	lanes := a.Lanes()
	out := Value{Type: tir.Bool.WithLanes(lanes), Ints: make([]int64, lanes)}
	for i := 0; i < lanes; i++ {
		var lt, eq bool
		if a.Type.IsFloat() {
			lt, eq = a.Floats[i] < b.Floats[i], a.Floats[i] == b.Floats[i]
		} else {
			lt, eq = less(a.Type.IsUInt(), a.Ints[i], b.Ints[i]), a.Ints[i] == b.Ints[i]
		}
		var r bool
		switch op {
		case tir.OpEQ:
			r = eq
		case tir.OpNE:
			r = !eq
		case tir.OpLT:
			r = lt
		case tir.OpLE:
			r = lt || eq
		case tir.OpGT:
			r = !lt && !eq
		case tir.OpGE:
			r = !lt
		}
		out.Ints[i] = boolInt(r)
	}
	return out
}

func cast(to tir.DType, v Value) Value {
	lanes := v.Lanes()
	out := Value{Type: to.WithLanes(lanes)}
	for i := 0; i < lanes; i++ {
		switch {
		case v.Type.IsFloat() && to.IsFloat():
			out.Floats = append(out.Floats, roundFloat(to, v.Floats[i]))
		case v.Type.IsFloat() && to.IsBool():
			out.Ints = append(out.Ints, boolInt(v.Floats[i] != 0))
		case v.Type.IsFloat():
			out.Ints = append(out.Ints, tir.Truncate(to, floatToInt(v.Floats[i])))
		case to.IsFloat():
			x := float64(v.Ints[i])
			if v.Type.IsUInt() {
				x = float64(uint64(v.Ints[i]))
			}
			out.Floats = append(out.Floats, roundFloat(to, x))
		default:
			out.Ints = append(out.Ints, tir.Truncate(to, v.Ints[i]))
		}
	}
	return out
}
