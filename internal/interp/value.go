package interp

import (
	"fmt"
	"math"
	"strings"

	"github.com/orizon-lang/tirguard/internal/tir"
)

// Value is a scalar or vector run-time value. Integers and booleans live in
// Ints, floats in Floats; handles carry the buffer they point to.
type Value struct {
	Type   tir.DType
	Ints   []int64
	Floats []float64
	Buffer *Buffer
}

// Int returns a scalar integer value of type t, wrapped to its width.
func Int(t tir.DType, v int64) Value {
	return Value{Type: t, Ints: []int64{tir.Truncate(t, v)}}
}

// Float returns a scalar float value of type t.
func Float(t tir.DType, v float64) Value {
	return Value{Type: t, Floats: []float64{roundFloat(t, v)}}
}

// Bool returns a scalar boolean.
func Bool(v bool) Value {
	return Int(tir.Bool, boolInt(v))
}

func boolInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func roundFloat(t tir.DType, v float64) float64 {
	if t.Bits == 32 {
		return float64(float32(v))
	}
	return v
}

// Lanes returns the vector width of v.
func (v Value) Lanes() int {
	if v.Type.IsFloat() {
		return len(v.Floats)
	}
	return len(v.Ints)
}

// IsTrue reports whether every lane of a boolean value is set.
func (v Value) IsTrue() bool {
	for _, x := range v.Ints {
		if x == 0 {
			return false
		}
	}
	return len(v.Ints) > 0
}

// Index returns lane i as a buffer offset. Unsigned values above the int64
// range become -1 so that bound checks reject them.
func (v Value) Index(i int) int64 {
	x := v.Ints[i]
	if v.Type.IsUInt() && x < 0 {
		return -1
	}
	return x
}

func (v Value) String() string {
	parts := make([]string, v.Lanes())
	for i := range parts {
		if v.Type.IsFloat() {
			parts[i] = fmt.Sprint(v.Floats[i])
		} else if v.Type.IsUInt() {
			parts[i] = fmt.Sprint(uint64(v.Ints[i]))
		} else {
			parts[i] = fmt.Sprint(v.Ints[i])
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Buffer is flat memory holding elements of one scalar type.
type Buffer struct {
	Name   string
	Elem   tir.DType
	Ints   []int64
	Floats []float64
}

// NewBuffer allocates a zeroed buffer of n elements.
func NewBuffer(name string, elem tir.DType, n int) *Buffer {
	b := &Buffer{Name: name, Elem: elem.Element()}
	if b.Elem.IsFloat() {
		b.Floats = make([]float64, n)
	} else {
		b.Ints = make([]int64, n)
	}
	return b
}

// Len returns the number of elements.
func (b *Buffer) Len() int {
	if b.Elem.IsFloat() {
		return len(b.Floats)
	}
	return len(b.Ints)
}

// Float returns element i as a float64.
func (b *Buffer) Float(i int) float64 {
	if b.Elem.IsFloat() {
		return b.Floats[i]
	}
	if b.Elem.IsUInt() {
		return float64(uint64(b.Ints[i]))
	}
	return float64(b.Ints[i])
}

// SetFloat stores x at i, converting to the element type.
func (b *Buffer) SetFloat(i int, x float64) {
	if b.Elem.IsFloat() {
		b.Floats[i] = roundFloat(b.Elem, x)
		return
	}
	b.Ints[i] = tir.Truncate(b.Elem, floatToInt(x))
}

func floatToInt(x float64) int64 {
	if math.IsNaN(x) {
		return 0
	}
	if x >= math.MaxInt64 {
		return math.MaxInt64
	}
	if x <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(x)
}
