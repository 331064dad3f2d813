// Package tir defines the tensor-program IR rewritten by the bounds-check pass.
// Expressions and statements form closed sum types: every node kind lives in
// this package and is matched exhaustively by walkers, the simplifier, the
// instrumenter and the interpreter.
package tir

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeCode classifies the scalar kind of a DType.
type TypeCode uint8

const (
	CodeInt TypeCode = iota
	CodeUInt
	CodeFloat
	CodeBool
	CodeHandle
)

// DType is an element type with an optional vector width.
type DType struct {
	Code  TypeCode
	Bits  int
	Lanes int
}

// Commonly used types.
var (
	I8     = DType{Code: CodeInt, Bits: 8, Lanes: 1}
	I16    = DType{Code: CodeInt, Bits: 16, Lanes: 1}
	I32    = DType{Code: CodeInt, Bits: 32, Lanes: 1}
	I64    = DType{Code: CodeInt, Bits: 64, Lanes: 1}
	U8     = DType{Code: CodeUInt, Bits: 8, Lanes: 1}
	U16    = DType{Code: CodeUInt, Bits: 16, Lanes: 1}
	U32    = DType{Code: CodeUInt, Bits: 32, Lanes: 1}
	U64    = DType{Code: CodeUInt, Bits: 64, Lanes: 1}
	F32    = DType{Code: CodeFloat, Bits: 32, Lanes: 1}
	F64    = DType{Code: CodeFloat, Bits: 64, Lanes: 1}
	Bool   = DType{Code: CodeBool, Bits: 1, Lanes: 1}
	Handle = DType{Code: CodeHandle, Bits: 64, Lanes: 1}
)

func (t DType) IsScalar() bool { return t.Lanes == 1 }
func (t DType) IsVector() bool { return t.Lanes > 1 }
func (t DType) IsInt() bool    { return t.Code == CodeInt }
func (t DType) IsUInt() bool   { return t.Code == CodeUInt }
func (t DType) IsFloat() bool  { return t.Code == CodeFloat }
func (t DType) IsBool() bool   { return t.Code == CodeBool }
func (t DType) IsHandle() bool { return t.Code == CodeHandle }

// IsInteger reports whether t holds signed or unsigned integers.
func (t DType) IsInteger() bool { return t.Code == CodeInt || t.Code == CodeUInt }

// WithLanes returns t with the vector width replaced.
func (t DType) WithLanes(lanes int) DType {
	t.Lanes = lanes
	return t
}

// Element returns the scalar type of a vector type.
func (t DType) Element() DType { return t.WithLanes(1) }

func (t DType) String() string {
	var base string
	switch t.Code {
	case CodeInt:
		base = "i" + strconv.Itoa(t.Bits)
	case CodeUInt:
		base = "u" + strconv.Itoa(t.Bits)
	case CodeFloat:
		base = "f" + strconv.Itoa(t.Bits)
	case CodeBool:
		base = "bool"
	case CodeHandle:
		base = "handle"
	default:
		base = fmt.Sprintf("code%d", t.Code)
	}
	if t.Lanes > 1 {
		return base + "x" + strconv.Itoa(t.Lanes)
	}
	return base
}

// ParseDType parses the textual form produced by DType.String.
func ParseDType(s string) (DType, bool) {
	name, lanes := s, 1
	if i := strings.LastIndexByte(s, 'x'); i > 0 {
		n, err := strconv.Atoi(s[i+1:])
		if err != nil || n < 1 {
			return DType{}, false
		}
		name, lanes = s[:i], n
	}

	switch name {
	case "bool":
		return Bool.WithLanes(lanes), true
	case "handle":
		if lanes != 1 {
			return DType{}, false
		}
		return Handle, true
	}
	if len(name) < 2 {
		return DType{}, false
	}

	bits, err := strconv.Atoi(name[1:])
	if err != nil {
		return DType{}, false
	}
	var t DType
	switch name[0] {
	case 'i':
		t = DType{Code: CodeInt, Bits: bits}
	case 'u':
		t = DType{Code: CodeUInt, Bits: bits}
	case 'f':
		t = DType{Code: CodeFloat, Bits: bits}
		if bits != 16 && bits != 32 && bits != 64 {
			return DType{}, false
		}
		return t.WithLanes(lanes), true
	default:
		return DType{}, false
	}
	switch bits {
	case 8, 16, 32, 64:
	default:
		return DType{}, false
	}
	return t.WithLanes(lanes), true
}

// Truncate wraps v to the width of the integer type t. Unsigned values are
// kept as their two's-complement bit pattern in an int64.
func Truncate(t DType, v int64) int64 {
	switch {
	case t.Code == CodeBool:
		if v != 0 {
			return 1
		}
		return 0
	case t.Bits >= 64 || !t.IsInteger():
		return v
	case t.Code == CodeUInt:
		return int64(uint64(v) & (1<<uint(t.Bits) - 1))
	default:
		shift := uint(64 - t.Bits)
		return v << shift >> shift
	}
}
