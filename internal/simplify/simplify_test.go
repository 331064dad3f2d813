package simplify

import (
	"testing"

	"github.com/orizon-lang/tirguard/internal/tir"
)

func TestExpr(t *testing.T) {
	x := tir.NewVar("x", tir.I32)
	u := tir.NewVar("u", tir.U32)
	c := func(v int64) tir.Expr { return tir.IntConst(tir.I32, v) }

	cases := []struct {
		name string
		in   tir.Expr
		want string
	}{
		{"fold", tir.Add(c(2), c(3)), "5"},
		{"wrap", tir.Add(tir.IntConst(tir.I8, 127), tir.IntConst(tir.I8, 1)), "-128i8"},
		{"unsigned div", tir.Div(tir.IntConst(tir.U32, -1), tir.IntConst(tir.U32, 2)), "2147483647u32"},
		{"div by zero", tir.Div(c(1), c(0)), "1 / 0"},
		{"add zero", tir.Add(x, c(0)), "x"},
		{"mul one", tir.Mul(c(1), x), "x"},
		{"mul zero", tir.Mul(x, c(0)), "0"},
		{"commute", tir.Add(c(2), x), "x + 2"},
		{"merge offsets", tir.Add(tir.Add(x, c(1)), c(2)), "x + 3"},
		{"merge scales", tir.Mul(tir.Mul(x, c(2)), c(4)), "x * 8"},
		{"signed sub", tir.Sub(x, c(3)), "x + -3"},
		{"unsigned sub", tir.Sub(u, tir.IntConst(tir.U32, 1)), "u - 1u32"},
		{"sub self", tir.Sub(x, x), "0"},
		{"offsets cancel", tir.CastTo(tir.I64, tir.Add(tir.Add(x, c(1)), c(-1))), "i64(x)"},
		{"min offsets", tir.Min(tir.Add(x, c(1)), tir.Add(x, c(3))), "x + 1"},
		{"max offsets", tir.Max(x, tir.Add(x, c(2))), "x + 2"},
		{"max unrelated", tir.Max(x, c(2)), "max(x, 2)"},
		{"unsigned compare", tir.LT(tir.IntConst(tir.U32, -1), tir.IntConst(tir.U32, 1)), "false"},
		{"compare self", tir.GE(x, x), "true"},
		{"and true", tir.And(tir.BoolConst(true), tir.LT(x, c(1))), "x < 1"},
		{"or true", tir.Or(tir.LT(x, c(1)), tir.BoolConst(true)), "true"},
		{"double not", &tir.Not{A: &tir.Not{A: tir.LT(x, c(1))}}, "x < 1"},
		{"widen constant", tir.CastTo(tir.I64, c(-1)), "-1i64"},
		{"narrow constant", tir.CastTo(tir.I8, c(300)), "44i8"},
		{"float to int", tir.CastTo(tir.I32, tir.FloatConst(tir.F32, 2.5)), "2"},
		{"float fold", tir.Add(tir.FloatConst(tir.F32, 1.5), tir.FloatConst(tir.F32, 2)), "3.5"},
		{"zero stride", &tir.Ramp{Base: x, Stride: c(0), Lanes: 4}, "broadcast(x, 4)"},
		{"likely", &tir.Call{DType: tir.Bool, Name: tir.IntrinsicLikely, Args: []tir.Expr{tir.LT(x, c(1))}, Kind: tir.CallIntrinsic}, "x < 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Expr(tc.in)
			if s := tir.ExprString(got); s != tc.want {
				t.Fatalf("want %s, got %s", tc.want, s)
			}
			if again := Expr(got); !tir.Equal(again, got) {
				t.Fatalf("not a fixed point: %s became %s", tir.ExprString(got), tir.ExprString(again))
			}
		})
	}
}

func TestExprKeepsVectors(t *testing.T) {
	x := tir.NewVar("x", tir.I32)
	ramp := &tir.Ramp{Base: x, Stride: tir.IntConst(tir.I32, 1), Lanes: 4}
	e := tir.Add(ramp, &tir.Broadcast{Value: tir.IntConst(tir.I32, 0), Lanes: 4})
	if got := tir.ExprString(Expr(e)); got != "ramp(x, 1, 4) + broadcast(0, 4)" {
		t.Fatalf("vector arithmetic must be left alone, got %s", got)
	}
}

func TestExprNil(t *testing.T) {
	if Expr(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}
