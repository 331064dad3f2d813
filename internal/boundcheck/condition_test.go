package boundcheck

import (
	"testing"

	"github.com/orizon-lang/tirguard/internal/tir"
)

func TestIndexIsValid(t *testing.T) {
	i := tir.NewVar("i", tir.I32)
	vec := tir.NewVar("v", tir.I32.WithLanes(4))
	cases := []struct {
		name  string
		index tir.Expr
		want  bool
	}{
		{"scalar", i, true},
		{"constant", tir.IntConst(tir.I64, 3), true},
		{"ramp", &tir.Ramp{Base: i, Stride: tir.IntConst(tir.I32, 1), Lanes: 4}, true},
		{"zero lanes", &tir.Ramp{Base: i, Stride: tir.IntConst(tir.I32, 1), Lanes: 0}, false},
		{"vector base", &tir.Ramp{Base: vec, Stride: tir.IntConst(tir.I32, 1), Lanes: 4}, false},
		{"broadcast", &tir.Broadcast{Value: i, Lanes: 4}, false},
		{"vector var", vec, false},
		{"nil", nil, false},
	}
	for _, c := range cases {
		if got := IndexIsValid(c.index); got != c.want {
			t.Fatalf("%s: want %v, got %v", c.name, c.want, got)
		}
	}
}

func TestAccessCondition(t *testing.T) {
	i := tir.NewVar("i", tir.I32)
	ramp := &tir.Ramp{Base: i, Stride: tir.IntConst(tir.I32, 2), Lanes: 4}
	back := &tir.Ramp{Base: i, Stride: tir.IntConst(tir.I32, -2), Lanes: 4}
	b := tir.NewVar("b", tir.I8)
	wide := &tir.Ramp{Base: b, Stride: tir.IntConst(tir.I8, 1), Lanes: 200}
	strided := &tir.Ramp{Base: i, Stride: b, Lanes: 4}
	bound := tir.Mul(tir.IntConst(tir.U64, 4), tir.CastTo(tir.U64, tir.IntConst(tir.I32, 16)))

	cases := []struct {
		name   string
		index  tir.Expr
		policy VectorPolicy
		want   string
	}{
		{"scalar", i, VectorUpperLane, "i64(i) >= 0i64 && i64(i) < 64i64"},
		{"ramp upper lane", ramp, VectorUpperLane, "i64(i) + 6i64 >= 0i64 && i64(i) + 6i64 < 64i64"},
		{"ramp stride aware", ramp, VectorStrideAware, "i64(i) >= 0i64 && i64(i) + 6i64 < 64i64"},
		{"negative stride upper lane", back, VectorUpperLane, "i64(i) + -6i64 >= 0i64 && i64(i) + -6i64 < 64i64"},
		{"negative stride aware", back, VectorStrideAware, "i64(i) + -6i64 >= 0i64 && i64(i) < 64i64"},
		{"narrow base", wide, VectorUpperLane, "i64(b) + 199i64 >= 0i64 && i64(b) + 199i64 < 64i64"},
		{"narrow base stride aware", wide, VectorStrideAware, "i64(b) >= 0i64 && i64(b) + 199i64 < 64i64"},
		{"symbolic stride", strided, VectorUpperLane, "i64(i) + i64(b) * 3i64 >= 0i64 && i64(i) + i64(b) * 3i64 < 64i64"},
	}
	for _, c := range cases {
		got := tir.ExprString(accessCondition(AccessRecord{Index: c.index, Bound: bound}, c.policy))
		if got != c.want {
			t.Fatalf("%s: want %s, got %s", c.name, c.want, got)
		}
	}
}

func TestMakeConditionDegenerate(t *testing.T) {
	a := tir.NewBuffer("A", tir.F32)
	i := tir.NewVar("i", tir.I32)
	in := New(nil, DefaultOptions(), nil)
	in.pending = []AccessRecord{
		{Buffer: a, Index: i, Bound: tir.IntConst(tir.U64, 4)},
		{Buffer: a, Index: i, Bound: nil},
	}
	if _, ok := in.makeCondition(); ok {
		t.Fatalf("want degenerate synthesis, got a condition")
	}

	in.pending = in.pending[:1]
	cond, ok := in.makeCondition()
	if !ok {
		t.Fatalf("want a condition")
	}
	if got, want := tir.ExprString(cond), "i64(i) >= 0i64 && i64(i) < 4i64"; got != want {
		t.Fatalf("want %s, got %s", want, got)
	}
}

func TestRegistryLayers(t *testing.T) {
	a := tir.NewBuffer("A", tir.F32)
	b := tir.NewBuffer("B", tir.F32)
	r := NewRegistry()
	r.Set(a, tir.IntConst(tir.U64, 8))

	r.Push()
	r.Set(a, tir.IntConst(tir.U64, 2))
	r.Set(b, nil)
	if got, _ := r.Lookup(a); tir.ExprString(got) != "2u64" {
		t.Fatalf("inner lookup: want 2u64, got %s", tir.ExprString(got))
	}
	if bufs := r.Buffers(); len(bufs) != 2 || bufs[0] != a || bufs[1] != b {
		t.Fatalf("buffers: want [A B], got %v", bufs)
	}
	r.Pop()

	if got, _ := r.Lookup(a); tir.ExprString(got) != "8u64" {
		t.Fatalf("outer lookup: want 8u64, got %s", tir.ExprString(got))
	}
	if _, ok := r.Lookup(b); ok {
		t.Fatalf("B must not outlive its layer")
	}
	r.Pop()
	if r.Depth() != 0 {
		t.Fatalf("base layer must survive Pop, depth %d", r.Depth())
	}
}

func TestCollectShapes(t *testing.T) {
	a := tir.NewBuffer("A", tir.F32)
	inner := &tir.AttrStmt{Node: a, Key: tir.AttrBufferBound, Value: tir.IntConst(tir.U64, 32), Body: tir.Nop()}
	outer := &tir.AttrStmt{Node: a, Key: tir.AttrBufferBound, Value: tir.IntConst(tir.U64, 16), Body: &tir.Seq{Stmts: []tir.Stmt{
		&tir.AttrStmt{Node: a, Key: "pragma", Value: tir.IntConst(tir.I32, 1), Body: inner},
	}}}

	r := CollectShapes(outer)
	got, ok := r.Lookup(a)
	if !ok || tir.ExprString(got) != "32u64" {
		t.Fatalf("want the later annotation 32u64, got %v", got)
	}
}

func TestVectorPolicyText(t *testing.T) {
	var p VectorPolicy
	if err := p.UnmarshalText([]byte("stride-aware")); err != nil || p != VectorStrideAware {
		t.Fatalf("want stride-aware, got %v (%v)", p, err)
	}
	if err := p.UnmarshalText([]byte("lanes")); err == nil {
		t.Fatalf("want an error for an unknown policy")
	}
	text, _ := VectorUpperLane.MarshalText()
	if string(text) != "upper-lane" {
		t.Fatalf("want upper-lane, got %s", text)
	}
}
