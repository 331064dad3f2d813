package tirtext

import (
	"strings"
	"testing"

	"github.com/orizon-lang/tirguard/internal/tir"
)

func mustParse(t *testing.T, src string) *tir.Module {
	t.Helper()
	m, err := Parse(src, "test.tir")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return m
}

func TestLexerTokens(t *testing.T) {
	l := NewLexer("A[i] = 16u64 && x <= -1.5f64 // comment\n@ext:f32(\"s\")")
	want := []struct {
		typ TokenType
		lit string
	}{
		{TokenIdent, "A"}, {TokenLBracket, "["}, {TokenIdent, "i"}, {TokenRBracket, "]"},
		{TokenAssign, "="}, {TokenInt, "16u64"}, {TokenAnd, "&&"}, {TokenIdent, "x"},
		{TokenLe, "<="}, {TokenMinus, "-"}, {TokenFloat, "1.5f64"},
		{TokenExtern, "ext"}, {TokenColon, ":"}, {TokenIdent, "f32"}, {TokenLParen, "("},
		{TokenString, `"s"`}, {TokenRParen, ")"}, {TokenEOF, ""},
	}
	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != w.typ || tok.Literal != w.lit {
			t.Fatalf("token %d: want %s %q, got %s %q", i, w.typ, w.lit, tok.Type, tok.Literal)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	l := NewLexer("func\n  f")
	if tok := l.NextToken(); tok.Pos != (Position{Line: 1, Column: 1}) {
		t.Fatalf("first token: want 1:1, got %s", tok.Pos)
	}
	if tok := l.NextToken(); tok.Pos != (Position{Line: 2, Column: 3}) {
		t.Fatalf("second token: want 2:3, got %s", tok.Pos)
	}
}

func TestRoundTrip(t *testing.T) {
	sources := []string{
		`func scale(A: f32*, n: i32) {
  for (i, 0, n) {
    A[i] = A[i] * 2.0
  }
}
`,
		`func nested(A: f32*, B: f64*) {
  alloc C: f32[4, 4] {
    for (i, 0, 4) {
      for (j: i64, 0i64, 4i64) {
        C[i * 4 + i32(j)] = A[i] + 1.0
      }
    }
  }
  B[0] = @sqrt:f64(f64(A[0]))
}
`,
		`func guarded(A: f32*) {
  attr buffer_bound(A) = 64u64 {
    for (i, 0, 16) {
      if i64(i * 4) >= 0i64 && i64(i * 4) < 64i64 {
        A[ramp(i * 4, 1, 4)] = A[ramp(i * 4, 1, 4)] + broadcast(1.0, 4) when broadcast(true, 4)
      } else {
        assert(i64(i * 4) >= 0i64 && i64(i * 4) < 64i64, "OUT OF BOUNDS")
      }
    }
  }
}
`,
		`func misc(A: i32*, x: i32, y: u8) {
  A[0] = select(x > 0, min(x, 3), max(x, -3))
  A[1] = likely(x) % 7 - (x - 1)
  eval @touch(A)
  assert(!(y == 0u8) || x != 0, "nonzero") {
    A[2] = x / 2
  }
}
`,
	}
	for _, src := range sources {
		m := mustParse(t, src)
		got := tir.PrintModule(m)
		if got != src {
			t.Fatalf("round trip mismatch:\nwant:\n%s\ngot:\n%s", src, got)
		}
	}
}

func TestUntypedLiteralsAdopt(t *testing.T) {
	m := mustParse(t, `func f(A: f64*, n: i64) {
  for (i: i64, 0, n) {
    A[i + 1] = A[i] * 2
  }
}`)
	want := `func f(A: f64*, n: i64) {
  for (i: i64, 0i64, n) {
    A[i + 1i64] = A[i] * 2.0f64
  }
}
`
	if got := tir.PrintModule(m); got != want {
		t.Fatalf("want:\n%s\ngot:\n%s", want, got)
	}
}

func TestReallocationReusesIdentity(t *testing.T) {
	m := mustParse(t, `func f(x: i32) {
  if x > 0 {
    alloc A: f32[8] {
      A[0] = 1.0
    }
  }
  alloc A: f32[2] {
    A[1] = A[0]
  }
}`)
	seq := m.Funcs[0].Body.(*tir.Seq)
	first := seq.Stmts[0].(*tir.IfThenElse).Then.(*tir.Allocate)
	second := seq.Stmts[1].(*tir.Allocate)
	if first.Buffer != second.Buffer {
		t.Fatalf("want one identity for A, got two")
	}
	store := second.Body.(*tir.Store)
	if store.Value.(*tir.Load).Buffer != second.Buffer {
		t.Fatalf("load must refer to the reallocated buffer")
	}
}

func TestLoopVariablesAreLexical(t *testing.T) {
	_, err := Parse(`func f(A: i32*) {
  for (i, 0, 4) {
    A[i] = i
  }
  A[0] = i
}`, "scope.tir")
	if err == nil || !strings.Contains(err.Error(), "scope.tir:5:10: undefined: i") {
		t.Fatalf("want undefined i at 5:10, got %v", err)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"mismatch", "func f(x: i32, y: i64) {\n  eval x + y\n}", "2:10: mismatched types i32 and i64"},
		{"not a buffer", "func f(x: i32) {\n  x[0] = 1\n}", "2:3: x is not a buffer"},
		{"store type", "func f(A: f32*, x: i32) {\n  A[0] = x\n}", "2:10: cannot use i32 as f32"},
		{"elem mismatch", "func f(A: f32*) {\n  alloc A: i32[4] {\n    eval 0\n  }\n}", "buffer A reallocated with element type i32, was f32"},
		{"bad suffix", "func f() {\n  eval 3q8\n}", `bad literal suffix`},
		{"unknown type", "func f(x: i7) {\n}", `unknown type "i7"`},
		{"unknown function", "func f() {\n  eval foo(1)\n}", "unknown function foo"},
		{"missing brace", "func f() {\n  eval 1\n", "expected }, got \"EOF\""},
		{"bool cond", "func f(x: i32) {\n  if x {\n  }\n}", "condition must be bool"},
		{"redeclared", "func f() {\n}\nfunc f() {\n}", "function f redeclared"},
		{"lanes", "func f(i: i32) {\n  eval ramp(i, 1, i)\n}", "ramp lanes must be a positive integer literal"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse(c.src, "bad.tir")
			if err == nil {
				t.Fatalf("want error containing %q, got none", c.want)
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("want error containing %q, got %q", c.want, err.Error())
			}
		})
	}
}

func TestVectorLoadType(t *testing.T) {
	m := mustParse(t, `func f(A: f32*, B: f32*, i: i32) {
  B[ramp(i, 1, 4)] = A[ramp(i, 2, 4)]
}`)
	store := m.Funcs[0].Body.(*tir.Store)
	if got := store.Value.Type(); got != tir.F32.WithLanes(4) {
		t.Fatalf("load type: want f32x4, got %s", got)
	}
}
