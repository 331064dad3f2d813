package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/orizon-lang/tirguard/internal/boundcheck"
	"github.com/orizon-lang/tirguard/internal/config"
	"github.com/orizon-lang/tirguard/internal/pipeline"
	"github.com/orizon-lang/tirguard/internal/tir"
	"github.com/orizon-lang/tirguard/internal/tirtext"
)

const kernel = `func myadd(A: f32*, B: f32*, n: i32, k: i32) {
  attr buffer_bound(A) = 16u64 {
    attr buffer_bound(B) = 16u64 {
      for (i, 0, n) {
        A[i] = B[i + k] + 1.0
      }
    }
  }
}
`

func writeKernel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kernel.tir")
	if err := os.WriteFile(path, []byte(kernel), 0o644); err != nil {
		t.Fatalf("write kernel: %v", err)
	}
	return path
}

func TestAssignments(t *testing.T) {
	a := assignments{}
	if err := a.Set("B=16"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := a.Set("A=8"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if s := a.String(); s != "A=8,B=16" {
		t.Fatalf("want A=8,B=16, got %s", s)
	}
	for _, bad := range []string{"A=4", "noequals", "=3", "C="} {
		if err := a.Set(bad); err == nil {
			t.Fatalf("Set(%q) must fail", bad)
		}
	}
}

func TestBindInputs(t *testing.T) {
	m, err := tirtext.Read(strings.NewReader(kernel), "kernel.tir")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	f := m.Funcs[0]

	in, err := bindInputs(f, assignments{"A": "16", "B": "16"}, assignments{"n": "16", "k": "-1"})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if in.Buffers["A"].Len() != 16 || in.Buffers["B"].Elem != tir.F32 {
		t.Fatalf("unexpected buffers: %+v", in.Buffers)
	}
	if got := in.Scalars["k"].Index(0); got != -1 {
		t.Fatalf("k: want -1, got %d", got)
	}

	cases := []struct {
		name    string
		buffers assignments
		scalars assignments
		want    string
	}{
		{"missing buffer", assignments{"A": "16"}, assignments{"n": "1", "k": "0"}, "missing -buf B=SIZE"},
		{"bad size", assignments{"A": "x", "B": "16"}, assignments{"n": "1", "k": "0"}, `bad size "x"`},
		{"missing scalar", assignments{"A": "16", "B": "16"}, assignments{"n": "1"}, "missing -arg k=VALUE"},
		{"bad scalar", assignments{"A": "16", "B": "16"}, assignments{"n": "1.5", "k": "0"}, "scalar n"},
		{"extra buffer", assignments{"A": "16", "B": "16", "C": "1"}, assignments{"n": "1", "k": "0"}, "no buffer parameter C"},
		{"extra scalar", assignments{"A": "16", "B": "16"}, assignments{"n": "1", "k": "0", "m": "2"}, "no scalar parameter m"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := bindInputs(f, c.buffers, c.scalars)
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Fatalf("want error containing %q, got %v", c.want, err)
			}
		})
	}
}

func TestParseScalar(t *testing.T) {
	if v, err := parseScalar(tir.U8, "255"); err != nil || v.Index(0) != 255 {
		t.Fatalf("u8 255: got %v (%v)", v, err)
	}
	if _, err := parseScalar(tir.U8, "256"); err == nil {
		t.Fatalf("u8 256 must overflow")
	}
	if v, err := parseScalar(tir.Bool, "true"); err != nil || !v.IsTrue() {
		t.Fatalf("bool: got %v (%v)", v, err)
	}
	if v, err := parseScalar(tir.F64, "2.5"); err != nil || v.Floats[0] != 2.5 {
		t.Fatalf("f64: got %v (%v)", v, err)
	}
}

func TestProcessFileExitCodes(t *testing.T) {
	path := writeKernel(t)
	bufs := assignments{"A": "16", "B": "16"}

	cases := []struct {
		name    string
		enabled bool
		k       string
		want    int
	}{
		{"in bounds", true, "0", exitOK},
		{"guarded overflow", true, "1", exitAbort},
		{"guarded underflow", true, "-1", exitAbort},
		{"unguarded overflow", false, "1", exitFault},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.BoundCheck.Enabled = c.enabled
			opts := &options{
				output:  filepath.Join(t.TempDir(), "out.tir"),
				runFunc: "myadd",
				buffers: bufs,
				scalars: assignments{"n": "16", "k": c.k},
			}
			if got := processFile(context.Background(), path, cfg, opts, zap.NewNop()); got != c.want {
				t.Fatalf("exit code: want %d, got %d", c.want, got)
			}
		})
	}
}

func TestProcessFileErrors(t *testing.T) {
	path := writeKernel(t)
	opts := &options{output: filepath.Join(t.TempDir(), "out.tir"), runFunc: "missing"}
	if got := processFile(context.Background(), path, config.Default(), opts, zap.NewNop()); got != exitError {
		t.Fatalf("unknown function: want %d, got %d", exitError, got)
	}

	opts = &options{output: filepath.Join(t.TempDir(), "out.tir")}
	absent := filepath.Join(t.TempDir(), "absent.tir")
	if got := processFile(context.Background(), absent, config.Default(), opts, zap.NewNop()); got != exitError {
		t.Fatalf("missing file: want %d, got %d", exitError, got)
	}
}

func TestProcessFileWritesOutput(t *testing.T) {
	path := writeKernel(t)
	out := filepath.Join(t.TempDir(), "out.tir")
	opts := &options{output: out}
	if got := processFile(context.Background(), path, config.Default(), opts, zap.NewNop()); got != exitOK {
		t.Fatalf("exit code: want 0, got %d", got)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Contains(data, []byte(`assert(`)) {
		t.Fatalf("output has no guard:\n%s", data)
	}
}

func TestPrintStats(t *testing.T) {
	results := []pipeline.Result{
		{Func: &tir.Func{Name: "f"}, Stats: boundcheck.Stats{Writes: 2, Instrumented: 1, Accesses: 2,
			Skipped: map[boundcheck.SkipReason]int{boundcheck.SkipDegenerate: 1}}},
		{Func: &tir.Func{Name: "g"}, Stats: boundcheck.Stats{Writes: 1,
			Skipped: map[boundcheck.SkipReason]int{boundcheck.SkipNoReads: 1}}},
	}
	var buf bytes.Buffer
	printStats(&buf, "k.tir", results)
	want := "k.tir: f: writes=2 instrumented=1 accesses=2 degenerate-shape=1\n" +
		"k.tir: g: writes=1 instrumented=0 accesses=0 no-reads=1\n" +
		"k.tir: total: writes=3 instrumented=1 accesses=2 no-reads=1 degenerate-shape=1\n"
	if got := buf.String(); got != want {
		t.Fatalf("want:\n%s\ngot:\n%s", want, got)
	}
}
