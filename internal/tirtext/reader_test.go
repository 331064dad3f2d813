package tirtext

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/orizon-lang/tirguard/internal/tir"
)

const small = "func f(A: f32*) {\n  A[0] = A[1]\n}\n"

func TestReadHeader(t *testing.T) {
	m, err := Read(strings.NewReader("#tir 1.2.0\n"+small), "h.tir")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if m.Version != "1.2.0" {
		t.Fatalf("version: want 1.2.0, got %s", m.Version)
	}

	m, err = Read(strings.NewReader(small), "h.tir")
	if err != nil {
		t.Fatalf("read without header: %v", err)
	}
	if m.Version != CurrentVersion {
		t.Fatalf("default version: want %s, got %s", CurrentVersion, m.Version)
	}
}

func TestReadRejectsVersions(t *testing.T) {
	for _, header := range []string{"#tir 2.0.0", "#tir 0.9.0", "#tir banana"} {
		_, err := Read(strings.NewReader(header+"\n"+small), "v.tir")
		if err == nil {
			t.Fatalf("%s: want error, got none", header)
		}
		if !strings.HasPrefix(err.Error(), "v.tir:1:1:") {
			t.Fatalf("%s: want position in error, got %q", header, err)
		}
	}
}

func TestReadKeepsLinePositions(t *testing.T) {
	_, err := Read(strings.NewReader("#tir 1.0.0\nfunc f() {\n  eval y\n}\n"), "p.tir")
	if err == nil || !strings.Contains(err.Error(), "p.tir:3:8: undefined: y") {
		t.Fatalf("want error at 3:8, got %v", err)
	}
}

func TestReadBOM(t *testing.T) {
	utf8 := append([]byte{0xEF, 0xBB, 0xBF}, []byte(small)...)
	m, err := Read(bytes.NewReader(utf8), "bom.tir")
	if err != nil {
		t.Fatalf("utf-8 with BOM: %v", err)
	}
	if got := tir.PrintModule(m); got != small {
		t.Fatalf("utf-8 with BOM: want %q, got %q", small, got)
	}

	units := utf16.Encode([]rune(small))
	le := []byte{0xFF, 0xFE}
	for _, u := range units {
		le = append(le, byte(u), byte(u>>8))
	}
	m, err = Read(bytes.NewReader(le), "bom16.tir")
	if err != nil {
		t.Fatalf("utf-16 with BOM: %v", err)
	}
	if got := tir.PrintModule(m); got != small {
		t.Fatalf("utf-16 with BOM: want %q, got %q", small, got)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	m, err := Read(strings.NewReader(small), "f.tir")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := Format(m)
	if !strings.HasPrefix(text, "#tir "+CurrentVersion+"\n") {
		t.Fatalf("missing header in %q", text)
	}

	var buf bytes.Buffer
	if err := Write(&buf, m); err != nil {
		t.Fatalf("write: %v", err)
	}
	again, err := Read(&buf, "f.tir")
	if err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if Format(again) != text {
		t.Fatalf("format is not stable:\n%s\nvs\n%s", text, Format(again))
	}
}

func TestDiff(t *testing.T) {
	before, err := Read(strings.NewReader(small), "d.tir")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	after, err := Read(strings.NewReader(strings.Replace(small, "A[1]", "A[2]", 1)), "d.tir")
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	text, err := Diff("d.tir", before, after)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	for _, want := range []string{"--- d.tir\n", "+++ d.tir (instrumented)\n", "-  A[0] = A[1]\n", "+  A[0] = A[2]\n"} {
		if !strings.Contains(text, want) {
			t.Fatalf("diff lacks %q:\n%s", want, text)
		}
	}

	if text, err := Diff("d.tir", before, before); err != nil || text != "" {
		t.Fatalf("identical modules: want empty diff, got %q (%v)", text, err)
	}
}
