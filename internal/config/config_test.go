package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sirkon/deepequal"
	"go.uber.org/zap/zapcore"

	"github.com/orizon-lang/tirguard/internal/boundcheck"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		deepequal.SideBySide(t, "config", Default(), cfg)
		t.Fatalf("empty path must yield defaults")
	}
	if got := cfg.Options(); !reflect.DeepEqual(got, boundcheck.DefaultOptions()) {
		t.Fatalf("options: want %+v, got %+v", boundcheck.DefaultOptions(), got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tirguard.yaml")
	data := `boundcheck:
  scoped_shapes: true
  vector_policy: stride-aware
  idempotent: false
pipeline:
  workers: 3
  simplify_output: true
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Default()
	want.BoundCheck.ScopedShapes = true
	want.BoundCheck.VectorPolicy = boundcheck.VectorStrideAware
	want.BoundCheck.Idempotent = false
	want.Pipeline = Pipeline{Workers: 3, SimplifyOutput: true}
	want.Log = Log{Level: zapcore.DebugLevel, Format: LogFormatJSON}
	if !reflect.DeepEqual(cfg, want) {
		deepequal.SideBySide(t, "config", want, cfg)
		t.Fatalf("unexpected config")
	}
	if cfg.Workers() != 3 {
		t.Fatalf("workers: want 3, got %d", cfg.Workers())
	}
}

func TestDecodeEmpty(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !cfg.BoundCheck.Enabled || cfg.Workers() < 1 {
		t.Fatalf("empty document must keep defaults, got %+v", cfg)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{"unknown key", "boundcheck:\n  colect_annotations: true\n", "field colect_annotations not found"},
		{"policy", "boundcheck:\n  vector_policy: every-lane\n", `unknown vector policy "every-lane"`},
		{"workers", "pipeline:\n  workers: -2\n", "pipeline.workers must not be negative"},
		{"message", "boundcheck:\n  message: CHECK\n", "field message not found"},
		{"format", "log:\n  format: xml\n", `unknown log format "xml"`},
		{"level", "log:\n  level: loud\n", "loud"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(c.data))
			if err == nil {
				t.Fatalf("want error containing %q, got none", c.want)
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("want error containing %q, got %q", c.want, err.Error())
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.HasPrefix(err.Error(), "open config") {
		t.Fatalf("want open error, got %v", err)
	}
}

func TestLogFormatText(t *testing.T) {
	var f LogFormat
	if err := f.UnmarshalText([]byte("json")); err != nil || f != LogFormatJSON {
		t.Fatalf("want json, got %v (%v)", f, err)
	}
	if s := LogFormat(0).String(); s != "log-format-invalid(0)" {
		t.Fatalf("zero format: got %s", s)
	}
}
