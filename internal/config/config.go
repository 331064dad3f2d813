// Package config loads tirguard settings from YAML.
package config

import (
	"encoding"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/orizon-lang/tirguard/internal/boundcheck"
)

// Config is the full configuration file.
type Config struct {
	BoundCheck BoundCheck `yaml:"boundcheck"`
	Pipeline   Pipeline   `yaml:"pipeline"`
	Log        Log        `yaml:"log"`
}

// BoundCheck configures the instrumentation pass.
type BoundCheck struct {
	Enabled            bool                    `yaml:"enabled"`
	CollectAnnotations bool                    `yaml:"collect_annotations"`
	ScopedShapes       bool                    `yaml:"scoped_shapes"`
	VectorPolicy       boundcheck.VectorPolicy `yaml:"vector_policy"`
	Idempotent         bool                    `yaml:"idempotent"`
}

// Pipeline configures the driver.
type Pipeline struct {
	// Workers bounds concurrently processed functions. Zero means GOMAXPROCS.
	Workers        int  `yaml:"workers"`
	SimplifyOutput bool `yaml:"simplify_output"`
}

// Log configures the logger built by the command line tool.
type Log struct {
	Level  zapcore.Level `yaml:"level"`
	Format LogFormat     `yaml:"format"`
	// Output is a file path. Empty means stderr.
	Output string `yaml:"output"`
}

// LogFormat selects the log encoder.
type LogFormat int

const (
	_ LogFormat = iota
	LogFormatConsole
	LogFormatJSON
)

var _ encoding.TextUnmarshaler = (*LogFormat)(nil)

func (f LogFormat) String() string {
	v, err := f.MarshalText()
	if err != nil {
		return fmt.Sprintf("log-format-invalid(%d)", int(f))
	}

	return string(v)
}

// UnmarshalText for setting values with configs, CLI, etc.
func (f *LogFormat) UnmarshalText(b []byte) error {
	switch string(b) {
	case "console":
		*f = LogFormatConsole
		return nil
	case "json":
		*f = LogFormatJSON
		return nil
	default:
		return fmt.Errorf("unknown log format %q", b)
	}
}

func (f LogFormat) MarshalText() ([]byte, error) {
	switch f {
	case LogFormatConsole:
		return []byte("console"), nil
	case LogFormatJSON:
		return []byte("json"), nil
	default:
		return nil, fmt.Errorf("cannot marshal invalid LogFormat(%d)", int(f))
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	opts := boundcheck.DefaultOptions()
	return &Config{
		BoundCheck: BoundCheck{
			Enabled:            true,
			CollectAnnotations: true,
			ScopedShapes:       opts.ScopedShapes,
			VectorPolicy:       opts.VectorPolicy,
			Idempotent:         opts.Idempotent,
		},
		Log: Log{
			Level:  zapcore.InfoLevel,
			Format: LogFormatConsole,
		},
	}
}

// Load reads the file at path over the defaults. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	return cfg, nil
}

// Decode reads YAML from r over the defaults. Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the decoder cannot.
func (c *Config) Validate() error {
	if _, err := c.BoundCheck.VectorPolicy.MarshalText(); err != nil {
		return errors.Wrap(err, "boundcheck.vector_policy")
	}
	if c.Pipeline.Workers < 0 {
		return errors.Errorf("pipeline.workers must not be negative, got %d", c.Pipeline.Workers)
	}
	if c.Log.Level < zapcore.DebugLevel || c.Log.Level > zapcore.FatalLevel {
		return errors.Errorf("log.level %s is not supported", c.Log.Level)
	}
	if _, err := c.Log.Format.MarshalText(); err != nil {
		return errors.Wrap(err, "log.format")
	}
	return nil
}

// Options converts the pass section into instrumenter options.
func (c *Config) Options() boundcheck.Options {
	return boundcheck.Options{
		ScopedShapes: c.BoundCheck.ScopedShapes,
		VectorPolicy: c.BoundCheck.VectorPolicy,
		Idempotent:   c.BoundCheck.Idempotent,
	}
}

// Workers returns the effective worker count.
func (c *Config) Workers() int {
	if c.Pipeline.Workers > 0 {
		return c.Pipeline.Workers
	}
	return runtime.GOMAXPROCS(0)
}
