package tirtext

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/orizon-lang/tirguard/internal/tir"
)

// CurrentVersion is the format version written by Format.
const CurrentVersion = "1.0.0"

const headerPrefix = "#tir"

var supported = semver.MustParse(CurrentVersion)

var compatible = func() *semver.Constraints {
	c, err := semver.NewConstraint("^" + supported.String())
	if err != nil {
		panic(err)
	}
	return c
}()

// Read decodes a module from r. UTF-8 and UTF-16 input with a byte order mark
// are accepted; input without a mark is read as UTF-8.
func Read(r io.Reader, filename string) (*tir.Module, error) {
	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", filename)
	}

	src := string(data)
	version, src, err := splitHeader(src, filename)
	if err != nil {
		return nil, err
	}

	m, err := Parse(src, filename)
	if err != nil {
		return nil, err
	}
	m.Version = version
	return m, nil
}

// ReadFile reads the module stored at path.
func ReadFile(path string) (*tir.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open source")
	}
	defer f.Close()

	return Read(f, path)
}

// splitHeader validates an optional "#tir <version>" first line. The line is
// blanked rather than removed so that positions in later errors stay right.
func splitHeader(src, filename string) (string, string, error) {
	first, rest, _ := strings.Cut(src, "\n")
	trimmed := strings.TrimSpace(first)
	if !strings.HasPrefix(trimmed, headerPrefix) {
		return CurrentVersion, src, nil
	}

	raw := strings.TrimSpace(strings.TrimPrefix(trimmed, headerPrefix))
	v, err := semver.NewVersion(raw)
	if err != nil {
		return "", "", errors.Wrapf(err, "%s:1:1: bad format version %q", filename, raw)
	}
	if !compatible.Check(v) {
		return "", "", errors.Errorf("%s:1:1: format version %s is not supported (want %s)", filename, v, compatible)
	}
	return v.String(), "\n" + rest, nil
}

// Format renders m with a version header.
func Format(m *tir.Module) string {
	version := m.Version
	if version == "" {
		version = CurrentVersion
	}
	return headerPrefix + " " + version + "\n" + tir.PrintModule(m)
}

// Write renders m to w.
func Write(w io.Writer, m *tir.Module) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Format(m)); err != nil {
		return errors.Wrap(err, "write module")
	}
	return errors.Wrap(bw.Flush(), "flush module")
}

// Diff returns a unified diff from before to after, or "" when both print
// identically.
func Diff(name string, before, after *tir.Module) (string, error) {
	a, b := Format(before), Format(after)
	if a == b {
		return "", nil
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: name,
		ToFile:   name + " (instrumented)",
		Context:  3,
	})
	if err != nil {
		return "", errors.Wrap(err, "diff")
	}
	return text, nil
}
