package boundcheck

import (
	"fmt"
)

// AbortMessage is the diagnostic carried by every emitted guard. It is also
// how a later run recognizes an existing guard.
const AbortMessage = "OUT OF BOUNDS"

// VectorPolicy selects how a ramp index is reduced to scalar checks.
type VectorPolicy int

const (
	// VectorUpperLane checks base + stride*(lanes-1) against both bounds.
	VectorUpperLane VectorPolicy = iota

	// VectorStrideAware checks min(first, last) against zero and
	// max(first, last) against the upper bound.
	VectorStrideAware
)

var vectorPolicyNames = map[VectorPolicy]string{
	VectorUpperLane:   "upper-lane",
	VectorStrideAware: "stride-aware",
}

func (p VectorPolicy) String() string {
	v, ok := vectorPolicyNames[p]
	if !ok {
		return fmt.Sprintf("invalid(%d)", p)
	}

	return v
}

// MarshalText implements encoding.TextMarshaler.
func (p VectorPolicy) MarshalText() ([]byte, error) {
	v, ok := vectorPolicyNames[p]
	if !ok {
		return nil, fmt.Errorf("cannot marshal invalid VectorPolicy(%d)", int(p))
	}

	return []byte(v), nil
}

// UnmarshalText for setting values with configs, CLI, etc.
func (p *VectorPolicy) UnmarshalText(rawtext []byte) error {
	text := string(rawtext)
	for k, v := range vectorPolicyNames {
		if v == text {
			*p = k
			return nil
		}
	}

	return fmt.Errorf("unknown vector policy %q", text)
}

// Options tunes the instrumenter.
type Options struct {
	// ScopedShapes limits an allocation's shape to its lexical body.
	ScopedShapes bool

	// VectorPolicy selects the ramp normalization.
	VectorPolicy VectorPolicy

	// Idempotent leaves guards emitted by an earlier run untouched.
	Idempotent bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		VectorPolicy: VectorUpperLane,
		Idempotent:   true,
	}
}

// SkipReason tells why a write was left unmodified.
type SkipReason int

const (
	SkipNoReads SkipReason = iota
	SkipUnsafe
	SkipDegenerate
	SkipGuarded
)

func (r SkipReason) String() string {
	switch r {
	case SkipNoReads:
		return "no-reads"
	case SkipUnsafe:
		return "unsafe-value"
	case SkipDegenerate:
		return "degenerate-shape"
	case SkipGuarded:
		return "already-guarded"
	default:
		return fmt.Sprintf("unknown-reason(%d)", int(r))
	}
}

// Stats counts what happened to the writes of one compilation unit.
type Stats struct {
	Writes       int
	Instrumented int
	Accesses     int
	Skipped      map[SkipReason]int
}

func (s *Stats) skip(r SkipReason) {
	if s.Skipped == nil {
		s.Skipped = map[SkipReason]int{}
	}
	s.Skipped[r]++
}

// Merge adds the counters of o to s.
func (s *Stats) Merge(o Stats) {
	s.Writes += o.Writes
	s.Instrumented += o.Instrumented
	s.Accesses += o.Accesses
	for r, n := range o.Skipped {
		if s.Skipped == nil {
			s.Skipped = map[SkipReason]int{}
		}
		s.Skipped[r] += n
	}
}
