package main

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/orizon-lang/tirguard/internal/interp"
	"github.com/orizon-lang/tirguard/internal/tir"
)

// assignments collects repeated NAME=VALUE flags.
type assignments map[string]string

func (a assignments) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + a[k]
	}
	return strings.Join(parts, ",")
}

func (a assignments) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" || value == "" {
		return errors.Errorf("want NAME=VALUE, got %q", s)
	}
	if _, dup := a[name]; dup {
		return errors.Errorf("%s bound twice", name)
	}
	a[name] = value
	return nil
}

// bindInputs builds interpreter inputs for f from command line bindings.
func bindInputs(f *tir.Func, buffers, scalars assignments) (interp.Inputs, error) {
	in := interp.Inputs{
		Buffers: map[string]*interp.Buffer{},
		Scalars: map[string]interp.Value{},
	}
	used := map[string]bool{}

	for _, p := range f.Params {
		if p.DType.IsHandle() {
			raw, ok := buffers[p.Name]
			if !ok {
				return in, errors.Errorf("buffer %s: missing -buf %s=SIZE", p.Name, p.Name)
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return in, errors.Errorf("buffer %s: bad size %q", p.Name, raw)
			}
			in.Buffers[p.Name] = interp.NewBuffer(p.Name, p.Elem, n)
			used["buf:"+p.Name] = true
			continue
		}

		raw, ok := scalars[p.Name]
		if !ok {
			return in, errors.Errorf("scalar %s: missing -arg %s=VALUE", p.Name, p.Name)
		}
		v, err := parseScalar(p.DType, raw)
		if err != nil {
			return in, errors.Wrapf(err, "scalar %s", p.Name)
		}
		in.Scalars[p.Name] = v
		used["arg:"+p.Name] = true
	}

	for name := range buffers {
		if !used["buf:"+name] {
			return in, errors.Errorf("%s has no buffer parameter %s", f.Name, name)
		}
	}
	for name := range scalars {
		if !used["arg:"+name] {
			return in, errors.Errorf("%s has no scalar parameter %s", f.Name, name)
		}
	}
	return in, nil
}

func parseScalar(t tir.DType, raw string) (interp.Value, error) {
	switch {
	case t.IsBool():
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return interp.Value{}, errors.Wrap(err, "parse bool")
		}
		return interp.Bool(b), nil
	case t.IsFloat():
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return interp.Value{}, errors.Wrap(err, "parse float")
		}
		return interp.Float(t, x), nil
	case t.IsUInt():
		x, err := strconv.ParseUint(raw, 0, t.Bits)
		if err != nil {
			return interp.Value{}, errors.Wrap(err, "parse unsigned")
		}
		return interp.Int(t, int64(x)), nil
	default:
		x, err := strconv.ParseInt(raw, 0, t.Bits)
		if err != nil {
			return interp.Value{}, errors.Wrap(err, "parse integer")
		}
		return interp.Int(t, x), nil
	}
}

func execute(ctx context.Context, f *tir.Func, buffers, scalars assignments, logger *zap.Logger) error {
	in, err := bindInputs(f, buffers, scalars)
	if err != nil {
		return err
	}
	in.Logger = logger
	return interp.Run(ctx, f, in)
}
