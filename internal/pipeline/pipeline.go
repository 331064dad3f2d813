// Package pipeline drives the bounds-check pass over whole modules.
// Every function is an independent compilation unit with its own shape
// registry, so units are processed concurrently.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/tirguard/internal/boundcheck"
	"github.com/orizon-lang/tirguard/internal/config"
	"github.com/orizon-lang/tirguard/internal/simplify"
	"github.com/orizon-lang/tirguard/internal/tir"
	"github.com/orizon-lang/tirguard/internal/tirtext"
)

// Result is the outcome for one unit.
type Result struct {
	Func  *tir.Func
	Stats boundcheck.Stats
}

// Run instruments every unit according to cfg. Results keep the order of
// units. A nil cfg means config.Default and a nil logger discards output.
func Run(ctx context.Context, units []*tir.Func, cfg *config.Config, logger *zap.Logger) ([]Result, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	runID := uuid.NewString()
	log := logger.With(zap.String("run_id", runID))
	log.Info("pipeline started", zap.Int("units", len(units)), zap.Int("workers", cfg.Workers()))
	start := time.Now()

	results := make([]Result, len(units))
	sem := make(chan struct{}, cfg.Workers())
	g, gctx := errgroup.WithContext(ctx)

	for i, f := range units {
		i, f := i, f

		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = runUnit(f, cfg, log)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Warn("pipeline aborted", zap.Error(err))
		return nil, errors.Wrap(err, "pipeline")
	}

	total := Total(results)
	log.Info("pipeline finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("writes", total.Writes),
		zap.Int("instrumented", total.Instrumented),
	)
	return results, nil
}

func runUnit(f *tir.Func, cfg *config.Config, log *zap.Logger) Result {
	log = log.With(zap.String("func", f.Name))

	if !cfg.BoundCheck.Enabled {
		log.Debug("bound check disabled, passing through")
		return Result{Func: f}
	}

	body, stats := boundcheck.Instrument(f.Body, cfg.BoundCheck.CollectAnnotations, cfg.Options(), log)
	if cfg.Pipeline.SimplifyOutput {
		body = tir.MapExprs(body, simplify.Expr)
	}

	log.Info("unit instrumented",
		zap.Int("writes", stats.Writes),
		zap.Int("instrumented", stats.Instrumented),
		zap.Int("accesses", stats.Accesses),
	)
	return Result{
		Func:  &tir.Func{Name: f.Name, Params: f.Params, Body: body},
		Stats: stats,
	}
}

// Total merges the stats of all results.
func Total(results []Result) boundcheck.Stats {
	var total boundcheck.Stats
	for _, r := range results {
		total.Merge(r.Stats)
	}
	return total
}

// RunModule instruments every function of m and returns the rewritten module.
func RunModule(ctx context.Context, m *tir.Module, cfg *config.Config, logger *zap.Logger) (*tir.Module, []Result, error) {
	results, err := Run(ctx, m.Funcs, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	out := &tir.Module{Version: m.Version, Funcs: make([]*tir.Func, len(results))}
	for i, r := range results {
		out.Funcs[i] = r.Func
	}
	return out, results, nil
}

// ProcessFile reads the module at path, instruments it and returns the
// printed result.
func ProcessFile(ctx context.Context, path string, cfg *config.Config, logger *zap.Logger) (string, []Result, error) {
	m, err := tirtext.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	out, results, err := RunModule(ctx, m, cfg, logger)
	if err != nil {
		return "", nil, errors.Wrapf(err, "process %s", path)
	}
	return tirtext.Format(out), results, nil
}

// WriteFile processes src and writes the result to dst.
func WriteFile(ctx context.Context, src, dst string, cfg *config.Config, logger *zap.Logger) ([]Result, error) {
	text, results, err := ProcessFile(ctx, src, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(dst, []byte(text), 0o644); err != nil {
		return nil, errors.Wrapf(err, "write %s", dst)
	}
	return results, nil
}
