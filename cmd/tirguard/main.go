// Package main provides the tirguard command, which instruments tensor IR
// with run-time bounds checks.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/orizon-lang/tirguard/internal/boundcheck"
	"github.com/orizon-lang/tirguard/internal/cli"
	"github.com/orizon-lang/tirguard/internal/config"
	rterrors "github.com/orizon-lang/tirguard/internal/errors"
	"github.com/orizon-lang/tirguard/internal/pipeline"
	"github.com/orizon-lang/tirguard/internal/tirtext"
	"github.com/orizon-lang/tirguard/internal/watch"
)

const toolName = "tirguard"

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitAbort = 2 // a guard rejected an access
	exitFault = 3 // an unguarded access left its buffer
)

type options struct {
	configPath string
	output     string
	diff       bool
	verbose    bool
	jsonLog    bool
	stats      bool
	runFunc    string
	buffers    assignments
	scalars    assignments
	watch      bool
}

func main() {
	var (
		opts        options
		showVersion = flag.Bool("version", false, "show version information")
		showHelp    = flag.Bool("help", false, "show help information")
	)
	opts.buffers = assignments{}
	opts.scalars = assignments{}

	flag.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	flag.StringVar(&opts.output, "o", "", "write the instrumented module to `file` instead of stdout")
	flag.BoolVar(&opts.diff, "d", false, "print a unified diff of the changes instead of the module")
	flag.BoolVar(&opts.verbose, "v", false, "enable debug logging")
	flag.BoolVar(&opts.jsonLog, "json", false, "log as JSON")
	flag.BoolVar(&opts.stats, "stats", false, "print per-function statistics to stderr")
	flag.StringVar(&opts.runFunc, "run", "", "execute `func` after instrumentation")
	flag.Var(opts.buffers, "buf", "bind buffer parameter `NAME=SIZE` for -run (repeatable)")
	flag.Var(opts.scalars, "arg", "bind scalar parameter `NAME=VALUE` for -run (repeatable)")
	flag.BoolVar(&opts.watch, "watch", false, "re-run whenever an input changes")
	flag.Usage = showUsage
	flag.Parse()

	if *showVersion {
		cli.PrintVersion(os.Stdout, toolName, opts.jsonLog)
		return
	}

	if *showHelp {
		showUsage()
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: No input file specified")
		showUsage()
		os.Exit(exitError)
	}
	if opts.output != "" && len(args) > 1 {
		cli.ExitWithError("-o accepts a single input file, got %d", len(args))
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		cli.ExitWithError("%v", err)
	}

	logger, err := cli.NewLogger(cfg.Log, opts.verbose, opts.jsonLog)
	if err != nil {
		cli.ExitWithError("%v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := processAll(ctx, args, cfg, &opts, logger)
	if opts.watch {
		code = watchInputs(ctx, args, cfg, &opts, logger)
	}
	if code != exitOK {
		_ = logger.Sync()
		os.Exit(code)
	}
}

func showUsage() {
	fmt.Println("tirguard - run-time bounds checks for tensor IR")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("    tirguard [OPTIONS] <INPUT_FILE>...")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("    -config FILE     YAML configuration")
	fmt.Println("    -o FILE          Write output to FILE (single input only)")
	fmt.Println("    -d               Print a unified diff instead of the module")
	fmt.Println("    -v               Debug logging")
	fmt.Println("    -json            JSON logging and version output")
	fmt.Println("    -stats           Print per-function statistics")
	fmt.Println("    -run FUNC        Execute FUNC after instrumentation")
	fmt.Println("    -buf NAME=SIZE   Bind a zeroed buffer for -run (repeatable)")
	fmt.Println("    -arg NAME=VALUE  Bind a scalar for -run (repeatable)")
	fmt.Println("    -watch           Re-run whenever an input changes")
	fmt.Println("    -version         Show version information")
	fmt.Println("    -help            Show this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("    tirguard kernel.tir")
	fmt.Println("    tirguard -stats -o kernel.checked.tir kernel.tir")
	fmt.Println("    tirguard -run myadd -buf A=1024 -buf B=1024 -buf C=1024 -arg n=1024 kernel.tir")
}

func processAll(ctx context.Context, paths []string, cfg *config.Config, opts *options, logger *zap.Logger) int {
	code := exitOK
	for _, path := range paths {
		if c := processFile(ctx, path, cfg, opts, logger); c > code {
			code = c
		}
	}
	return code
}

func processFile(ctx context.Context, path string, cfg *config.Config, opts *options, logger *zap.Logger) int {
	m, err := tirtext.ReadFile(path)
	if err != nil {
		logger.Error("read failed", zap.Error(err))
		return exitError
	}

	out, results, err := pipeline.RunModule(ctx, m, cfg, logger)
	if err != nil {
		logger.Error("instrumentation failed", zap.String("file", path), zap.Error(err))
		return exitError
	}

	emit := func(w io.Writer) error { return tirtext.Write(w, out) }
	if opts.diff {
		emit = func(w io.Writer) error {
			text, err := tirtext.Diff(path, m, out)
			if err != nil {
				return err
			}
			_, err = io.WriteString(w, text)
			return errors.Wrap(err, "write diff")
		}
	}
	if err := writeOutput(opts.output, emit); err != nil {
		logger.Error("write failed", zap.Error(err))
		return exitError
	}

	if opts.stats {
		printStats(os.Stderr, path, results)
	}

	if opts.runFunc == "" {
		return exitOK
	}
	f := out.Func(opts.runFunc)
	if f == nil {
		logger.Error("function not found", zap.String("file", path), zap.String("func", opts.runFunc))
		return exitError
	}
	err = execute(ctx, f, opts.buffers, opts.scalars, logger)
	switch rterrors.Code(err) {
	case "":
		if err != nil {
			logger.Error("run failed", zap.Error(err))
			return exitError
		}
		logger.Info("run finished", zap.String("func", f.Name))
		return exitOK
	case rterrors.CodeAssertionFailed:
		logger.Error("run aborted", zap.String("func", f.Name), zap.Error(err))
		return exitAbort
	case rterrors.CodeIndexOutOfBounds:
		logger.Error("run faulted", zap.String("func", f.Name), zap.Error(err))
		return exitFault
	default:
		logger.Error("run failed", zap.String("func", f.Name), zap.Error(err))
		return exitError
	}
}

func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close output")
}

func printStats(w io.Writer, path string, results []pipeline.Result) {
	for _, r := range results {
		fmt.Fprintf(w, "%s: %s: %s\n", path, r.Func.Name, formatStats(r.Stats))
	}
	if len(results) > 1 {
		fmt.Fprintf(w, "%s: total: %s\n", path, formatStats(pipeline.Total(results)))
	}
}

func formatStats(s boundcheck.Stats) string {
	text := fmt.Sprintf("writes=%d instrumented=%d accesses=%d", s.Writes, s.Instrumented, s.Accesses)
	reasons := make([]boundcheck.SkipReason, 0, len(s.Skipped))
	for r := range s.Skipped {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	for _, r := range reasons {
		text += fmt.Sprintf(" %s=%d", r, s.Skipped[r])
	}
	return text
}

func watchInputs(ctx context.Context, paths []string, cfg *config.Config, opts *options, logger *zap.Logger) int {
	w, err := watch.New(logger)
	if err != nil {
		logger.Error("watch unavailable", zap.Error(err))
		return exitError
	}
	defer w.Close()

	err = w.Run(ctx, paths, func(ev watch.Event) error {
		processFile(ctx, ev.Path, cfg, opts, logger)
		return nil
	})
	if err != nil {
		logger.Error("watch stopped", zap.Error(err))
		return exitError
	}
	return exitOK
}
