package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	forkcheck "github.com/wagiedev/forkcheck-go"
	"github.com/wagiedev/forkcheck-go/internal/worker"
)

func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
}

func checkerOptions(c *cli.Context, log *slog.Logger) []forkcheck.Option {
	opts := []forkcheck.Option{
		forkcheck.WithLogger(log),
		forkcheck.WithFraming(forkcheck.Framing(c.String("framing"))),
		forkcheck.WithSkipVersionCheck(c.Bool("skip-version-check")),
		forkcheck.WithStderr(func(line string) {
			log.Debug("Worker stderr", "line", line)
		}),
		forkcheck.WithWorkerErrorHandler(func(err error) {
			log.Error("Worker error", "error", err)
		}),
	}

	if path := c.String("worker"); path != "" {
		opts = append(opts, forkcheck.WithWorkerPath(path))
	}

	if c.Bool("in-process") {
		opts = append(opts, forkcheck.WithTransport(worker.NewPipeTransport(
			log,
			worker.NewMemoryHandler(),
			worker.Config{Framing: forkcheck.Framing(c.String("framing"))},
		)))
	}

	return opts
}

// withChecker starts a checker, runs fn and turns a fatal worker exit into
// the process exit code.
func withChecker(c *cli.Context, fn func(ctx context.Context, checker forkcheck.Checker) error) error {
	log := newLogger(c)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	checker := forkcheck.NewChecker()

	defer func() {
		if err := checker.Close(); err != nil {
			log.Warn("Failed to close checker", "error", err)
		}
	}()

	if err := checker.Start(ctx, checkerOptions(c, log)...); err != nil {
		return fatalOr(checker, err)
	}

	fatal := watchFatal(checker)

	go func() {
		select {
		case <-checker.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	err := fn(ctx, checker)

	select {
	case <-checker.Done():
		if f, ok := <-fatal; ok {
			return exitWith(f)
		}
	default:
	}

	return err
}

// watchFatal forwards the checker's fatal exit, if any, once the worker
// has exited. The returned channel is closed without a value after a clean
// exit.
func watchFatal(checker forkcheck.Checker) <-chan *forkcheck.FatalExitError {
	out := make(chan *forkcheck.FatalExitError, 1)

	go func() {
		defer close(out)

		select {
		case f := <-checker.Fatal():
			out <- f
		case <-checker.Done():
			select {
			case f := <-checker.Fatal():
				out <- f
			default:
			}
		}
	}()

	return out
}

func fatalOr(checker forkcheck.Checker, err error) error {
	select {
	case f := <-checker.Fatal():
		return exitWith(f)
	default:
		return cli.Exit(fmt.Sprintf("forkcheck: %v", err), 1)
	}
}

// exitWith mirrors the worker's exit code. A worker killed by a signal
// reports no code and maps to 1.
func exitWith(f *forkcheck.FatalExitError) error {
	code := f.ExitCode
	if code <= 0 {
		code = 1
	}

	return cli.Exit(fmt.Sprintf("forkcheck: %v", f), code)
}
