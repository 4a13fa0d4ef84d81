//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	forkcheck "github.com/wagiedev/forkcheck-go"
)

// skipIfWorkerNotInstalled skips the test if the error indicates the worker is not found.
func skipIfWorkerNotInstalled(t *testing.T, err error) {
	t.Helper()

	if _, ok := errors.AsType[*forkcheck.WorkerNotFoundError](err); ok {
		t.Skip("forkcheck-worker not installed")
	}
}

// startChecker starts a checker against the installed worker binary.
func startChecker(t *testing.T, opts ...forkcheck.Option) forkcheck.Checker {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	checker := forkcheck.NewChecker()

	if err := checker.Start(ctx, opts...); err != nil {
		skipIfWorkerNotInstalled(t, err)
		t.Fatalf("Start failed: %v", err)
	}

	t.Cleanup(func() { _ = checker.Close() })

	return checker
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	t.Cleanup(cancel)

	return ctx
}
