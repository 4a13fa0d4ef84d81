package forkcheck

import (
	"context"
	"fmt"
)

// WithChecker manages checker lifecycle with automatic cleanup.
//
// This helper creates a checker, starts it with the provided options, executes
// the callback function, and ensures proper cleanup via Close() when done.
// If Close() fails, a warning is logged but does not override the callback's
// error.
//
// Example usage:
//
//	err := forkcheck.WithChecker(ctx, func(c forkcheck.Checker) error {
//	    diagnostics, err := c.Diagnostics().Wait(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    // report diagnostics...
//	    return nil
//	},
//	    forkcheck.WithLogger(log),
//	)
func WithChecker(ctx context.Context, fn func(Checker) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	checker := NewChecker()
	if err := checker.Start(ctx, opts...); err != nil {
		return fmt.Errorf("failed to start checker: %w", err)
	}

	defer func() {
		if closeErr := checker.Close(); closeErr != nil {
			log.Warn("failed to close checker", "error", closeErr)
		}
	}()

	return fn(checker)
}
