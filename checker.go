package forkcheck

import "context"

// Checker drives one out-of-process checker worker.
//
// Lifecycle: Checkers are single-use. After Close(), create a new checker
// with NewChecker().
//
// Example usage:
//
//	checker := NewChecker()
//	defer checker.Close()
//
//	err := checker.Start(ctx,
//	    WithLogger(slog.Default()),
//	    WithFraming(FramingLengthPrefixed),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := checker.EmitFile("src/app.ts", text).Wait(ctx)
type Checker interface {
	// Start spawns the worker and waits for it to acknowledge Init.
	// Must be called before any other methods.
	// Returns *SpawnError if the worker cannot be started.
	Start(ctx context.Context, opts ...Option) error

	// EmitFile asks the worker to emit fileName.
	EmitFile(fileName, text string) *Future[EmitResult]

	// UpdateFile replaces the text the worker holds for fileName.
	UpdateFile(fileName, text string) *Future[Ack]

	// RemoveFile stops the worker tracking fileName.
	RemoveFile(fileName string) *Future[Ack]

	// Diagnostics requests the worker's current diagnostics.
	Diagnostics() *Future[[]Diagnostic]

	// Files requests the files the worker tracks.
	Files() *Future[[]FileDescriptor]

	// SessionID identifies this checker in the Init handshake and in logs.
	SessionID() string

	// State returns the worker lifecycle state.
	State() State

	// Fatal yields the worker's fatal exit at most once.
	Fatal() <-chan *FatalExitError

	// Done is closed once the worker has exited.
	Done() <-chan struct{}

	// Kill terminates the worker immediately. Pending calls are rejected.
	Kill() error

	// Close kills the worker and releases all resources.
	// After Close(), the checker cannot be reused. Safe to call multiple times.
	Close() error
}

// NewChecker creates a new checker.
//
// Call Start() with options to spawn the worker:
//
//	checker := NewChecker()
//	err := checker.Start(ctx, WithWorkerPath("/usr/local/bin/forkcheck-worker"))
func NewChecker() Checker {
	return newCheckerImpl()
}
