package forkcheck

import "github.com/wagiedev/forkcheck-go/internal/errors"

// Re-export error types from internal package

// WorkerNotFoundError indicates the worker binary was not found.
type WorkerNotFoundError = errors.WorkerNotFoundError

// IncompatibleWorkerError indicates the worker speaks an incompatible protocol version.
type IncompatibleWorkerError = errors.IncompatibleWorkerError

// SpawnError indicates the worker could not be started or a pipe failed.
type SpawnError = errors.SpawnError

// FatalExitError indicates the worker exited with a nonzero code.
type FatalExitError = errors.FatalExitError

// CallError indicates the worker answered a call with success=false.
type CallError = errors.CallError

// UnknownSequenceError describes a response with no pending call.
type UnknownSequenceError = errors.UnknownSequenceError

// FrameDecodeError indicates a frame from the worker was not valid JSON.
type FrameDecodeError = errors.FrameDecodeError

// ForkcheckError is the base interface for all forkcheck errors.
type ForkcheckError = errors.ForkcheckError

// Re-export sentinel errors from internal package.
var (
	// ErrClientKilled rejects calls issued after Kill.
	ErrClientKilled = errors.ErrClientKilled

	// ErrWorkerTerminated rejects calls that were pending when Kill ran.
	ErrWorkerTerminated = errors.ErrWorkerTerminated

	// ErrWorkerExited rejects calls pending or issued after the worker exited.
	ErrWorkerExited = errors.ErrWorkerExited

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.ErrAlreadyStarted

	// ErrCheckerClosed indicates Start was called after Close.
	ErrCheckerClosed = errors.ErrCheckerClosed

	// ErrNotStarted rejects calls issued before Start.
	ErrNotStarted = errors.ErrNotStarted

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected
)
