package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ForkcheckError is the base interface for all forkcheck errors.
type ForkcheckError interface {
	error
	IsForkcheckError() bool
}

// Compile-time verification that all error types implement ForkcheckError.
var (
	_ ForkcheckError = (*WorkerNotFoundError)(nil)
	_ ForkcheckError = (*IncompatibleWorkerError)(nil)
	_ ForkcheckError = (*SpawnError)(nil)
	_ ForkcheckError = (*FatalExitError)(nil)
	_ ForkcheckError = (*CallError)(nil)
	_ ForkcheckError = (*UnknownSequenceError)(nil)
	_ ForkcheckError = (*FrameDecodeError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrClientKilled indicates a call was issued after Kill.
	ErrClientKilled = errors.New("client killed: no further requests are accepted")

	// ErrWorkerTerminated rejects calls that were still pending when the worker was killed.
	ErrWorkerTerminated = errors.New("worker terminated")

	// ErrWorkerExited rejects calls issued or pending after the worker process exited.
	ErrWorkerExited = errors.New("worker exited")

	// ErrAlreadyStarted indicates Start was called twice on the same checker.
	ErrAlreadyStarted = errors.New("checker already started")

	// ErrCheckerClosed indicates Start was called on a closed checker.
	ErrCheckerClosed = errors.New("checker closed")

	// ErrNotStarted indicates an operation that requires a running worker.
	ErrNotStarted = errors.New("checker not started")

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrChannelClosed indicates a send on a closed message channel.
	ErrChannelClosed = errors.New("message channel closed")

	// ErrUnknownTag indicates a request carried a tag outside the protocol.
	ErrUnknownTag = errors.New("unknown operation tag")

	// ErrFrameTooLarge indicates a frame exceeded the maximum frame size.
	ErrFrameTooLarge = errors.New("frame too large")
)

// WorkerNotFoundError indicates the worker binary was not found.
type WorkerNotFoundError struct {
	SearchedPaths []string
}

func (e *WorkerNotFoundError) Error() string {
	return fmt.Sprintf("forkcheck worker not found in: %v", e.SearchedPaths)
}

// IsForkcheckError implements ForkcheckError.
func (e *WorkerNotFoundError) IsForkcheckError() bool { return true }

// IncompatibleWorkerError indicates the worker speaks a protocol version this
// coordinator cannot correlate with.
type IncompatibleWorkerError struct {
	Path     string
	Version  string
	Required string
}

func (e *IncompatibleWorkerError) Error() string {
	return fmt.Sprintf("worker %s speaks protocol %s, need a version compatible with %s",
		e.Path, e.Version, e.Required)
}

// IsForkcheckError implements ForkcheckError.
func (e *IncompatibleWorkerError) IsForkcheckError() bool { return true }

// SpawnError is the worker's error signal: the process could not be started
// or one of its pipes failed. It is logged and never terminates the coordinator.
type SpawnError struct {
	Op  string
	Err error
}

func (e *SpawnError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("worker error: %v", e.Err)
	}

	return fmt.Sprintf("worker error (%s): %v", e.Op, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsForkcheckError implements ForkcheckError.
func (e *SpawnError) IsForkcheckError() bool { return true }

// FatalExitError indicates the worker exited with a nonzero code.
// The owning application is expected to terminate with ExitCode.
type FatalExitError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *FatalExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("worker exited with code %d: %s", e.ExitCode, e.Stderr)
	}

	return fmt.Sprintf("worker exited with code %d", e.ExitCode)
}

func (e *FatalExitError) Unwrap() error {
	return e.Err
}

// IsForkcheckError implements ForkcheckError.
func (e *FatalExitError) IsForkcheckError() bool { return true }

// CallError is the rejection value of a call the worker answered with
// success=false. Payload holds the worker-supplied error value verbatim.
type CallError struct {
	Seq     uint64
	Tag     string
	Payload json.RawMessage
}

// Message returns the "message" field of the payload, if present.
func (e *CallError) Message() string {
	var body struct {
		Message string `json:"message"`
	}

	if err := json.Unmarshal(e.Payload, &body); err == nil && body.Message != "" {
		return body.Message
	}

	var text string
	if err := json.Unmarshal(e.Payload, &text); err == nil {
		return text
	}

	return ""
}

func (e *CallError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("%s call %d failed: %s", e.Tag, e.Seq, msg)
	}

	return fmt.Sprintf("%s call %d failed: %s", e.Tag, e.Seq, string(e.Payload))
}

// IsForkcheckError implements ForkcheckError.
func (e *CallError) IsForkcheckError() bool { return true }

// UnknownSequenceError describes a response whose seq has no pending call.
// It is only ever logged; it is never returned to a caller.
type UnknownSequenceError struct {
	Seq uint64
}

func (e *UnknownSequenceError) Error() string {
	return fmt.Sprintf("no pending call for seq %d", e.Seq)
}

// IsForkcheckError implements ForkcheckError.
func (e *UnknownSequenceError) IsForkcheckError() bool { return true }

// FrameDecodeError indicates a frame from the peer could not be decoded.
// This error preserves the raw data that failed to parse.
type FrameDecodeError struct {
	RawData string
	Err     error
}

func (e *FrameDecodeError) Error() string {
	return fmt.Sprintf("failed to decode frame: %v", e.Err)
}

func (e *FrameDecodeError) Unwrap() error {
	return e.Err
}

// IsForkcheckError implements ForkcheckError.
func (e *FrameDecodeError) IsForkcheckError() bool { return true }
