// Package config provides configuration types for forkcheck.
package config

import "context"

// Transport is the message channel between the coordinator and one worker.
// Implement this to provide custom transports for testing or alternative
// process models.
//
// The default implementation is subprocess.WorkerTransport, which spawns the
// worker as a child process and exchanges frames over its stdin and stdout.
type Transport interface {
	// Start spawns or connects to the worker.
	// Failures are reported as *errors.SpawnError.
	Start(ctx context.Context) error

	// ReadMessages returns channels yielding inbound frames, in the order the
	// worker emitted them, and lifecycle errors. A nonzero worker exit is
	// delivered as *errors.FatalExitError. Both channels are closed once the
	// worker has exited and all output has been read.
	ReadMessages(ctx context.Context) (<-chan []byte, <-chan error)

	// SendMessage writes one frame to the worker.
	// This method must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Kill terminates the worker immediately, without a shutdown handshake.
	// An exit caused by Kill is never reported as fatal.
	// It's safe to call Kill multiple times.
	Kill() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool
}
