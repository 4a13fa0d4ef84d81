// Package client implements the Checker: it wires one worker transport to
// the message channel, the supervisor and the rpc client.
//
// Start spawns the worker, sends Init as the first message and waits for the
// worker to acknowledge it. The operation methods return futures at once;
// they never block on the worker. When the worker exits, calls still pending
// are rejected and later calls fail immediately.
package client
