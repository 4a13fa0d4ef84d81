// Package rpc correlates requests sent to the worker with the responses it
// sends back.
//
// Every call gets the next sequence number and a pending entry before it is
// handed to the message channel. Responses may arrive in any order; each one
// settles the future registered under its seq exactly once. A response whose
// seq has no pending entry is logged and discarded.
//
// Calls never block on the worker. They return a Future that is resolved
// with the decoded result or rejected with one of:
//   - *errors.CallError when the worker answered success=false
//   - errors.ErrWorkerTerminated when Kill ran while the call was pending
//   - errors.ErrClientKilled when the call was issued after Kill
//   - errors.ErrWorkerExited when the worker process ended first
package rpc
