// Package errors defines error types for the forkcheck worker RPC core.
//
// Errors fall into two scopes. Call-scoped errors (CallError) are delivered to
// the single caller whose future was rejected. Process-scoped errors
// (SpawnError, FatalExitError) describe the worker as a whole and are reported
// by the supervisor. All error types support unwrapping and can be checked
// using errors.Is, errors.As, and errors.AsType.
package errors
