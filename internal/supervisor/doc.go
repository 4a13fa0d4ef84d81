// Package supervisor owns the lifecycle of one worker process.
//
// A Supervisor starts the transport, pumps inbound frames to a handler and
// classifies how the worker ended. The lifecycle only moves forward:
//
//	Starting -> Running -> ExitedClean | ExitedFatal
//
// A nonzero exit is published once on Fatal. The supervisor never respawns
// the worker and never exits the process; the owning application decides.
package supervisor
