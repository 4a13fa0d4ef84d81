// Package worker implements the worker side of the protocol.
//
// Server reads requests from the coordinator, dispatches them to a Handler
// and writes one response per request. Requests other than Init may be
// handled concurrently, so responses can leave in a different order than
// their requests arrived. MemoryHandler is a reference Handler that keeps
// files in memory and reports marker comments as diagnostics.
package worker
