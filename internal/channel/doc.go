// Package channel implements the outbound half of the coordinator/worker
// message channel.
//
// QueuedSender accepts messages without ever blocking the caller. Messages are
// held in a FIFO queue until the underlying transport is marked ready, then a
// single drain goroutine writes them to the transport in submission order.
package channel
