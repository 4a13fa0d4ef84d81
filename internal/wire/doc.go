// Package wire frames protocol messages on a byte stream.
//
// Two framings are supported:
//
//   - ndjson: one JSON object per line, terminated by '\n'.
//   - length-prefixed: a 4-byte big-endian body length followed by the JSON body.
//
// Both directions of a worker connection must use the same framing. The
// coordinator tells the worker which one to use with the --framing flag.
//
// Frames over the size limit are skipped rather than ending the stream, so a
// single oversized message never stops the frames behind it.
package wire
