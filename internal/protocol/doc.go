// Package protocol defines the messages exchanged between the coordinator and
// the checker worker.
//
// Every request travels in the same envelope: an operation tag, the sequence
// number assigned by the client, and a tag-specific payload. Every response
// carries the sequence number it answers, a success flag, and either the
// result payload or the worker-supplied error value.
//
// Wire format (one JSON object per frame):
//
//	{"tag": "EmitFile", "seq": 1, "payload": {"fileName": "a.ts", "text": "..."}}
//	{"seq": 1, "success": true, "payload": {"emitSkipped": false}}
//	{"seq": 2, "success": false, "payload": {"message": "type error"}}
//
// The set of tags is closed. Request payloads are modelled as a sealed
// interface with one concrete type per tag, so a payload can only ever be
// paired with its own tag.
package protocol
