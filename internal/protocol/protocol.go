package protocol

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/wagiedev/forkcheck-go/internal/errors"
)

// Version is the protocol version spoken by this module. Workers report it
// from --version.
const Version = "0.1.0"

// Tag identifies an operation.
type Tag string

const (
	// TagInit is the one-time handshake sent before any other request.
	TagInit Tag = "Init"
	// TagEmitFile asks the worker to emit output for a file.
	TagEmitFile Tag = "EmitFile"
	// TagUpdateFile replaces the text of a tracked file.
	TagUpdateFile Tag = "UpdateFile"
	// TagRemoveFile stops tracking a file.
	TagRemoveFile Tag = "RemoveFile"
	// TagDiagnostics requests the current diagnostics.
	TagDiagnostics Tag = "Diagnostics"
	// TagFiles requests the tracked file list.
	TagFiles Tag = "Files"
)

// Tags lists every operation tag in protocol order.
var Tags = []Tag{TagInit, TagEmitFile, TagUpdateFile, TagRemoveFile, TagDiagnostics, TagFiles}

// Valid reports whether t belongs to the protocol.
func (t Tag) Valid() bool {
	switch t {
	case TagInit, TagEmitFile, TagUpdateFile, TagRemoveFile, TagDiagnostics, TagFiles:
		return true
	}

	return false
}

// Request is the envelope for every call sent to the worker.
type Request struct {
	Tag     Tag             `json:"tag"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewRequest wraps a payload in a request envelope.
func NewRequest(seq uint64, p Payload) (*Request, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.Tag(), err)
	}

	return &Request{
		Tag:     p.Tag(),
		Seq:     seq,
		Payload: data,
	}, nil
}

// DecodePayload decodes the request payload into the concrete type for its tag.
func (r *Request) DecodePayload() (Payload, error) {
	var p Payload

	switch r.Tag {
	case TagInit:
		p = &InitRequest{}
	case TagEmitFile:
		p = &EmitFileRequest{}
	case TagUpdateFile:
		p = &UpdateFileRequest{}
	case TagRemoveFile:
		p = &RemoveFileRequest{}
	case TagDiagnostics:
		p = &DiagnosticsRequest{}
	case TagFiles:
		p = &FilesRequest{}
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownTag, r.Tag)
	}

	if len(r.Payload) == 0 {
		return p, nil
	}

	if err := json.Unmarshal(r.Payload, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", r.Tag, err)
	}

	return p, nil
}

// Response is the envelope for every answer sent by the worker.
//
// Payload holds the result when Success is true and the error value otherwise.
type Response struct {
	Seq     uint64          `json:"seq"`
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is the error value the reference worker sends on failure.
type ErrorPayload struct {
	Message string `json:"message"`
}

// SuccessResponse builds a success response carrying v as its payload.
func SuccessResponse(seq uint64, v any) (*Response, error) {
	resp := &Response{Seq: seq, Success: true}

	if v == nil {
		return resp, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal response payload: %w", err)
	}

	resp.Payload = data

	return resp, nil
}

// ErrorResponse builds a failure response with an ErrorPayload.
func ErrorResponse(seq uint64, message string) *Response {
	data, _ := json.Marshal(ErrorPayload{Message: message})

	return &Response{
		Seq:     seq,
		Success: false,
		Payload: data,
	}
}

var seqPattern = regexp.MustCompile(`"seq"\s*:\s*(\d+)`)

// SeqFromHead recovers the seq of an envelope from its first bytes, for frames
// that were too large or too broken to decode. Both envelopes encode seq
// before the payload, so the first match belongs to the envelope.
func SeqFromHead(head []byte) (uint64, bool) {
	match := seqPattern.FindSubmatch(head)
	if match == nil {
		return 0, false
	}

	seq, err := strconv.ParseUint(string(match[1]), 10, 64)
	if err != nil {
		return 0, false
	}

	return seq, true
}
