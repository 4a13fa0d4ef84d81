package rpc

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/forkcheck-go/internal/errors"
	"github.com/wagiedev/forkcheck-go/internal/protocol"
)

// Sender is the outbound half of the message channel. Send must not block on
// the worker. A delivery failure found later is passed to onErr, which must
// not be invoked from within Send itself.
type Sender interface {
	Send(data []byte, onErr func(error)) error
}

// Killer terminates the worker.
type Killer interface {
	Kill() error
}

// pendingCall is a request awaiting its response.
type pendingCall struct {
	tag    protocol.Tag
	settle func(payload json.RawMessage, err error)
}

// Client issues calls to one worker and correlates their responses.
type Client struct {
	log       *slog.Logger
	sender    Sender
	killer    Killer
	sessionID string

	// mu guards the counter and the pending table together so that a seq is
	// registered before any response for it can be looked up.
	mu      sync.Mutex
	seq     uint64
	pending map[uint64]*pendingCall
	killed  bool
	exitErr error
}

// NewClient creates a client that sends through sender and kills through
// killer. Each client gets a fresh session ID and its own sequence space.
func NewClient(log *slog.Logger, sender Sender, killer Killer) *Client {
	sessionID := ulid.Make().String()

	return &Client{
		log:       log.With("component", "rpc", "session_id", sessionID),
		sender:    sender,
		killer:    killer,
		sessionID: sessionID,
		pending:   make(map[uint64]*pendingCall, 16),
	}
}

// SessionID identifies this client in logs and in the Init handshake.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Call sends p and returns a future for the raw response payload.
func (c *Client) Call(p protocol.Payload) *Future[json.RawMessage] {
	return call[json.RawMessage](c, p)
}

// Init sends the handshake. It must be the first call on a client.
func (c *Client) Init(req protocol.InitRequest) *Future[protocol.Ack] {
	if req.SessionID == "" {
		req.SessionID = c.sessionID
	}

	return call[protocol.Ack](c, &req)
}

// EmitFile asks the worker to emit fileName.
func (c *Client) EmitFile(fileName, text string) *Future[protocol.EmitResult] {
	return call[protocol.EmitResult](c, &protocol.EmitFileRequest{FileName: fileName, Text: text})
}

// UpdateFile replaces the text the worker holds for fileName.
func (c *Client) UpdateFile(fileName, text string) *Future[protocol.Ack] {
	return call[protocol.Ack](c, &protocol.UpdateFileRequest{FileName: fileName, Text: text})
}

// RemoveFile stops the worker tracking fileName.
func (c *Client) RemoveFile(fileName string) *Future[protocol.Ack] {
	return call[protocol.Ack](c, &protocol.RemoveFileRequest{FileName: fileName})
}

// Diagnostics requests the worker's current diagnostics.
func (c *Client) Diagnostics() *Future[[]protocol.Diagnostic] {
	return call[[]protocol.Diagnostic](c, &protocol.DiagnosticsRequest{})
}

// Files requests the files the worker tracks.
func (c *Client) Files() *Future[[]protocol.FileDescriptor] {
	return call[[]protocol.FileDescriptor](c, &protocol.FilesRequest{})
}

// call registers a pending entry for p, then submits it. The future is
// resolved with the response payload decoded into T.
func call[T any](c *Client, p protocol.Payload) *Future[T] {
	f := newFuture[T]()
	tag := p.Tag()

	settle := func(payload json.RawMessage, err error) {
		if err != nil {
			f.reject(err)

			return
		}

		var value T
		if err := decodeResult(payload, &value); err != nil {
			f.reject(fmt.Errorf("decode %s result: %w", tag, err))

			return
		}

		f.resolve(value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.killed {
		f.reject(errors.ErrClientKilled)

		return f
	}

	if c.exitErr != nil {
		f.reject(c.exitErr)

		return f
	}

	c.seq++
	seq := c.seq

	req, err := protocol.NewRequest(seq, p)
	if err != nil {
		f.reject(err)

		return f
	}

	data, err := json.Marshal(req)
	if err != nil {
		f.reject(fmt.Errorf("marshal %s request: %w", tag, err))

		return f
	}

	c.pending[seq] = &pendingCall{tag: tag, settle: settle}

	// Sending under the lock keeps channel order equal to seq order.
	if err := c.sender.Send(data, func(err error) { c.fail(seq, err) }); err != nil {
		delete(c.pending, seq)
		f.reject(fmt.Errorf("send %s: %w", tag, err))

		return f
	}

	c.log.Debug("Call sent", "seq", seq, "tag", string(tag))

	return f
}

// decodeResult decodes a success payload. An absent or null payload leaves
// v at its zero value.
func decodeResult[T any](payload json.RawMessage, v *T) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}

	if raw, ok := any(v).(*json.RawMessage); ok {
		*raw = append(json.RawMessage(nil), payload...)

		return nil
	}

	return json.Unmarshal(payload, v)
}

// fail rejects seq if it is still pending.
func (c *Client) fail(seq uint64, err error) {
	entry := c.take(seq)
	if entry == nil {
		return
	}

	c.log.Warn("Call could not be delivered", "seq", seq, "tag", string(entry.tag), "error", err)
	entry.settle(nil, fmt.Errorf("send %s: %w", entry.tag, err))
}

// take removes and returns the pending entry for seq, or nil.
func (c *Client) take(seq uint64) *pendingCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.pending[seq]
	if !ok {
		return nil
	}

	delete(c.pending, seq)

	return entry
}

// HandleFrame decodes a raw response frame and routes it to OnResponse.
// Malformed frames are logged and dropped.
func (c *Client) HandleFrame(frame []byte) {
	var resp protocol.Response

	if err := json.Unmarshal(frame, &resp); err != nil {
		c.log.Warn("Discarding malformed response",
			"error", &errors.FrameDecodeError{RawData: string(frame), Err: err},
		)

		return
	}

	c.OnResponse(resp)
}

// OnFrameError handles a frame the transport had to skip. When the frame's
// seq can be recovered from its first bytes, that call is rejected with err;
// otherwise the error is only logged. It reports whether a call was settled.
func (c *Client) OnFrameError(err error) bool {
	decodeErr, ok := stderrors.AsType[*errors.FrameDecodeError](err)
	if !ok {
		return false
	}

	seq, ok := protocol.SeqFromHead([]byte(decodeErr.RawData))
	if !ok {
		c.log.Warn("Skipped frame without a seq", "error", err)

		return false
	}

	entry := c.take(seq)
	if entry == nil {
		c.log.Warn("Skipped frame for unknown seq", "seq", seq, "error", err)

		return false
	}

	c.log.Warn("Call rejected: response frame skipped", "seq", seq, "tag", string(entry.tag), "error", err)
	entry.settle(nil, err)

	return true
}

// OnResponse settles the call registered under resp.Seq. The entry is
// removed before the future settles, so a duplicate response is treated as
// unknown.
func (c *Client) OnResponse(resp protocol.Response) {
	entry := c.take(resp.Seq)
	if entry == nil {
		c.log.Warn("Discarding response", "error", &errors.UnknownSequenceError{Seq: resp.Seq})

		return
	}

	if resp.Success {
		c.log.Debug("Call resolved", "seq", resp.Seq, "tag", string(entry.tag))
		entry.settle(resp.Payload, nil)

		return
	}

	callErr := &errors.CallError{Seq: resp.Seq, Tag: string(entry.tag), Payload: resp.Payload}

	c.log.Warn("Call rejected by worker", "seq", resp.Seq, "tag", string(entry.tag), "error", callErr.Message())
	entry.settle(nil, callErr)
}

// drain empties the pending table. Caller must hold c.mu.
func (c *Client) drain() map[uint64]*pendingCall {
	pending := c.pending
	c.pending = make(map[uint64]*pendingCall)

	return pending
}

// Kill terminates the worker. Every call still pending is rejected with
// ErrWorkerTerminated and later calls with ErrClientKilled. Responses that
// arrive afterwards are discarded. It's safe to call Kill multiple times.
func (c *Client) Kill() error {
	c.mu.Lock()

	if c.killed {
		c.mu.Unlock()

		return nil
	}

	c.killed = true
	pending := c.drain()
	c.mu.Unlock()

	c.log.Info("Killing worker", "pending", len(pending))

	for _, entry := range pending {
		entry.settle(nil, errors.ErrWorkerTerminated)
	}

	return c.killer.Kill()
}

// Shutdown records that the worker is gone. Pending and later calls are
// rejected with ErrWorkerExited, wrapping cause when it is non-nil.
func (c *Client) Shutdown(cause error) {
	exitErr := errors.ErrWorkerExited
	if cause != nil {
		exitErr = fmt.Errorf("%w: %w", errors.ErrWorkerExited, cause)
	}

	c.mu.Lock()

	if c.exitErr != nil {
		c.mu.Unlock()

		return
	}

	c.exitErr = exitErr
	pending := c.drain()
	c.mu.Unlock()

	if len(pending) > 0 {
		c.log.Warn("Worker exited with calls pending", "pending", len(pending), "error", cause)
	}

	for _, entry := range pending {
		entry.settle(nil, exitErr)
	}
}

// Pending returns the number of calls awaiting a response.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

// Killed reports whether Kill has been called.
func (c *Client) Killed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.killed
}
