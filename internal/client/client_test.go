package client

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/forkcheck-go/internal/config"
	"github.com/wagiedev/forkcheck-go/internal/errors"
	"github.com/wagiedev/forkcheck-go/internal/protocol"
	"github.com/wagiedev/forkcheck-go/internal/supervisor"
	"github.com/wagiedev/forkcheck-go/internal/worker"
)

// scriptedTransport answers requests through respond and exits on demand.
type scriptedTransport struct {
	respond func(req protocol.Request) *protocol.Response

	mu       sync.Mutex
	requests []protocol.Request
	killed   bool
	messages chan []byte
	errs     chan error
	once     sync.Once
}

var _ config.Transport = (*scriptedTransport)(nil)

func newScriptedTransport(respond func(req protocol.Request) *protocol.Response) *scriptedTransport {
	return &scriptedTransport{
		respond:  respond,
		messages: make(chan []byte, 100),
		errs:     make(chan error, 1),
	}
}

func (s *scriptedTransport) Start(context.Context) error { return nil }

func (s *scriptedTransport) ReadMessages(context.Context) (<-chan []byte, <-chan error) {
	return s.messages, s.errs
}

func (s *scriptedTransport) SendMessage(_ context.Context, data []byte) error {
	var req protocol.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.killed {
		return errors.ErrWorkerTerminated
	}

	s.requests = append(s.requests, req)

	if s.respond == nil {
		return nil
	}

	if resp := s.respond(req); resp != nil {
		frame, err := json.Marshal(resp)
		if err != nil {
			return err
		}

		s.messages <- frame
	}

	return nil
}

func (s *scriptedTransport) Kill() error {
	s.mu.Lock()
	s.killed = true
	s.mu.Unlock()

	s.exit(nil)

	return nil
}

func (s *scriptedTransport) IsReady() bool { return true }

// exit ends the worker, reporting err when non-nil.
func (s *scriptedTransport) exit(err error) {
	s.once.Do(func() {
		if err != nil {
			s.errs <- err
		}

		close(s.messages)
		close(s.errs)
	})
}

func (s *scriptedTransport) sent() []protocol.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]protocol.Request(nil), s.requests...)
}

// ackInit acknowledges Init and leaves every other request pending.
func ackInit(req protocol.Request) *protocol.Response {
	if req.Tag == protocol.TagInit {
		return &protocol.Response{Seq: req.Seq, Success: true}
	}

	return nil
}

func pipeOptions() *config.Options {
	return &config.Options{
		Logger:    slog.New(slog.DiscardHandler),
		Transport: worker.NewPipeTransport(slog.New(slog.DiscardHandler), worker.NewMemoryHandler(), worker.Config{}),
		LoaderConfig: protocol.LoaderConfig{
			Instance: "default",
		},
	}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func TestClient_EndToEndWithInProcessWorker(t *testing.T) {
	ctx := waitCtx(t)
	c := New()

	require.NoError(t, c.Start(ctx, pipeOptions()))

	defer c.Close()

	require.Equal(t, supervisor.Running, c.State())
	require.NotEmpty(t, c.SessionID())

	_, err := c.UpdateFile("a.ts", "const a = 1").Wait(ctx)
	require.NoError(t, err)

	emit, err := c.EmitFile("b.ts", "let b: number = 'x' // @ts-error type mismatch").Wait(ctx)
	require.NoError(t, err)
	assert.False(t, emit.EmitSkipped)

	diagnostics, err := c.Diagnostics().Wait(ctx)
	require.NoError(t, err)
	require.Len(t, diagnostics, 1)
	assert.Equal(t, "type mismatch", diagnostics[0].Message)

	files, err := c.Files().Wait(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)

	_, err = c.RemoveFile("nope.ts").Wait(ctx)

	callErr, ok := stderrors.AsType[*errors.CallError](err)
	require.True(t, ok)
	assert.Equal(t, "RemoveFile", callErr.Tag)

	require.Zero(t, c.Pending())
}

func TestClient_InitIsFirstMessage(t *testing.T) {
	transport := newScriptedTransport(ackInit)

	c := New()
	require.NoError(t, c.Start(waitCtx(t), &config.Options{
		Transport:    transport,
		CompilerInfo: protocol.CompilerInfo{CompilerPath: "/opt/tsc", Impl: struct{}{}},
		BuildOptions: map[string]any{"mode": "development"},
	}))

	defer c.Close()

	c.Files()

	requests := transport.sent()
	require.Len(t, requests, 2)
	require.Equal(t, protocol.TagInit, requests[0].Tag)
	require.Equal(t, uint64(1), requests[0].Seq)
	require.Equal(t, protocol.TagFiles, requests[1].Tag)

	payload, err := requests[0].DecodePayload()
	require.NoError(t, err)

	initReq, ok := payload.(*protocol.InitRequest)
	require.True(t, ok)
	assert.Equal(t, c.SessionID(), initReq.SessionID)
	assert.Equal(t, "/opt/tsc", initReq.CompilerInfo.CompilerPath)
	assert.Nil(t, initReq.CompilerInfo.Impl)
	assert.Equal(t, "development", initReq.BuildOptions["mode"])
}

func TestClient_StartTwice(t *testing.T) {
	c := New()
	require.NoError(t, c.Start(waitCtx(t), pipeOptions()))

	defer c.Close()

	require.ErrorIs(t, c.Start(waitCtx(t), pipeOptions()), errors.ErrAlreadyStarted)
}

func TestClient_CallsBeforeStart(t *testing.T) {
	c := New()

	_, err := c.Files().Wait(waitCtx(t))
	require.ErrorIs(t, err, errors.ErrNotStarted)
	require.Equal(t, supervisor.Starting, c.State())
	require.Nil(t, c.Fatal())
	require.NoError(t, c.Kill())
	require.NoError(t, c.Close())

	require.ErrorIs(t, c.Start(waitCtx(t), pipeOptions()), errors.ErrCheckerClosed)
}

func TestClient_InitRejected(t *testing.T) {
	transport := newScriptedTransport(func(req protocol.Request) *protocol.Response {
		return protocol.ErrorResponse(req.Seq, "compiler not found")
	})

	c := New()
	err := c.Start(waitCtx(t), &config.Options{Transport: transport})

	callErr, ok := stderrors.AsType[*errors.CallError](err)
	require.True(t, ok)
	require.Equal(t, "compiler not found", callErr.Message())

	require.NoError(t, c.Close())
	require.Equal(t, supervisor.ExitedClean, c.State())
}

func TestClient_InitTimeout(t *testing.T) {
	transport := newScriptedTransport(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New()
	err := c.Start(ctx, &config.Options{Transport: transport})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	transport.mu.Lock()
	killed := transport.killed
	transport.mu.Unlock()

	require.True(t, killed)
	require.NoError(t, c.Close())
}

func TestClient_KillRejectsPendingCalls(t *testing.T) {
	transport := newScriptedTransport(ackInit)

	c := New()
	require.NoError(t, c.Start(waitCtx(t), &config.Options{Transport: transport}))

	pending := c.Diagnostics()

	require.NoError(t, c.Kill())

	_, err := pending.Wait(waitCtx(t))
	require.ErrorIs(t, err, errors.ErrWorkerTerminated)

	_, err = c.EmitFile("a.ts", "").Wait(waitCtx(t))
	require.ErrorIs(t, err, errors.ErrClientKilled)

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit after kill")
	}

	require.Equal(t, supervisor.ExitedClean, c.State())
	require.Empty(t, c.Fatal())
	require.NoError(t, c.Close())
}

func TestClient_FatalExit(t *testing.T) {
	transport := newScriptedTransport(ackInit)

	c := New()
	require.NoError(t, c.Start(waitCtx(t), &config.Options{Transport: transport}))

	defer c.Close()

	pending := c.Files()

	transport.exit(&errors.FatalExitError{ExitCode: 2, Stderr: "out of memory"})

	select {
	case fatal := <-c.Fatal():
		require.Equal(t, 2, fatal.ExitCode)
	case <-time.After(5 * time.Second):
		t.Fatal("fatal exit not published")
	}

	_, err := pending.Wait(waitCtx(t))
	require.ErrorIs(t, err, errors.ErrWorkerExited)

	<-c.Done()

	require.Equal(t, supervisor.ExitedFatal, c.State())

	_, err = c.UpdateFile("a.ts", "").Wait(waitCtx(t))
	require.ErrorIs(t, err, errors.ErrWorkerExited)
}

func TestClient_SpawnFailure(t *testing.T) {
	var reported []error

	c := New()
	err := c.Start(waitCtx(t), &config.Options{
		WorkerPath:    "/nonexistent/forkcheck-worker",
		OnWorkerError: func(err error) { reported = append(reported, err) },
	})

	_, ok := stderrors.AsType[*errors.SpawnError](err)
	require.True(t, ok)
	require.Len(t, reported, 1)
	require.NoError(t, c.Close())
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c := New()
	require.NoError(t, c.Start(waitCtx(t), pipeOptions()))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Files().Wait(waitCtx(t))
	require.ErrorIs(t, err, errors.ErrClientKilled)
}

func TestClient_SkippedFrameRejectsOnlyItsCall(t *testing.T) {
	transport := newScriptedTransport(ackInit)

	reported := make(chan error, 1)

	c := New()
	require.NoError(t, c.Start(waitCtx(t), &config.Options{
		Transport:     transport,
		OnWorkerError: func(err error) { reported <- err },
	}))

	defer c.Close()

	emit := c.EmitFile("huge.ts", "x")
	files := c.Files()

	transport.errs <- &errors.FrameDecodeError{
		RawData: `{"seq":2,"success":true,"payload":{"output":"xxxxxxxxxxxx`,
		Err:     fmt.Errorf("%w: 3318978 bytes exceeds limit of 1048576", errors.ErrFrameTooLarge),
	}
	transport.messages <- []byte(`{"seq":3,"success":true,"payload":[]}`)

	ctx := waitCtx(t)

	_, err := emit.Wait(ctx)
	require.ErrorIs(t, err, errors.ErrFrameTooLarge)

	got, err := files.Wait(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	select {
	case err := <-reported:
		assert.ErrorIs(t, err, errors.ErrFrameTooLarge)
	case <-ctx.Done():
		t.Fatal("worker error handler was not called")
	}

	assert.Equal(t, supervisor.Running, c.State())
	assert.Zero(t, c.Pending())
}
