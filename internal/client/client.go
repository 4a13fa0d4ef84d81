package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/forkcheck-go/internal/channel"
	"github.com/wagiedev/forkcheck-go/internal/config"
	"github.com/wagiedev/forkcheck-go/internal/errors"
	"github.com/wagiedev/forkcheck-go/internal/protocol"
	"github.com/wagiedev/forkcheck-go/internal/rpc"
	"github.com/wagiedev/forkcheck-go/internal/subprocess"
	"github.com/wagiedev/forkcheck-go/internal/supervisor"
)

// Client implements the Checker interface.
type Client struct {
	log        *slog.Logger
	options    *config.Options
	transport  config.Transport
	sender     *channel.QueuedSender
	supervisor *supervisor.Supervisor
	rpc        *rpc.Client

	// Errgroup for goroutine management
	eg *errgroup.Group

	// Lifecycle management
	mu        sync.Mutex
	started   bool
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// New creates a new checker client.
//
// The client is not connected after creation. Call Start() with options to
// spawn the worker.
func New() *Client {
	return &Client{}
}

// Start spawns the worker and performs the Init handshake.
//
// Init is queued as seq 1 before the worker exists, so it is always the first
// message the worker reads. Start returns once the worker acknowledged Init,
// or with ctx's error if that takes too long; the worker is killed in that
// case. A worker that cannot be spawned yields *errors.SpawnError.
func (c *Client) Start(ctx context.Context, options *config.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrCheckerClosed
	}

	if c.started {
		return errors.ErrAlreadyStarted
	}

	if options == nil {
		options = &config.Options{}
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c.log = log.With("component", "checker")
	c.options = options

	if options.Transport != nil {
		c.transport = options.Transport

		c.log.Debug("Using injected custom transport")
	} else {
		c.transport = subprocess.NewWorkerTransport(log, options)
	}

	c.sender = channel.NewQueuedSender(log, c.transport)

	var rpcClient *rpc.Client

	// A skipped frame still settles its call when the seq survived in its head.
	onError := func(err error) {
		rpcClient.OnFrameError(err)

		if options.OnWorkerError != nil {
			options.OnWorkerError(err)
		}
	}

	c.supervisor = supervisor.New(log, c.transport, supervisor.Config{OnError: onError})
	rpcClient = rpc.NewClient(log, c.sender, c.supervisor)
	c.rpc = rpcClient

	initialized := c.rpc.Init(protocol.InitRequest{
		CompilerInfo:   options.CompilerInfo,
		LoaderConfig:   options.LoaderConfig,
		CompilerConfig: options.CompilerConfig,
		BuildOptions:   options.BuildOptions,
	})

	c.log.Info("Starting worker", "session_id", c.rpc.SessionID())

	if err := c.supervisor.Start(ctx, c.rpc.HandleFrame); err != nil {
		c.rpc.Shutdown(err)
		c.sender.Close()

		return fmt.Errorf("start worker: %w", err)
	}

	c.sender.MarkReady()

	c.eg = &errgroup.Group{}
	c.eg.Go(func() error {
		<-c.supervisor.Done()

		c.rpc.Shutdown(c.supervisor.ExitErr())
		c.sender.Close()

		return nil
	})

	c.started = true

	if _, err := initialized.Wait(ctx); err != nil {
		c.log.Error("Worker did not acknowledge Init", "error", err)

		_ = c.rpc.Kill()

		return fmt.Errorf("initialize worker: %w", err)
	}

	c.log.Info("Worker initialized", "session_id", c.rpc.SessionID())

	return nil
}

// client returns the rpc client once started.
func (c *Client) client() (*rpc.Client, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rpc, c.started
}

// EmitFile asks the worker to emit fileName.
func (c *Client) EmitFile(fileName, text string) *rpc.Future[protocol.EmitResult] {
	r, ok := c.client()
	if !ok {
		return rpc.Rejected[protocol.EmitResult](errors.ErrNotStarted)
	}

	return r.EmitFile(fileName, text)
}

// UpdateFile replaces the text the worker holds for fileName.
func (c *Client) UpdateFile(fileName, text string) *rpc.Future[protocol.Ack] {
	r, ok := c.client()
	if !ok {
		return rpc.Rejected[protocol.Ack](errors.ErrNotStarted)
	}

	return r.UpdateFile(fileName, text)
}

// RemoveFile stops the worker tracking fileName.
func (c *Client) RemoveFile(fileName string) *rpc.Future[protocol.Ack] {
	r, ok := c.client()
	if !ok {
		return rpc.Rejected[protocol.Ack](errors.ErrNotStarted)
	}

	return r.RemoveFile(fileName)
}

// Diagnostics requests the worker's current diagnostics.
func (c *Client) Diagnostics() *rpc.Future[[]protocol.Diagnostic] {
	r, ok := c.client()
	if !ok {
		return rpc.Rejected[[]protocol.Diagnostic](errors.ErrNotStarted)
	}

	return r.Diagnostics()
}

// Files requests the files the worker tracks.
func (c *Client) Files() *rpc.Future[[]protocol.FileDescriptor] {
	r, ok := c.client()
	if !ok {
		return rpc.Rejected[[]protocol.FileDescriptor](errors.ErrNotStarted)
	}

	return r.Files()
}

// SessionID returns the session ID sent in the Init handshake, or "" before
// Start.
func (c *Client) SessionID() string {
	r, ok := c.client()
	if !ok {
		return ""
	}

	return r.SessionID()
}

// Pending returns the number of calls awaiting a response.
func (c *Client) Pending() int {
	r, ok := c.client()
	if !ok {
		return 0
	}

	return r.Pending()
}

// State returns the worker lifecycle state.
func (c *Client) State() supervisor.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.supervisor == nil {
		return supervisor.Starting
	}

	return c.supervisor.State()
}

// Fatal yields the worker's fatal exit at most once. The owning application
// is expected to terminate with the carried exit code. Nil before Start.
func (c *Client) Fatal() <-chan *errors.FatalExitError {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.supervisor == nil {
		return nil
	}

	return c.supervisor.Fatal()
}

// Done is closed once the worker has exited. Nil before Start.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.supervisor == nil {
		return nil
	}

	return c.supervisor.Done()
}

// Kill terminates the worker with SIGKILL. Pending calls are rejected with
// ErrWorkerTerminated and later calls with ErrClientKilled.
func (c *Client) Kill() error {
	r, ok := c.client()
	if !ok {
		return nil
	}

	return r.Kill()
}

// Close kills the worker and waits for all goroutines to stop.
// It's safe to call Close multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		started := c.started
		c.mu.Unlock()

		if !started {
			return
		}

		c.log.Debug("Closing checker")

		c.closeErr = c.rpc.Kill()

		if err := c.eg.Wait(); err != nil && c.closeErr == nil {
			c.closeErr = err
		}

		c.supervisor.Wait()

		c.log.Info("Checker closed")
	})

	return c.closeErr
}
