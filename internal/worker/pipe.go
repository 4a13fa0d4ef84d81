package worker

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/wagiedev/forkcheck-go/internal/config"
	"github.com/wagiedev/forkcheck-go/internal/errors"
	"github.com/wagiedev/forkcheck-go/internal/wire"
)

// PipeTransport runs a Server in-process and connects to it over in-memory
// pipes. It behaves like a worker process: Serve returning an error is a
// fatal exit with code 1, and Kill ends it without a fatal signal.
type PipeTransport struct {
	log     *slog.Logger
	handler Handler
	cfg     Config

	mu      sync.Mutex
	started bool
	killed  bool
	inW     *io.PipeWriter
	outR    *io.PipeReader
	writer  *wire.Writer
	served  chan error
}

// Compile-time verification that PipeTransport implements config.Transport.
var _ config.Transport = (*PipeTransport)(nil)

// NewPipeTransport creates a transport serving requests with handler.
func NewPipeTransport(log *slog.Logger, handler Handler, cfg Config) *PipeTransport {
	if cfg.Framing == "" {
		cfg.Framing = wire.FramingNDJSON
	}

	return &PipeTransport{
		log:     log.With("component", "pipe_transport"),
		handler: handler,
		cfg:     cfg,
		served:  make(chan error, 1),
	}
}

// Start launches the in-process server.
func (p *PipeTransport) Start(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.ErrAlreadyStarted
	}

	if p.killed {
		return &errors.SpawnError{Op: "start", Err: errors.ErrWorkerTerminated}
	}

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	p.inW = inW
	p.outR = outR
	p.writer = wire.NewWriterSize(inW, p.cfg.Framing, p.cfg.MaxFrameSize)
	p.started = true

	server := NewServer(p.log, p.handler, p.cfg)

	go func() {
		err := server.Serve(context.Background(), inR, outW)
		_ = outW.Close()
		p.served <- err
	}()

	p.log.Debug("In-process worker started")

	return nil
}

// ReadMessages yields response frames until the server stops.
func (p *PipeTransport) ReadMessages(ctx context.Context) (<-chan []byte, <-chan error) {
	messages := make(chan []byte)
	errs := make(chan error, 1)

	p.mu.Lock()
	outR := p.outR
	p.mu.Unlock()

	if outR == nil {
		errs <- errors.ErrTransportNotConnected

		close(messages)
		close(errs)

		return messages, errs
	}

	go func() {
		defer close(messages)
		defer close(errs)

		reader := wire.NewReaderSize(outR, p.cfg.Framing, p.cfg.MaxFrameSize)

		for {
			frame, err := reader.ReadFrame()
			if stderrors.Is(err, errors.ErrFrameTooLarge) {
				select {
				case errs <- err:
				case <-ctx.Done():
				}

				continue
			}

			if err != nil {
				break
			}

			select {
			case messages <- append([]byte(nil), frame...):
			case <-ctx.Done():
				_ = outR.CloseWithError(ctx.Err())
			}
		}

		err := <-p.served

		p.mu.Lock()
		killed := p.killed
		p.mu.Unlock()

		if killed || err == nil {
			return
		}

		errs <- &errors.FatalExitError{ExitCode: 1, Stderr: err.Error(), Err: err}
	}()

	return messages, errs
}

// SendMessage writes a request frame to the server.
func (p *PipeTransport) SendMessage(_ context.Context, data []byte) error {
	p.mu.Lock()
	writer, killed := p.writer, p.killed
	p.mu.Unlock()

	if writer == nil {
		return errors.ErrTransportNotConnected
	}

	if killed {
		return errors.ErrWorkerTerminated
	}

	if err := writer.WriteFrame(data); err != nil {
		return fmt.Errorf("send to in-process worker: %w", err)
	}

	return nil
}

// Kill stops the server by closing both pipes.
func (p *PipeTransport) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.killed {
		return nil
	}

	p.killed = true

	if p.inW != nil {
		_ = p.inW.CloseWithError(errors.ErrWorkerTerminated)
		_ = p.outR.CloseWithError(errors.ErrWorkerTerminated)
	}

	return nil
}

// IsReady returns true between Start and Kill.
func (p *PipeTransport) IsReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.started && !p.killed
}
