package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/forkcheck-go/internal/errors"
	"github.com/wagiedev/forkcheck-go/internal/protocol"
	"github.com/wagiedev/forkcheck-go/internal/wire"
)

// DefaultConcurrency is the number of requests handled at once.
const DefaultConcurrency = 8

// ErrNotInitialized answers any request that arrives before Init.
var ErrNotInitialized = stderrors.New("worker not initialized")

// ErrAlreadyInitialized answers a second Init.
var ErrAlreadyInitialized = stderrors.New("worker already initialized")

// Handler performs the work behind each request.
// Methods other than Init may be called concurrently.
type Handler interface {
	Init(ctx context.Context, req *protocol.InitRequest) error
	EmitFile(ctx context.Context, req *protocol.EmitFileRequest) (protocol.EmitResult, error)
	UpdateFile(ctx context.Context, req *protocol.UpdateFileRequest) error
	RemoveFile(ctx context.Context, req *protocol.RemoveFileRequest) error
	Diagnostics(ctx context.Context) ([]protocol.Diagnostic, error)
	Files(ctx context.Context) ([]protocol.FileDescriptor, error)
}

// Config configures a Server.
type Config struct {
	// Framing must match the coordinator's framing.
	Framing wire.Framing

	// Concurrency bounds in-flight requests. Zero means DefaultConcurrency;
	// one handles requests strictly in arrival order.
	Concurrency int

	// MaxFrameSize limits request and response bodies. Zero means
	// wire.MaxFrameSize.
	MaxFrameSize int
}

// Server answers requests from one coordinator.
type Server struct {
	log         *slog.Logger
	handler     Handler
	cfg         Config
	initialized atomic.Bool
}

// NewServer creates a server dispatching to handler.
func NewServer(log *slog.Logger, handler Handler, cfg Config) *Server {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	return &Server{
		log:     log.With("component", "worker"),
		handler: handler,
		cfg:     cfg,
	}
}

// Serve reads requests from r and writes responses to w until r is
// exhausted or ctx is cancelled. It returns nil at a clean end of input, after
// every in-flight request has been answered.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := wire.NewReaderSize(r, s.cfg.Framing, s.cfg.MaxFrameSize)
	writer := wire.NewWriterSize(w, s.cfg.Framing, s.cfg.MaxFrameSize)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.Concurrency)

	s.log.Info("Worker serving", "framing", string(s.cfg.Framing), "concurrency", s.cfg.Concurrency)

	readErr := s.readLoop(egCtx, eg, reader, writer)

	if err := eg.Wait(); err != nil {
		return err
	}

	return readErr
}

func (s *Server) readLoop(ctx context.Context, eg *errgroup.Group, reader *wire.Reader, writer *wire.Writer) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		frame, err := reader.ReadFrame()
		if err != nil {
			if err == io.EOF {
				s.log.Info("Input closed")

				return nil
			}

			if stderrors.Is(err, errors.ErrFrameTooLarge) {
				if err := s.rejectOversized(err, writer); err != nil {
					return err
				}

				continue
			}

			return fmt.Errorf("read request: %w", err)
		}

		var req protocol.Request
		if err := json.Unmarshal(frame, &req); err != nil {
			s.rejectMalformed(frame, err, writer)

			continue
		}

		s.log.Debug("Request received", "seq", req.Seq, "tag", string(req.Tag))

		if err := req.Validate(); err != nil {
			if err := s.respond(writer, protocol.ErrorResponse(req.Seq, err.Error())); err != nil {
				return err
			}

			continue
		}

		payload, err := req.DecodePayload()
		if err != nil {
			if err := s.respond(writer, protocol.ErrorResponse(req.Seq, err.Error())); err != nil {
				return err
			}

			continue
		}

		if initReq, ok := payload.(*protocol.InitRequest); ok {
			// Init runs inline so later requests observe it.
			if err := s.respond(writer, s.handleInit(ctx, req.Seq, initReq)); err != nil {
				return err
			}

			continue
		}

		seq := req.Seq

		eg.Go(func() error {
			return s.respond(writer, s.dispatch(ctx, seq, payload))
		})
	}
}

// rejectMalformed answers a frame that is not a request envelope, when its
// seq can still be recovered.
func (s *Server) rejectMalformed(frame []byte, cause error, writer *wire.Writer) {
	var envelope struct {
		Seq *uint64 `json:"seq"`
	}

	if err := json.Unmarshal(frame, &envelope); err != nil || envelope.Seq == nil {
		s.log.Warn("Discarding malformed request", "error", cause)

		return
	}

	_ = s.respond(writer, protocol.ErrorResponse(*envelope.Seq, "malformed request: "+cause.Error()))
}

// rejectOversized answers a skipped request when its seq is in the kept head.
func (s *Server) rejectOversized(cause error, writer *wire.Writer) error {
	var seq uint64

	decodeErr, ok := stderrors.AsType[*errors.FrameDecodeError](cause)
	if ok {
		seq, ok = protocol.SeqFromHead([]byte(decodeErr.RawData))
	}

	if !ok {
		s.log.Warn("Discarding oversized request", "error", cause)

		return nil
	}

	s.log.Warn("Rejecting oversized request", "seq", seq, "error", cause)

	return s.respond(writer, protocol.ErrorResponse(seq, "request exceeds frame limit"))
}

func (s *Server) handleInit(ctx context.Context, seq uint64, req *protocol.InitRequest) *protocol.Response {
	if s.initialized.Load() {
		return protocol.ErrorResponse(seq, ErrAlreadyInitialized.Error())
	}

	if err := s.handler.Init(ctx, req); err != nil {
		s.log.Error("Init failed", "error", err)

		return protocol.ErrorResponse(seq, err.Error())
	}

	s.initialized.Store(true)
	s.log.Info("Worker initialized", "session_id", req.SessionID)

	return s.success(seq, nil)
}

func (s *Server) dispatch(ctx context.Context, seq uint64, payload protocol.Payload) *protocol.Response {
	if !s.initialized.Load() {
		return protocol.ErrorResponse(seq, ErrNotInitialized.Error())
	}

	var (
		result any
		err    error
	)

	switch p := payload.(type) {
	case *protocol.EmitFileRequest:
		result, err = s.handler.EmitFile(ctx, p)
	case *protocol.UpdateFileRequest:
		err = s.handler.UpdateFile(ctx, p)
	case *protocol.RemoveFileRequest:
		err = s.handler.RemoveFile(ctx, p)
	case *protocol.DiagnosticsRequest:
		result, err = s.handler.Diagnostics(ctx)
	case *protocol.FilesRequest:
		result, err = s.handler.Files(ctx)
	default:
		err = fmt.Errorf("unsupported request %s", payload.Tag())
	}

	if err != nil {
		s.log.Debug("Request failed", "seq", seq, "tag", string(payload.Tag()), "error", err)

		return protocol.ErrorResponse(seq, err.Error())
	}

	return s.success(seq, result)
}

func (s *Server) success(seq uint64, result any) *protocol.Response {
	resp, err := protocol.SuccessResponse(seq, result)
	if err != nil {
		return protocol.ErrorResponse(seq, err.Error())
	}

	return resp
}

func (s *Server) respond(writer *wire.Writer, resp *protocol.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response %d: %w", resp.Seq, err)
	}

	err = writer.WriteFrame(data)
	if stderrors.Is(err, errors.ErrFrameTooLarge) {
		s.log.Warn("Response exceeds frame limit", "seq", resp.Seq, "size", len(data))

		data, err = json.Marshal(protocol.ErrorResponse(resp.Seq, "result exceeds frame limit"))
		if err != nil {
			return fmt.Errorf("marshal response %d: %w", resp.Seq, err)
		}

		err = writer.WriteFrame(data)
	}

	if err != nil {
		return fmt.Errorf("write response %d: %w", resp.Seq, err)
	}

	s.log.Debug("Response sent", "seq", resp.Seq, "success", resp.Success)

	return nil
}
