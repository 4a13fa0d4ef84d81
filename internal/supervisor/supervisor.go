package supervisor

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/forkcheck-go/internal/config"
	"github.com/wagiedev/forkcheck-go/internal/errors"
)

// State is a worker lifecycle state.
type State int

const (
	// Starting means the worker has not been spawned yet.
	Starting State = iota
	// Running means the worker was spawned and has not exited.
	Running
	// ExitedClean means the worker exited with code 0 or was killed.
	ExitedClean
	// ExitedFatal means the worker exited with a nonzero code.
	ExitedFatal
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case ExitedClean:
		return "exited_clean"
	case ExitedFatal:
		return "exited_fatal"
	default:
		return "unknown"
	}
}

// Exited reports whether s is terminal.
func (s State) Exited() bool {
	return s == ExitedClean || s == ExitedFatal
}

// Config holds supervisor callbacks.
type Config struct {
	// OnError receives the worker's non-fatal error signals. They are also
	// logged.
	OnError func(error)
}

// Supervisor runs one worker through its lifecycle.
type Supervisor struct {
	log       *slog.Logger
	transport config.Transport
	cfg       Config

	mu      sync.Mutex
	state   State
	exitErr error
	killed  bool

	fatal  chan *errors.FatalExitError
	done   chan struct{}
	cancel context.CancelFunc
	eg     *errgroup.Group
}

// New creates a supervisor for transport.
func New(log *slog.Logger, transport config.Transport, cfg Config) *Supervisor {
	return &Supervisor{
		log:       log.With("component", "supervisor"),
		transport: transport,
		cfg:       cfg,
		state:     Starting,
		fatal:     make(chan *errors.FatalExitError, 1),
		done:      make(chan struct{}),
	}
}

// Start spawns the worker and delivers every inbound frame to handler from a
// single goroutine, in arrival order.
//
// A spawn failure is reported through OnError, moves the supervisor to
// ExitedClean and is returned as *errors.SpawnError. It is not fatal.
func (s *Supervisor) Start(ctx context.Context, handler func([]byte)) error {
	s.mu.Lock()

	if s.state != Starting || s.eg != nil {
		s.mu.Unlock()

		return errors.ErrAlreadyStarted
	}

	// Reserve the start before releasing the lock.
	s.eg = &errgroup.Group{}
	s.mu.Unlock()

	if err := s.transport.Start(ctx); err != nil {
		spawnErr, ok := stderrors.AsType[*errors.SpawnError](err)
		if !ok {
			spawnErr = &errors.SpawnError{Op: "start", Err: err}
		}

		s.reportError(spawnErr)
		s.finish(ExitedClean, spawnErr)

		return spawnErr
	}

	readCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.cancel = cancel

	if s.killed {
		// Kill raced with Start; the worker must not outlive it.
		s.mu.Unlock()

		_ = s.transport.Kill()
	} else {
		s.state = Running
		s.mu.Unlock()
	}

	s.log.Info("Worker running")

	msgs, errs := s.transport.ReadMessages(readCtx)

	s.eg.Go(func() error {
		s.monitor(msgs, errs, handler)

		return nil
	})

	return nil
}

// monitor pumps frames until both transport channels close.
func (s *Supervisor) monitor(msgs <-chan []byte, errs <-chan error, handler func([]byte)) {
	var fatal *errors.FatalExitError

	for msgs != nil || errs != nil {
		select {
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil

				continue
			}

			handler(msg)
		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			if exitErr, isFatal := stderrors.AsType[*errors.FatalExitError](err); isFatal {
				fatal = exitErr

				continue
			}

			s.reportError(err)
		}
	}

	s.mu.Lock()
	killed := s.killed
	s.mu.Unlock()

	switch {
	case fatal != nil && !killed:
		s.log.Error("Worker exited fatally", "exit_code", fatal.ExitCode, "stderr", fatal.Stderr)
		s.finish(ExitedFatal, fatal)
	case killed:
		s.log.Info("Worker killed")
		s.finish(ExitedClean, errors.ErrWorkerTerminated)
	default:
		s.log.Info("Worker exited cleanly")
		s.finish(ExitedClean, nil)
	}
}

func (s *Supervisor) reportError(err error) {
	s.log.Error("Worker error", "error", err)

	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}

// finish moves to a terminal state exactly once.
func (s *Supervisor) finish(state State, exitErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Exited() {
		return
	}

	s.state = state
	s.exitErr = exitErr

	if s.cancel != nil {
		s.cancel()
	}

	if fatal, ok := exitErr.(*errors.FatalExitError); ok && state == ExitedFatal {
		s.fatal <- fatal
	}

	close(s.done)
}

// Kill terminates the worker with SIGKILL. The resulting exit is clean.
// It's safe to call Kill multiple times.
func (s *Supervisor) Kill() error {
	s.mu.Lock()

	if s.killed {
		s.mu.Unlock()

		return nil
	}

	s.killed = true
	state := s.state
	s.mu.Unlock()

	if state == Starting {
		// Start either has not run or has not spawned yet; it checks killed.
		return nil
	}

	s.log.Debug("Killing worker")

	return s.transport.Kill()
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// ExitErr returns why the worker ended: nil for a clean exit,
// ErrWorkerTerminated after Kill, *errors.SpawnError or
// *errors.FatalExitError otherwise. It is nil while the worker runs.
func (s *Supervisor) ExitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.exitErr
}

// Fatal yields the fatal exit, at most once. The application should
// terminate with the carried exit code.
func (s *Supervisor) Fatal() <-chan *errors.FatalExitError {
	return s.fatal
}

// Done is closed once the worker reaches a terminal state.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the monitor goroutine has returned.
func (s *Supervisor) Wait() {
	s.mu.Lock()
	eg := s.eg
	s.mu.Unlock()

	if eg != nil {
		_ = eg.Wait()
	}
}
