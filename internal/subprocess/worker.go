package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/wagiedev/forkcheck-go/internal/config"
	"github.com/wagiedev/forkcheck-go/internal/errors"
	"github.com/wagiedev/forkcheck-go/internal/launch"
	"github.com/wagiedev/forkcheck-go/internal/wire"
)

// maxStderrBufferSize caps the stderr kept for FatalExitError. The Stderr
// callback still sees every line.
const maxStderrBufferSize = 10 * 1024 * 1024 // 10MB

// WorkerTransport implements Transport by spawning the worker binary.
type WorkerTransport struct {
	log            *slog.Logger
	options        *config.Options
	workerPath     string
	args           []string
	framing        wire.Framing
	cmd            *exec.Cmd
	stdin          io.WriteCloser
	stdout         io.ReadCloser
	stderr         io.ReadCloser
	writer         *wire.Writer
	stderrCallback func(string)
	mu             sync.Mutex // Protects cmd, stdin and closing
	closing        bool       // Kill was called; the exit is intentional
}

// Compile-time verification that WorkerTransport implements the Transport interface.
var _ config.Transport = (*WorkerTransport)(nil)

// NewWorkerTransport creates a transport for the configured worker.
//
// Discovery is deferred to Start, which searches for the worker binary in the
// following order:
//  1. options.WorkerPath or FORKCHECK_WORKER_PATH
//  2. The system PATH
//  3. Common installation directories (/usr/local/bin, /usr/bin, ~/go/bin)
func NewWorkerTransport(log *slog.Logger, options *config.Options) *WorkerTransport {
	return &WorkerTransport{
		log:            log.With("component", "worker_transport"),
		options:        options,
		stderrCallback: options.Stderr,
	}
}

// Start discovers and spawns the worker process.
//
// Every failure is returned as *errors.SpawnError, including a
// WorkerNotFoundError from discovery.
func (t *WorkerTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil {
		return errors.ErrAlreadyStarted
	}

	if t.closing {
		return &errors.SpawnError{Op: "start", Err: errors.ErrWorkerTerminated}
	}

	t.log.Info("Starting forkcheck worker")

	discoverer := launch.NewDiscoverer(&launch.Config{
		WorkerPath:       t.options.WorkerPath,
		SkipVersionCheck: t.options.SkipVersionCheck,
		Logger:           t.log,
	})

	workerPath, err := discoverer.Discover(ctx)
	if err != nil {
		return &errors.SpawnError{Op: "discover", Err: err}
	}

	t.workerPath = workerPath

	framing, err := wire.ParseFraming(t.options.Framing)
	if err != nil {
		return &errors.SpawnError{Op: "framing", Err: err}
	}

	t.framing = framing

	t.args, err = launch.BuildArgs(t.options)
	if err != nil {
		return &errors.SpawnError{Op: "args", Err: err}
	}

	t.log.Debug("Built worker arguments", "args", t.args)

	cwd := t.options.Cwd
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return &errors.SpawnError{Op: "cwd", Err: err}
		}
	}

	// The worker outlives ctx; only Kill or its own exit ends it.
	//nolint:gosec // G204: the worker path comes from discovery
	cmd := exec.Command(t.workerPath, t.args...)
	cmd.Dir = cwd
	cmd.Env = launch.BuildEnvironment(t.options)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.log.Error("Failed to create stdin pipe", "error", err)

		return &errors.SpawnError{Op: "stdin pipe", Err: err}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.log.Error("Failed to create stdout pipe", "error", err)

		return &errors.SpawnError{Op: "stdout pipe", Err: err}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.log.Error("Failed to create stderr pipe", "error", err)

		return &errors.SpawnError{Op: "stderr pipe", Err: err}
	}

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start worker process", "error", err)

		return &errors.SpawnError{Op: "start", Err: err}
	}

	t.cmd = cmd
	t.stdin = stdin
	t.stdout = stdout
	t.stderr = stderr
	t.writer = wire.NewWriterSize(stdin, framing, t.options.MaxFrameSize)

	t.log.Info("Worker process started",
		"pid", cmd.Process.Pid,
		"worker_path", t.workerPath,
		"framing", string(framing),
	)

	return nil
}

// ReadMessages reads frames from the worker stdout.
//
// Frames are copied before they are delivered, so receivers may keep them.
// Once stdout is exhausted the process is reaped: a nonzero exit that was not
// caused by Kill is sent as *errors.FatalExitError, then both channels close.
func (t *WorkerTransport) ReadMessages(ctx context.Context) (<-chan []byte, <-chan error) {
	messages := make(chan []byte)
	errs := make(chan error, 2)

	t.mu.Lock()
	cmd, stdout, stderr := t.cmd, t.stdout, t.stderr
	t.mu.Unlock()

	if cmd == nil {
		errs <- errors.ErrTransportNotConnected

		close(messages)
		close(errs)

		return messages, errs
	}

	var (
		stderrWg     sync.WaitGroup
		stderrMu     sync.Mutex
		stderrBuffer strings.Builder
	)

	// Stderr must be fully read before cmd.Wait.
	// See: https://pkg.go.dev/os/exec#Cmd.StderrPipe
	stderrWg.Go(func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()

			stderrMu.Lock()

			if stderrBuffer.Len() < maxStderrBufferSize {
				if stderrBuffer.Len() > 0 {
					stderrBuffer.WriteString("\n")
				}

				stderrBuffer.WriteString(line)
			}

			stderrMu.Unlock()

			if t.stderrCallback != nil {
				t.stderrCallback(line)
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Debug("Stderr scanner error", "error", err)
		}
	})

	go func() {
		defer close(messages)
		defer close(errs)
		defer t.log.Debug("ReadMessages goroutine stopped")

		reader := wire.NewReaderSize(stdout, t.framing, t.options.MaxFrameSize)
		frameCount := 0

	read:
		for {
			frame, err := reader.ReadFrame()
			if stderrors.Is(err, errors.ErrFrameTooLarge) {
				// The frame was skipped; the ones behind it are still readable.
				t.log.Warn("Skipped oversized frame from worker", "error", err)

				select {
				case errs <- err:
				case <-ctx.Done():
				}

				continue
			}

			if err != nil {
				if err != io.EOF {
					t.log.Error("Failed to read worker output", "error", err)

					errs <- &errors.SpawnError{Op: "read", Err: err}

					// The stream cannot be resynchronised. Killing the worker turns
					// this into an exit so pending calls are rejected.
					if killErr := cmd.Process.Kill(); killErr != nil && !stderrors.Is(killErr, os.ErrProcessDone) {
						t.log.Error("Failed to kill worker after read error", "error", killErr)
					}

					_, _ = io.Copy(io.Discard, stdout)
				}

				break
			}

			frameCount++
			t.log.Debug("Received frame from worker", "frame_count", frameCount, "size", len(frame))

			select {
			case messages <- append([]byte(nil), frame...):
			case <-ctx.Done():
				t.log.Debug("Context cancelled during frame delivery", "error", ctx.Err())

				_, _ = io.Copy(io.Discard, stdout)

				break read
			}
		}

		stderrWg.Wait()

		t.log.Debug("Waiting for worker process to exit")

		err := cmd.Wait()

		t.mu.Lock()
		killed := t.closing
		t.mu.Unlock()

		if killed {
			t.log.Debug("Worker process terminated by kill")

			return
		}

		if err == nil {
			t.log.Info("Worker process exited cleanly")

			return
		}

		stderrMu.Lock()
		stderrOutput := strings.TrimSpace(stderrBuffer.String())
		stderrMu.Unlock()

		exitCode := -1
		if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
			exitCode = exitErr.ExitCode()
		}

		t.log.Error("Worker process exited with error", "exit_code", exitCode, "stderr", stderrOutput)

		errs <- &errors.FatalExitError{
			ExitCode: exitCode,
			Stderr:   stderrOutput,
			Err:      err,
		}
	}()

	return messages, errs
}

// SendMessage writes one frame to the worker stdin.
// It is safe for concurrent use; frames never interleave.
func (t *WorkerTransport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	writer, closing := t.writer, t.closing
	t.mu.Unlock()

	if writer == nil {
		return errors.ErrTransportNotConnected
	}

	if closing {
		return errors.ErrWorkerTerminated
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	t.log.Debug("Sending frame to worker", "data_len", len(data))

	if err := writer.WriteFrame(data); err != nil {
		return fmt.Errorf("send to worker: %w", err)
	}

	return nil
}

// IsReady returns true while the worker process is running and not killed.
func (t *WorkerTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.cmd.Process != nil && !t.closing
}

// Kill sends SIGKILL to the worker. It's safe to call Kill multiple times or
// after the process has exited.
func (t *WorkerTransport) Kill() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closing {
		return nil
	}

	t.closing = true

	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}

	t.log.Debug("Killing worker process", "pid", t.cmd.Process.Pid)

	if t.stdin != nil {
		_ = t.stdin.Close()
	}

	if err := t.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill worker process (pid %d): %w", t.cmd.Process.Pid, err)
	}

	return nil
}
