package subprocess

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/forkcheck-go/internal/config"
	"github.com/wagiedev/forkcheck-go/internal/errors"
	"github.com/wagiedev/forkcheck-go/internal/wire"
)

// testWorkerEnv makes the test binary act as a worker process.
const testWorkerEnv = "FORKCHECK_TEST_WORKER"

func TestMain(m *testing.M) {
	if mode := os.Getenv(testWorkerEnv); mode != "" {
		os.Exit(runTestWorker(mode))
	}

	os.Exit(m.Run())
}

// runTestWorker implements the fake worker modes used by these tests.
func runTestWorker(mode string) int {
	framing := wire.FramingNDJSON

	for _, arg := range os.Args[1:] {
		if value, ok := strings.CutPrefix(arg, "--framing="); ok {
			framing = wire.Framing(value)
		}
	}

	switch mode {
	case "echo":
		reader := wire.NewReader(os.Stdin, framing)
		writer := wire.NewWriter(os.Stdout, framing)

		for {
			frame, err := reader.ReadFrame()
			if err != nil {
				return 0
			}

			if err := writer.WriteFrame(frame); err != nil {
				return 3
			}
		}
	case "args":
		_, _ = fmt.Fprintf(os.Stdout, "{\"args\":%q}\n", strings.Join(os.Args[1:], " "))

		return 0
	case "fail":
		_, _ = fmt.Fprintln(os.Stderr, "fatal: cannot load compiler")

		return 2
	case "oversized":
		writer := wire.NewWriterSize(os.Stdout, framing, 8<<20)
		big := `{"seq":5,"success":true,"payload":"` + strings.Repeat("x", 2<<20) + `"}`

		if writer.WriteFrame([]byte(big)) != nil || writer.WriteFrame([]byte(`{"seq":1,"success":true}`)) != nil {
			return 3
		}

		_, _ = io.Copy(io.Discard, os.Stdin)

		return 0
	case "hang":
		_, _ = io.Copy(io.Discard, os.Stdin)
		time.Sleep(time.Minute)

		return 0
	}

	return 1
}

func newTestTransport(t *testing.T, mode string, framing string) *WorkerTransport {
	t.Helper()

	executable, err := os.Executable()
	require.NoError(t, err)

	return NewWorkerTransport(slog.New(slog.DiscardHandler), &config.Options{
		WorkerPath:       executable,
		SkipVersionCheck: true,
		ParentArgs:       []string{"--inspect=9000"},
		Framing:          framing,
		Env:              map[string]string{testWorkerEnv: mode},
	})
}

// collect drains both transport channels.
func collect(msgs <-chan []byte, errs <-chan error) ([][]byte, []error) {
	var (
		frames  [][]byte
		errList []error
	)

	for msgs != nil || errs != nil {
		select {
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil

				continue
			}

			frames = append(frames, msg)
		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			errList = append(errList, err)
		}
	}

	return frames, errList
}

func TestWorkerTransport_EchoRoundTrip(t *testing.T) {
	for _, framing := range []string{"ndjson", "length-prefixed"} {
		t.Run(framing, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			transport := newTestTransport(t, "echo", framing)
			require.NoError(t, transport.Start(ctx))
			require.True(t, transport.IsReady())

			msgs, errs := transport.ReadMessages(ctx)

			for i := range 3 {
				require.NoError(t, transport.SendMessage(ctx, fmt.Appendf(nil, `{"seq":%d}`, i+1)))
			}

			for i := range 3 {
				select {
				case msg := <-msgs:
					require.JSONEq(t, fmt.Sprintf(`{"seq":%d}`, i+1), string(msg))
				case <-ctx.Done():
					t.Fatal("timed out waiting for echo")
				}
			}

			require.NoError(t, transport.Kill())

			_, errList := collect(msgs, errs)
			require.Empty(t, errList, "an exit caused by Kill is not an error")
			require.False(t, transport.IsReady())
		})
	}
}

func TestWorkerTransport_ForwardsArguments(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	transport := newTestTransport(t, "args", "ndjson")
	require.NoError(t, transport.Start(ctx))

	msgs, errs := transport.ReadMessages(ctx)
	frames, errList := collect(msgs, errs)

	require.Empty(t, errList)
	require.Len(t, frames, 1)
	require.JSONEq(t, `{"args":"--inspect=9001 --framing=ndjson"}`, string(frames[0]))
}

func TestWorkerTransport_NonzeroExitIsFatal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var lines []string

	transport := newTestTransport(t, "fail", "")
	transport.stderrCallback = func(line string) { lines = append(lines, line) }

	require.NoError(t, transport.Start(ctx))

	msgs, errs := transport.ReadMessages(ctx)
	frames, errList := collect(msgs, errs)

	require.Empty(t, frames)
	require.Len(t, errList, 1)

	fatal, ok := stderrors.AsType[*errors.FatalExitError](errList[0])
	require.True(t, ok)
	require.Equal(t, 2, fatal.ExitCode)
	require.Equal(t, "fatal: cannot load compiler", fatal.Stderr)
	require.Equal(t, []string{"fatal: cannot load compiler"}, lines)
}

func TestWorkerTransport_KillHangingWorker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	transport := newTestTransport(t, "hang", "")
	require.NoError(t, transport.Start(ctx))

	msgs, errs := transport.ReadMessages(ctx)

	require.NoError(t, transport.Kill())
	require.NoError(t, transport.Kill())

	_, errList := collect(msgs, errs)
	require.Empty(t, errList)

	err := transport.SendMessage(ctx, []byte(`{}`))
	require.ErrorIs(t, err, errors.ErrWorkerTerminated)
}

func TestWorkerTransport_WorkerNotFound(t *testing.T) {
	transport := NewWorkerTransport(slog.New(slog.DiscardHandler), &config.Options{
		WorkerPath: "/nonexistent/forkcheck-worker",
	})

	err := transport.Start(t.Context())
	require.Error(t, err)

	spawnErr, ok := stderrors.AsType[*errors.SpawnError](err)
	require.True(t, ok)
	require.Equal(t, "discover", spawnErr.Op)

	_, ok = stderrors.AsType[*errors.WorkerNotFoundError](err)
	require.True(t, ok)
}

func TestWorkerTransport_NotStarted(t *testing.T) {
	transport := NewWorkerTransport(slog.New(slog.DiscardHandler), &config.Options{})

	require.False(t, transport.IsReady())
	require.ErrorIs(t, transport.SendMessage(t.Context(), []byte(`{}`)), errors.ErrTransportNotConnected)

	msgs, errs := transport.ReadMessages(t.Context())
	_, errList := collect(msgs, errs)
	require.Len(t, errList, 1)
	require.ErrorIs(t, errList[0], errors.ErrTransportNotConnected)
}

func TestWorkerTransport_SkipsOversizedFrame(t *testing.T) {
	for _, framing := range []string{"ndjson", "length-prefixed"} {
		t.Run(framing, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			transport := newTestTransport(t, "oversized", framing)
			require.NoError(t, transport.Start(ctx))

			msgs, errs := transport.ReadMessages(ctx)

			var (
				frame   []byte
				skipErr error
			)

			for frame == nil || skipErr == nil {
				select {
				case msg := <-msgs:
					frame = msg
				case err := <-errs:
					skipErr = err
				case <-ctx.Done():
					t.Fatal("the frame after the oversized one was not delivered")
				}
			}

			require.JSONEq(t, `{"seq":1,"success":true}`, string(frame))
			require.ErrorIs(t, skipErr, errors.ErrFrameTooLarge)

			decodeErr, ok := stderrors.AsType[*errors.FrameDecodeError](skipErr)
			require.True(t, ok)
			require.True(t, strings.HasPrefix(decodeErr.RawData, `{"seq":5,`))

			require.True(t, transport.IsReady(), "the worker keeps running")
			require.NoError(t, transport.Kill())

			_, errList := collect(msgs, errs)
			require.Empty(t, errList)
		})
	}
}

func TestWorkerTransport_MaxFrameSize(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	transport := newTestTransport(t, "oversized", "length-prefixed")
	transport.options.MaxFrameSize = 4 << 20

	require.NoError(t, transport.Start(ctx))

	msgs, errs := transport.ReadMessages(ctx)

	for _, wantPrefix := range []string{`{"seq":5,`, `{"seq":1,`} {
		select {
		case msg := <-msgs:
			require.True(t, strings.HasPrefix(string(msg), wantPrefix))
		case err := <-errs:
			t.Fatalf("unexpected error: %v", err)
		case <-ctx.Done():
			t.Fatal("timed out waiting for frames")
		}
	}

	require.NoError(t, transport.Kill())
	collect(msgs, errs)
}

func TestWorkerTransport_ForwardsMaxFrameSize(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	transport := newTestTransport(t, "args", "ndjson")
	transport.options.MaxFrameSize = 4 << 20

	require.NoError(t, transport.Start(ctx))

	frames, errList := collect(transport.ReadMessages(ctx))

	require.Empty(t, errList)
	require.Len(t, frames, 1)
	require.JSONEq(t, `{"args":"--inspect=9001 --framing=ndjson --max-frame-size=4194304"}`, string(frames[0]))
}
