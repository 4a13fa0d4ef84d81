package config

import (
	"log/slog"

	"github.com/wagiedev/forkcheck-go/internal/protocol"
)

// Options configures a checker and the worker it supervises.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// WorkerPath is the explicit path to the worker binary.
	// If empty, the worker is searched via FORKCHECK_WORKER_PATH and PATH.
	WorkerPath string

	// WorkerArgs are appended to the computed worker arguments.
	WorkerArgs []string

	// ParentArgs are the coordinator's own arguments, scanned for a
	// --debug or --inspect flag to forward. If nil, os.Args[1:] is used.
	ParentArgs []string

	// Env provides additional environment variables for the worker process.
	Env map[string]string

	// Cwd sets the working directory for the worker process.
	Cwd string

	// Framing selects the wire framing: "ndjson" (default) or "length-prefixed".
	Framing string

	// MaxFrameSize limits the size of a frame in either direction. Zero means
	// the wire default of 1 MiB. A nonzero value is passed to the worker as
	// --max-frame-size.
	MaxFrameSize int

	// Stderr is a callback invoked with each line the worker writes to stderr.
	Stderr func(string)

	// OnWorkerError is invoked for every non-fatal worker error signal.
	OnWorkerError func(error)

	// SkipVersionCheck skips the worker protocol version check during discovery.
	SkipVersionCheck bool

	// CompilerInfo, LoaderConfig, CompilerConfig and BuildOptions are
	// forwarded to the worker in the Init handshake.
	CompilerInfo   protocol.CompilerInfo
	LoaderConfig   protocol.LoaderConfig
	CompilerConfig protocol.CompilerConfig
	BuildOptions   map[string]any

	// Transport allows injecting a custom transport implementation.
	// If nil, the default subprocess transport is created automatically.
	// This field is not serialized to JSON.
	Transport Transport `json:"-"`
}
