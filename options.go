package forkcheck

import (
	"log/slog"

	"github.com/wagiedev/forkcheck-go/internal/config"
)

// Options configures a checker and its worker.
type Options = config.Options

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to a fresh Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithWorkerPath sets the explicit path to the worker binary.
// If not set, FORKCHECK_WORKER_PATH and then PATH are searched.
func WithWorkerPath(path string) Option {
	return func(o *Options) {
		o.WorkerPath = path
	}
}

// WithWorkerArgs appends arguments to the worker command line.
func WithWorkerArgs(args ...string) Option {
	return func(o *Options) {
		o.WorkerArgs = append(o.WorkerArgs, args...)
	}
}

// WithParentArgs sets the arguments scanned for --debug or --inspect.
// Defaults to os.Args[1:].
func WithParentArgs(args ...string) Option {
	return func(o *Options) {
		o.ParentArgs = args
	}
}

// WithEnv provides additional environment variables for the worker process.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// WithCwd sets the working directory for the worker process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithFraming selects the wire framing shared with the worker.
func WithFraming(framing Framing) Option {
	return func(o *Options) {
		o.Framing = string(framing)
	}
}

// WithMaxFrameSize sets the largest frame exchanged with the worker.
// Larger frames are skipped and the call they belong to is rejected.
func WithMaxFrameSize(size int) Option {
	return func(o *Options) {
		o.MaxFrameSize = size
	}
}

// WithSkipVersionCheck disables the worker protocol version check.
func WithSkipVersionCheck(skip bool) Option {
	return func(o *Options) {
		o.SkipVersionCheck = skip
	}
}

// ===== Callbacks =====

// WithStderr sets a callback function for each line the worker writes to stderr.
func WithStderr(handler func(string)) Option {
	return func(o *Options) {
		o.Stderr = handler
	}
}

// WithWorkerErrorHandler sets a callback for non-fatal worker errors.
func WithWorkerErrorHandler(handler func(error)) Option {
	return func(o *Options) {
		o.OnWorkerError = handler
	}
}

// ===== Init Handshake =====

// WithCompilerInfo sets the compiler description sent in Init.
// CompilerInfo.Impl never leaves the process.
func WithCompilerInfo(info CompilerInfo) Option {
	return func(o *Options) {
		o.CompilerInfo = info
	}
}

// WithLoaderConfig sets the loader configuration sent in Init.
func WithLoaderConfig(cfg LoaderConfig) Option {
	return func(o *Options) {
		o.LoaderConfig = cfg
	}
}

// WithCompilerConfig sets the compiler project configuration sent in Init.
func WithCompilerConfig(cfg CompilerConfig) Option {
	return func(o *Options) {
		o.CompilerConfig = cfg
	}
}

// WithBuildOptions sets free-form build options sent in Init.
func WithBuildOptions(opts map[string]any) Option {
	return func(o *Options) {
		o.BuildOptions = opts
	}
}

// ===== Advanced =====

// WithTransport injects a custom transport instead of spawning a worker.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}
