package forkcheck

import (
	"github.com/wagiedev/forkcheck-go/internal/protocol"
	"github.com/wagiedev/forkcheck-go/internal/rpc"
	"github.com/wagiedev/forkcheck-go/internal/supervisor"
	"github.com/wagiedev/forkcheck-go/internal/wire"
)

// Version is the protocol version this module speaks.
const Version = protocol.Version

// Future is the eventual result of a call.
type Future[T any] = rpc.Future[T]

// Re-export protocol types.
type (
	Ack                = protocol.Ack
	EmitResult         = protocol.EmitResult
	Diagnostic         = protocol.Diagnostic
	DiagnosticCategory = protocol.DiagnosticCategory
	FileDescriptor     = protocol.FileDescriptor
	CompilerInfo       = protocol.CompilerInfo
	LoaderConfig       = protocol.LoaderConfig
	CompilerConfig     = protocol.CompilerConfig
)

// Diagnostic categories.
const (
	CategoryError      = protocol.CategoryError
	CategoryWarning    = protocol.CategoryWarning
	CategorySuggestion = protocol.CategorySuggestion
	CategoryMessage    = protocol.CategoryMessage
)

// State is the worker lifecycle state.
type State = supervisor.State

// Worker lifecycle states.
const (
	StateStarting    = supervisor.Starting
	StateRunning     = supervisor.Running
	StateExitedClean = supervisor.ExitedClean
	StateExitedFatal = supervisor.ExitedFatal
)

// Framing selects how frames are delimited on the worker pipes.
type Framing = wire.Framing

// Supported framings.
const (
	FramingNDJSON         = wire.FramingNDJSON
	FramingLengthPrefixed = wire.FramingLengthPrefixed
)
