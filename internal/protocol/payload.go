package protocol

// Payload is the closed set of request payloads. Each concrete type fixes its tag.
type Payload interface {
	Tag() Tag
	isPayload()
}

// Compile-time verification that every request type is a Payload.
var (
	_ Payload = (*InitRequest)(nil)
	_ Payload = (*EmitFileRequest)(nil)
	_ Payload = (*UpdateFileRequest)(nil)
	_ Payload = (*RemoveFileRequest)(nil)
	_ Payload = (*DiagnosticsRequest)(nil)
	_ Payload = (*FilesRequest)(nil)
)

// CompilerInfo describes the compiler the worker should load.
type CompilerInfo struct {
	CompilerPath    string `json:"compilerPath"`
	CompilerVersion string `json:"compilerVersion,omitempty"`

	// Impl is an in-process handle to the compiler. It never crosses the wire.
	Impl any `json:"-"`
}

// LoaderConfig carries the build-tool loader settings the worker honours.
type LoaderConfig struct {
	Instance          string `json:"instance,omitempty"`
	ConfigFileName    string `json:"configFileName,omitempty"`
	IgnoreDiagnostics []int  `json:"ignoreDiagnostics,omitempty"`
	Silent            bool   `json:"silent,omitempty"`
	UseCache          bool   `json:"useCache,omitempty"`
	CacheDirectory    string `json:"cacheDirectory,omitempty"`
	Debug             bool   `json:"debug,omitempty"`
}

// CompilerConfig is the parsed compiler project configuration.
type CompilerConfig struct {
	CompilerOptions map[string]any `json:"compilerOptions,omitempty"`
	Files           []string       `json:"files,omitempty"`
	Include         []string       `json:"include,omitempty"`
	Exclude         []string       `json:"exclude,omitempty"`
}

// InitRequest is the handshake payload.
type InitRequest struct {
	SessionID      string         `json:"sessionId,omitempty"`
	CompilerInfo   CompilerInfo   `json:"compilerInfo"`
	LoaderConfig   LoaderConfig   `json:"loaderConfig"`
	CompilerConfig CompilerConfig `json:"compilerConfig"`
	BuildOptions   map[string]any `json:"buildOptions,omitempty"`
}

// Tag implements Payload.
func (*InitRequest) Tag() Tag { return TagInit }
func (*InitRequest) isPayload() {}

// EmitFileRequest asks the worker to emit fileName with the given text.
type EmitFileRequest struct {
	FileName string `json:"fileName"`
	Text     string `json:"text"`
}

// Tag implements Payload.
func (*EmitFileRequest) Tag() Tag { return TagEmitFile }
func (*EmitFileRequest) isPayload() {}

// UpdateFileRequest replaces the text of fileName.
type UpdateFileRequest struct {
	FileName string `json:"fileName"`
	Text     string `json:"text"`
}

// Tag implements Payload.
func (*UpdateFileRequest) Tag() Tag { return TagUpdateFile }
func (*UpdateFileRequest) isPayload() {}

// RemoveFileRequest stops tracking fileName.
type RemoveFileRequest struct {
	FileName string `json:"fileName"`
}

// Tag implements Payload.
func (*RemoveFileRequest) Tag() Tag { return TagRemoveFile }
func (*RemoveFileRequest) isPayload() {}

// DiagnosticsRequest has no fields.
type DiagnosticsRequest struct{}

// Tag implements Payload.
func (*DiagnosticsRequest) Tag() Tag { return TagDiagnostics }
func (*DiagnosticsRequest) isPayload() {}

// FilesRequest has no fields.
type FilesRequest struct{}

// Tag implements Payload.
func (*FilesRequest) Tag() Tag { return TagFiles }
func (*FilesRequest) isPayload() {}

// Ack is the empty acknowledgement returned by Init, UpdateFile and RemoveFile.
type Ack struct{}

// EmitResult is the result of an EmitFile call.
type EmitResult struct {
	EmitSkipped bool         `json:"emitSkipped"`
	Output      string       `json:"output,omitempty"`
	SourceMap   string       `json:"sourceMap,omitempty"`
	Declaration string       `json:"declaration,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// DiagnosticCategory classifies a diagnostic.
type DiagnosticCategory string

const (
	CategoryError      DiagnosticCategory = "error"
	CategoryWarning    DiagnosticCategory = "warning"
	CategorySuggestion DiagnosticCategory = "suggestion"
	CategoryMessage    DiagnosticCategory = "message"
)

// Diagnostic is a single finding reported by the worker.
// Line and Character are 1-based; zero means the diagnostic has no location.
type Diagnostic struct {
	FileName  string             `json:"fileName,omitempty"`
	Line      int                `json:"line,omitempty"`
	Character int                `json:"character,omitempty"`
	Code      int                `json:"code,omitempty"`
	Category  DiagnosticCategory `json:"category"`
	Message   string             `json:"message"`
}

// FileDescriptor describes a file tracked by the worker.
type FileDescriptor struct {
	FileName string `json:"fileName"`
	Version  int    `json:"version"`
}
