package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/wagiedev/forkcheck-go/internal/protocol"
)

const (
	// MarkerPrefix starts a line comment that MemoryHandler reports as an
	// error diagnostic. The rest of the comment is the message.
	MarkerPrefix = "// @ts-error"

	// MarkerCode is the diagnostic code of a marker diagnostic.
	MarkerCode = 90001

	// EmptyFileCode is the diagnostic code of the empty-file warning.
	EmptyFileCode = 90002
)

// memoryFile is a tracked file and its version.
type memoryFile struct {
	text    string
	version int
}

// MemoryHandler is a Handler that keeps files in memory. It does not type
// check; diagnostics come from marker comments and empty files.
type MemoryHandler struct {
	mu      sync.RWMutex
	config  *protocol.InitRequest
	ignored map[int]bool
	files   map[string]*memoryFile
}

// Compile-time verification that MemoryHandler implements Handler.
var _ Handler = (*MemoryHandler)(nil)

// NewMemoryHandler creates an empty handler.
func NewMemoryHandler() *MemoryHandler {
	return &MemoryHandler{
		ignored: make(map[int]bool),
		files:   make(map[string]*memoryFile),
	}
}

// Init records the configuration and seeds the configured files as empty.
func (h *MemoryHandler) Init(_ context.Context, req *protocol.InitRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.config = req

	for _, code := range req.LoaderConfig.IgnoreDiagnostics {
		h.ignored[code] = true
	}

	for _, name := range req.CompilerConfig.Files {
		if _, ok := h.files[name]; !ok {
			h.files[name] = &memoryFile{}
		}
	}

	return nil
}

// EmitFile stores the text and echoes it as output. Declaration files are
// tracked but skipped.
func (h *MemoryHandler) EmitFile(_ context.Context, req *protocol.EmitFileRequest) (protocol.EmitResult, error) {
	if req.FileName == "" {
		return protocol.EmitResult{}, fmt.Errorf("emit: empty file name")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.put(req.FileName, req.Text)

	diagnostics := h.diagnose(req.FileName, req.Text)

	if strings.HasSuffix(req.FileName, ".d.ts") {
		return protocol.EmitResult{EmitSkipped: true, Diagnostics: diagnostics}, nil
	}

	result := protocol.EmitResult{
		Output:      req.Text,
		Diagnostics: diagnostics,
	}

	if h.compilerOption("sourceMap") {
		sourceMap, err := json.Marshal(map[string]any{
			"version":  3,
			"file":     outputName(req.FileName),
			"sources":  []string{path.Base(req.FileName)},
			"mappings": "",
		})
		if err != nil {
			return protocol.EmitResult{}, fmt.Errorf("emit source map: %w", err)
		}

		result.SourceMap = string(sourceMap)
	}

	return result, nil
}

// UpdateFile stores the text and bumps the file version.
func (h *MemoryHandler) UpdateFile(_ context.Context, req *protocol.UpdateFileRequest) error {
	if req.FileName == "" {
		return fmt.Errorf("update: empty file name")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.put(req.FileName, req.Text)

	return nil
}

// RemoveFile forgets a file. Removing an untracked file is an error.
func (h *MemoryHandler) RemoveFile(_ context.Context, req *protocol.RemoveFileRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.files[req.FileName]; !ok {
		return fmt.Errorf("remove: file %q is not tracked", req.FileName)
	}

	delete(h.files, req.FileName)

	return nil
}

// Diagnostics reports every file's diagnostics, ordered by file name.
func (h *MemoryHandler) Diagnostics(context.Context) ([]protocol.Diagnostic, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	diagnostics := make([]protocol.Diagnostic, 0)

	for _, name := range h.sortedNames() {
		diagnostics = append(diagnostics, h.diagnose(name, h.files[name].text)...)
	}

	return diagnostics, nil
}

// Files lists the tracked files ordered by name.
func (h *MemoryHandler) Files(context.Context) ([]protocol.FileDescriptor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	files := make([]protocol.FileDescriptor, 0, len(h.files))

	for _, name := range h.sortedNames() {
		files = append(files, protocol.FileDescriptor{FileName: name, Version: h.files[name].version})
	}

	return files, nil
}

// put stores text under name. Caller must hold h.mu for writing.
func (h *MemoryHandler) put(name, text string) {
	f, ok := h.files[name]
	if !ok {
		f = &memoryFile{}
		h.files[name] = f
	}

	f.text = text
	f.version++
}

func (h *MemoryHandler) sortedNames() []string {
	names := make([]string, 0, len(h.files))
	for name := range h.files {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// diagnose scans text for markers. Caller must hold h.mu.
func (h *MemoryHandler) diagnose(name, text string) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic

	if strings.TrimSpace(text) == "" && !h.ignored[EmptyFileCode] {
		diagnostics = append(diagnostics, protocol.Diagnostic{
			FileName: name,
			Code:     EmptyFileCode,
			Category: protocol.CategoryWarning,
			Message:  "file is empty",
		})
	}

	if h.ignored[MarkerCode] {
		return diagnostics
	}

	for i, line := range strings.Split(text, "\n") {
		col := strings.Index(line, MarkerPrefix)
		if col < 0 {
			continue
		}

		message := strings.TrimSpace(line[col+len(MarkerPrefix):])
		if message == "" {
			message = "error"
		}

		diagnostics = append(diagnostics, protocol.Diagnostic{
			FileName:  name,
			Line:      i + 1,
			Character: col + 1,
			Code:      MarkerCode,
			Category:  protocol.CategoryError,
			Message:   message,
		})
	}

	return diagnostics
}

// compilerOption reports whether a boolean compiler option is set.
// Caller must hold h.mu.
func (h *MemoryHandler) compilerOption(name string) bool {
	if h.config == nil {
		return false
	}

	enabled, _ := h.config.CompilerConfig.CompilerOptions[name].(bool)

	return enabled
}

// outputName maps a source file name to its emitted name.
func outputName(name string) string {
	for _, ext := range []string{".tsx", ".ts", ".mts", ".cts"} {
		if base, ok := strings.CutSuffix(name, ext); ok {
			return path.Base(base) + ".js"
		}
	}

	return path.Base(name)
}
