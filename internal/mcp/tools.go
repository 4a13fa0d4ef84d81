package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/forkcheck-go/internal/protocol"
	"github.com/wagiedev/forkcheck-go/internal/rpc"
)

// Checker is the subset of the checker facade the tools drive.
type Checker interface {
	EmitFile(fileName, text string) *rpc.Future[protocol.EmitResult]
	UpdateFile(fileName, text string) *rpc.Future[protocol.Ack]
	RemoveFile(fileName string) *rpc.Future[protocol.Ack]
	Diagnostics() *rpc.Future[[]protocol.Diagnostic]
	Files() *rpc.Future[[]protocol.FileDescriptor]
}

// Tool names registered by RegisterCheckerTools.
const (
	ToolEmitFile    = "emit_file"
	ToolUpdateFile  = "update_file"
	ToolRemoveFile  = "remove_file"
	ToolDiagnostics = "diagnostics"
	ToolFiles       = "files"
)

// RegisterCheckerTools adds one tool per checker operation to s.
func RegisterCheckerTools(s *Server, checker Checker) {
	s.AddTool(
		NewTool(ToolEmitFile, "Emit a file through the checker worker",
			SimpleSchema(map[string]string{"fileName": "string", "text": "string"})),
		func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var in protocol.EmitFileRequest
			if err := decodeArguments(req, &in); err != nil {
				return ErrorResult(err.Error()), nil
			}

			return await(ctx, checker.EmitFile(in.FileName, in.Text))
		},
	)

	s.AddTool(
		NewTool(ToolUpdateFile, "Replace the text the worker holds for a file",
			SimpleSchema(map[string]string{"fileName": "string", "text": "string"})),
		func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var in protocol.UpdateFileRequest
			if err := decodeArguments(req, &in); err != nil {
				return ErrorResult(err.Error()), nil
			}

			return await(ctx, checker.UpdateFile(in.FileName, in.Text))
		},
	)

	s.AddTool(
		NewTool(ToolRemoveFile, "Stop the worker tracking a file",
			SimpleSchema(map[string]string{"fileName": "string"})),
		func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var in protocol.RemoveFileRequest
			if err := decodeArguments(req, &in); err != nil {
				return ErrorResult(err.Error()), nil
			}

			return await(ctx, checker.RemoveFile(in.FileName))
		},
	)

	s.AddTool(
		NewTool(ToolDiagnostics, "List the worker's current diagnostics", SimpleSchema(nil)),
		func(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return await(ctx, checker.Diagnostics())
		},
	)

	s.AddTool(
		NewTool(ToolFiles, "List the files the worker tracks", SimpleSchema(nil)),
		func(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return await(ctx, checker.Files())
		},
	)
}

func decodeArguments(req *mcp.CallToolRequest, v any) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}

	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	return nil
}

// await waits for f and renders its value as JSON text.
// Call failures are tool errors, not protocol errors.
func await[T any](ctx context.Context, f *rpc.Future[T]) (*mcp.CallToolResult, error) {
	value, err := f.Wait(ctx)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return ErrorResult("Failed to marshal result: " + err.Error()), nil
	}

	return TextResult(string(data)), nil
}
