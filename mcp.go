package forkcheck

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	internalmcp "github.com/wagiedev/forkcheck-go/internal/mcp"
)

// MCPServer exposes a checker's operations as Model Context Protocol tools.
//
// Tools can be called in-process with CallTool or served to an MCP client
// with Serve. Additional tools may be registered with AddTool.
type MCPServer = internalmcp.Server

// MCP tool names.
const (
	MCPToolEmitFile    = internalmcp.ToolEmitFile
	MCPToolUpdateFile  = internalmcp.ToolUpdateFile
	MCPToolRemoveFile  = internalmcp.ToolRemoveFile
	MCPToolDiagnostics = internalmcp.ToolDiagnostics
	MCPToolFiles       = internalmcp.ToolFiles
)

// Re-export MCP types used when adding custom tools.
type (
	CallToolRequest = mcp.CallToolRequest
	CallToolResult  = mcp.CallToolResult
	ToolHandler     = mcp.ToolHandler
)

// NewMCPServer creates an MCP server named "forkcheck" with one tool per
// checker operation. The checker must be started before tools are called.
//
// Example:
//
//	server := forkcheck.NewMCPServer(checker)
//	err := server.Serve(ctx, &mcp.StdioTransport{})
func NewMCPServer(checker Checker) *MCPServer {
	server := internalmcp.NewServer("forkcheck", Version)
	internalmcp.RegisterCheckerTools(server, checker)

	return server
}

// Helpers for building custom tool results and schemas.
var (
	TextResult     = internalmcp.TextResult
	ErrorResult    = internalmcp.ErrorResult
	SimpleSchema   = internalmcp.SimpleSchema
	NewMCPTool     = internalmcp.NewTool
	ParseArguments = internalmcp.ParseArguments
)
