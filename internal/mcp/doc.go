// Package mcp exposes a checker as a Model Context Protocol server.
//
// Server keeps a registry of tools that can be invoked directly with CallTool
// or served to an MCP client over any mcp.Transport. RegisterCheckerTools
// adds one tool per checker operation; each tool waits for the operation's
// future and returns the result as JSON text.
package mcp
