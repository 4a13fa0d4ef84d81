package main

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v2"

	forkcheck "github.com/wagiedev/forkcheck-go"
)

func runMCP(c *cli.Context) error {
	return withChecker(c, func(ctx context.Context, checker forkcheck.Checker) error {
		return forkcheck.NewMCPServer(checker).Serve(ctx, &mcp.StdioTransport{})
	})
}
