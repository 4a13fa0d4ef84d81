// Command forkcheck drives a checker worker from the command line.
//
//	forkcheck check src/app.ts src/util.ts
//	forkcheck --in-process mcp
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	forkcheck "github.com/wagiedev/forkcheck-go"
)

func main() {
	// cli.Exit errors carry the process exit code; HandleExitCoder applies it.
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "forkcheck:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "forkcheck",
		Usage:   "run a checker worker and report its diagnostics",
		Version: forkcheck.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker",
				Usage:   "Path to the worker binary. Searched on PATH when empty.",
				EnvVars: []string{"FORKCHECK_WORKER_PATH"},
			},
			&cli.StringFlag{
				Name:  "framing",
				Usage: "Wire framing. One of [ndjson,length-prefixed].",
				Value: string(forkcheck.FramingNDJSON),
			},
			&cli.BoolFlag{
				Name:  "in-process",
				Usage: "Serve requests with the built-in in-memory worker instead of spawning one.",
			},
			&cli.BoolFlag{
				Name:  "skip-version-check",
				Usage: "Skip the worker protocol version check.",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log protocol traffic to stderr.",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "send files to the worker and print its diagnostics",
				ArgsUsage: "<files...>",
				Action:    runCheck,
			},
			{
				Name:   "mcp",
				Usage:  "expose the checker as an MCP server on stdio",
				Action: runMCP,
			},
		},
	}
}
