// Command forkcheck-worker is the reference checker worker. It answers the
// coordinator's requests on stdin/stdout with an in-memory file table.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/wagiedev/forkcheck-go/internal/protocol"
	"github.com/wagiedev/forkcheck-go/internal/wire"
	"github.com/wagiedev/forkcheck-go/internal/worker"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "forkcheck-worker:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "forkcheck-worker",
		Usage:   "reference worker for the forkcheck coordinator",
		Version: protocol.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "framing",
				Usage: "Wire framing. One of [ndjson,length-prefixed].",
				Value: string(wire.FramingNDJSON),
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Maximum number of requests handled at once.",
				Value: worker.DefaultConcurrency,
			},
			&cli.IntFlag{
				Name:  "max-frame-size",
				Usage: "Largest request or response body in bytes.",
				Value: wire.MaxFrameSize,
			},
			&cli.IntFlag{
				Name:  "debug",
				Usage: "Debugger port forwarded by the coordinator.",
			},
			&cli.IntFlag{
				Name:  "inspect",
				Usage: "Inspector port forwarded by the coordinator.",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Log every request to stderr.",
				EnvVars: []string{"FORKCHECK_WORKER_VERBOSE"},
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	framing, err := wire.ParseFraming(c.String("framing"))
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}

	// stdout carries frames; logs go to stderr, which the coordinator captures.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	for _, name := range []string{"debug", "inspect"} {
		if port := c.Int(name); port != 0 {
			log.Info("Debugger port requested", "flag", name, "port", port)
		}
	}

	server := worker.NewServer(log, worker.NewMemoryHandler(), worker.Config{
		Framing:      framing,
		Concurrency:  c.Int("concurrency"),
		MaxFrameSize: c.Int("max-frame-size"),
	})

	if err := server.Serve(c.Context, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}
