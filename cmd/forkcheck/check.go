package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	forkcheck "github.com/wagiedev/forkcheck-go"
)

func runCheck(c *cli.Context) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		return cli.Exit("forkcheck: check needs at least one file", 2)
	}

	return withChecker(c, func(ctx context.Context, checker forkcheck.Checker) error {
		diagnostics, err := check(ctx, checker, files)
		if err != nil {
			return err
		}

		printDiagnostics(c.App.Writer, diagnostics)

		if len(diagnostics) > 0 {
			return cli.Exit(fmt.Sprintf("forkcheck: %d diagnostic(s)", len(diagnostics)), 1)
		}

		return nil
	})
}

// check sends every file to the worker, then asks for diagnostics.
// Updates are issued back to back and awaited together.
func check(ctx context.Context, checker forkcheck.Checker, files []string) ([]forkcheck.Diagnostic, error) {
	updates := make([]*forkcheck.Future[forkcheck.Ack], 0, len(files))

	for _, name := range files {
		text, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		updates = append(updates, checker.UpdateFile(name, string(text)))
	}

	for i, update := range updates {
		if _, err := update.Wait(ctx); err != nil {
			return nil, fmt.Errorf("update %s: %w", files[i], err)
		}
	}

	diagnostics, err := checker.Diagnostics().Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: %w", err)
	}

	return diagnostics, nil
}

func printDiagnostics(w io.Writer, diagnostics []forkcheck.Diagnostic) {
	for _, d := range diagnostics {
		location := d.FileName
		if d.Line > 0 {
			location = fmt.Sprintf("%s:%d:%d", d.FileName, d.Line, d.Character)
		}

		fmt.Fprintf(w, "%s - %s FC%d: %s\n", location, d.Category, d.Code, d.Message)
	}
}
