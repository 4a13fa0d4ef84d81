// Package forkcheck runs a type checker in a separate worker process and
// correlates the calls sent to it with the responses it sends back.
//
// A Checker owns one worker. Start spawns it, forwards the coordinator's
// --debug or --inspect flag on the next port, and sends the Init handshake
// before any other request. Every operation returns a Future at once; the
// worker may answer in any order.
//
// # Basic Usage
//
//	checker := forkcheck.NewChecker()
//	defer checker.Close()
//
//	err := checker.Start(ctx,
//	    forkcheck.WithLogger(slog.Default()),
//	    forkcheck.WithLoaderConfig(forkcheck.LoaderConfig{Instance: "default"}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	checker.UpdateFile("src/index.ts", source)
//
//	diagnostics, err := checker.Diagnostics().Wait(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Worker Exit
//
// A worker that exits with a nonzero code is fatal. The checker never exits
// the process itself; it publishes the exit on Fatal and the application is
// expected to terminate with the same code:
//
//	go func() {
//	    if fatal, ok := <-checker.Fatal(); ok {
//	        os.Exit(fatal.ExitCode)
//	    }
//	}()
//
// Calls pending at that point are rejected with ErrWorkerExited. Kill ends
// the worker deliberately: pending calls are rejected with
// ErrWorkerTerminated, later calls with ErrClientKilled, and no fatal exit is
// published.
//
// # Error Handling
//
// Failures are reported with typed errors:
//
//	_, err := checker.EmitFile("a.ts", text).Wait(ctx)
//	if callErr, ok := errors.AsType[*forkcheck.CallError](err); ok {
//	    log.Printf("worker rejected %s: %s", callErr.Tag, callErr.Message())
//	}
//
// # Requirements
//
// The forkcheck-worker binary must be on PATH, named by FORKCHECK_WORKER_PATH,
// or given with WithWorkerPath.
package forkcheck
