// Package launch provides worker discovery, protocol compatibility checks, and
// argument building for the forkcheck worker binary.
//
// # Worker Discovery
//
// The Discoverer interface locates and validates the worker binary:
//
//	discoverer := launch.NewDiscoverer(&launch.Config{
//	    WorkerPath: "",           // Optional explicit path
//	    Logger:     slog.Default(),
//	})
//	workerPath, err := discoverer.Discover(ctx)
//
// Discovery searches in the following order:
//  1. Explicit path in Config.WorkerPath (if provided)
//  2. The FORKCHECK_WORKER_PATH environment variable
//  3. The directory holding the running executable
//  4. System PATH
//  5. Common installation directories (/usr/local/bin, /usr/bin, ~/go/bin)
//
// The found binary is run with --version. A worker whose version does not
// share the coordinator's protocol major (and minor, below 1.0) is rejected
// with *errors.IncompatibleWorkerError.
//
// # Debugger Port Forwarding
//
// When the coordinator itself runs with --debug or --inspect, the worker is
// launched with the same flag on the next port, so both processes can be
// debugged side by side:
//
//	launch.DebugArgs([]string{"--inspect"})      // ["--inspect=9230"]
//	launch.DebugArgs([]string{"--debug=6000"})   // ["--debug=6001"]
package launch
