package launch

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/wagiedev/forkcheck-go/internal/config"
	"github.com/wagiedev/forkcheck-go/internal/wire"
)

const (
	// DefaultDebugPort is the base port for --debug without an explicit port.
	DefaultDebugPort = 5858
	// DefaultInspectPort is the base port for --inspect without an explicit port.
	DefaultInspectPort = 9229

	maxPort = 65535
)

var debugFlagPattern = regexp.MustCompile(`^--(debug|inspect)(=(\d+))?$`)

// DebugArgs returns the debugger flag to forward to the worker.
//
// Only the first --debug[=port] or --inspect[=port] in parentArgs is honoured.
// The worker gets the same flag name on port+1. Returns nil if no flag matches,
// or if the matched flag's port+1 is not a valid TCP port.
func DebugArgs(parentArgs []string) []string {
	for _, arg := range parentArgs {
		match := debugFlagPattern.FindStringSubmatch(arg)
		if match == nil {
			continue
		}

		name := match[1]

		port := DefaultInspectPort
		if name == "debug" {
			port = DefaultDebugPort
		}

		if match[3] != "" {
			parsed, err := strconv.Atoi(match[3])
			if err != nil || parsed >= maxPort {
				return nil
			}

			port = parsed
		}

		return []string{fmt.Sprintf("--%s=%d", name, port+1)}
	}

	return nil
}

// BuildArgs constructs the worker command arguments.
func BuildArgs(options *config.Options) ([]string, error) {
	framing, err := wire.ParseFraming(options.Framing)
	if err != nil {
		return nil, err
	}

	parentArgs := options.ParentArgs
	if parentArgs == nil && len(os.Args) > 1 {
		parentArgs = os.Args[1:]
	}

	args := DebugArgs(parentArgs)
	args = append(args, "--framing="+string(framing))

	if options.MaxFrameSize > 0 {
		args = append(args, "--max-frame-size="+strconv.Itoa(options.MaxFrameSize))
	}

	args = append(args, options.WorkerArgs...)

	return args, nil
}

// BuildEnvironment constructs the environment variables for the worker process.
func BuildEnvironment(options *config.Options) []string {
	// Start with current environment
	env := os.Environ()

	env = append(env, "FORKCHECK_WORKER=1")

	// Add or override with user-provided environment variables
	for key, value := range options.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	return env
}
