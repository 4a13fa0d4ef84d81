package launch

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wagiedev/forkcheck-go/internal/errors"
	"github.com/wagiedev/forkcheck-go/internal/protocol"
)

const (
	// WorkerBinary is the name of the worker executable searched on PATH.
	WorkerBinary = "forkcheck-worker"

	// VersionCheckTimeout is the timeout for the worker version check command.
	VersionCheckTimeout = 2 * time.Second

	// WorkerPathEnv overrides discovery with an explicit worker path.
	WorkerPathEnv = "FORKCHECK_WORKER_PATH"

	// SkipVersionCheckEnv disables the version check when set to any value.
	SkipVersionCheckEnv = "FORKCHECK_SKIP_VERSION_CHECK"
)

var versionPattern = regexp.MustCompile(`([0-9]+)\.([0-9]+)\.([0-9]+)`)

// Config holds configuration for worker discovery.
type Config struct {
	// WorkerPath is an explicit worker path that skips the search.
	WorkerPath string

	// SkipVersionCheck skips the protocol compatibility check.
	// Can also be controlled via the FORKCHECK_SKIP_VERSION_CHECK env var.
	SkipVersionCheck bool

	// Logger is an optional logger for discovery operations.
	// If nil, a default no-op logger is used.
	Logger *slog.Logger
}

// Discoverer locates the worker binary and checks that it speaks a
// compatible protocol.
type Discoverer interface {
	Discover(ctx context.Context) (string, error)
}

type discoverer struct {
	cfg *Config
	log *slog.Logger
}

var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new worker discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &discoverer{
		cfg: cfg,
		log: log.With("component", "discovery"),
	}
}

// Discover returns the first usable worker binary. A worker whose reported
// version is not protocol-compatible yields *errors.IncompatibleWorkerError.
// A worker that cannot report a version is accepted with a warning.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	workerPath, err := d.findWorker()
	if err != nil {
		return "", err
	}

	d.log.Debug("Found worker binary", "worker_path", workerPath)

	if err := d.checkProtocol(ctx, workerPath); err != nil {
		return "", err
	}

	return workerPath, nil
}

// findWorker tries, in order: the explicit path, the directory of the
// running executable, PATH, then a few install locations.
func (d *discoverer) findWorker() (string, error) {
	explicit := d.cfg.WorkerPath
	if explicit == "" {
		explicit = os.Getenv(WorkerPathEnv)
	}

	if explicit != "" {
		if usable(explicit) {
			return explicit, nil
		}

		return "", &errors.WorkerNotFoundError{SearchedPaths: []string{explicit}}
	}

	searched := make([]string, 0, 5)

	// forkcheck and forkcheck-worker ship side by side.
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), WorkerBinary)
		searched = append(searched, sibling)

		if usable(sibling) {
			return sibling, nil
		}
	}

	if path, err := exec.LookPath(WorkerBinary); err == nil {
		return path, nil
	}

	searched = append(searched, "$PATH")

	candidates := []string{
		filepath.Join("/usr/local/bin", WorkerBinary),
		filepath.Join("/usr/bin", WorkerBinary),
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, "go", "bin", WorkerBinary))
	}

	for _, path := range candidates {
		searched = append(searched, path)

		if usable(path) {
			return path, nil
		}
	}

	d.log.Warn("Worker not found", "searched_paths", searched)

	return "", &errors.WorkerNotFoundError{SearchedPaths: searched}
}

// usable reports whether path is a regular file with an execute bit set.
func usable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

// checkProtocol runs the worker's --version and compares the result with
// protocol.Version.
func (d *discoverer) checkProtocol(ctx context.Context, workerPath string) error {
	if d.cfg.SkipVersionCheck || os.Getenv(SkipVersionCheckEnv) != "" {
		d.log.Debug("Skipping worker protocol check")

		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, VersionCheckTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, workerPath, "--version").Output()
	if err != nil {
		d.log.Warn("Worker did not report a version", "worker_path", workerPath, "error", err)

		return nil
	}

	version, ok := parseVersion(string(output))
	if !ok {
		d.log.Warn("Could not parse worker version",
			"worker_path", workerPath,
			"output", strings.TrimSpace(string(output)),
		)

		return nil
	}

	if !compatible(version, protocol.Version) {
		return &errors.IncompatibleWorkerError{
			Path:     workerPath,
			Version:  version,
			Required: protocol.Version,
		}
	}

	d.log.Debug("Worker protocol compatible", "version", version, "protocol", protocol.Version)

	return nil
}

// parseVersion extracts the first X.Y.Z version from output.
func parseVersion(output string) (string, bool) {
	match := versionPattern.FindString(output)

	return match, match != ""
}

// compatible reports whether a worker at version have can serve a
// coordinator built against want. Majors must match; below 1.0 the minor
// must match too. Patch releases never change the wire format.
func compatible(have, want string) bool {
	h, ok := splitVersion(have)
	if !ok {
		return false
	}

	w, ok := splitVersion(want)
	if !ok {
		return false
	}

	if h[0] != w[0] {
		return false
	}

	return h[0] != 0 || h[1] == w[1]
}

func splitVersion(v string) ([3]int, bool) {
	var out [3]int

	match := versionPattern.FindStringSubmatch(v)
	if match == nil {
		return out, false
	}

	for i := range out {
		n, err := strconv.Atoi(match[i+1])
		if err != nil {
			return out, false
		}

		out[i] = n
	}

	return out, true
}
