// Package portkill frees a TCP port by terminating whatever process holds it.
//
// Reclaiming is best effort: a missing lookup tool, an empty port or a pid
// that already exited are all silently skipped.
package portkill

import (
	"context"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

const lookupTimeout = 5 * time.Second

// Reclaimer frees ports. Reclaim returns the pids it killed.
type Reclaimer interface {
	Reclaim(port int) []int
}

// CommandRunner runs an OS utility and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Option configures a Reclaimer.
type Option func(*options)

type options struct {
	platform string
	label    string
	run      CommandRunner
	kill     func(pid int) error
}

// WithPlatform overrides runtime.GOOS when picking the strategy.
func WithPlatform(goos string) Option {
	return func(o *options) { o.platform = goos }
}

// WithLabel names the port in log lines, e.g. "ginPort".
func WithLabel(label string) Option {
	return func(o *options) { o.label = label }
}

// WithRunner replaces the OS utility runner.
func WithRunner(run CommandRunner) Option {
	return func(o *options) { o.run = run }
}

// WithKiller replaces the signal used by the unix strategy.
func WithKiller(kill func(pid int) error) Option {
	return func(o *options) { o.kill = kill }
}

// New returns the strategy for the target platform.
func New(logger hclog.Logger, opts ...Option) Reclaimer {
	o := options{
		platform: runtime.GOOS,
		label:    "port",
		run:      execRunner,
		kill:     killProcess,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.platform == "windows" {
		return &windowsReclaimer{options: o, logger: logger}
	}
	return &unixReclaimer{options: o, logger: logger}
}

// KillPorts reclaims every valid port once.
func KillPorts(r Reclaimer, ports ...int) []int {
	seen := make(map[int]struct{}, len(ports))
	killed := make([]int, 0)
	for _, port := range ports {
		if port <= 0 {
			continue
		}
		if _, ok := seen[port]; ok {
			continue
		}
		seen[port] = struct{}{}
		killed = append(killed, r.Reclaim(port)...)
	}
	return killed
}

type unixReclaimer struct {
	options
	logger hclog.Logger
}

func (u *unixReclaimer) Reclaim(port int) []int {
	if port <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	// lsof exits 1 when nothing listens, which is the common case.
	out, err := u.run(ctx, "lsof", "-ti", "tcp:"+strconv.Itoa(port))
	if err != nil && len(out) == 0 {
		u.logger.Debug("no process found on port", "port", port, "error", err)
		return nil
	}

	killed := make([]int, 0)
	for _, pid := range ParseLsof(string(out)) {
		if err := u.kill(pid); err != nil {
			u.logger.Debug("kill failed", "pid", pid, "error", err)
			continue
		}
		u.logger.Info("killed process", "pid", pid, u.label, port, "platform", "unix")
		killed = append(killed, pid)
	}
	return killed
}

type windowsReclaimer struct {
	options
	logger hclog.Logger
}

func (w *windowsReclaimer) Reclaim(port int) []int {
	if port <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	out, err := w.run(ctx, "netstat", "-ano", "-p", "tcp")
	if err != nil {
		w.logger.Debug("netstat failed", "port", port, "error", err)
		return nil
	}

	killed := make([]int, 0)
	for _, pid := range ParseNetstat(string(out), port) {
		if _, err := w.run(ctx, "taskkill", "/PID", strconv.Itoa(pid), "/F"); err != nil {
			w.logger.Debug("taskkill failed", "pid", pid, "error", err)
			continue
		}
		w.logger.Info("killed process", "pid", pid, w.label, port, "platform", "win32")
		killed = append(killed, pid)
	}
	return killed
}

// ParseLsof reads the pid-per-line output of `lsof -t`.
func ParseLsof(out string) []int {
	pids := make([]int, 0)
	seen := make(map[int]struct{})
	for _, line := range strings.Split(out, "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || pid <= 0 {
			continue
		}
		if _, ok := seen[pid]; ok {
			continue
		}
		seen[pid] = struct{}{}
		pids = append(pids, pid)
	}
	return pids
}

var localPortPattern = regexp.MustCompile(`:(\d+)$`)

// ParseNetstat returns the owning pids of TCP rows whose local port is port.
//
//	Proto  Local Address          Foreign Address        State           PID
//	TCP    0.0.0.0:8080           0.0.0.0:0              LISTENING       4321
func ParseNetstat(out string, port int) []int {
	pids := make([]int, 0)
	seen := make(map[int]struct{})
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "TCP") {
			continue
		}
		parts := strings.Fields(trimmed)
		if len(parts) < 5 {
			continue
		}
		match := localPortPattern.FindStringSubmatch(parts[1])
		if match == nil {
			continue
		}
		localPort, err := strconv.Atoi(match[1])
		if err != nil || localPort != port {
			continue
		}
		pid, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil || pid <= 0 {
			continue
		}
		if _, ok := seen[pid]; ok {
			continue
		}
		seen[pid] = struct{}{}
		pids = append(pids, pid)
	}
	return pids
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
