package execer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/magdyamr542/gindev/config"
	"github.com/magdyamr542/gindev/portkill"
	"github.com/magdyamr542/gindev/runnable"
)

// DefaultShutdownTimeout is the graceful stop budget before a child is killed.
const DefaultShutdownTimeout = 2 * time.Second

const afterHookTimeout = 30 * time.Second

// Handle is a started child process. Its exit status is observable through
// Done and Err once the process has exited.
type Handle struct {
	proc runnable.Runnable
	pid  int
	done chan struct{}
	err  error
}

// Pid of the child.
func (h *Handle) Pid() int {
	return h.pid
}

// Done is closed once the child exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether the child already exited.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Err is the child's exit error. It is only meaningful after Done is closed.
func (h *Handle) Err() error {
	<-h.done
	return h.err
}

// Execer starts and stops the backend described by a run config.
type Execer struct {
	config    config.RunConfig
	port      int
	reclaimer portkill.Reclaimer
	create    runnable.Creator
	logger    hclog.Logger

	// stopMu serializes Stop so a handle is never escalated twice.
	stopMu sync.Mutex
}

// Option configures an Execer.
type Option func(*Execer)

// WithPort reclaims port before every start. Ports <= 0 disable reclamation.
func WithPort(port int, r portkill.Reclaimer) Option {
	return func(e *Execer) {
		e.port = port
		e.reclaimer = r
	}
}

// WithCreator replaces the process factory.
func WithCreator(create runnable.Creator) Option {
	return func(e *Execer) { e.create = create }
}

func New(config config.RunConfig, logger hclog.Logger, opts ...Option) *Execer {
	e := &Execer{config: config, logger: logger, create: runnable.NewCmd}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start runs the before hooks, frees the tracked port and spawns the main
// command. The returned handle reports the child's exit.
func (e *Execer) Start(ctx context.Context) (*Handle, error) {
	for _, before := range e.config.Before {
		e.logger.Info("running before command", "command", before.Command)
		if err := e.create(ctx, before).Run(); err != nil {
			return nil, fmt.Errorf("running command %q: %w", before.Command, err)
		}
	}

	// Must happen before spawning: once the new child binds, the holder is the child itself.
	if e.port > 0 && e.reclaimer != nil {
		e.reclaimer.Reclaim(e.port)
	}

	e.logger.Info("start", "command", e.config.Command.Command)
	proc := e.create(ctx, e.config.Command)
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("can't start command %q: %w", e.config.Command.Command, err)
	}

	h := &Handle{proc: proc, pid: proc.Pid(), done: make(chan struct{})}
	go func() {
		h.err = proc.Wait()
		if h.err != nil {
			e.logger.Debug("child exited", "pid", h.pid, "error", h.err)
		} else {
			e.logger.Debug("child exited", "pid", h.pid)
		}
		close(h.done)
	}()

	return h, nil
}

// Stop asks the child to terminate and waits up to timeout for it to exit,
// then kills it. A child that cannot be asked is killed right away. A nil or
// already exited handle returns at once.
func (e *Execer) Stop(h *Handle, timeout time.Duration) {
	if h == nil || h.Exited() {
		return
	}

	e.stopMu.Lock()
	defer e.stopMu.Unlock()

	if h.Exited() {
		return
	}

	if err := h.proc.Terminate(); err != nil {
		e.logger.Warn("terminate failed, killing", "pid", h.pid, "error", err)
		e.kill(h, timeout)
		e.runAfter()
		return
	}

	timer := time.NewTimer(timeout)
	select {
	case <-h.done:
		timer.Stop()
	case <-timer.C:
		e.logger.Warn("child did not exit in time, killing", "pid", h.pid, "timeout", timeout)
		if err := h.proc.Kill(); err != nil {
			e.logger.Debug("kill failed", "pid", h.pid, "error", err)
		}
	}

	e.runAfter()
}

// kill forces the child down and waits at most timeout for it to be reaped.
func (e *Execer) kill(h *Handle, timeout time.Duration) {
	if h.Exited() {
		return
	}
	if err := h.proc.Kill(); err != nil {
		e.logger.Error("kill failed", "pid", h.pid, "error", err)
		return
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.done:
	case <-timer.C:
		e.logger.Warn("child not reaped after kill", "pid", h.pid)
	}
}

func (e *Execer) runAfter() {
	for _, after := range e.config.After {
		e.logger.Info("running after command", "command", after.Command)
		ctx, cancel := context.WithTimeout(context.Background(), afterHookTimeout)
		err := e.create(ctx, after).Run()
		cancel()
		if err != nil {
			e.logger.Error("after command failed", "command", after.Command, "error", err)
		}
	}
}
