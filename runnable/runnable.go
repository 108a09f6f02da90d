package runnable

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/magdyamr542/gindev/config"
)

// ErrNotStarted is returned when signalling a Runnable that was never started.
var ErrNotStarted = errors.New("process not started")

// Runnable is something that can run on the machine like a command.
type Runnable interface {
	// Run runs the executable. This starts and waits.
	Run() error
	// Start starts running the executable but doesn't wait for it.
	Start() error
	// Wait blocks till the executable is done.
	Wait() error
	// Terminate asks the executable and its children to exit.
	Terminate() error
	// Kill stops the executable and its children unconditionally.
	Kill() error
	// Pid is the process id, or 0 before Start.
	Pid() int
}

// Creator is a function that returns a Runnable.
type Creator func(ctx context.Context, command config.CommandWithDir) Runnable

type osCmd struct {
	cmd *exec.Cmd
	err error
}

// NewCmd builds a Runnable that inherits the standard streams and runs in its
// own process group, so signals reach the whole tree (e.g. the binary behind
// `go run`). Cancelling ctx kills the group.
func NewCmd(ctx context.Context, command config.CommandWithDir) Runnable {
	parts := command.Args()
	if len(parts) == 0 {
		return &osCmd{err: fmt.Errorf("empty command")}
	}
	return &osCmd{cmd: newCmd(ctx, parts, command)}
}

func (o *osCmd) Run() error {
	if o.err != nil {
		return o.err
	}
	return o.cmd.Run()
}

func (o *osCmd) Start() error {
	if o.err != nil {
		return o.err
	}
	return o.cmd.Start()
}

func (o *osCmd) Wait() error {
	if o.err != nil {
		return o.err
	}
	return o.cmd.Wait()
}

func (o *osCmd) Terminate() error {
	if o.cmd == nil || o.cmd.Process == nil {
		return ErrNotStarted
	}
	return terminate(o.cmd.Process)
}

func (o *osCmd) Kill() error {
	if o.cmd == nil || o.cmd.Process == nil {
		return ErrNotStarted
	}
	return kill(o.cmd.Process)
}

func (o *osCmd) Pid() int {
	if o.cmd == nil || o.cmd.Process == nil {
		return 0
	}
	return o.cmd.Process.Pid
}

func newCmd(ctx context.Context, parts []string, command config.CommandWithDir) *exec.Cmd {
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = command.BaseDir
	cmd.Stdin = os.Stdin
	cmd.Stderr = os.Stderr
	cmd.Stdout = os.Stdout
	cmd.SysProcAttr = sysProcAttr()
	cmd.Cancel = func() error {
		return kill(cmd.Process)
	}
	cmd.Env = os.Environ()
	for k, v := range command.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	return cmd
}
