//go:build windows

package runnable

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

// terminate sends CTRL_BREAK to the child's process group, which Go programs
// receive as os.Interrupt. taskkill without /F is refused for console
// processes, so it cannot serve as the graceful step.
func terminate(p *os.Process) error {
	return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(p.Pid))
}

func kill(p *os.Process) error {
	if err := exec.Command("taskkill", "/PID", strconv.Itoa(p.Pid), "/T", "/F").Run(); err == nil {
		return nil
	}
	return p.Kill()
}
