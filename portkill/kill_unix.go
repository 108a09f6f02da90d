//go:build !windows

package portkill

import "golang.org/x/sys/unix"

func killProcess(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}
