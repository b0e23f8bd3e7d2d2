//go:build !unix

package launcher

import (
	"os"
	"os/exec"
	"syscall"
)

func controllerPID() int { return os.Getpid() }

// setProcessGroup is a no-op on platforms without POSIX process groups;
// force-stop there falls back to killing the single worker process.
func setProcessGroup(cmd *exec.Cmd) {}

func KillProcessGroup(pid int, sig syscall.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
