//go:build unix

package launcher

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func controllerPID() int { return os.Getpid() }

// setProcessGroup puts the worker in its own process group so the agency
// can signal the whole group on force-stop or timeout without touching a
// sibling process the OS might later reuse the worker's PID for.
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// KillProcessGroup sends sig to the process group led by pid.
func KillProcessGroup(pid int, sig syscall.Signal) error {
	return unix.Kill(-pid, sig)
}
