//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"

	"github.com/minied/minied/internal/terminal/transport"
)

// setProcGroup puts a pipe-attached child in its own process group so the
// whole job can be killed. PTY children become session leaders in the
// transport instead.
func setProcGroup(cmd *exec.Cmd, kind transport.Kind) {
	if kind == transport.KindPipe {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
}

// killProcessGroup kills the entire process group for the given PID.
func killProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
