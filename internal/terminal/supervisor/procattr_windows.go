//go:build windows

package supervisor

import (
	"os/exec"
	"strconv"
	"syscall"

	"github.com/minied/minied/internal/terminal/transport"
)

// setProcGroup configures the command to run in its own process group.
// ConPTY creates the process itself, so this only matters for pipes.
func setProcGroup(cmd *exec.Cmd, kind transport.Kind) {
	if kind == transport.KindPipe {
		cmd.SysProcAttr = &syscall.SysProcAttr{
			CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
		}
	}
}

// killProcessGroup kills the process tree with taskkill /F /T.
func killProcessGroup(pid int) error {
	return exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}
