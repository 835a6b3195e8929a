//go:build windows

package supervisor

import (
	"os/exec"
	"strings"
)

// defaultShell returns the native command shell. PowerShell is preferred.
func defaultShell(args []string) (string, []string) {
	for _, sh := range []string{"pwsh.exe", "powershell.exe"} {
		if _, err := exec.LookPath(sh); err == nil {
			if args == nil {
				args = []string{"-NoLogo"}
			}
			return sh, args
		}
	}
	return "cmd.exe", args
}

func defaultShellArgs(shell string) []string {
	lower := strings.ToLower(shell)
	if strings.Contains(lower, "pwsh") || strings.Contains(lower, "powershell") {
		return []string{"-NoLogo"}
	}
	return nil
}
