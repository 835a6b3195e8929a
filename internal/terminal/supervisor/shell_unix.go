//go:build !windows

package supervisor

import "os"

// defaultShell returns the interactive shell for Unix-like systems.
// bash is preferred; -i makes it print its own prompt even though its
// stdin may be a pipe.
func defaultShell(args []string) (string, []string) {
	if args == nil {
		args = []string{"-i"}
	}
	if _, err := os.Stat("/bin/bash"); err == nil {
		return "/bin/bash", args
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell, args
	}
	return "/bin/sh", args
}

func defaultShellArgs(shell string) []string {
	return []string{"-i"}
}
