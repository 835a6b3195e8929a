package supervisor

import (
	"os"
	"runtime"
	"strings"

	"github.com/minied/minied/internal/terminal/transport"
)

const (
	pipeTermType = "vt100"
	ptyTermType  = "xterm-256color"
)

// buildEnv creates the environment for the shell process from a snapshot.
// PATH is always forwarded. The pipe transport has no line discipline, so
// TERM is forced to a dumb type there; under a PTY an inherited TERM wins
// unless termType is given.
func buildEnv(base []string, dir string, kind transport.Kind, termType string) []string {
	if base == nil {
		base = os.Environ()
	}
	env := append([]string(nil), base...)

	if _, ok := lookupEnv(env, "PATH"); !ok {
		if path, ok := os.LookupEnv("PATH"); ok {
			env = append(env, "PATH="+path)
		}
	}

	env = setEnv(env, "PWD", dir)

	switch {
	case termType != "":
		env = setEnv(env, "TERM", termType)
	case kind == transport.KindPipe:
		env = setEnv(env, "TERM", pipeTermType)
	default:
		if _, ok := lookupEnv(env, "TERM"); !ok {
			env = setEnv(env, "TERM", ptyTermType)
		}
	}
	return env
}

func envKeyEqual(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func lookupEnv(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(env[i], "=")
		if ok && envKeyEqual(k, key) {
			return v, true
		}
	}
	return "", false
}

// setEnv replaces every existing entry for key with a single key=value.
func setEnv(env []string, key, value string) []string {
	out := env[:0]
	for _, kv := range env {
		k, _, ok := strings.Cut(kv, "=")
		if ok && envKeyEqual(k, key) {
			continue
		}
		out = append(out, kv)
	}
	return append(out, key+"="+value)
}
