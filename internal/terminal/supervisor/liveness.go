package supervisor

import (
	"errors"
	"fmt"
)

// State is the tri-state liveness of a child process.
type State int

const (
	StateRunning State = iota
	StateExited
	StateError
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Liveness is the result of a non-blocking liveness check.
// ExitCode is meaningful only when CodeKnown is set.
type Liveness struct {
	State     State
	ExitCode  int
	CodeKnown bool
	Err       error
}

// Alive reports whether the child is still running.
func (l Liveness) Alive() bool { return l.State == StateRunning }

// ErrSpawn matches every SpawnError via errors.Is.
var ErrSpawn = errors.New("spawn failed")

// SpawnError reports that the shell could not be located or launched.
type SpawnError struct {
	Shell string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Shell, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Is reports ErrSpawn as a match.
func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }
