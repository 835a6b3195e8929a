// Package supervisor spawns the interactive shell behind the terminal pane
// and owns its lifetime.
//
// A Handle is the only owner of the child process. The relay loop receives
// nothing but the TryWait capability so it can stop when the child is gone.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/minied/minied/internal/common/logger"
	"github.com/minied/minied/internal/terminal/transport"
	"go.uber.org/zap"
)

// Options describe the child to spawn.
type Options struct {
	// Shell overrides the platform shell. Resolved through PATH.
	Shell string
	// Args replace the default interactive flags when non-nil.
	Args []string
	// Dir is the directory the GUI currently displays. Required.
	Dir string
	// Env is the environment snapshot; nil means os.Environ().
	Env []string
	// TermType is the TERM value handed to the child. The pipe transport
	// always sets TERM (vt100 when empty); the PTY transport only
	// overrides an inherited TERM when this is set.
	TermType string
}

// Handle is the supervisor's view of one running child.
type Handle struct {
	logger *logger.Logger

	pid       int
	shell     string
	args      []string
	dir       string
	env       []string
	startedAt time.Time

	proc *os.Process
	done chan struct{}

	mu         sync.Mutex
	result     Liveness
	killedByUs bool
}

// Spawn launches the shell with t attached to its standard streams.
// Errors are *SpawnError, except a *transport.CreationError for backends
// that allocate their OS primitive at start.
func Spawn(t transport.Transport, opts Options, log *logger.Logger) (*Handle, error) {
	shellName, args := opts.Shell, opts.Args
	if shellName == "" {
		shellName, args = defaultShell(args)
	} else if args == nil {
		args = defaultShellArgs(shellName)
	}

	if opts.Dir == "" {
		return nil, &SpawnError{Shell: shellName, Err: errors.New("working directory is required")}
	}
	st, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, &SpawnError{Shell: shellName, Err: fmt.Errorf("working directory: %w", err)}
	}
	if !st.IsDir() {
		return nil, &SpawnError{Shell: shellName, Err: fmt.Errorf("working directory %s is not a directory", opts.Dir)}
	}

	path, err := exec.LookPath(shellName)
	if err != nil {
		return nil, &SpawnError{Shell: shellName, Err: err}
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = opts.Dir
	cmd.Env = buildEnv(opts.Env, opts.Dir, t.Kind(), opts.TermType)
	setProcGroup(cmd, t.Kind())

	if err := t.Start(cmd); err != nil {
		if errors.Is(err, transport.ErrCreation) {
			return nil, err
		}
		return nil, &SpawnError{Shell: path, Err: err}
	}

	h := &Handle{
		logger:    log.WithFields(zap.String("component", "supervisor")),
		pid:       cmd.Process.Pid,
		shell:     path,
		args:      append([]string(nil), args...),
		dir:       opts.Dir,
		env:       append([]string(nil), cmd.Env...),
		startedAt: time.Now(),
		proc:      cmd.Process,
		done:      make(chan struct{}),
		result:    Liveness{State: StateRunning},
	}

	h.logger.Info("shell started",
		zap.String("shell", h.shell),
		zap.Strings("args", h.args),
		zap.String("cwd", h.dir),
		zap.String("transport", string(t.Kind())),
		zap.Int("pid", h.pid))

	go h.wait()
	return h, nil
}

func (h *Handle) wait() {
	state, err := h.proc.Wait()

	h.mu.Lock()
	switch {
	case err != nil:
		h.result = Liveness{State: StateError, Err: err}
	case state.ExitCode() >= 0:
		h.result = Liveness{State: StateExited, ExitCode: state.ExitCode(), CodeKnown: true}
	default:
		// Terminated by a signal: no exit status.
		h.result = Liveness{State: StateExited, ExitCode: -1}
	}
	result := h.result
	killed := h.killedByUs
	h.mu.Unlock()
	close(h.done)

	h.logger.Info("shell exited",
		zap.Int("pid", h.pid),
		zap.String("state", result.State.String()),
		zap.Int("exit_code", result.ExitCode),
		zap.Bool("killed", killed),
		zap.Error(result.Err))
}

// TryWait reports liveness without blocking.
func (h *Handle) TryWait() Liveness {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result
	default:
		return Liveness{State: StateRunning}
	}
}

// Wait blocks until the child exits or ctx is done.
func (h *Handle) Wait(ctx context.Context) (Liveness, error) {
	select {
	case <-h.done:
		return h.TryWait(), nil
	case <-ctx.Done():
		return Liveness{State: StateRunning}, ctx.Err()
	}
}

// Done is closed once the child has been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Kill terminates the child and everything in its process group.
// Killing an exited child is a no-op.
func (h *Handle) Kill() error {
	select {
	case <-h.done:
		return nil
	default:
	}

	h.mu.Lock()
	h.killedByUs = true
	h.mu.Unlock()

	if err := killProcessGroup(h.pid); err != nil {
		h.logger.Debug("process group kill failed, killing process",
			zap.Int("pid", h.pid),
			zap.Error(err))
		if err := h.proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill shell %d: %w", h.pid, err)
		}
	}
	return nil
}

// Pid returns the child's process ID.
func (h *Handle) Pid() int { return h.pid }

// Shell returns the resolved shell path.
func (h *Handle) Shell() string { return h.shell }

// Args returns the shell arguments.
func (h *Handle) Args() []string { return append([]string(nil), h.args...) }

// Dir returns the working directory the child was started in.
func (h *Handle) Dir() string { return h.dir }

// Env returns the environment the child was started with.
func (h *Handle) Env() []string { return append([]string(nil), h.env...) }

// StartedAt returns when the child was spawned.
func (h *Handle) StartedAt() time.Time { return h.startedAt }
