package supervisor

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/minied/minied/internal/common/logger"
	"github.com/minied/minied/internal/terminal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	return log
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func newPipe(t *testing.T) transport.Transport {
	t.Helper()
	tr, err := transport.New(transport.KindPipe, transport.DefaultSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func readAll(t *testing.T, r io.Reader) string {
	t.Helper()
	var sb strings.Builder
	buf := make([]byte, 1024)
	for {
		n, err := r.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			require.True(t, transport.IsClosed(err), "unexpected read error: %v", err)
			return sb.String()
		}
	}
}

func TestSpawnRejectsMissingDir(t *testing.T) {
	tr := newPipe(t)
	_, err := Spawn(tr, Options{Shell: "sh", Dir: filepath.Join(t.TempDir(), "nope")}, newTestLogger(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSpawn))

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr))
	assert.Equal(t, "sh", spawnErr.Shell)
}

func TestSpawnRejectsFileAsDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := Spawn(newPipe(t), Options{Shell: "sh", Dir: file}, newTestLogger(t))
	assert.ErrorIs(t, err, ErrSpawn)
}

func TestSpawnRejectsEmptyDir(t *testing.T) {
	_, err := Spawn(newPipe(t), Options{Shell: "sh"}, newTestLogger(t))
	assert.ErrorIs(t, err, ErrSpawn)
}

func TestSpawnUnknownShell(t *testing.T) {
	_, err := Spawn(newPipe(t), Options{Shell: "definitely-not-a-shell-xyz", Dir: t.TempDir()}, newTestLogger(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpawn)
	assert.Contains(t, err.Error(), "definitely-not-a-shell-xyz")
}

func TestSpawnRunsInDirWithEnv(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	tr := newPipe(t)

	h, err := Spawn(tr, Options{
		Shell: "/bin/sh",
		Args:  []string{"-c", `pwd; echo "term=$TERM"`},
		Dir:   dir,
	}, newTestLogger(t))
	require.NoError(t, err)
	assert.Greater(t, h.Pid(), 0)
	assert.Equal(t, dir, h.Dir())
	assert.Contains(t, h.Env(), "TERM=vt100")
	assert.Contains(t, h.Env(), "PWD="+dir)

	out := readAll(t, tr)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, dir) || strings.Contains(out, resolved), "output: %q", out)
	assert.Contains(t, out, "term=vt100")

	live, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateExited, live.State)
	assert.True(t, live.CodeKnown)
	assert.Equal(t, 0, live.ExitCode)
}

func TestTryWaitReportsExitCode(t *testing.T) {
	skipOnWindows(t)
	h, err := Spawn(newPipe(t), Options{Shell: "/bin/sh", Args: []string{"-c", "exit 3"}, Dir: t.TempDir()}, newTestLogger(t))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !h.TryWait().Alive()
	}, 5*time.Second, 10*time.Millisecond)

	live := h.TryWait()
	assert.Equal(t, StateExited, live.State)
	assert.True(t, live.CodeKnown)
	assert.Equal(t, 3, live.ExitCode)
}

func TestTryWaitRunningThenKilled(t *testing.T) {
	skipOnWindows(t)
	h, err := Spawn(newPipe(t), Options{Shell: "/bin/sh", Args: []string{"-c", "sleep 30"}, Dir: t.TempDir()}, newTestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, StateRunning, h.TryWait().State)
	require.NoError(t, h.Kill())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	live, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateExited, live.State)
	assert.False(t, live.CodeKnown, "signal termination has no exit code")

	// Killing twice is harmless.
	assert.NoError(t, h.Kill())
}

func TestWaitHonorsContext(t *testing.T) {
	skipOnWindows(t)
	h, err := Spawn(newPipe(t), Options{Shell: "/bin/sh", Args: []string{"-c", "sleep 30"}, Dir: t.TempDir()}, newTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Kill() })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	live, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, live.Alive())
}

func TestBuildEnvPipe(t *testing.T) {
	env := buildEnv([]string{"HOME=/home/u", "TERM=xterm", "PWD=/old"}, "/work", transport.KindPipe, "")

	v, ok := lookupEnv(env, "TERM")
	require.True(t, ok)
	assert.Equal(t, "vt100", v)

	v, ok = lookupEnv(env, "PWD")
	require.True(t, ok)
	assert.Equal(t, "/work", v)

	if _, hasPath := os.LookupEnv("PATH"); hasPath {
		_, ok = lookupEnv(env, "PATH")
		assert.True(t, ok, "PATH must be forwarded")
	}

	count := 0
	for _, kv := range env {
		if strings.HasPrefix(kv, "TERM=") {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestBuildEnvPTYKeepsInheritedTerm(t *testing.T) {
	env := buildEnv([]string{"TERM=screen", "PATH=/bin"}, "/work", transport.KindPTY, "")
	v, _ := lookupEnv(env, "TERM")
	assert.Equal(t, "screen", v)

	env = buildEnv([]string{"PATH=/bin"}, "/work", transport.KindPTY, "")
	v, _ = lookupEnv(env, "TERM")
	assert.Equal(t, "xterm-256color", v)

	env = buildEnv([]string{"TERM=screen", "PATH=/bin"}, "/work", transport.KindPTY, "dumb")
	v, _ = lookupEnv(env, "TERM")
	assert.Equal(t, "dumb", v)
}

func TestBuildEnvDoesNotMutateBase(t *testing.T) {
	base := []string{"TERM=xterm", "PATH=/bin"}
	_ = buildEnv(base, "/work", transport.KindPipe, "")
	assert.Equal(t, []string{"TERM=xterm", "PATH=/bin"}, base)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "exited", StateExited.String())
	assert.Equal(t, "error", StateError.String())
	assert.Equal(t, "State(9)", State(9).String())
}
