package editor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/minied/minied/internal/common/logger"
	"github.com/minied/minied/internal/terminal/bridge"
	"github.com/minied/minied/internal/terminal/history"
	"github.com/minied/minied/internal/terminal/input"
	"github.com/minied/minied/internal/terminal/relay"
	"github.com/minied/minied/internal/terminal/screen"
	"github.com/minied/minied/internal/terminal/supervisor"
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

func pipeOptions() bridge.Options {
	return bridge.Options{
		Transport: transport.KindPipe,
		Shell:     "/bin/sh",
		Relay:     relay.Options{PollInterval: 5 * time.Millisecond},
	}
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestNewStateValidatesDir(t *testing.T) {
	_, err := NewState(filepath.Join(t.TempDir(), "missing"), nil, pipeOptions(), newTestLogger(t))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	_, err = NewState(file, nil, pipeOptions(), newTestLogger(t))
	assert.Error(t, err)

	dir := t.TempDir()
	s, err := NewState(dir, nil, pipeOptions(), newTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())
	assert.NotNil(t, s.History())
	assert.Nil(t, s.Terminal())
}

func TestSetDir(t *testing.T) {
	s, err := NewState(t.TempDir(), nil, pipeOptions(), newTestLogger(t))
	require.NoError(t, err)

	next := t.TempDir()
	require.NoError(t, s.SetDir(next))
	assert.Equal(t, next, s.Dir())

	assert.Error(t, s.SetDir(filepath.Join(next, "missing")))
	assert.Equal(t, next, s.Dir(), "failed change keeps the old directory")
}

func TestOpenTerminalUsesCurrentDirAndSharedHistory(t *testing.T) {
	skipWithoutShell(t)
	hist := history.New(0)
	s, err := NewState(t.TempDir(), hist, pipeOptions(), newTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.CloseTerminal() })

	b, err := s.OpenTerminal(context.Background(), screen.New(80, 24), nil)
	require.NoError(t, err)
	assert.Same(t, b, s.Terminal())

	_, err = s.OpenTerminal(context.Background(), screen.New(80, 24), nil)
	assert.ErrorIs(t, err, ErrTerminalOpen)

	b.HandleEvent(input.Event{Key: input.KeyText, Text: "true"})
	b.HandleEvent(input.Event{Key: input.KeyEnter})
	assert.Equal(t, []string{"true"}, hist.Entries())

	require.NoError(t, s.CloseTerminal())
	assert.Nil(t, s.Terminal())
	assert.NoError(t, s.CloseTerminal())

	// History outlives the terminal.
	b2, err := s.OpenTerminal(context.Background(), screen.New(80, 24), nil)
	require.NoError(t, err)
	b2.HandleEvent(input.Event{Key: input.KeyUp})
	assert.Equal(t, "true", b2.PendingLine())
}

func TestOpenTerminalReplacesExitedSession(t *testing.T) {
	skipWithoutShell(t)
	s, err := NewState(t.TempDir(), nil, pipeOptions(), newTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.CloseTerminal() })

	b, err := s.OpenTerminal(context.Background(), screen.New(80, 24), nil)
	require.NoError(t, err)
	for _, r := range "exit" {
		b.HandleEvent(input.Event{Key: input.KeyText, Text: string(r)})
	}
	b.HandleEvent(input.Event{Key: input.KeyEnter})

	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not exit")
	}

	b2, err := s.OpenTerminal(context.Background(), screen.New(80, 24), nil)
	require.NoError(t, err)
	assert.NotEqual(t, b.ID(), b2.ID())
}

func TestOpenTerminalSpawnError(t *testing.T) {
	opts := pipeOptions()
	opts.Shell = "definitely-not-a-shell-xyz"
	s, err := NewState(t.TempDir(), nil, opts, newTestLogger(t))
	require.NoError(t, err)

	_, err = s.OpenTerminal(context.Background(), screen.New(80, 24), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, supervisor.ErrSpawn)
	assert.Nil(t, s.Terminal())
}
