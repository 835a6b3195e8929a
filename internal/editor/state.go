// Package editor holds the editor-wide state shared by GUI callbacks.
package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/minied/minied/internal/common/logger"
	"github.com/minied/minied/internal/terminal/bridge"
	"github.com/minied/minied/internal/terminal/history"
	"github.com/minied/minied/internal/terminal/relay"
	"go.uber.org/zap"
)

// ErrTerminalOpen is returned when a terminal is already running.
var ErrTerminalOpen = errors.New("terminal already open")

// State is created once by the host and handed to callbacks. It owns the
// displayed directory, the command history and at most one terminal.
type State struct {
	logger *logger.Logger
	opts   bridge.Options
	hist   *history.History

	mu       sync.Mutex
	dir      string
	terminal *bridge.Bridge
}

// NewState validates dir and creates the state. opts are the terminal
// options used by OpenTerminal; their Dir is replaced by the current
// directory on every open.
func NewState(dir string, hist *history.History, opts bridge.Options, log *logger.Logger) (*State, error) {
	if log == nil {
		log = logger.Default()
	}
	if hist == nil {
		hist = history.New(0)
	}
	abs, err := checkDir(dir)
	if err != nil {
		return nil, err
	}
	return &State{
		logger: log.WithFields(zap.String("component", "editor")),
		opts:   opts,
		hist:   hist,
		dir:    abs,
	}, nil
}

func checkDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve directory %q: %w", dir, err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("open directory: %w", err)
	}
	if !st.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

// Dir returns the directory the editor displays.
func (s *State) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// SetDir changes the displayed directory. A running terminal keeps its
// own working directory.
func (s *State) SetDir(dir string) error {
	abs, err := checkDir(dir)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.dir = abs
	s.mu.Unlock()
	s.logger.Debug("directory changed", zap.String("dir", abs))
	return nil
}

// History returns the command history shared by every terminal.
func (s *State) History() *history.History { return s.hist }

// OpenTerminal starts a terminal in the current directory. A terminal
// whose shell has exited is replaced.
func (s *State) OpenTerminal(ctx context.Context, display bridge.Display, waker relay.Waker) (*bridge.Bridge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminal != nil {
		select {
		case <-s.terminal.Done():
			_ = s.terminal.Close()
			s.terminal = nil
		default:
			return nil, ErrTerminalOpen
		}
	}

	opts := s.opts
	opts.Dir = s.dir
	b, err := bridge.New(ctx, opts, bridge.Deps{
		Display: display,
		Waker:   waker,
		History: s.hist,
		Logger:  s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open terminal: %w", err)
	}
	s.terminal = b
	return b, nil
}

// Terminal returns the running terminal, or nil.
func (s *State) Terminal() *bridge.Bridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}

// CloseTerminal stops the terminal if one is open.
func (s *State) CloseTerminal() error {
	s.mu.Lock()
	b := s.terminal
	s.terminal = nil
	s.mu.Unlock()

	if b == nil {
		return nil
	}
	return b.Close()
}
