//go:build windows

package transport

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/UserExistsError/conpty"
)

// windowsPTY wraps a Windows ConPTY pseudo-console.
// ConPTY allocates the console and the process together, so creation only
// checks availability and Start does the allocation.
type windowsPTY struct {
	counters

	size Size

	mu        sync.RWMutex
	cpty      *conpty.ConPty
	closed    bool
	closeOnce sync.Once
}

func newPTY(size Size) (*windowsPTY, error) {
	if !conpty.IsConPtyAvailable() {
		return nil, &CreationError{
			Kind:   KindPTY,
			Reason: ReasonUnsupported,
			Err:    errors.New("ConPTY is not available on this Windows version"),
		}
	}
	return &windowsPTY{size: size}, nil
}

func (p *windowsPTY) Kind() Kind { return KindPTY }

// Start builds a command line from cmd and launches it inside a new
// pseudo console. cmd.Process is set so callers can wait on and kill it.
func (p *windowsPTY) Start(cmd *exec.Cmd) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return os.ErrClosed
	}
	if p.cpty != nil {
		return fmt.Errorf("pty transport already started")
	}

	cmdLine := buildCmdLine(cmd.Args)
	if len(cmd.Args) == 0 {
		cmdLine = escapeArg(cmd.Path)
	}

	opts := []conpty.ConPtyOption{
		conpty.ConPtyDimensions(int(p.size.Cols), int(p.size.Rows)),
	}
	if cmd.Dir != "" {
		opts = append(opts, conpty.ConPtyWorkDir(cmd.Dir))
	}
	if cmd.Env != nil {
		opts = append(opts, conpty.ConPtyEnv(cmd.Env))
	}

	cpty, err := conpty.Start(cmdLine, opts...)
	if err != nil {
		return creationError(KindPTY, err)
	}

	pid := cpty.Pid()
	proc, err := os.FindProcess(int(pid))
	if err != nil {
		_ = cpty.Close()
		return fmt.Errorf("failed to find ConPTY process %d: %w", pid, err)
	}
	cmd.Process = proc
	p.cpty = cpty
	return nil
}

func (p *windowsPTY) console() (*conpty.ConPty, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, os.ErrClosed
	}
	if p.cpty == nil {
		return nil, ErrNotStarted
	}
	return p.cpty, nil
}

func (p *windowsPTY) Read(b []byte) (int, error) {
	c, err := p.console()
	if err != nil {
		return 0, err
	}
	n, err := c.Read(b)
	p.countRead(n)
	return n, err
}

func (p *windowsPTY) Write(b []byte) (int, error) {
	c, err := p.console()
	if err != nil {
		return 0, err
	}
	n, err := c.Write(b)
	p.countWrite(n)
	return n, err
}

func (p *windowsPTY) Resize(cols, rows uint16) error {
	c, err := p.console()
	if err != nil {
		return err
	}
	return c.Resize(int(cols), int(rows))
}

func (p *windowsPTY) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		c := p.cpty
		p.mu.Unlock()
		if c != nil {
			err = c.Close()
		}
	})
	return err
}
