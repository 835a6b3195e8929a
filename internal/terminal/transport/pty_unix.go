//go:build !windows

package transport

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// unixPTY wraps a Unix PTY master/slave pair.
type unixPTY struct {
	counters

	ptmx *os.File
	tty  *os.File

	mu        sync.Mutex
	started   bool
	closeOnce sync.Once
}

func newPTY(size Size) (*unixPTY, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		if errors.Is(err, pty.ErrUnsupported) {
			return nil, &CreationError{Kind: KindPTY, Reason: ReasonUnsupported, Err: err}
		}
		return nil, creationError(KindPTY, err)
	}
	if err := pty.Setsize(ptmx, &pty.Winsize{Cols: size.Cols, Rows: size.Rows}); err != nil {
		_ = ptmx.Close()
		_ = tty.Close()
		return nil, creationError(KindPTY, fmt.Errorf("set initial size: %w", err))
	}
	return &unixPTY{ptmx: ptmx, tty: tty}, nil
}

func (p *unixPTY) Kind() Kind { return KindPTY }

// Start hands the slave to all three standard streams and makes it the
// controlling terminal of a new session, as pty.StartWithAttrs does.
func (p *unixPTY) Start(cmd *exec.Cmd) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("pty transport already started")
	}

	cmd.Stdin = p.tty
	cmd.Stdout = p.tty
	cmd.Stderr = p.tty
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	// A session leader cannot also join another process group.
	cmd.SysProcAttr.Setpgid = false
	cmd.SysProcAttr.Setsid = true
	cmd.SysProcAttr.Setctty = true

	if err := cmd.Start(); err != nil {
		return err
	}

	_ = p.tty.Close()
	p.started = true
	return nil
}

func (p *unixPTY) Read(b []byte) (int, error) {
	n, err := p.ptmx.Read(b)
	p.countRead(n)
	return n, err
}

func (p *unixPTY) Write(b []byte) (int, error) {
	n, err := p.ptmx.Write(b)
	p.countWrite(n)
	return n, err
}

func (p *unixPTY) Resize(cols, rows uint16) error {
	return pty.Setsize(p.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

// Close closes the master, which hangs up the child session.
func (p *unixPTY) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.ptmx.Close()
		p.mu.Lock()
		if !p.started {
			_ = p.tty.Close()
		}
		p.mu.Unlock()
	})
	return err
}
