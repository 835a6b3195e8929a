package main

import (
	"bytes"
	"io"
	"sync"

	"github.com/minied/minied/internal/terminal/screen"
)

// mirror writes session output to the host terminal and keeps a screen
// model of it for the exit summary.
type mirror struct {
	*screen.Screen

	mu  sync.Mutex
	out io.Writer
}

func newMirror(out io.Writer, cols, rows int) *mirror {
	return &mirror{Screen: screen.New(cols, rows), out: out}
}

func (m *mirror) AppendText(s string) {
	m.AppendRaw([]byte(s))
}

func (m *mirror) AppendRaw(b []byte) {
	m.Screen.AppendRaw(b)
	m.mu.Lock()
	defer m.mu.Unlock()
	_, _ = m.out.Write(toCRLF(b))
}

// echo shows typed text locally; the pipe transport has no tty echo.
func (m *mirror) echo(s string) {
	if s != "" {
		m.AppendText(s)
	}
}

// toCRLF rewrites bare LF as CRLF for a terminal in raw mode.
func toCRLF(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\n"), []byte("\r\n"))
}
