// Package transport provides the byte channel between the terminal pane and
// its child shell.
//
// Two backends implement Transport:
//   - pipe: an OS pipe pair; the write end of one pipe is shared by child
//     stdout and stderr, the read end of the other feeds child stdin.
//   - pty: a pseudo-terminal (creack/pty on Unix, ConPTY on Windows); the
//     slave side covers all three standard streams of the child.
//
// Raw file descriptors and handles never leave this package.
package transport

import (
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync/atomic"
)

// Kind selects a transport backend.
type Kind string

const (
	KindPipe Kind = "pipe"
	KindPTY  Kind = "pty"
)

// ParseKind converts a configuration value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPipe:
		return KindPipe, nil
	case KindPTY, "":
		return KindPTY, nil
	default:
		return "", fmt.Errorf("unknown transport kind %q", s)
	}
}

// Size is the character-cell geometry of a pseudo-terminal.
// Pixel dimensions are left unset.
type Size struct {
	Cols uint16
	Rows uint16
}

// DefaultSize is the geometry used when none is given.
var DefaultSize = Size{Cols: 80, Rows: 24}

func (s Size) orDefault() Size {
	if s.Cols == 0 {
		s.Cols = DefaultSize.Cols
	}
	if s.Rows == 0 {
		s.Rows = DefaultSize.Rows
	}
	return s
}

// Transport is a bidirectional byte channel bound to one child process.
// Read yields the interleaved stdout and stderr of the child; Write feeds
// its stdin untouched. Exactly one reader and one writer use it per session.
type Transport interface {
	io.Reader
	io.Writer

	// Start attaches the child side to cmd and launches it. After Start
	// returns nil, cmd.Process is set.
	Start(cmd *exec.Cmd) error

	// Resize changes the terminal geometry. It is a no-op for pipes.
	Resize(cols, rows uint16) error

	// Kind reports which backend this is.
	Kind() Kind

	// Stats returns byte counters for both directions.
	Stats() Stats

	// Close releases every endpoint. A Read blocked on the transport
	// returns once Close is called. Safe to call multiple times.
	Close() error
}

// Stats are cumulative byte counters of a transport.
type Stats struct {
	BytesRead    int64
	BytesWritten int64
}

// New allocates a transport of the given kind.
func New(kind Kind, size Size) (Transport, error) {
	switch kind {
	case KindPipe:
		p, err := newPipe()
		if err != nil {
			return nil, err
		}
		return p, nil
	case KindPTY:
		p, err := newPTY(size.orDefault())
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, &CreationError{Kind: kind, Reason: ReasonUnsupported, Err: fmt.Errorf("unknown transport kind %q", kind)}
	}
}

// counters is embedded by the backends.
type counters struct {
	read    atomic.Int64
	written atomic.Int64
}

func (c *counters) countRead(n int) {
	if n > 0 {
		c.read.Add(int64(n))
	}
}

func (c *counters) countWrite(n int) {
	if n > 0 {
		c.written.Add(int64(n))
	}
}

func (c *counters) Stats() Stats {
	return Stats{BytesRead: c.read.Load(), BytesWritten: c.written.Load()}
}
