// Package screen is an in-memory terminal display built on a vt10x
// emulator.
//
// It receives relay output off the GUI thread and is read by the GUI, so
// every method takes the screen lock.
package screen

import (
	"bytes"
	"strings"
	"sync"

	"github.com/tuzig/vt10x"
)

const (
	defaultCols = 80
	defaultRows = 24
)

// CursorStyle is the cursor shape the display draws.
type CursorStyle int

const (
	// CursorDim is drawn while the view is unfocused.
	CursorDim CursorStyle = iota
	CursorBlock
	CursorHidden
)

func (c CursorStyle) String() string {
	switch c {
	case CursorDim:
		return "dim"
	case CursorBlock:
		return "block"
	case CursorHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// Screen is safe for concurrent use.
type Screen struct {
	mu   sync.Mutex
	term vt10x.Terminal
	cols int
	rows int

	focused bool
	cursor  CursorStyle
	lines   int
	top     int
	lastCR  bool
}

// New creates a screen of the given size; non-positive values select 80x24.
func New(cols, rows int) *Screen {
	if cols <= 0 {
		cols = defaultCols
	}
	if rows <= 0 {
		rows = defaultRows
	}
	return &Screen{
		term:  vt10x.New(vt10x.WithSize(cols, rows)),
		cols:  cols,
		rows:  rows,
		lines: 1,
	}
}

// AppendText feeds decoded text to the emulator.
func (s *Screen) AppendText(str string) {
	s.AppendRaw([]byte(str))
}

// AppendRaw feeds raw bytes to the emulator. Bare LF from pipe output is
// written as CRLF.
func (s *Screen) AppendRaw(b []byte) {
	if len(b) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines += bytes.Count(b, []byte{'\n'})
	_, _ = s.term.Write(s.normalizeNewlines(b))
}

func (s *Screen) normalizeNewlines(b []byte) []byte {
	var out []byte
	prevCR := s.lastCR
	for i, c := range b {
		if c == '\n' && !prevCR {
			if out == nil {
				out = make([]byte, 0, len(b)+8)
				out = append(out, b[:i]...)
			}
			out = append(out, '\r')
		}
		if out != nil {
			out = append(out, c)
		}
		prevCR = c == '\r'
	}
	s.lastCR = prevCR
	if out == nil {
		return b
	}
	return out
}

// Lines returns the visible rows with trailing blanks removed.
func (s *Screen) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linesLocked()
}

func (s *Screen) linesLocked() []string {
	lines := make([]string, s.rows)
	row := make([]rune, s.cols)
	for y := 0; y < s.rows; y++ {
		for x := 0; x < s.cols; x++ {
			g := s.term.Cell(x, y)
			if g.Char == 0 {
				row[x] = ' '
			} else {
				row[x] = g.Char
			}
		}
		lines[y] = strings.TrimRight(string(row), " ")
	}
	return lines
}

// LastLine returns the last non-blank visible row.
func (s *Screen) LastLine() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.linesLocked()
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i] != "" {
			return lines[i]
		}
	}
	return ""
}

// String returns the visible rows joined by newlines.
func (s *Screen) String() string {
	return strings.Join(s.Lines(), "\n")
}

// LineCount is the number of lines received, counting the current one.
func (s *Screen) LineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines
}

// ScrollTo moves the view so line is visible.
func (s *Screen) ScrollTo(line int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.top = min(max(line, 0), s.lines)
}

// ScrollPosition returns the line the view was last scrolled to.
func (s *Screen) ScrollPosition() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.top
}

// SetFocus records whether the pane has keyboard focus.
func (s *Screen) SetFocus(focused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focused = focused
}

// HasFocus reports whether the pane has keyboard focus.
func (s *Screen) HasFocus() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused
}

// SetCursorStyle sets how the cursor is drawn.
func (s *Screen) SetCursorStyle(c CursorStyle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = c
}

// CursorStyle returns the current cursor style.
func (s *Screen) CursorStyle() CursorStyle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Size returns the screen size in cells.
func (s *Screen) Size() (cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

// Resize changes the emulator size. Non-positive values are ignored.
func (s *Screen) Resize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.term.Resize(cols, rows)
	s.cols = cols
	s.rows = rows
}
