// Package input routes key events from the display to the child's stdin.
package input

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/minied/minied/internal/common/logger"
	"github.com/minied/minied/internal/terminal/screen"
	"go.uber.org/zap"
)

const (
	del       = 0x7f
	interrupt = 0x03
)

// Key classifies a key event.
type Key int

const (
	KeyOther Key = iota
	KeyText
	KeyEnter
	KeyUp
	KeyDown
	KeyBackspace
	KeyInterrupt
)

func (k Key) String() string {
	switch k {
	case KeyText:
		return "text"
	case KeyEnter:
		return "enter"
	case KeyUp:
		return "up"
	case KeyDown:
		return "down"
	case KeyBackspace:
		return "backspace"
	case KeyInterrupt:
		return "interrupt"
	default:
		return "other"
	}
}

// Event is one key press. Text is the text the key produces, if any.
type Event struct {
	Key  Key
	Text string
}

// History is the command history the router records into.
type History interface {
	Push(line string)
	Last() (string, bool)
	At(i int) (string, bool)
	Len() int
}

// CursorView is the part of the display the blinker drives.
type CursorView interface {
	HasFocus() bool
	SetCursorStyle(c screen.CursorStyle)
}

// View is the display the router scrolls on recall.
type View interface {
	CursorView
	ScrollTo(line int)
	LineCount() int
}

// RecallPolicy selects what Up and Down insert.
type RecallPolicy string

const (
	// RecallLast inserts the most recent entry on every press.
	RecallLast RecallPolicy = "last"
	// RecallCursor walks through history, replacing the previous recall.
	RecallCursor RecallPolicy = "cursor"
)

// ParseRecallPolicy parses a configured policy. Empty selects RecallLast.
func ParseRecallPolicy(s string) (RecallPolicy, error) {
	switch RecallPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RecallLast:
		return RecallLast, nil
	case RecallCursor:
		return RecallCursor, nil
	default:
		return "", fmt.Errorf("unknown recall policy %q", s)
	}
}

// Options configure a Router.
type Options struct {
	Recall RecallPolicy
	// Newline is written on Enter. Defaults to "\r"; a pipe-attached
	// shell needs "\n" since there is no line discipline to translate.
	Newline string
}

// Router is used from the GUI thread only.
type Router struct {
	w      io.Writer
	hist   History
	view   View
	opts   Options
	logger *logger.Logger

	pending []rune
	// cursor indexes the recalled entry, -1 when no recall is active.
	cursor   int
	recalled int
}

// NewRouter returns a router writing to w, the child's stdin.
func NewRouter(w io.Writer, hist History, view View, opts Options, log *logger.Logger) *Router {
	if opts.Recall == "" {
		opts.Recall = RecallLast
	}
	if opts.Newline == "" {
		opts.Newline = "\r"
	}
	r := &Router{
		w:      w,
		hist:   hist,
		view:   view,
		opts:   opts,
		logger: log.WithFields(zap.String("component", "input")),
	}
	r.resetRecall()
	return r
}

// Handle processes one event and reports whether it was consumed.
func (r *Router) Handle(ev Event) bool {
	switch ev.Key {
	case KeyText:
		if ev.Text == "" {
			return false
		}
		r.pending = append(r.pending, []rune(ev.Text)...)
		r.resetRecall()
		r.write([]byte(ev.Text))
	case KeyEnter:
		r.hist.Push(string(r.pending))
		r.pending = r.pending[:0]
		r.resetRecall()
		r.write([]byte(r.opts.Newline))
	case KeyUp, KeyDown:
		r.recall(ev.Key == KeyUp)
	case KeyBackspace:
		if n := len(r.pending); n > 0 {
			r.pending = r.pending[:n-1]
			if r.recalled > 0 {
				r.recalled--
			}
		}
		r.write([]byte{del})
	case KeyInterrupt:
		r.pending = r.pending[:0]
		r.resetRecall()
		r.write([]byte{interrupt})
	default:
		if ev.Text == "" {
			return false
		}
		r.write([]byte(ev.Text))
	}
	return true
}

func (r *Router) recall(up bool) {
	if r.hist.Len() == 0 {
		return
	}

	var entry string
	switch r.opts.Recall {
	case RecallCursor:
		next := r.cursor
		if next < 0 {
			next = r.hist.Len()
		}
		switch {
		case up && next > 0:
			next--
		case !up && next < r.hist.Len():
			next++
		default:
			return
		}
		r.eraseRecall()
		if next == r.hist.Len() {
			r.cursor = -1
			r.scrollToEnd()
			return
		}
		r.cursor = next
		entry, _ = r.hist.At(next)
	default:
		entry, _ = r.hist.Last()
	}

	r.pending = append(r.pending, []rune(entry)...)
	r.recalled += utf8.RuneCountInString(entry)
	r.write([]byte(entry))
	r.scrollToEnd()
}

// eraseRecall removes the previously recalled text from the line.
func (r *Router) eraseRecall() {
	if r.recalled == 0 {
		return
	}
	r.pending = r.pending[:len(r.pending)-r.recalled]
	r.write([]byte(strings.Repeat(string(rune(del)), r.recalled)))
	r.recalled = 0
}

func (r *Router) resetRecall() {
	r.cursor = -1
	r.recalled = 0
}

func (r *Router) scrollToEnd() {
	r.view.ScrollTo(r.view.LineCount())
}

func (r *Router) write(b []byte) {
	if len(b) == 0 {
		return
	}
	if _, err := r.w.Write(b); err != nil {
		r.logger.Debug("write to shell failed", zap.Int("bytes", len(b)), zap.Error(err))
	}
}

// PendingLine returns the text typed since the last submission.
func (r *Router) PendingLine() string { return string(r.pending) }
