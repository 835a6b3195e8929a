package input

import (
	"time"

	"github.com/minied/minied/internal/terminal/screen"
)

// DefaultBlinkInterval is how often the GUI timer should call Tick.
const DefaultBlinkInterval = 500 * time.Millisecond

// Blinker emulates a blinking cursor on displays that cannot blink.
type Blinker struct {
	view CursorView
	on   bool
}

// NewBlinker returns a blinker driving view's cursor style.
func NewBlinker(view CursorView) *Blinker {
	return &Blinker{view: view}
}

// Tick advances the blink. A focused view alternates between a block and
// a hidden cursor; an unfocused view shows the dim cursor.
func (b *Blinker) Tick() {
	if !b.view.HasFocus() {
		b.on = false
		b.view.SetCursorStyle(screen.CursorDim)
		return
	}
	b.on = !b.on
	if b.on {
		b.view.SetCursorStyle(screen.CursorBlock)
	} else {
		b.view.SetCursorStyle(screen.CursorHidden)
	}
}
