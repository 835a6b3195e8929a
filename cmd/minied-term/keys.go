package main

import (
	"unicode/utf8"

	"github.com/minied/minied/internal/terminal/input"
)

// parseKeys turns bytes read from a raw-mode terminal into key events.
// Escape sequences are expected to arrive within a single read.
func parseKeys(buf []byte) []input.Event {
	var events []input.Event
	var text []byte

	flush := func() {
		if len(text) > 0 {
			events = append(events, input.Event{Key: input.KeyText, Text: string(text)})
			text = nil
		}
	}

	for i := 0; i < len(buf); {
		b := buf[i]
		switch {
		case b == '\r' || b == '\n':
			flush()
			events = append(events, input.Event{Key: input.KeyEnter})
			i++
			// A pasted CRLF is one line end.
			if b == '\r' && i < len(buf) && buf[i] == '\n' {
				i++
			}
		case b == 0x7f || b == 0x08:
			flush()
			events = append(events, input.Event{Key: input.KeyBackspace})
			i++
		case b == 0x03:
			flush()
			events = append(events, input.Event{Key: input.KeyInterrupt})
			i++
		case b == 0x1b:
			flush()
			n := escapeLen(buf[i:])
			seq := string(buf[i : i+n])
			switch seq {
			case "\x1b[A", "\x1bOA":
				events = append(events, input.Event{Key: input.KeyUp})
			case "\x1b[B", "\x1bOB":
				events = append(events, input.Event{Key: input.KeyDown})
			default:
				events = append(events, input.Event{Key: input.KeyOther, Text: seq})
			}
			i += n
		case b < 0x20:
			flush()
			events = append(events, input.Event{Key: input.KeyOther, Text: string(b)})
			i++
		default:
			_, size := utf8.DecodeRune(buf[i:])
			text = append(text, buf[i:i+size]...)
			i += size
		}
	}
	flush()
	return events
}

// escapeLen returns the length of the escape sequence at the start of b.
func escapeLen(b []byte) int {
	if len(b) < 2 {
		return len(b)
	}
	switch b[1] {
	case '[':
		for i := 2; i < len(b); i++ {
			if b[i] >= 0x40 && b[i] <= 0x7e {
				return i + 1
			}
		}
		return len(b)
	case 'O':
		if len(b) >= 3 {
			return 3
		}
		return len(b)
	default:
		return 2
	}
}
