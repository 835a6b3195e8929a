// Package decode turns raw child output into display-ready chunks.
//
// Raw mode preserves every byte. Text mode reassembles UTF-8 characters
// that were split across reads so a display that only accepts valid text
// never sees half a character.
package decode

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Bell is the terminal bell control byte.
const Bell = 0x07

// Mode selects how output is decoded.
type Mode string

const (
	ModeRaw  Mode = "raw"
	ModeText Mode = "text"
)

// ParseMode parses a configured decode mode. Empty selects ModeRaw.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeRaw:
		return ModeRaw, nil
	case ModeText:
		return ModeText, nil
	default:
		return "", fmt.Errorf("unknown decode mode %q", s)
	}
}

// Options configure a Filter.
type Options struct {
	Mode Mode
	// StripEscapes removes ANSI escape sequences in text mode. Sequences
	// split across chunks are passed through.
	StripEscapes bool
}

// Output is one decoded chunk. Text is set when Data is valid UTF-8 and
// should go to a text append; otherwise Data is raw bytes.
type Output struct {
	Data []byte
	Text bool
}

// String returns the emitted bytes as a string.
func (o Output) String() string { return string(o.Data) }

// Filter is not safe for concurrent use; the relay loop owns it.
type Filter struct {
	opts    Options
	pending []byte
}

// NewFilter returns a filter with no bytes held back.
func NewFilter(opts Options) *Filter {
	if opts.Mode == "" {
		opts.Mode = ModeRaw
	}
	return &Filter{opts: opts}
}

// Mode returns the filter's decode mode.
func (f *Filter) Mode() Mode { return f.opts.Mode }

// IsBell reports whether chunk is exactly one bell byte.
func IsBell(chunk []byte) bool {
	return len(chunk) == 1 && chunk[0] == Bell
}

// Feed decodes one chunk. The second result is false when nothing should
// be appended: a lone bell, an empty chunk, or bytes held back waiting for
// the rest of a character.
func (f *Filter) Feed(chunk []byte) (Output, bool) {
	if IsBell(chunk) {
		return Output{}, false
	}
	if f.opts.Mode == ModeRaw {
		if len(chunk) == 0 {
			return Output{}, false
		}
		return Output{Data: bytes.Clone(chunk)}, true
	}

	buf := make([]byte, 0, len(f.pending)+len(chunk))
	buf = append(buf, f.pending...)
	buf = append(buf, chunk...)
	f.pending = nil

	if utf8.Valid(buf) {
		return f.emit(buf, true)
	}

	keep := incompleteSuffix(buf)
	if keep > 0 {
		f.pending = bytes.Clone(buf[len(buf)-keep:])
		buf = buf[:len(buf)-keep]
	}
	return f.emit(buf, false)
}

func (f *Filter) emit(data []byte, text bool) (Output, bool) {
	if f.opts.StripEscapes {
		data = Strip(data)
	}
	if len(data) == 0 {
		return Output{}, false
	}
	return Output{Data: data, Text: text}, true
}

// Pending returns a copy of the bytes held for the next Feed.
func (f *Filter) Pending() []byte { return bytes.Clone(f.pending) }

// Reset drops any held bytes.
func (f *Filter) Reset() { f.pending = nil }

// incompleteSuffix returns the length of the trailing bytes of buf that
// form the start of a UTF-8 sequence which more input could complete.
// Zero when the tail is complete or can never become valid.
func incompleteSuffix(buf []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(buf); i++ {
		b := buf[len(buf)-i]
		if !utf8.RuneStart(b) {
			continue
		}
		if b < utf8.RuneSelf || utf8.FullRune(buf[len(buf)-i:]) {
			return 0
		}
		return i
	}
	return 0
}
