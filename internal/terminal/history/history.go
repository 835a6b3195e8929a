// Package history keeps the submitted terminal command lines.
//
// A History lives for the whole editor session and outlives any one
// terminal. It is used from the GUI thread only and does no locking.
package history

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const fileVersion = 1

// History is an ordered list of submitted lines, most recent last.
type History struct {
	limit   int
	entries []string
}

// New returns an empty history holding at most limit entries. A limit of
// zero or less is unbounded.
func New(limit int) *History {
	return &History{limit: limit}
}

// Push appends a line, dropping the oldest entry past the limit.
func (h *History) Push(line string) {
	h.entries = append(h.entries, line)
	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = append(h.entries[:0:0], h.entries[len(h.entries)-h.limit:]...)
	}
}

// Last returns the most recent entry.
func (h *History) Last() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	return h.entries[len(h.entries)-1], true
}

// At returns entry i, oldest first.
func (h *History) At(i int) (string, bool) {
	if i < 0 || i >= len(h.entries) {
		return "", false
	}
	return h.entries[i], true
}

// Len returns the number of stored entries.
func (h *History) Len() int { return len(h.entries) }

// Limit returns the capacity; zero means unbounded.
func (h *History) Limit() int { return h.limit }

// Entries returns a copy of all entries, oldest first.
func (h *History) Entries() []string {
	return append([]string(nil), h.entries...)
}

type fileFormat struct {
	Version int      `yaml:"version"`
	Entries []string `yaml:"entries"`
}

// Load replaces the entries with those stored at path. A missing file
// leaves the history empty.
func (h *History) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		h.entries = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse history %s: %w", path, err)
	}
	if f.Version > fileVersion {
		return fmt.Errorf("history %s: unsupported version %d", path, f.Version)
	}

	h.entries = nil
	for _, e := range f.Entries {
		h.Push(e)
	}
	return nil
}

// Save writes the entries to path, creating parent directories.
func (h *History) Save(path string) error {
	data, err := yaml.Marshal(fileFormat{Version: fileVersion, Entries: h.Entries()})
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}
