package main

import (
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"

	"notecard/clipboard"
	"notecard/log"
)

type Note struct {
	ID      ulid.ULID
	Text    string
	Created time.Time
}

// Age renders the creation time relative to now ("3 minutes ago").
func (n Note) Age(now time.Time) string {
	return humanize.RelTime(n.Created, now, "ago", "from now")
}

// Preview returns the first line of the note, cut to width runes.
func (n Note) Preview(width int) string {
	line, _, more := strings.Cut(n.Text, "\n")
	r := []rune(line)
	if width > 1 && len(r) > width {
		return string(r[:width-1]) + "…"
	}
	if more {
		return line + " …"
	}
	return line
}

// board is the in-memory list of created notes. Nothing is persisted.
type board struct {
	mu    sync.Mutex
	notes []Note
	now   func() time.Time

	copyOnCreate bool
	copy         func(string) error
}

func newBoard(copyOnCreate bool) *board {
	return &board{now: time.Now, copyOnCreate: copyOnCreate, copy: clipboard.Copy}
}

// Create is the composer's create callback.
func (b *board) Create(content string) {
	n := b.add(content)
	if !b.copyOnCreate {
		return
	}
	if err := b.copy(content); err != nil {
		log.Warnf("note %s: %v", n.ID, err)
	}
}

func (b *board) add(content string) Note {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := Note{ID: ulid.Make(), Text: content, Created: b.now()}
	b.notes = append(b.notes, n)
	return n
}

// Notes returns the notes newest first.
func (b *board) Notes() []Note {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Note, len(b.notes))
	for i, n := range b.notes {
		out[len(b.notes)-1-i] = n
	}
	return out
}

func (b *board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.notes)
}
