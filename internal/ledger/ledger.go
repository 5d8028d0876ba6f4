package ledger

import (
	"errors"
	"sync"

	"minutes/internal/services"
)

// ErrNotSeeded is returned by operations that need at least one entry.
var ErrNotSeeded = errors.New("ledger has not been seeded")

// Ledger is a linear undo log of document snapshots for one editing session.
// The first entry is the generated document. Committing after a rewind drops
// every entry past the head; there is no redo.
type Ledger struct {
	mu      sync.Mutex
	entries []string
	head    int
}

// New returns a ledger seeded with document.
func New(document string) *Ledger {
	l := &Ledger{}
	l.Seed(document)
	return l
}

// Seed discards any existing history and starts over with document at index 0.
func (l *Ledger) Seed(document string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = []string{document}
	l.head = 0
}

// CommitEdit truncates entries after the head, appends document, and moves the
// head onto it. It returns the new head index.
func (l *Ledger) CommitEdit(document string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return 0, ErrNotSeeded
	}
	l.entries = append(l.entries[:l.head+1:l.head+1], document)
	l.head = len(l.entries) - 1
	return l.head, nil
}

// Rewind moves the head back one entry and returns the snapshot now at the
// head. At index 0 it returns services.ErrNoOp and changes nothing.
func (l *Ledger) Rewind() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return "", ErrNotSeeded
	}
	if l.head == 0 {
		return l.entries[0], services.Wrap(services.ErrNoOp, "edit", "undo", "already at the earliest version", nil)
	}
	l.head--
	return l.entries[l.head], nil
}

// Head returns the current snapshot, or "" before Seed.
func (l *Ledger) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return ""
	}
	return l.entries[l.head]
}

func (l *Ledger) HeadIndex() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of every snapshot, including ones past the head.
func (l *Ledger) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}
