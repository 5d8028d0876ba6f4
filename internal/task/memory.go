package task

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the default Store. Records live for the process lifetime or
// until the sweeper expires them.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(_ context.Context, sub Submission) (*Record, error) {
	record := newRecord(sub, s.now())
	s.mu.Lock()
	s.records[record.ID] = record
	s.mu.Unlock()
	return record.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, notFound(id)
	}
	return record.Clone(), nil
}

// Update applies patch to a copy and swaps it in under the write lock, so
// readers observe either the old or the new record.
func (s *MemoryStore) Update(_ context.Context, id string, patch Patch) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[id]
	if !ok {
		return nil, notFound(id)
	}
	if current.IsTerminal() {
		return current.Clone(), ErrTerminal
	}
	next := current.Clone()
	patch.apply(next, s.now())
	s.records[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) Expire(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return notFound(id)
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) ListFinishedBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, record := range s.records {
		if record.IsTerminal() && record.FinishedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
