package api

import (
	"context"

	"minutes/internal/task"
)

// TaskReader is the read side of task.Store.
type TaskReader interface {
	Get(ctx context.Context, id string) (*task.Record, error)
}

// ProgressService answers status polls. It only reads, so any number of
// callers may use it concurrently.
type ProgressService struct {
	store TaskReader
}

// NewProgressService constructs a ProgressService around the provided reader.
func NewProgressService(store TaskReader) *ProgressService {
	if store == nil {
		return nil
	}
	return &ProgressService{store: store}
}

// Status returns the current payload for id. Unknown or expired ids yield
// an error wrapping services.ErrNotFound.
func (s *ProgressService) Status(ctx context.Context, id string) (TaskStatus, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return TaskStatus{}, err
	}
	return FromRecord(rec), nil
}
