package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"minutes/internal/services"
)

// ErrTerminal is returned by Update when the record already completed or failed.
var ErrTerminal = errors.New("task already finished")

// Store keeps task records. Update is the only mutation path used by the
// pipeline; reads return copies and may run concurrently with it.
type Store interface {
	Create(ctx context.Context, sub Submission) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, id string, patch Patch) (*Record, error)
	Expire(ctx context.Context, id string) error
	ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

func newRecord(sub Submission, now time.Time) *Record {
	return &Record{
		ID:         uuid.NewString(),
		Stage:      StagePreparing,
		Progress:   0,
		Message:    "Task accepted",
		Status:     StatusRunning,
		Hints:      sub.Hints,
		SourceName: sub.SourceName,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func notFound(id string) error {
	return services.Wrap(services.ErrNotFound, "task", "lookup", "Task not found: "+id, nil)
}
