package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"minutes/internal/logging"
	"minutes/internal/task"
)

// reporter serializes one task's record writes and drops any progress value
// lower than the last one published.
type reporter struct {
	store   task.Store
	id      string
	logger  *slog.Logger
	sampler *logging.ProgressSampler

	mu       sync.Mutex
	stage    task.Stage
	progress int
	message  string
	done     bool
}

func newReporter(store task.Store, id string, logger *slog.Logger) *reporter {
	return &reporter{
		store:   store,
		id:      id,
		logger:  logger,
		sampler: logging.NewProgressSampler(10),
		stage:   task.StagePreparing,
	}
}

func (r *reporter) publish(ctx context.Context, stage task.Stage, progress int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done || stage < r.stage || progress < r.progress {
		return
	}
	if stage == r.stage && progress == r.progress && message == r.message {
		return
	}
	if _, err := r.store.Update(ctx, r.id, task.ProgressPatch(stage, progress, message)); err != nil {
		if !errors.Is(err, task.ErrTerminal) {
			r.logger.Warn("failed to persist progress", logging.Error(err))
		}
		return
	}
	r.stage, r.progress, r.message = stage, progress, message
	if r.sampler.ShouldLog(progress, stage.String()) {
		r.logger.Debug("task progress",
			logging.String(logging.FieldStage, stage.String()),
			logging.Int(logging.FieldProgress, progress),
			logging.String("message", message),
		)
	}
}

func (r *reporter) complete(ctx context.Context, result task.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = true
	_, err := r.store.Update(ctx, r.id, task.CompletePatch(result))
	return err
}

func (r *reporter) fail(ctx context.Context, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = true
	_, err := r.store.Update(ctx, r.id, task.FailPatch(reason))
	return err
}
