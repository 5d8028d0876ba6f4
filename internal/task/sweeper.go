package task

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"minutes/internal/logging"
	"minutes/internal/services"
)

// Sweeper expires terminal records older than the retention window.
type Sweeper struct {
	store     Store
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewSweeper builds a sweeper. A zero retention keeps records forever and
// turns Run into a wait on ctx.
func NewSweeper(store Store, retention, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		store:     store,
		retention: retention,
		interval:  interval,
		logger:    logging.NewComponentLogger(logger, "task-sweeper"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps on every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.retention <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				logging.WarnWithContext(s.logger, "task sweep failed", "task_sweep_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check task store availability"),
				)
			}
		}
	}
}

// SweepOnce expires every eligible record and returns how many were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)
	ids, err := s.store.ListFinishedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		if err := s.store.Expire(ctx, id); err != nil {
			if errors.Is(err, services.ErrNotFound) {
				continue
			}
			return expired, err
		}
		expired++
	}
	if expired > 0 {
		s.logger.Info("expired finished tasks",
			logging.Int("count", expired),
			logging.Duration("retention", s.retention),
			logging.String(logging.FieldEventType, "tasks_expired"),
		)
	}
	return expired, nil
}
