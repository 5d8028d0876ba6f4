package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"minutes/internal/api"
	"minutes/internal/logging"
	"minutes/internal/services"
)

const (
	DefaultPollInterval         = 500 * time.Millisecond
	DefaultMaxTransportFailures = 5
)

// ErrPollerActive is returned when a task already has a running poller.
var ErrPollerActive = errors.New("poller already active for task")

// StatusFetcher retrieves the current status of a task.
type StatusFetcher interface {
	Status(ctx context.Context, id string) (api.TaskStatus, error)
}

// Poller polls task status at a fixed interval. At most one poll loop runs
// per task id.
type Poller struct {
	fetcher     StatusFetcher
	interval    time.Duration
	maxFailures int
	logger      *slog.Logger

	mu     sync.Mutex
	active map[string]*Handle
}

// NewPoller constructs a poller. Non-positive values fall back to the defaults.
func NewPoller(fetcher StatusFetcher, interval time.Duration, maxFailures int, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxFailures <= 0 {
		maxFailures = DefaultMaxTransportFailures
	}
	return &Poller{
		fetcher:     fetcher,
		interval:    interval,
		maxFailures: maxFailures,
		logger:      logging.NewComponentLogger(logger, "poller"),
		active:      make(map[string]*Handle),
	}
}

// Handle controls one running poll loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	last   api.TaskStatus
	err    error
}

// Cancel stops the loop. Wait then returns context.Canceled.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed when the loop exits.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the loop exits and returns the last status seen.
func (h *Handle) Wait() (api.TaskStatus, error) {
	<-h.done
	return h.last, h.err
}

// Start begins polling id. onUpdate receives every successfully fetched
// status, including the terminal one, on the poller goroutine.
func (p *Poller) Start(ctx context.Context, id string, onUpdate func(api.TaskStatus)) (*Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.active[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPollerActive, id)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	p.active[id] = h
	go p.loop(loopCtx, id, h, onUpdate)
	return h, nil
}

// Poll runs a poll loop to completion.
func (p *Poller) Poll(ctx context.Context, id string, onUpdate func(api.TaskStatus)) (api.TaskStatus, error) {
	h, err := p.Start(ctx, id, onUpdate)
	if err != nil {
		return api.TaskStatus{}, err
	}
	return h.Wait()
}

// Active reports whether id currently has a poll loop.
func (p *Poller) Active(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[id]
	return ok
}

func (p *Poller) loop(ctx context.Context, id string, h *Handle, onUpdate func(api.TaskStatus)) {
	defer func() {
		h.cancel()
		p.mu.Lock()
		delete(p.active, id)
		p.mu.Unlock()
		close(h.done)
	}()

	logger := p.logger.With(logging.String(logging.FieldTaskID, id))
	timer := time.NewTimer(0)
	defer timer.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			h.err = ctx.Err()
			return
		case <-timer.C:
		}

		status, err := p.fetcher.Status(ctx, id)
		switch {
		case err == nil:
			failures = 0
			h.last = status
			if onUpdate != nil {
				onUpdate(status)
			}
			if status.Terminal() {
				return
			}
		case ctx.Err() != nil:
			h.err = ctx.Err()
			return
		case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrConfiguration):
			// Retrying cannot fix an unknown task or a rejected token.
			h.err = err
			return
		default:
			failures++
			logger.Debug("status poll failed",
				logging.Int("consecutive_failures", failures),
				logging.Error(err),
			)
			if failures >= p.maxFailures {
				h.err = services.Wrap(services.ErrClientTransport, "poll", "status",
					fmt.Sprintf("gave up after %d consecutive failures", failures), err)
				return
			}
		}
		timer.Reset(p.interval)
	}
}
