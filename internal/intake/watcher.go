package intake

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"minutes/internal/logging"
	"minutes/internal/pipeline"
	"minutes/internal/services"
	"minutes/internal/task"
)

// SubmittedDirName is the inbox subdirectory that receives submitted files.
const SubmittedDirName = "submitted"

const defaultSettle = 500 * time.Millisecond

// Launcher starts a pipeline run.
type Launcher interface {
	Launch(ctx context.Context, in pipeline.Input) (string, error)
}

// Watcher submits audio files dropped into an inbox directory.
type Watcher struct {
	dir       string
	submitted string
	launcher  Launcher
	logger    *slog.Logger
	settle    time.Duration
	watcher   *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithSettleDelay sets how long a file must stay quiet before it is submitted.
func WithSettleDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// New creates the inbox and its submitted/ directory and starts watching.
func New(dir string, launcher Launcher, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "intake", "watch", "inbox directory not configured", nil)
	}
	submitted := filepath.Join(dir, SubmittedDirName)
	if err := os.MkdirAll(submitted, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}
	w := &Watcher{
		dir:       dir,
		submitted: submitted,
		launcher:  launcher,
		logger:    logging.NewComponentLogger(logger, "intake"),
		settle:    defaultSettle,
		watcher:   fsw,
		pending:   make(map[string]*time.Timer),
		ready:     make(chan string, 16),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run submits files already in the inbox, then processes filesystem events
// until ctx is done. It closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	w.logger.Info("inbox watcher started",
		logging.String("inbox", w.dir),
		logging.String("formats", strings.Join(pipeline.AllowedExtensions(), ",")),
	)
	w.scanExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			w.logger.Info("inbox watcher stopped")
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Warn("inbox watcher error", logging.Error(err))
		case path := <-w.ready:
			if _, err := w.Submit(ctx, path); err != nil {
				logging.WarnWithContext(w.logger, "inbox submission failed", "inbox_submit_failed",
					logging.String("path", path),
					logging.String(logging.FieldErrorHint, "check the file format and the daemon log"),
					logging.Error(err),
				)
			}
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Submit moves path into submitted/ and launches a run for it. Files with
// unsupported extensions are left in place.
func (w *Watcher) Submit(ctx context.Context, path string) (string, error) {
	if err := pipeline.ValidateSourceName(path); err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat inbox file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("inbox entry %s is not a regular file", path)
	}
	dest := w.destination(filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("move to submitted: %w", err)
	}
	in, err := pipeline.FileInput(dest, task.Hints{})
	if err != nil {
		return "", err
	}
	id, err := w.launcher.Launch(ctx, in)
	if err != nil {
		return "", err
	}
	w.logger.Info("inbox file submitted",
		logging.String(logging.FieldTaskID, id),
		logging.String(logging.FieldEventType, "inbox_submitted"),
		logging.String("source", in.SourceName),
		logging.String("moved_to", dest),
		logging.Int64("size_bytes", in.Size),
	)
	return id, nil
}

func (w *Watcher) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("inbox scan failed", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			w.schedule(ctx, filepath.Join(w.dir, entry.Name()))
		}
	}
}

// schedule (re)arms the settle timer for path so files still being written
// are not picked up early.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if filepath.Dir(path) != filepath.Clean(w.dir) {
		return
	}
	if err := pipeline.ValidateSourceName(path); err != nil {
		w.logger.Debug("ignoring inbox file", logging.String("path", path))
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		// A timer that already fired is about to hand the path off.
		if timer.Stop() {
			timer.Reset(w.settle)
		}
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) destination(name string) string {
	dest := filepath.Join(w.submitted, name)
	if _, err := os.Stat(dest); err != nil {
		return dest
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return filepath.Join(w.submitted, fmt.Sprintf("%s-%s%s", stem, time.Now().Format("20060102-150405.000"), ext))
}
