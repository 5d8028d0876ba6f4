package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"minutes/internal/api"
	"minutes/internal/config"
	"minutes/internal/editor"
	"minutes/internal/export"
	"minutes/internal/generate"
	"minutes/internal/intake"
	"minutes/internal/logging"
	"minutes/internal/notifications"
	"minutes/internal/pipeline"
	"minutes/internal/server"
	"minutes/internal/task"
	"minutes/internal/transcribe"
)

// LockFileName is created under log_dir while a daemon runs.
const LockFileName = "minutesd.lock"

// Collaborators are the external services the daemon drives. Nil fields are
// built from the configuration.
type Collaborators struct {
	Transcriber transcribe.Transcriber
	Generator   generate.Generator
	Exporter    export.Exporter
	Notifier    notifications.Service
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      task.Store
	storeKind  string
	closeStore func() error
	runner     *pipeline.Runner
	sweeper    *task.Sweeper
	server     *server.Server
	inbox      *intake.Watcher
	notifier   notifications.Service

	lockPath  string
	lock      *flock.Flock
	running   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New opens the task store and builds every service. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, collab Collaborators) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	if err := fillCollaborators(ctx, cfg, logger, &collab); err != nil {
		return nil, err
	}

	store, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	runner := pipeline.NewRunner(pipeline.SettingsFrom(cfg), store, collab.Transcriber, collab.Generator, logger,
		pipeline.WithNotifier(collab.Notifier),
	)
	lockPath := filepath.Join(cfg.Paths.LogDir, LockFileName)
	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		storeKind:  cfg.Tasks.Store,
		closeStore: closeStore,
		runner:     runner,
		sweeper:    task.NewSweeper(store, cfg.Retention(), cfg.SweepInterval(), logger),
		notifier:   collab.Notifier,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	d.server = server.New(cfg.Paths.APIBind, server.Deps{
		Launcher:       runner,
		Progress:       api.NewProgressService(store),
		Applier:        editor.NewApplier(collab.Generator, cfg.Generation.Language, logger),
		Exporter:       collab.Exporter,
		Health:         d.health,
		Token:          cfg.Paths.APIToken,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}, logger)

	if strings.TrimSpace(cfg.Paths.InboxDir) != "" {
		inbox, err := intake.New(cfg.Paths.InboxDir, runner, logger)
		if err != nil {
			_ = closeStore()
			return nil, fmt.Errorf("start inbox watcher: %w", err)
		}
		d.inbox = inbox
	}
	return d, nil
}

func fillCollaborators(ctx context.Context, cfg *config.Config, logger *slog.Logger, collab *Collaborators) error {
	var err error
	if collab.Transcriber == nil {
		if collab.Transcriber, err = transcribe.New(cfg, logger); err != nil {
			return err
		}
	}
	if collab.Generator == nil {
		if collab.Generator, err = generate.New(ctx, cfg, logger); err != nil {
			return err
		}
	}
	if collab.Exporter == nil {
		if collab.Exporter, err = export.New(cfg, logger); err != nil {
			return err
		}
	}
	if collab.Notifier == nil {
		collab.Notifier = notifications.NewService(cfg)
	}
	return nil
}

// OpenStore opens the configured task store.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (task.Store, func() error, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	switch cfg.Tasks.Store {
	case "sqlite":
		if dir := filepath.Dir(cfg.Tasks.DatabasePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		store, err := task.OpenSQLStore(ctx, cfg.Tasks.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("opened sqlite task store", logging.String("path", store.Path()))
		return store, store.Close, nil
	default:
		return task.NewMemoryStore(), func() error { return nil }, nil
	}
}

// Run acquires the daemon lock and runs the API server, retention sweeper,
// and inbox watcher until ctx is cancelled or one of them fails. In-flight
// runs are then cancelled and the store is closed.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another minutes daemon instance is already running")
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	if err := d.failStaleTasks(ctx); err != nil {
		return err
	}

	d.logger.Info("minutes daemon started",
		logging.String("lock", d.lockPath),
		logging.String("store", d.storeKind),
		logging.String("bind", d.cfg.Paths.APIBind),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return d.server.Serve(groupCtx) })
	group.Go(func() error { return d.sweeper.Run(groupCtx) })
	if d.inbox != nil {
		group.Go(func() error { return d.inbox.Run(groupCtx) })
	}
	runErr := group.Wait()

	if err := d.Close(); err != nil {
		d.logger.Warn("failed to close task store", logging.Error(err))
	}
	d.logger.Info("minutes daemon stopped")
	return runErr
}

// Close cancels in-flight runs and releases the store and inbox watcher. Run
// calls it on exit; callers only need it when Run never started.
func (d *Daemon) Close() error {
	d.closeOnce.Do(func() {
		d.runner.Shutdown()
		if d.inbox != nil {
			_ = d.inbox.Close()
		}
		d.closeErr = d.closeStore()
	})
	return d.closeErr
}

// failStaleTasks marks records a previous process left running as failed;
// their runs cannot resume. Only shared stores can hold such records.
func (d *Daemon) failStaleTasks(ctx context.Context) error {
	sqlStore, ok := d.store.(*task.SQLStore)
	if !ok {
		return nil
	}
	failed, err := sqlStore.FailRunning(ctx, task.DaemonStopReason)
	if err != nil {
		return err
	}
	if failed > 0 {
		d.logger.Warn("failed tasks left running by a previous daemon",
			logging.String(logging.FieldEventType, "stale_tasks_failed"),
			logging.Int64("count", failed),
		)
	}
	return nil
}

// Running reports whether Run is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LockPath returns the single-instance lock file path.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Addr returns the API listener address once the server is listening.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}

// TestNotification sends a test notification with the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) error {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return errors.New("ntfy topic not configured")
	}
	return d.notifier.Publish(ctx, notifications.EventTest, nil)
}

func (d *Daemon) health(context.Context) api.HealthResponse {
	exporter := d.cfg.Export.Format
	if strings.TrimSpace(d.cfg.Export.AzureConnectionString) != "" {
		exporter += "+azblob"
	}
	return api.HealthResponse{
		Status:        "ok",
		Transcription: d.cfg.Transcription.Provider,
		Generation:    d.cfg.Generation.Provider,
		Export:        exporter,
		Store:         d.storeKind,
		Running:       d.runner.Active(),
	}
}
