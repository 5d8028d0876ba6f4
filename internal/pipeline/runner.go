package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"minutes/internal/config"
	"minutes/internal/generate"
	"minutes/internal/logging"
	"minutes/internal/notifications"
	"minutes/internal/services"
	"minutes/internal/task"
	"minutes/internal/transcribe"
)

const tracerName = "minutes/pipeline"

// WaitingMessage is shown on tasks queued behind the concurrency limit.
const WaitingMessage = "Waiting for a worker"

// ErrStopped is returned by Launch after Shutdown.
var ErrStopped = errors.New("pipeline runner stopped")

// Settings holds the config values the runner reads.
type Settings struct {
	StagingDir     string
	MaxUploadBytes int64
	MaxConcurrent  int
	Language       string
}

// SettingsFrom extracts runner settings from the loaded configuration.
func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		StagingDir:     cfg.Paths.StagingDir,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		MaxConcurrent:  cfg.Tasks.MaxConcurrent,
		Language:       cfg.Generation.Language,
	}
}

// Option customizes a Runner.
type Option func(*Runner)

// WithNotifier publishes completion and failure events.
func WithNotifier(notifier notifications.Service) Option {
	return func(r *Runner) {
		if notifier != nil {
			r.notifier = notifier
		}
	}
}

// WithTracerProvider records stage spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runner) {
		if tp != nil {
			r.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithBands overrides the progress band table. Invalid tables are ignored.
func WithBands(bands Bands) Option {
	return func(r *Runner) {
		if err := bands.Validate(); err != nil {
			r.logger.Warn("ignoring invalid progress bands", logging.Error(err))
			return
		}
		r.bands = bands
	}
}

// Runner executes the preparing, transcribing, and generating stages for each
// launched task on its own goroutine. Only the runner writes a task's record.
type Runner struct {
	store       task.Store
	transcriber transcribe.Transcriber
	generator   generate.Generator
	notifier    notifications.Service
	logger      *slog.Logger
	tracer      trace.Tracer
	bands       Bands
	settings    Settings

	slots  chan struct{}
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Int64
}

// NewRunner constructs a runner. Runs are detached from the contexts passed
// to Launch; Shutdown is the only way to cancel them.
func NewRunner(settings Settings, store task.Store, transcriber transcribe.Transcriber, generator generate.Generator, logger *slog.Logger, opts ...Option) *Runner {
	if settings.MaxConcurrent <= 0 {
		settings.MaxConcurrent = 1
	}
	if strings.TrimSpace(settings.StagingDir) == "" {
		settings.StagingDir = os.TempDir()
	}
	base, cancel := context.WithCancel(context.Background())
	r := &Runner{
		store:       store,
		transcriber: transcriber,
		generator:   generator,
		notifier:    notifications.NewService(nil),
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		tracer:      otel.Tracer(tracerName),
		bands:       DefaultBands(),
		settings:    settings,
		slots:       make(chan struct{}, settings.MaxConcurrent),
		base:        base,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Launch creates the task record and starts the stage sequence in the
// background. It returns the task id before any stage has completed.
func (r *Runner) Launch(ctx context.Context, in Input) (string, error) {
	if r.base.Err() != nil {
		return "", ErrStopped
	}
	rec, err := r.store.Create(ctx, task.Submission{SourceName: strings.TrimSpace(in.SourceName), Hints: in.Hints})
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}

	runCtx := services.WithTaskID(r.base, rec.ID)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		runCtx = services.WithRequestID(runCtx, rid)
	}
	logging.WithContext(runCtx, r.logger).Info("task accepted",
		logging.String(logging.FieldEventType, "task_accepted"),
		logging.String("source", rec.SourceName),
		logging.Int64("size_bytes", in.Size),
		logging.Bool("has_hints", !in.Hints.Empty()),
	)

	r.wg.Add(1)
	r.active.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.active.Add(-1)
		r.run(runCtx, rec.ID, in)
	}()
	return rec.ID, nil
}

// Active returns the number of launched runs that have not finished.
func (r *Runner) Active() int {
	return int(r.active.Load())
}

// Wait blocks until every launched run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels in-flight runs and waits for them. Interrupted tasks are
// marked failed with task.DaemonStopReason.
func (r *Runner) Shutdown() {
	r.cancel()
	r.wg.Wait()
}

type stageStep struct {
	stage   task.Stage
	message string
	run     func(context.Context) error
}

func (r *Runner) run(ctx context.Context, id string, in Input) {
	started := time.Now()
	logger := logging.WithContext(ctx, r.logger)
	rep := newReporter(r.store, id, logger)

	ctx, span := r.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("task.id", id),
		attribute.String("task.source", in.SourceName),
	))
	defer span.End()

	if !r.acquire(ctx, rep) {
		r.fail(ctx, rep, in, task.StagePreparing, ctx.Err())
		span.SetStatus(codes.Error, task.DaemonStopReason)
		return
	}
	defer func() { <-r.slots }()

	var (
		audio      transcribe.Audio
		transcript string
		document   string
	)
	defer func() {
		if audio.Path != "" {
			if err := os.Remove(audio.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warn("failed to remove staged upload",
					logging.String("path", audio.Path),
					logging.Error(err),
				)
			}
		}
	}()

	steps := []stageStep{
		{task.StagePreparing, "Preparing upload", func(ctx context.Context) error {
			staged, err := stageUpload(ctx, r.settings.StagingDir, r.settings.MaxUploadBytes, in)
			audio = staged
			return err
		}},
		{task.StageTranscribing, "Transcribing audio", func(ctx context.Context) error {
			text, err := r.transcriber.Transcribe(ctx, audio, in.Hints)
			if err != nil {
				return services.Wrap(services.ErrTranscription, "transcribing", "transcribe", "Transcription failed", err)
			}
			if strings.TrimSpace(text) == "" {
				return services.Wrap(services.ErrTranscription, "transcribing", "transcribe", "Transcription returned no text", nil)
			}
			transcript = text
			return nil
		}},
		{task.StageGenerating, "Generating minutes", func(ctx context.Context) error {
			prompt := generate.MinutesPrompt(transcript, in.Hints, r.settings.Language)
			doc, err := r.generator.Generate(ctx, prompt)
			if err != nil {
				return services.Wrap(services.ErrGeneration, "generating", "generate", "Minutes generation failed", err)
			}
			if strings.TrimSpace(doc) == "" {
				return services.Wrap(services.ErrGeneration, "generating", "generate", "Generator returned an empty document", nil)
			}
			document = doc
			return nil
		}},
	}

	for _, step := range steps {
		if err := r.runStage(ctx, rep, step); err != nil {
			r.fail(ctx, rep, in, step.stage, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, services.Details(err).Message)
			return
		}
	}

	if err := rep.complete(ctx, task.Result{RawText: transcript, Document: document}); err != nil {
		logger.Error("failed to persist task result",
			logging.String(logging.FieldEventType, "task_persist_failed"),
			logging.String(logging.FieldErrorHint, "check task store access"),
			logging.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist result")
		return
	}
	elapsed := time.Since(started)
	logger.Info("task completed",
		logging.String(logging.FieldEventType, "task_completed"),
		logging.Duration("elapsed", elapsed),
		logging.Int("transcript_chars", len([]rune(transcript))),
		logging.Int("document_chars", len([]rune(document))),
	)
	r.publish(ctx, logger, notifications.EventTaskCompleted, notifications.Payload{
		"taskId":  id,
		"source":  in.SourceName,
		"elapsed": elapsed,
	})
}

// acquire takes a worker slot. While waiting the task stays at stage 1 with
// WaitingMessage. It returns false if the runner shuts down first.
func (r *Runner) acquire(ctx context.Context, rep *reporter) bool {
	select {
	case r.slots <- struct{}{}:
		return true
	default:
	}
	rep.publish(ctx, task.StagePreparing, r.bands.For(task.StagePreparing).Start, WaitingMessage)
	select {
	case r.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Runner) runStage(ctx context.Context, rep *reporter, step stageStep) error {
	stageCtx := services.WithStage(ctx, step.stage.String())
	stageCtx, span := r.tracer.Start(stageCtx, "pipeline."+step.stage.String(), trace.WithAttributes(
		attribute.String("task.id", rep.id),
		attribute.Int("task.stage", int(step.stage)),
	))
	defer span.End()

	logger := logging.WithContext(stageCtx, r.logger)
	band := r.bands.For(step.stage)
	rep.publish(stageCtx, step.stage, band.Start, step.message)
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int(logging.FieldProgress, band.Start),
	)

	reportCtx := stageCtx
	execCtx := services.WithProgress(stageCtx, func(fraction float64) {
		rep.publish(reportCtx, step.stage, band.At(fraction), step.message)
	})

	started := time.Now()
	if err := step.run(execCtx); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, services.Details(err).Message)
		return err
	}
	rep.publish(stageCtx, step.stage, band.End, step.message)
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(started)),
	)
	return nil
}

func (r *Runner) fail(ctx context.Context, rep *reporter, in Input, stage task.Stage, stageErr error) {
	reason := task.DaemonStopReason
	if stageErr != nil && !errors.Is(stageErr, context.Canceled) {
		reason = strings.TrimSpace(services.Details(stageErr).Message)
	}
	// ctx may already be canceled on shutdown; the failure still has to land.
	persistCtx := context.WithoutCancel(ctx)
	logger := logging.WithContext(services.WithStage(persistCtx, stage.String()), r.logger)
	logger.Error("task failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorHint, failureHint(stageErr)),
		logging.String("error_message", reason),
		logging.Error(stageErr),
	)
	if err := rep.fail(persistCtx, reason); err != nil {
		logger.Error("failed to persist task failure", logging.Error(err))
	}
	r.publish(persistCtx, logger, notifications.EventTaskFailed, notifications.Payload{
		"taskId": rep.id,
		"source": in.SourceName,
		"stage":  stage.Label(),
		"error":  reason,
	})
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "resubmit the recording after the daemon restarts"
	case errors.Is(err, services.ErrValidation):
		return "check the file format and size"
	case errors.Is(err, services.ErrTranscription):
		return "check transcription provider credentials and quota"
	case errors.Is(err, services.ErrGeneration):
		return "check generation provider credentials and quota"
	default:
		return "inspect daemon logs"
	}
}

func (r *Runner) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := r.notifier.Publish(ctx, event, payload); err != nil {
		logger.Debug("task notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}
