package transcribe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"minutes/internal/logging"
	"minutes/internal/services"
	"minutes/internal/task"
)

// WhisperXConfig configures the local whisperx CLI.
type WhisperXConfig struct {
	Binary   string
	Model    string
	Language string
	WorkDir  string
}

// commandRunner executes name with args and feeds each output line to onLine.
type commandRunner func(ctx context.Context, name string, args []string, onLine func(string)) error

// WhisperXTranscriber runs whisperx on the staged file and reads its .txt output.
type WhisperXTranscriber struct {
	cfg    WhisperXConfig
	logger *slog.Logger
	run    commandRunner
}

// NewWhisperXTranscriber constructs a transcriber backed by the whisperx CLI.
func NewWhisperXTranscriber(cfg WhisperXConfig, logger *slog.Logger) *WhisperXTranscriber {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "whisperx"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "large-v3-turbo"
	}
	return &WhisperXTranscriber{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "whisperx"),
		run:    execRunner,
	}
}

var progressLine = regexp.MustCompile(`Progress:\s*([0-9]+(?:\.[0-9]+)?)%`)

// Transcribe runs whisperx into a per-call output directory and returns the
// transcript. Progress lines printed by whisperx are forwarded to the
// context's progress callback.
func (w *WhisperXTranscriber) Transcribe(ctx context.Context, audio Audio, hints task.Hints) (string, error) {
	if strings.TrimSpace(audio.Path) == "" {
		return "", errors.New("transcribe: source path required")
	}
	workDir := w.cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(audio.Path)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure work dir: %w", err)
	}
	outputDir, err := os.MkdirTemp(workDir, "whisperx-*")
	if err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	args := w.buildArgs(audio.Path, outputDir, InitialPrompt(hints, w.cfg.Language))
	w.logger.Debug("running whisperx",
		logging.String("binary", w.cfg.Binary),
		logging.String("model", w.cfg.Model),
		logging.String("source", audio.Path),
	)
	onLine := func(line string) {
		if match := progressLine.FindStringSubmatch(line); match != nil {
			if pct, err := strconv.ParseFloat(match[1], 64); err == nil {
				services.ReportProgress(ctx, pct/100)
			}
		}
	}
	if err := w.run(ctx, w.cfg.Binary, args, onLine); err != nil {
		return "", fmt.Errorf("whisperx: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(audio.Path), filepath.Ext(audio.Path))
	data, err := os.ReadFile(filepath.Join(outputDir, base+".txt"))
	if err != nil {
		return "", fmt.Errorf("read whisperx output: %w", err)
	}
	sep := " "
	if strings.HasPrefix(strings.ToLower(w.cfg.Language), "ja") {
		sep = ""
	}
	text := strings.Join(nonEmptyLines(string(data)), sep)
	if text == "" {
		return "", errors.New("empty transcript")
	}
	return text, nil
}

func nonEmptyLines(value string) []string {
	var lines []string
	for _, line := range strings.Split(value, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func (w *WhisperXTranscriber) buildArgs(source, outputDir, prompt string) []string {
	args := []string{
		source,
		"--model", w.cfg.Model,
		"--output_dir", outputDir,
		"--output_format", "txt",
		"--print_progress", "True",
	}
	if lang := strings.TrimSpace(w.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if prompt != "" {
		args = append(args, "--initial_prompt", prompt)
	}
	return args
}

func execRunner(ctx context.Context, name string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	// Torch 2.6 changed torch.load defaults and breaks bundled whisperx checkpoints.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		onLine(scanner.Text())
	}
	_, _ = io.Copy(io.Discard, stdout)
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%w: %s", err, tail(stderr.String(), 400))
	}
	return nil
}

func tail(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return "..." + value[len(value)-limit:]
}
