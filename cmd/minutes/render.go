package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"minutes/internal/api"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	progressBarWidth = 24
	totalStages      = 4
)

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func progressBar(percent, width int) string {
	percent = max(0, min(100, percent))
	filled := percent * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func stateLabel(s api.TaskStatus) string {
	switch {
	case s.Error:
		return "failed"
	case s.Completed:
		return "completed"
	default:
		return "running"
	}
}

func stateColor(s api.TaskStatus) string {
	switch {
	case s.Error:
		return ansiRed
	case s.Completed:
		return ansiGreen
	case s.Progress == 0:
		return ansiYellow
	default:
		return ansiBlue
	}
}

// renderProgressLine renders one status as a single line suitable for
// rewriting in place.
func renderProgressLine(s api.TaskStatus, colorize bool) string {
	message := s.Message
	if s.Error && s.ErrorMessage != "" {
		message = s.ErrorMessage
	}
	line := fmt.Sprintf("%s %3d%%  %d/%d %-12s %s",
		progressBar(s.Progress, progressBarWidth), s.Progress, s.Stage, totalStages, s.StageLabel, message)
	if colorize {
		return stateColor(s) + line + ansiReset
	}
	return line
}

func statusFields(s api.TaskStatus) [][2]string {
	fields := [][2]string{
		{"Task", s.TaskID},
		{"State", stateLabel(s)},
		{"Stage", fmt.Sprintf("%d/%d %s", s.Stage, totalStages, s.StageLabel)},
		{"Progress", fmt.Sprintf("%d%%", s.Progress)},
		{"Message", s.Message},
	}
	if s.Error {
		fields = append(fields, [2]string{"Error", s.ErrorMessage})
	}
	if s.Result != nil {
		fields = append(fields,
			[2]string{"Transcript", fmt.Sprintf("%d characters", len([]rune(s.Result.RawText)))},
			[2]string{"Minutes", fmt.Sprintf("%d characters", len([]rune(s.Result.Document)))},
		)
	}
	return fields
}

func firstLine(doc string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(doc), "\n")
	if runes := []rune(line); len(runes) > 48 {
		return string(runes[:47]) + "…"
	}
	return line
}
