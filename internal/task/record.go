package task

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage is the externally visible pipeline position. Ordinals are part of the
// progress protocol and must not be renumbered.
type Stage int

const (
	StagePreparing    Stage = 1
	StageTranscribing Stage = 2
	StageGenerating   Stage = 3
	StageCompleted    Stage = 4
)

var stageNames = map[Stage]string{
	StagePreparing:    "preparing",
	StageTranscribing: "transcribing",
	StageGenerating:   "generating",
	StageCompleted:    "completed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Label returns the display form of the stage name.
func (s Stage) Label() string {
	return cases.Title(language.English).String(s.String())
}

// Valid reports whether s is one of the four pipeline stages.
func (s Stage) Valid() bool {
	_, ok := stageNames[s]
	return ok
}

// Status is the coarse lifecycle state of a task.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// DaemonStopReason is recorded on tasks that were still running when a
// previous daemon process exited.
const DaemonStopReason = "Daemon stopped"

// Hints are optional caller-provided cues for transcription and generation.
type Hints struct {
	Summary string
	Terms   string
}

// Empty reports whether no hint text was supplied.
func (h Hints) Empty() bool {
	return strings.TrimSpace(h.Summary) == "" && strings.TrimSpace(h.Terms) == ""
}

// Result is the payload of a completed task.
type Result struct {
	RawText  string
	Document string
}

// Submission carries the caller-supplied metadata needed to create a task.
type Submission struct {
	SourceName string
	Hints      Hints
}

// Record is the single source of truth for one pipeline run.
type Record struct {
	ID         string
	Stage      Stage
	Progress   int
	Message    string
	Status     Status
	Result     *Result
	Failure    string
	Hints      Hints
	SourceName string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt time.Time
}

// IsTerminal reports whether the record reached completed or failed.
func (r *Record) IsTerminal() bool {
	return r != nil && (r.Status == StatusCompleted || r.Status == StatusFailed)
}

// Clone returns a deep copy safe to hand to readers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Result != nil {
		result := *r.Result
		cp.Result = &result
	}
	return &cp
}

// Patch lists the fields an Update changes. Nil fields are left untouched.
type Patch struct {
	Stage    *Stage
	Progress *int
	Message  *string
	Status   *Status
	Result   *Result
	Failure  *string
}

// ProgressPatch reports a stage position and message while running.
func ProgressPatch(stage Stage, progress int, message string) Patch {
	return Patch{Stage: &stage, Progress: &progress, Message: &message}
}

// CompletePatch moves a task to the completed stage with its result.
func CompletePatch(result Result) Patch {
	stage := StageCompleted
	progress := 100
	status := StatusCompleted
	message := "Minutes ready"
	return Patch{Stage: &stage, Progress: &progress, Status: &status, Message: &message, Result: &result}
}

// FailPatch moves a task to failed. Stage and progress are left where they
// were so the payload shows how far the run got.
func FailPatch(reason string) Patch {
	status := StatusFailed
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Task failed"
	}
	return Patch{Status: &status, Failure: &reason, Message: &reason}
}

// apply merges p into r. Terminal records are never changed; callers check
// IsTerminal first and report ErrTerminal.
func (p Patch) apply(r *Record, now time.Time) {
	if p.Stage != nil && p.Stage.Valid() {
		r.Stage = *p.Stage
	}
	if p.Progress != nil {
		r.Progress = clampProgress(*p.Progress)
	}
	if p.Message != nil {
		r.Message = strings.TrimSpace(*p.Message)
	}
	if p.Failure != nil {
		r.Failure = strings.TrimSpace(*p.Failure)
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Result != nil && r.Status == StatusCompleted {
		result := *p.Result
		r.Result = &result
	}
	r.UpdatedAt = now
	if r.IsTerminal() && r.FinishedAt.IsZero() {
		r.FinishedAt = now
	}
}

func clampProgress(value int) int {
	switch {
	case value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}
