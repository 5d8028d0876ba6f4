package api

import "minutes/internal/task"

// FromRecord projects a task record onto the polling payload.
func FromRecord(rec *task.Record) TaskStatus {
	if rec == nil {
		return TaskStatus{}
	}
	status := TaskStatus{
		TaskID:     rec.ID,
		Progress:   rec.Progress,
		Stage:      int(rec.Stage),
		StageLabel: rec.Stage.Label(),
		Message:    rec.Message,
		Completed:  rec.Status == task.StatusCompleted,
		Error:      rec.Status == task.StatusFailed,
	}
	if status.Error {
		status.ErrorMessage = rec.Failure
	}
	if status.Completed && rec.Result != nil {
		status.Result = &TaskResult{RawText: rec.Result.RawText, Document: rec.Result.Document}
	}
	return status
}
