package api

// TaskStatus is the polling payload for one task. It carries no per-call
// timestamps, so repeated polls without pipeline activity are identical.
type TaskStatus struct {
	TaskID       string      `json:"taskId"`
	Progress     int         `json:"progress"`
	Stage        int         `json:"stage"`
	StageLabel   string      `json:"stageLabel"`
	Message      string      `json:"message"`
	Completed    bool        `json:"completed"`
	Error        bool        `json:"error"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	Result       *TaskResult `json:"result,omitempty"`
}

// TaskResult is present only on completed tasks.
type TaskResult struct {
	RawText  string `json:"rawText"`
	Document string `json:"document"`
}

// Terminal reports whether polling should stop.
func (s TaskStatus) Terminal() bool {
	return s.Completed || s.Error
}

// CreateTaskResponse is returned with 202 Accepted when an upload is accepted.
type CreateTaskResponse struct {
	TaskID string `json:"taskId"`
}

// EditRequest asks the daemon to apply an instruction to a document.
type EditRequest struct {
	Document    string `json:"document"`
	Instruction string `json:"instruction"`
}

// EditResponse carries the rewritten document.
type EditResponse struct {
	Document string `json:"document"`
}

// ExportRequest asks the daemon to export a document snapshot.
type ExportRequest struct {
	Document string `json:"document"`
	Title    string `json:"title"`
}

// ExportResponse carries the exported document location.
type ExportResponse struct {
	URL string `json:"url"`
}

// HealthResponse summarizes the daemon's configured collaborators.
type HealthResponse struct {
	Status        string `json:"status"`
	Transcription string `json:"transcription"`
	Generation    string `json:"generation"`
	Export        string `json:"export"`
	Store         string `json:"store"`
	Running       int    `json:"running,omitempty"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
