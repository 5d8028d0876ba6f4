package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"minutes/internal/api"
	"minutes/internal/logging"
	"minutes/internal/pipeline"
	"minutes/internal/services"
	"minutes/internal/task"
)

const (
	multipartMemory = 32 << 20
	maxJSONBody     = 16 << 20
	// uploadSlack covers multipart framing and the hint fields.
	uploadSlack = 1 << 20
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := api.HealthResponse{Status: "ok"}
	if s.deps.Health != nil {
		payload = s.deps.Health(r.Context())
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if s.deps.Launcher == nil {
		s.writeError(w, http.StatusServiceUnavailable, "pipeline unavailable")
		return
	}
	if s.deps.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes+uploadSlack)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the configured size limit")
			return
		}
		s.writeError(w, http.StatusBadRequest, "expected multipart form upload")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	if err := pipeline.ValidateSourceName(header.Filename); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	// The multipart temp files go away with the request; the run reads later.
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "upload could not be read")
		return
	}
	hints := task.Hints{
		Summary: strings.TrimSpace(r.FormValue("meeting_summary")),
		Terms:   strings.TrimSpace(r.FormValue("key_terms")),
	}
	id, err := s.deps.Launcher.Launch(r.Context(), pipeline.BytesInput(header.Filename, data, hints))
	if err != nil {
		if errors.Is(err, pipeline.ErrStopped) {
			s.writeError(w, http.StatusServiceUnavailable, "daemon is shutting down")
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	logging.WithContext(services.WithTaskID(r.Context(), id), s.logger).Info("upload accepted",
		logging.String(logging.FieldEventType, "upload_accepted"),
		logging.String("source", header.Filename),
		logging.Int("size_bytes", len(data)),
	)
	s.writeJSON(w, http.StatusAccepted, api.CreateTaskResponse{TaskID: id})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Progress == nil {
		s.writeError(w, http.StatusServiceUnavailable, "task store unavailable")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	status, err := s.deps.Progress.Status(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if s.deps.Applier == nil {
		s.writeError(w, http.StatusServiceUnavailable, "editor unavailable")
		return
	}
	var req api.EditRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	updated, err := s.deps.Applier.ApplyInstruction(r.Context(), req.Instruction, req.Document)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.EditResponse{Document: updated})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Exporter == nil {
		s.writeError(w, http.StatusServiceUnavailable, "exporter unavailable")
		return
	}
	var req api.ExportRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	url, err := s.deps.Exporter.Export(r.Context(), req.Document, req.Title)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ExportResponse{URL: url})
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
