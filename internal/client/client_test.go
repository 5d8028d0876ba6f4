package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minutes/internal/api"
	"minutes/internal/client"
	"minutes/internal/editor"
	"minutes/internal/services"
	"minutes/internal/task"
)

var (
	_ editor.InstructionApplier = (*client.Client)(nil)
	_ editor.DocumentExporter   = (*client.Client)(nil)
)

func TestSubmitStreamsMultipartUpload(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "weekly.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("ID3 payload"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tasks", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "weekly.mp3", header.Filename)
		assert.Equal(t, "ID3 payload", string(data))
		assert.Equal(t, "planning", r.FormValue("meeting_summary"))
		assert.Equal(t, "OKR", r.FormValue("key_terms"))
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.CreateTaskResponse{TaskID: "task-1"})
	}))
	defer srv.Close()

	c := client.New(srv.URL, "tok", srv.Client())
	id, err := c.Submit(context.Background(), audio, task.Hints{Summary: "planning", Terms: "OKR"})
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)
}

func TestSubmitMissingFile(t *testing.T) {
	c := client.New("http://127.0.0.1:1", "", nil)
	_, err := c.Submit(context.Background(), filepath.Join(t.TempDir(), "absent.wav"), task.Hints{})
	require.ErrorIs(t, err, services.ErrValidation)
}

func TestStatusMapsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tasks/known":
			_ = json.NewEncoder(w).Encode(api.TaskStatus{TaskID: "known", Progress: 35, Stage: 2})
		case "/api/tasks/broken":
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "boom"})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "task not found"})
		}
	}))
	defer srv.Close()
	c := client.New(srv.URL, "", srv.Client())

	status, err := c.Status(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, 35, status.Progress)

	_, err = c.Status(context.Background(), "missing")
	require.ErrorIs(t, err, services.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, client.StatusCode(err))

	_, err = c.Status(context.Background(), "broken")
	require.ErrorIs(t, err, services.ErrClientTransport)
	assert.Contains(t, services.Details(err).Message, "boom")
}

func TestStatusUnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := client.New(url, "", nil).Status(context.Background(), "abc")
	require.ErrorIs(t, err, services.ErrClientTransport)
}

func TestApplyInstructionAndExport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/edits":
			var req api.EditRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.Instruction == "fail" {
				w.WriteHeader(http.StatusBadGateway)
				_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "generator down"})
				return
			}
			_ = json.NewEncoder(w).Encode(api.EditResponse{Document: req.Document + "\n- " + req.Instruction})
		case "/api/exports":
			var req api.ExportRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			_ = json.NewEncoder(w).Encode(api.ExportResponse{URL: "file:///exports/" + req.Title + ".md"})
		}
	}))
	defer srv.Close()
	c := client.New(srv.URL, "", srv.Client())
	ctx := context.Background()

	doc, err := c.ApplyInstruction(ctx, "add owner", "# Minutes")
	require.NoError(t, err)
	assert.Equal(t, "# Minutes\n- add owner", doc)

	_, err = c.ApplyInstruction(ctx, "fail", "# Minutes")
	require.ErrorIs(t, err, services.ErrGeneration)

	url, err := c.Export(ctx, "# Minutes", "sync")
	require.NoError(t, err)
	assert.Equal(t, "file:///exports/sync.md", url)
}

func TestSessionOverClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.EditRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(api.EditResponse{Document: req.Document + "!"})
	}))
	defer srv.Close()
	c := client.New(srv.URL, "", srv.Client())

	session := editor.NewSession("A", c, c)
	doc, err := session.Apply(context.Background(), "exclaim")
	require.NoError(t, err)
	assert.Equal(t, "A!", doc)

	doc, err = session.Undo()
	require.NoError(t, err)
	assert.Equal(t, "A", doc)
}

func TestMissingServerURL(t *testing.T) {
	_, err := client.New("", "", nil).Status(context.Background(), "x")
	require.ErrorIs(t, err, services.ErrConfiguration)
}
