package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"minutes/internal/api"
	"minutes/internal/config"
	"minutes/internal/services"
	"minutes/internal/task"
)

// HTTPDoer describes the HTTP client used to reach the daemon.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the minutes daemon API.
type Client struct {
	baseURL string
	token   string
	http    HTTPDoer
}

// New constructs a client for baseURL. A nil doer uses a client with a
// generous timeout for uploads and edit round-trips.
func New(baseURL, token string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    doer,
	}
}

// NewFromConfig builds a client from the [client] and [paths] sections.
func NewFromConfig(cfg *config.Config) *Client {
	if cfg == nil {
		return New("", "", nil)
	}
	return New(cfg.Client.ServerURL, cfg.Paths.APIToken, nil)
}

// Submit uploads the audio file at path and returns the new task id.
func (c *Client) Submit(ctx context.Context, path string, hints task.Hints) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "submit", "open audio", "audio file could not be opened", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(writer, file, filepath.Base(path), hints))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/tasks", pr)
	if err != nil {
		_ = pr.Close()
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp api.CreateTaskResponse
	if err := c.do(req, nil, &resp); err != nil {
		_ = pr.Close()
		return "", err
	}
	return resp.TaskID, nil
}

func writeUpload(writer *multipart.Writer, file io.Reader, name string, hints task.Hints) error {
	if hints.Summary != "" {
		if err := writer.WriteField("meeting_summary", hints.Summary); err != nil {
			return err
		}
	}
	if hints.Terms != "" {
		if err := writer.WriteField("key_terms", hints.Terms); err != nil {
			return err
		}
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return writer.Close()
}

// Status fetches the polling payload for a task. Unknown ids return
// services.ErrNotFound; network failures return services.ErrClientTransport.
func (c *Client) Status(ctx context.Context, id string) (api.TaskStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil)
	if err != nil {
		return api.TaskStatus{}, err
	}
	var status api.TaskStatus
	if err := c.do(req, services.ErrClientTransport, &status); err != nil {
		return api.TaskStatus{}, err
	}
	return status, nil
}

// ApplyInstruction asks the daemon to rewrite current per instruction.
func (c *Client) ApplyInstruction(ctx context.Context, instruction, current string) (string, error) {
	var resp api.EditResponse
	if err := c.postJSON(ctx, "/api/edits", api.EditRequest{Document: current, Instruction: instruction}, services.ErrGeneration, &resp); err != nil {
		return "", err
	}
	return resp.Document, nil
}

// Export asks the daemon to export document and returns its URL.
func (c *Client) Export(ctx context.Context, document, title string) (string, error) {
	var resp api.ExportResponse
	if err := c.postJSON(ctx, "/api/exports", api.ExportRequest{Document: document, Title: title}, services.ErrExport, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// Health returns the daemon's collaborator summary.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return api.HealthResponse{}, err
	}
	var resp api.HealthResponse
	if err := c.do(req, services.ErrClientTransport, &resp); err != nil {
		return api.HealthResponse{}, err
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, upstream error, dst any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, upstream, dst)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "client", "build request", "server url not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do executes req and decodes a 2xx body into dst. Non-2xx responses are
// mapped back onto the service markers; 5xx responses use upstream.
func (c *Client) do(req *http.Request, upstream error, dst any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrClientTransport, "client", req.Method+" "+req.URL.Path, "daemon unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return responseError(req, resp, upstream)
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return services.Wrap(services.ErrClientTransport, "client", req.Method+" "+req.URL.Path, "malformed response", err)
	}
	return nil
}

func responseError(req *http.Request, resp *http.Response, upstream error) error {
	var body api.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || strings.TrimSpace(body.Error) == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	if body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}

	var marker error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		marker = services.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		marker = services.ErrConfiguration
	case resp.StatusCode < http.StatusInternalServerError:
		marker = services.ErrValidation
	case resp.StatusCode == http.StatusBadGateway && upstream != nil:
		marker = upstream
	default:
		marker = services.ErrClientTransport
	}
	return services.Wrap(marker, "client", req.Method+" "+req.URL.Path, body.Error, &statusError{code: resp.StatusCode})
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.code)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}
