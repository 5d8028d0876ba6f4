package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"minutes/internal/config"
)

const userAgent = "Minutes-Go/0.1.0"

// Event identifies a task lifecycle milestone.
type Event string

const (
	EventTaskAccepted  Event = "task_accepted"
	EventTaskCompleted Event = "task_completed"
	EventTaskFailed    Event = "task_failed"
	EventTest          Event = "test"
)

// Payload carries event fields. Keys used: "taskId", "source", "error",
// "stage", "elapsed".
type Payload map[string]any

// Service publishes task events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a noop when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// format renders an event. Accepted events are not sent; the submitter
// already has the task id.
func format(event Event, payload Payload) (message, bool) {
	source := payloadString(payload, "source")
	if source == "" {
		source = "recording"
	}
	switch event {
	case EventTaskCompleted:
		body := fmt.Sprintf("📝 Minutes ready: %s", source)
		if elapsed, ok := payload["elapsed"].(time.Duration); ok && elapsed > 0 {
			body = fmt.Sprintf("%s (%s)", body, elapsed.Round(time.Second))
		}
		if id := payloadString(payload, "taskId"); id != "" {
			body += "\nTask: " + id
		}
		return message{
			title: "Minutes - Ready",
			body:  body,
			tags:  []string{"minutes", "task", "completed"},
		}, true
	case EventTaskFailed:
		var b strings.Builder
		b.WriteString("❌ Failed")
		if stage := payloadString(payload, "stage"); stage != "" {
			b.WriteString(" while ")
			b.WriteString(strings.ToLower(stage))
		}
		b.WriteString(" ")
		b.WriteString(source)
		b.WriteString(": ")
		if reason := payloadString(payload, "error"); reason != "" {
			b.WriteString(reason)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Minutes - Error",
			body:     b.String(),
			tags:     []string{"minutes", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Minutes - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"minutes", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
