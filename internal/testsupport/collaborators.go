package testsupport

import (
	"context"
	"os"
	"sync"

	"minutes/internal/generate"
	"minutes/internal/notifications"
	"minutes/internal/services"
	"minutes/internal/task"
	"minutes/internal/transcribe"
)

// StubTranscriber returns Text (or Err) after reporting each Progress value.
// When Block is set the call waits until it is closed or ctx ends.
type StubTranscriber struct {
	Text     string
	Err      error
	Progress []float64
	Block    chan struct{}

	mu           sync.Mutex
	calls        int
	audio        []transcribe.Audio
	hints        []task.Hints
	stagedExists []bool
}

func (s *StubTranscriber) Transcribe(ctx context.Context, audio transcribe.Audio, hints task.Hints) (string, error) {
	_, statErr := os.Stat(audio.Path)
	s.mu.Lock()
	s.calls++
	s.audio = append(s.audio, audio)
	s.hints = append(s.hints, hints)
	s.stagedExists = append(s.stagedExists, statErr == nil)
	s.mu.Unlock()

	for _, fraction := range s.Progress {
		services.ReportProgress(ctx, fraction)
	}
	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Text, nil
}

func (s *StubTranscriber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastAudio returns the most recent staged audio and whether the staged file
// existed when Transcribe was called.
func (s *StubTranscriber) LastAudio() (transcribe.Audio, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.audio) == 0 {
		return transcribe.Audio{}, false
	}
	n := len(s.audio) - 1
	return s.audio[n], s.stagedExists[n]
}

func (s *StubTranscriber) LastHints() task.Hints {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.hints) == 0 {
		return task.Hints{}
	}
	return s.hints[len(s.hints)-1]
}

// StubGenerator answers every prompt with Reply, or Text/Err when Reply is nil.
type StubGenerator struct {
	Text  string
	Err   error
	Reply func(generate.Prompt) (string, error)

	mu      sync.Mutex
	prompts []generate.Prompt
}

func (s *StubGenerator) Generate(_ context.Context, prompt generate.Prompt) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	reply := s.Reply
	s.mu.Unlock()
	if reply != nil {
		return reply(prompt)
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Text, nil
}

// Prompts returns a copy of every prompt received.
func (s *StubGenerator) Prompts() []generate.Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]generate.Prompt(nil), s.prompts...)
}

// StubExporter records the last export and returns URL.
type StubExporter struct {
	URL string
	Err error

	mu       sync.Mutex
	document string
	title    string
}

func (s *StubExporter) Export(_ context.Context, document, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document, s.title = document, title
	if s.Err != nil {
		return "", s.Err
	}
	return s.URL, nil
}

// Last returns the most recently exported document and title.
func (s *StubExporter) Last() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document, s.title
}

// RecordingNotifier captures published events.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *RecordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *RecordingNotifier) Events() []notifications.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Event(nil), n.events...)
}
