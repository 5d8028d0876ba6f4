package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrTranscription   = errors.New("transcription error")
	ErrGeneration      = errors.New("generation error")
	ErrExport          = errors.New("export error")
	ErrNoOp            = errors.New("no earlier version")
	ErrClientTransport = errors.New("client transport error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrGeneration
	}
	if err != nil {
		return &wrappedError{marker: marker, detail: detail, message: strings.TrimSpace(message), cause: err}
	}
	return &wrappedError{marker: marker, detail: detail, message: strings.TrimSpace(message)}
}

// ErrorDetails is the user-facing portion of a wrapped error.
type ErrorDetails struct {
	Marker  error
	Message string
}

// Details extracts the marker and human-readable message from err. When err
// was not produced by Wrap the message falls back to err.Error().
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var wrapped *wrappedError
	if errors.As(err, &wrapped) {
		msg := wrapped.message
		if msg == "" {
			msg = wrapped.detail
		}
		if wrapped.cause != nil {
			msg = fmt.Sprintf("%s: %s", msg, strings.TrimSpace(wrapped.cause.Error()))
		}
		return ErrorDetails{Marker: wrapped.marker, Message: msg}
	}
	return ErrorDetails{Message: strings.TrimSpace(err.Error())}
}

// HTTPStatus maps an error onto the status code the API layer should return.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNoOp):
		return 400
	case errors.Is(err, ErrGeneration), errors.Is(err, ErrTranscription), errors.Is(err, ErrExport):
		return 502
	default:
		return 500
	}
}

type wrappedError struct {
	marker  error
	detail  string
	message string
	cause   error
}

func (e *wrappedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.marker, e.detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.marker, e.detail)
}

func (e *wrappedError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.marker, e.cause}
	}
	return []error{e.marker}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
