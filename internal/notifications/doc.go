// Package notifications delivers task events via ntfy.
//
// NewService returns a no-op when no topic is configured, so callers can
// publish unconditionally.
package notifications
