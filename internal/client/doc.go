// Package client is the CLI side of the daemon API: a thin HTTP client for the
// task, edit, and export routes plus a fixed-interval status Poller.
//
// Client satisfies editor.InstructionApplier and editor.DocumentExporter so an
// interactive edit session can keep its version ledger locally while the
// daemon performs the generation and export work.
package client
