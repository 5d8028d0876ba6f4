// Package editor applies instruction-driven and manual edits to a minutes
// document and tracks them in a version ledger.
package editor
