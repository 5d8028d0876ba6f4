// Package task holds pipeline task records and the stores that keep them.
//
// A Record carries a task's stage ordinal, progress percentage, message,
// status, and either a result or a failure reason. Stores expose Create, Get,
// and a single Update mutation path that applies a Patch atomically, so
// concurrent progress readers never see a half-written record. Terminal
// records reject further updates.
//
// MemoryStore is the default backend; SQLStore persists to SQLite for
// deployments that want task state to outlive the process. Sweeper expires
// finished records after the configured retention window.
package task
