// Package daemon coordinates the long-running minutesd process.
//
// It wires configuration, the task store, the pipeline runner, the retention
// sweeper, the optional inbox watcher, and the HTTP API into a single
// lifecycle with flock-based locking to prevent multiple instances. Services
// run under an errgroup; when any of them fails or the context ends, in-flight
// runs are cancelled (and marked failed) before the store closes.
//
// Keep orchestration logic here: pipeline behavior belongs to the pipeline
// package and request handling to the server package.
package daemon
