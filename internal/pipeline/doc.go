// Package pipeline runs uploaded recordings through the preparing,
// transcribing, and generating stages.
//
// Runner.Launch creates a task record and returns its id immediately; the
// stages run on a background goroutine bounded by a worker semaphore. Each
// stage owns a progress band and publishes its start bound on entry and its
// end bound on success. Collaborators may report intermediate fractions via
// services.ReportProgress. Reports lower than the last published value are
// dropped. A stage error fails the task at that stage and nothing is retried.
package pipeline
