// Package services defines shared utilities consumed by the pipeline stages,
// the edit applier, and the external collaborator clients.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so collaborator failures
//     surface with a consistent classification (transcription, generation,
//     export, validation) and a human-readable message for task failure text.
//   - HTTPStatus, the single mapping from error markers to API status codes.
//
// Use these helpers when wiring new collaborators so operational behaviour
// (error text, observability) stays uniform across the pipeline.
package services
