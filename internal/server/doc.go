// Package server exposes the task, edit, and export operations over HTTP.
//
// Routes:
//
//	GET  /api/health      collaborator summary (no auth)
//	POST /api/tasks       multipart upload (file, meeting_summary, key_terms) -> 202 {taskId}
//	GET  /api/tasks/{id}  polling payload, 404 for unknown or expired ids
//	POST /api/edits       {document, instruction} -> {document}
//	POST /api/exports     {document, title} -> {url}
//
// When an API token is configured every route except health requires
// "Authorization: Bearer <token>".
package server
