// Package api holds the transport-neutral payloads shared by the HTTP server
// and client, and the read-only ProgressService that projects task records
// onto them.
package api
