// Package main hosts the minutes CLI.
//
// Every command talks to a running minutesd over its HTTP API: uploads go
// through submit, progress is followed with the client poller, and the edit
// command keeps the version history locally while the daemon applies each
// instruction and performs exports. The CLI only reads configuration to find
// the server URL, token and polling cadence.
package main
