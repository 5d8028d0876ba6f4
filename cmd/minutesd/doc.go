// Package main is the minutesd entrypoint. It loads configuration, sets up
// logging and runs the daemon until SIGINT or SIGTERM.
package main
