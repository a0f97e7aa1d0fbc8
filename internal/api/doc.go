// Package api defines the payload types shared by the daemon's HTTP surface
// and the CLI, plus the client the CLI uses to reach a running daemon.
package api
