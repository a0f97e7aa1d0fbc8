// Package daemon combines the card pipeline, job store, and HTTP API into a
// single lifecycle with flock-based locking to prevent multiple instances.
package daemon
