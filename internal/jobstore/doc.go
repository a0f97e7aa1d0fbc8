// Package jobstore persists art generation jobs in SQLite so the daemon can
// report job history and detect duplicate in-flight requests.
package jobstore
