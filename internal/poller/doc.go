// Package poller drives asynchronous external generation jobs to completion.
//
// A job is submitted once to obtain an opaque handle, then its status is
// fetched on a fixed interval until it succeeds, fails, or the attempt
// ceiling is reached. Transient fetch errors consume an attempt but do not
// abort the loop. The sleep between polls is injectable so tests can simulate
// elapsed time deterministically.
package poller
