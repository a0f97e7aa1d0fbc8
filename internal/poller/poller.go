package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cardforge/internal/logging"
	"cardforge/internal/services"
)

// Status is the lifecycle state reported for an asynchronous generation job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status ends the poll loop.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

const (
	// DefaultInterval is the pause between consecutive status checks.
	DefaultInterval = 5 * time.Second
	// DefaultMaxAttempts bounds the number of status checks per job.
	DefaultMaxAttempts = 60
)

// Update is a single poll response from the external service.
type Update struct {
	Status Status
	Result any    // present when Status is succeeded
	Reason string // external failure reason when Status is failed
}

// Job describes one asynchronous generation request. Submit sends the request
// and returns the external job handle; Fetch queries the job's current state.
type Job struct {
	Name   string
	Submit func(ctx context.Context) (string, error)
	Fetch  func(ctx context.Context, handle string) (Update, error)
}

// Outcome reports a completed run.
type Outcome struct {
	Handle   string
	Attempts int
	Result   any
}

// Sleeper suspends between status checks. Implementations must honor context
// cancellation.
type Sleeper func(ctx context.Context, d time.Duration) error

// Poller drives asynchronous external jobs to completion on a fixed interval
// with a bounded attempt count. It performs no caching; callers persist
// successful results themselves.
type Poller struct {
	interval    time.Duration
	maxAttempts int
	sleep       Sleeper
	logger      *slog.Logger
}

// Option customizes a Poller.
type Option func(*Poller)

// WithSleeper overrides how inter-poll waits are performed (useful for tests).
func WithSleeper(sleep Sleeper) Option {
	return func(p *Poller) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logging.NewComponentLogger(logger, "poller")
		}
	}
}

// New constructs a poller. Non-positive interval or attempt values fall back
// to the defaults.
func New(interval time.Duration, maxAttempts int, opts ...Option) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	p := &Poller{
		interval:    interval,
		maxAttempts: maxAttempts,
		sleep:       sleepWithContext,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run submits the job and polls it until a terminal state, the attempt ceiling,
// or context cancellation. A transient fetch error consumes an attempt but the
// loop continues; a fetch error tagged with a terminal services marker stops
// the loop, as do terminal statuses on the iteration they are observed.
func (p *Poller) Run(ctx context.Context, job Job) (Outcome, error) {
	var outcome Outcome
	if job.Submit == nil || job.Fetch == nil {
		return outcome, services.Wrap(services.ErrValidation, "poller", job.Name, "job requires submit and fetch functions", nil)
	}

	handle, err := job.Submit(ctx)
	if err != nil {
		return outcome, services.Wrap(services.ErrSubmission, "poller", job.Name, "submit generation request", err)
	}
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return outcome, services.Wrap(services.ErrSubmission, "poller", job.Name, "external service returned empty job handle", nil)
	}
	outcome.Handle = handle

	p.logger.Info("generation job submitted",
		logging.String("job", job.Name),
		logging.String("handle", handle),
		logging.Duration("interval", p.interval),
		logging.Int("max_attempts", p.maxAttempts))

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := p.sleep(ctx, p.interval); err != nil {
			return outcome, err
		}

		outcome.Attempts = attempt
		update, err := job.Fetch(ctx, handle)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return outcome, err
			}
			if services.Terminal(err) {
				return outcome, services.Wrap(services.ErrGeneration, "poller", job.Name, "poll reported a final failure", err)
			}
			// A single failed poll is tolerated; brief external hiccups
			// should not abort a five minute render.
			lastErr = err
			p.logger.Warn("poll attempt failed",
				logging.String("job", job.Name),
				logging.String("handle", handle),
				logging.Int("attempt", attempt),
				logging.Error(err),
				logging.String(logging.FieldEventType, "poll_attempt_failed"),
				logging.String(logging.FieldErrorHint, "polling continues until the attempt ceiling"),
				logging.String(logging.FieldImpact, "job completion may be delayed"))
			continue
		}

		switch update.Status {
		case StatusSucceeded:
			outcome.Result = update.Result
			p.logger.Info("generation job succeeded",
				logging.String("job", job.Name),
				logging.String("handle", handle),
				logging.Int("attempts", attempt))
			return outcome, nil
		case StatusFailed:
			reason := strings.TrimSpace(update.Reason)
			if reason == "" {
				reason = "external service reported failure"
			}
			return outcome, services.Wrap(services.ErrGeneration, "poller", job.Name, reason, nil)
		case StatusPending, StatusRunning:
			p.logger.Debug("generation job still in flight",
				logging.String("job", job.Name),
				logging.String("handle", handle),
				logging.String("status", string(update.Status)),
				logging.Int("attempt", attempt))
		default:
			lastErr = fmt.Errorf("unknown job status %q", update.Status)
		}
	}

	return outcome, services.Wrap(services.ErrTimeout, "poller", job.Name,
		fmt.Sprintf("job %s still incomplete after %d attempts", handle, p.maxAttempts), lastErr)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
