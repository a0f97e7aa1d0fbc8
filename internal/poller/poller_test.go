package poller

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cardforge/internal/services"
)

// fakeClock records sleeps instead of performing them.
type fakeClock struct {
	slept []time.Duration
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	return nil
}

func fixedSubmit(handle string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return handle, nil }
}

func scriptedFetch(t *testing.T, updates []Update) func(context.Context, string) (Update, error) {
	t.Helper()
	i := 0
	return func(_ context.Context, handle string) (Update, error) {
		if handle != "task-1" {
			t.Fatalf("fetch called with handle %q", handle)
		}
		if i >= len(updates) {
			t.Fatalf("fetch called %d times, script has %d updates", i+1, len(updates))
		}
		u := updates[i]
		i++
		return u, nil
	}
}

func TestRunSucceedsOnObservingIteration(t *testing.T) {
	clock := &fakeClock{}
	p := New(5*time.Second, 60, WithSleeper(clock.sleep))

	outcome, err := p.Run(context.Background(), Job{
		Name:   "art",
		Submit: fixedSubmit("task-1"),
		Fetch: scriptedFetch(t, []Update{
			{Status: StatusPending},
			{Status: StatusPending},
			{Status: StatusSucceeded, Result: "https://x/a.png"},
		}),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Handle != "task-1" {
		t.Errorf("Handle = %q", outcome.Handle)
	}
	if outcome.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", outcome.Attempts)
	}
	if outcome.Result != "https://x/a.png" {
		t.Errorf("Result = %v, want payload unchanged", outcome.Result)
	}
	if len(clock.slept) != 3 {
		t.Errorf("slept %d times, want 3", len(clock.slept))
	}
	for _, d := range clock.slept {
		if d != 5*time.Second {
			t.Errorf("sleep = %v, want 5s", d)
		}
	}
}

func TestRunTimesOutAtAttemptCeiling(t *testing.T) {
	clock := &fakeClock{}
	fetches := 0
	p := New(5*time.Second, 60, WithSleeper(clock.sleep))

	_, err := p.Run(context.Background(), Job{
		Name:   "art",
		Submit: fixedSubmit("task-1"),
		Fetch: func(context.Context, string) (Update, error) {
			fetches++
			return Update{Status: StatusPending}, nil
		},
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if fetches != 60 {
		t.Errorf("issued %d status checks, want exactly 60", fetches)
	}
}

func TestRunFailsWithExternalReason(t *testing.T) {
	clock := &fakeClock{}
	p := New(time.Second, 10, WithSleeper(clock.sleep))

	_, err := p.Run(context.Background(), Job{
		Name:   "art",
		Submit: fixedSubmit("task-1"),
		Fetch: scriptedFetch(t, []Update{
			{Status: StatusRunning},
			{Status: StatusFailed, Reason: "prompt rejected by moderation"},
		}),
	})
	if !errors.Is(err, services.ErrGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "prompt rejected by moderation") {
		t.Fatalf("expected external reason in error, got %v", err)
	}
}

func TestSubmissionFailure(t *testing.T) {
	p := New(time.Second, 10, WithSleeper((&fakeClock{}).sleep))

	_, err := p.Run(context.Background(), Job{
		Name:   "art",
		Submit: func(context.Context) (string, error) { return "", errors.New("503 from upstream") },
		Fetch:  scriptedFetch(t, nil),
	})
	if !errors.Is(err, services.ErrSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
}

func TestEmptyHandleIsSubmissionError(t *testing.T) {
	p := New(time.Second, 10, WithSleeper((&fakeClock{}).sleep))

	_, err := p.Run(context.Background(), Job{
		Name:   "art",
		Submit: fixedSubmit("   "),
		Fetch:  scriptedFetch(t, nil),
	})
	if !errors.Is(err, services.ErrSubmission) {
		t.Fatalf("expected submission error for empty handle, got %v", err)
	}
}

func TestTransientFetchErrorsConsumeAttempts(t *testing.T) {
	clock := &fakeClock{}
	calls := 0
	p := New(time.Second, 3, WithSleeper(clock.sleep))

	_, err := p.Run(context.Background(), Job{
		Name:   "art",
		Submit: fixedSubmit("task-1"),
		Fetch: func(context.Context, string) (Update, error) {
			calls++
			return Update{}, errors.New("connection reset")
		},
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout after transient errors exhaust attempts, got %v", err)
	}
	if calls != 3 {
		t.Errorf("fetch called %d times, want 3", calls)
	}
	// The final error should carry the last transient cause for diagnosis.
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("expected last transient cause in error, got %v", err)
	}
}

func TestTaggedTerminalFetchErrorStopsLoop(t *testing.T) {
	clock := &fakeClock{}
	calls := 0
	p := New(time.Second, 10, WithSleeper(clock.sleep))

	_, err := p.Run(context.Background(), Job{
		Name:   "art",
		Submit: fixedSubmit("task-1"),
		Fetch: func(context.Context, string) (Update, error) {
			calls++
			if calls == 1 {
				return Update{Status: StatusRunning}, nil
			}
			return Update{}, services.Wrap(services.ErrNotFound, "goapi", "fetch", "task lost by image service", nil)
		},
	})
	if !errors.Is(err, services.ErrGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected the terminal cause to survive, got %v", err)
	}
	if calls != 2 {
		t.Errorf("fetch called %d times, want 2", calls)
	}
}

func TestTransientErrorThenSuccess(t *testing.T) {
	clock := &fakeClock{}
	calls := 0
	p := New(time.Second, 10, WithSleeper(clock.sleep))

	outcome, err := p.Run(context.Background(), Job{
		Name:   "art",
		Submit: fixedSubmit("task-1"),
		Fetch: func(context.Context, string) (Update, error) {
			calls++
			if calls == 1 {
				return Update{}, errors.New("gateway timeout")
			}
			return Update{Status: StatusSucceeded, Result: "url"}, nil
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", outcome.Attempts)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(time.Second, 10, WithSleeper(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := p.Run(ctx, Job{
		Name:   "art",
		Submit: fixedSubmit("task-1"),
		Fetch:  scriptedFetch(t, nil),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
