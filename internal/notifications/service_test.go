package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cardforge/internal/config"
	"cardforge/internal/notifications"
)

type recorded struct {
	title    string
	tags     string
	priority string
	body     string
}

func newService(t *testing.T, generation, errorsOn bool) (notifications.Service, *[]recorded) {
	t.Helper()
	var requests []recorded
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recorded{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Generation = generation
	cfg.Notifications.Errors = errorsOn
	return notifications.NewService(&cfg), &requests
}

func TestNoopWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyCardGenerated(context.Background(), "1", "Card"); err != nil {
		t.Fatalf("noop notify: %v", err)
	}
}

func TestCardGeneratedNotification(t *testing.T) {
	svc, requests := newService(t, true, true)

	if err := svc.NotifyCardGenerated(context.Background(), "42", "Ember Warden"); err != nil {
		t.Fatalf("NotifyCardGenerated: %v", err)
	}
	if len(*requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*requests))
	}
	got := (*requests)[0]
	if got.title != "Cardforge - Card Generated" {
		t.Errorf("title = %q", got.title)
	}
	if !strings.Contains(got.body, "Ember Warden") || !strings.Contains(got.body, "42") {
		t.Errorf("body = %q", got.body)
	}
}

func TestGenerationFailedUsesHighPriority(t *testing.T) {
	svc, requests := newService(t, true, true)

	if err := svc.NotifyGenerationFailed(context.Background(), "42", "timed out"); err != nil {
		t.Fatalf("NotifyGenerationFailed: %v", err)
	}
	if len(*requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*requests))
	}
	if (*requests)[0].priority != "high" {
		t.Errorf("priority = %q", (*requests)[0].priority)
	}
}

func TestGenerationNotificationsGated(t *testing.T) {
	svc, requests := newService(t, false, true)

	if err := svc.NotifyCardGenerated(context.Background(), "1", "Card"); err != nil {
		t.Fatalf("NotifyCardGenerated: %v", err)
	}
	if len(*requests) != 0 {
		t.Errorf("expected generation notification to be suppressed, got %d", len(*requests))
	}

	if err := svc.NotifyError(context.Background(), errors.New("boom"), "pipeline"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	if len(*requests) != 1 {
		t.Errorf("expected error notification, got %d", len(*requests))
	}
}

func TestErrorNotificationsGated(t *testing.T) {
	svc, requests := newService(t, true, false)

	if err := svc.NotifyError(context.Background(), errors.New("boom"), "pipeline"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	if len(*requests) != 0 {
		t.Errorf("expected error notification to be suppressed, got %d", len(*requests))
	}
}
