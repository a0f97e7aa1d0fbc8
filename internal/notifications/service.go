package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cardforge/internal/config"
)

const userAgent = "Cardforge-Go/0.1.0"

// Service defines the notification surface exposed to the card pipeline.
type Service interface {
	NotifyCardGenerated(ctx context.Context, tokenID, cardName string) error
	NotifyGenerationFailed(ctx context.Context, tokenID, reason string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		generation: cfg.Notifications.Generation,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	generation bool
	errors     bool
}

func (n *ntfyService) NotifyCardGenerated(ctx context.Context, tokenID, cardName string) error {
	if !n.generation {
		return nil
	}
	cardName = strings.TrimSpace(cardName)
	if cardName == "" {
		cardName = "untitled card"
	}
	data := payload{
		title:   "Cardforge - Card Generated",
		message: fmt.Sprintf("Token %s: %s is ready", strings.TrimSpace(tokenID), cardName),
		tags:    []string{"cardforge", "generation", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyGenerationFailed(ctx context.Context, tokenID, reason string) error {
	if !n.generation {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown failure"
	}
	data := payload{
		title:    "Cardforge - Generation Failed",
		message:  fmt.Sprintf("Token %s: %s", strings.TrimSpace(tokenID), reason),
		tags:     []string{"cardforge", "generation", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors || err == nil {
		return nil
	}
	contextLabel = strings.TrimSpace(contextLabel)
	message := err.Error()
	if contextLabel != "" {
		message = fmt.Sprintf("%s: %s", contextLabel, message)
	}
	data := payload{
		title:    "Cardforge - Error",
		message:  message,
		tags:     []string{"cardforge", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Cardforge - Test",
		message: "Notifications are configured correctly",
		tags:    []string{"cardforge", "test"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyCardGenerated(context.Context, string, string) error    { return nil }
func (noopService) NotifyGenerationFailed(context.Context, string, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error             { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }
