package goapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cardforge/internal/poller"
)

const defaultBaseURL = "https://api.goapi.ai/mj/v2"

// ErrTaskNotFound reports a fetch for a task the service no longer knows about.
var ErrTaskNotFound = errors.New("goapi: task not found")

// Task reports the current state of a generation task.
type Task struct {
	ID       string
	Status   poller.Status
	ImageURL string
	Reason   string
	Progress int
}

// Generator submits image generation tasks and reports their progress.
type Generator interface {
	Imagine(ctx context.Context, prompt string) (string, error)
	Fetch(ctx context.Context, taskID string) (Task, error)
}

// Client calls the Midjourney-compatible generation API.
type Client struct {
	apiKey      string
	baseURL     string
	processMode string
	aspectRatio string
	httpClient  *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAspectRatio sets the aspect ratio sent with imagine requests.
func WithAspectRatio(ratio string) Option {
	return func(c *Client) {
		if ratio = strings.TrimSpace(ratio); ratio != "" {
			c.aspectRatio = ratio
		}
	}
}

// New constructs a generation client.
func New(apiKey, baseURL, processMode string, opts ...Option) *Client {
	client := &Client{
		apiKey:      strings.TrimSpace(apiKey),
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		processMode: strings.TrimSpace(processMode),
		aspectRatio: "2:3",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.processMode == "" {
		client.processMode = "fast"
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type imagineRequest struct {
	Prompt      string `json:"prompt"`
	ProcessMode string `json:"process_mode"`
	AspectRatio string `json:"aspect_ratio"`
}

type imagineResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Imagine submits a prompt and returns the task id used to poll for progress.
func (c *Client) Imagine(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.apiKey == "" {
		return "", errors.New("goapi imagine: api key not configured")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("goapi imagine: prompt required")
	}
	var parsed imagineResponse
	if err := c.post(ctx, "/imagine", imagineRequest{
		Prompt:      prompt,
		ProcessMode: c.processMode,
		AspectRatio: c.aspectRatio,
	}, &parsed); err != nil {
		return "", fmt.Errorf("goapi imagine: %w", err)
	}
	taskID := strings.TrimSpace(parsed.TaskID)
	if taskID == "" {
		message := strings.TrimSpace(parsed.Message)
		if message == "" {
			message = "no task id in response"
		}
		return "", fmt.Errorf("goapi imagine: %s", message)
	}
	return taskID, nil
}

type fetchRequest struct {
	TaskID string `json:"task_id"`
}

type fetchResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Output struct {
		ImageURL string `json:"image_url"`
		Progress int    `json:"progress"`
	} `json:"output"`
	Meta struct {
		Error string `json:"error"`
	} `json:"meta"`
	Message string `json:"message"`
}

// Fetch reports the current state of a previously submitted task.
func (c *Client) Fetch(ctx context.Context, taskID string) (Task, error) {
	var empty Task
	if c == nil || c.apiKey == "" {
		return empty, errors.New("goapi fetch: api key not configured")
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return empty, errors.New("goapi fetch: task id required")
	}
	var parsed fetchResponse
	if err := c.post(ctx, "/fetch", fetchRequest{TaskID: taskID}, &parsed); err != nil {
		return empty, fmt.Errorf("goapi fetch: %w", err)
	}
	task := Task{
		ID:       taskID,
		Status:   mapStatus(parsed.Status),
		ImageURL: strings.TrimSpace(parsed.Output.ImageURL),
		Progress: parsed.Output.Progress,
	}
	if task.Status == poller.StatusFailed {
		task.Reason = firstNonEmpty(parsed.Meta.Error, parsed.Message, "generation failed")
	}
	if task.Status == poller.StatusSucceeded && task.ImageURL == "" {
		task.Status = poller.StatusRunning
	}
	return task, nil
}

func (c *Client) post(ctx context.Context, path string, payload, target any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http error after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrTaskNotFound
	case resp.StatusCode >= http.StatusMultipleChoices:
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// mapStatus folds the service's status vocabulary onto the poller states.
func mapStatus(raw string) poller.Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "waiting", "queued", "submitted":
		return poller.StatusPending
	case "processing", "staged", "in_progress", "running", "retry":
		return poller.StatusRunning
	case "finished", "completed", "success":
		return poller.StatusSucceeded
	case "failed", "error", "cancelled":
		return poller.StatusFailed
	default:
		return poller.StatusRunning
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
