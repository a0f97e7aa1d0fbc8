package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrDaemonUnavailable reports that the daemon could not be reached.
var ErrDaemonUnavailable = errors.New("daemon API unavailable")

// Client talks to a running daemon over its HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for the daemon bound at bind (host:port or URL).
// An empty bind returns a nil client; calls on a nil client report
// ErrDaemonUnavailable.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// Generation runs can poll for minutes before answering.
		http: &http.Client{Timeout: 10 * time.Minute},
	}, nil
}

// Health fetches the daemon health report.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.get(ctx, "/api/health", &out)
	return out, err
}

// Card runs the full pipeline for a token and returns the assembled card.
func (c *Client) Card(ctx context.Context, tokenID string) (*Card, error) {
	var out CardResponse
	if err := c.get(ctx, "/api/card/"+url.PathEscape(tokenID), &out); err != nil {
		return nil, err
	}
	if !out.Success || out.Card == nil {
		return nil, responseError(out.Error)
	}
	return out.Card, nil
}

// Traits fetches the cached traits for a token.
func (c *Client) Traits(ctx context.Context, tokenID string) (TraitsResponse, error) {
	var out TraitsResponse
	if err := c.get(ctx, "/api/traits/"+url.PathEscape(tokenID), &out); err != nil {
		return TraitsResponse{}, err
	}
	if !out.Success {
		return TraitsResponse{}, responseError(out.Error)
	}
	return out, nil
}

// Generate asks the daemon to (re)generate a token's card.
func (c *Client) Generate(ctx context.Context, tokenID string, force bool) (*Card, error) {
	var out GenerateResponse
	if err := c.post(ctx, "/api/generate", GenerateRequest{TokenID: tokenID, Force: force}, &out); err != nil {
		return nil, err
	}
	if !out.Success || out.Card == nil {
		return nil, responseError(out.Error)
	}
	return out.Card, nil
}

// Jobs lists generation jobs, newest first.
func (c *Client) Jobs(ctx context.Context) ([]JobSummary, error) {
	var out JobsResponse
	if err := c.get(ctx, "/api/jobs", &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, responseError(out.Error)
	}
	return out.Jobs, nil
}

// Job fetches a single job by request id.
func (c *Client) Job(ctx context.Context, requestID string) (*JobSummary, error) {
	var out JobResponse
	if err := c.get(ctx, "/api/jobs/"+url.PathEscape(requestID), &out); err != nil {
		return nil, err
	}
	if !out.Success || out.Job == nil {
		return nil, responseError(out.Error)
	}
	return out.Job, nil
}

// TestNotification asks the daemon to send a test push notification.
func (c *Client) TestNotification(ctx context.Context) (NotifyTestResponse, error) {
	var out NotifyTestResponse
	if err := c.post(ctx, "/api/notify/test", struct{}{}, &out); err != nil {
		return NotifyTestResponse{}, err
	}
	if !out.Success {
		return NotifyTestResponse{}, responseError(out.Error)
	}
	return out, nil
}

func responseError(message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "request failed"
	}
	return errors.New(message)
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	return c.do(ctx, http.MethodGet, path, nil, target)
}

func (c *Client) post(ctx context.Context, path string, payload, target any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, encoded, target)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, target any) error {
	if c == nil {
		return ErrDaemonUnavailable
	}
	endpoint := *c.base
	endpoint.Path = path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("%w: %v", ErrDaemonUnavailable, urlErr.Err)
		}
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var failure ErrorResponse
		if json.Unmarshal(payload, &failure) == nil && strings.TrimSpace(failure.Error) != "" {
			return errors.New(failure.Error)
		}
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
