package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cardforge/internal/services/openai"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...openai.Option) (*openai.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := openai.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o",
	}
	opts = append(opts, openai.WithHTTPClient(server.Client()))
	return openai.NewClient(cfg, opts...), server
}

func completionBody(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

func TestAnalyzeImageSendsVisionPayload(t *testing.T) {
	var captured map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("A stoic figure rendered in blue tones.")))
	})

	analysis, err := client.AnalyzeImage(context.Background(), "https://img.example/1.png", "Background: Blue")
	if err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}
	if !strings.Contains(analysis, "stoic figure") {
		t.Errorf("unexpected analysis %q", analysis)
	}

	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %v", captured["messages"])
	}
	user := messages[1].(map[string]any)
	parts, ok := user["content"].([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("expected multipart user content, got %v", user["content"])
	}
	image := parts[1].(map[string]any)
	if image["type"] != "image_url" {
		t.Errorf("second part type = %v", image["type"])
	}
	ref := image["image_url"].(map[string]any)
	if ref["url"] != "https://img.example/1.png" {
		t.Errorf("image url = %v", ref["url"])
	}
}

func TestCardDetailsParsesJSONResponse(t *testing.T) {
	detailsJSON := `{"name":"ember warden","rarity":"Rare","element":"Fire","attack":7,"defense":4,"cost":5,"flavor_text":"It never sleeps.","abilities":[{"name":"Cinder Step","description":"Moves through flame."}]}`
	var captured map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody(detailsJSON)))
	})

	details, err := client.CardDetails(context.Background(), "A fiery sentinel.", "Eyes: Ember")
	if err != nil {
		t.Fatalf("CardDetails: %v", err)
	}
	if details.Rarity != "rare" || details.Element != "fire" {
		t.Errorf("rarity/element not normalized: %q %q", details.Rarity, details.Element)
	}
	if details.Attack != 7 || details.Defense != 4 || details.Cost != 5 {
		t.Errorf("unexpected stats: %+v", details)
	}
	if len(details.Abilities) != 1 || details.Abilities[0].Name != "Cinder Step" {
		t.Errorf("unexpected abilities: %+v", details.Abilities)
	}

	format, ok := captured["response_format"].(map[string]any)
	if !ok || format["type"] != "json_object" {
		t.Errorf("expected json_object response format, got %v", captured["response_format"])
	}
}

func TestCardDetailsToleratesCodeFences(t *testing.T) {
	fenced := "```json\n{\"name\":\"Gale Rider\",\"rarity\":\"common\",\"element\":\"air\",\"attack\":3,\"defense\":3,\"cost\":2,\"flavor_text\":\"Fast.\",\"abilities\":[]}\n```"
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody(fenced)))
	})

	details, err := client.CardDetails(context.Background(), "A rider on the wind.", "")
	if err != nil {
		t.Fatalf("CardDetails: %v", err)
	}
	if details.Name != "Gale Rider" {
		t.Errorf("name = %q", details.Name)
	}
}

func TestRetryOnServerErrorThenSuccess(t *testing.T) {
	var calls atomic.Int64
	var slept []time.Duration
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream glitch", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(completionBody("recovered analysis")))
	}, openai.WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		openai.WithRetryBackoff(10*time.Millisecond, 50*time.Millisecond))

	analysis, err := client.AnalyzeImage(context.Background(), "https://img.example/1.png", "")
	if err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}
	if analysis != "recovered analysis" {
		t.Errorf("analysis = %q", analysis)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
	if len(slept) != 1 {
		t.Errorf("expected 1 retry sleep, got %d", len(slept))
	}
}

func TestRetryHonorsRetryAfterHeader(t *testing.T) {
	var calls atomic.Int64
	var slept []time.Duration
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionBody("ok after limit")))
	}, openai.WithSleeper(func(d time.Duration) { slept = append(slept, d) }))

	if _, err := client.AnalyzeImage(context.Background(), "https://img.example/2.png", ""); err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Errorf("expected one 2s sleep, got %v", slept)
	}
}

func TestClientErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	if _, err := client.AnalyzeImage(context.Background(), "https://img.example/3.png", ""); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "still down", http.StatusServiceUnavailable)
	}, openai.WithRetryMaxAttempts(3),
		openai.WithSleeper(func(time.Duration) {}))

	_, err := client.AnalyzeImage(context.Background(), "https://img.example/4.png", "")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestAnalyzeImageRequiresURL(t *testing.T) {
	client := openai.NewClient(openai.Config{APIKey: "k"})
	if _, err := client.AnalyzeImage(context.Background(), "  ", ""); err == nil {
		t.Fatal("expected error for empty image url")
	}
}

func TestDecodeModelJSONProseWrapped(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	content := "Here is the card you asked for: {\"name\":\"Tide Caller\"} Hope you like it."
	if err := openai.DecodeModelJSON(content, &out); err != nil {
		t.Fatalf("DecodeModelJSON: %v", err)
	}
	if out.Name != "Tide Caller" {
		t.Errorf("name = %q", out.Name)
	}
}

func TestHealthCheck(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody(`{"ok":true}`)))
	})

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestHealthCheckRejectsUnexpectedPayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody(`{"ok":false}`)))
	})

	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error for a failing health payload")
	}
}
