package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"cardforge/internal/api"
	"cardforge/internal/cardgen"
	"cardforge/internal/config"
	"cardforge/internal/jobstore"
	"cardforge/internal/logging"
	"cardforge/internal/services"
)

type fakeCards struct {
	card      *api.Card
	traits    *cardgen.TraitsArtifact
	err       error
	lastForce bool
}

func (f *fakeCards) Card(ctx context.Context, tokenID string, force bool) (*api.Card, error) {
	f.lastForce = force
	if f.err != nil {
		return nil, f.err
	}
	card := *f.card
	card.TokenID = tokenID
	return &card, nil
}

func (f *fakeCards) Traits(ctx context.Context, tokenID string) (*cardgen.TraitsArtifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.traits, nil
}

func newTestServer(t *testing.T, cards cardService, jobs *jobstore.Store, token string) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Paths.APIToken = token
	srv := newAPIServer(&cfg, cards, jobs, logging.NewNop())
	server := httptest.NewServer(srv.handler())
	t.Cleanup(server.Close)
	return server
}

func defaultFakeCards() *fakeCards {
	return &fakeCards{
		card: &api.Card{Name: "Ember Warden", Rarity: "rare", ImageURL: "https://cdn.example/a.png"},
		traits: &cardgen.TraitsArtifact{
			TokenID:  "42",
			Name:     "Creature #42",
			ImageURL: "https://img.example/42.png",
		},
	}
}

func TestHealthRoute(t *testing.T) {
	t.Setenv("CARDFORGE_ENV", "production")
	server := newTestServer(t, defaultFakeCards(), nil, "")

	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var health api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("status = %q", health.Status)
	}
	if health.Environment != "production" {
		t.Errorf("environment = %q", health.Environment)
	}
	if _, err := time.Parse(time.RFC3339, health.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", health.Timestamp, err)
	}
}

func TestCardRoute(t *testing.T) {
	server := newTestServer(t, defaultFakeCards(), nil, "")

	resp, err := http.Get(server.URL + "/api/card/42")
	if err != nil {
		t.Fatalf("GET card: %v", err)
	}
	defer resp.Body.Close()
	var out api.CardResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || out.Card == nil {
		t.Fatalf("unexpected response %+v", out)
	}
	if out.Card.TokenID != "42" || out.Card.Name != "Ember Warden" {
		t.Errorf("card = %+v", out.Card)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		marker error
		status int
	}{
		{"validation", services.ErrValidation, http.StatusBadRequest},
		{"not found", services.ErrNotFound, http.StatusNotFound},
		{"timeout", services.ErrTimeout, http.StatusGatewayTimeout},
		{"generation", services.ErrGeneration, http.StatusBadGateway},
		{"submission", services.ErrSubmission, http.StatusBadGateway},
		{"cache write", services.ErrCacheWrite, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cards := defaultFakeCards()
			cards.err = services.Wrap(tc.marker, "cardgen", "card", "boom", nil)
			server := newTestServer(t, cards, nil, "")

			resp, err := http.Get(server.URL + "/api/card/42")
			if err != nil {
				t.Fatalf("GET card: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.status)
			}
			var out api.ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Success {
				t.Error("success must be false on errors")
			}
			if out.Error == "" {
				t.Error("error message must be populated")
			}
		})
	}
}

func TestGeneratePassesForce(t *testing.T) {
	cards := defaultFakeCards()
	server := newTestServer(t, cards, nil, "")

	body, _ := json.Marshal(api.GenerateRequest{TokenID: "7", Force: true})
	resp, err := http.Post(server.URL+"/api/generate", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST generate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !cards.lastForce {
		t.Error("force flag was not passed through")
	}
}

func TestGenerateRejectsBadBody(t *testing.T) {
	server := newTestServer(t, defaultFakeCards(), nil, "")

	resp, err := http.Post(server.URL+"/api/generate", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST generate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestBearerAuth(t *testing.T) {
	server := newTestServer(t, defaultFakeCards(), nil, "secret")

	// Health stays open for probes.
	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/api/card/42")
	if err != nil {
		t.Fatalf("GET card: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	// The diagnostic echo route is protected too.
	resp, err = http.Get(server.URL + "/api/unknown")
	if err != nil {
		t.Fatalf("GET echo: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated echo status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/card/42", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET card with token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", resp.StatusCode)
	}
}

func TestEchoCatchAll(t *testing.T) {
	server := newTestServer(t, defaultFakeCards(), nil, "")

	resp, err := http.Get(server.URL + "/api/unknown/route?x=1&y=2")
	if err != nil {
		t.Fatalf("GET echo: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var echo api.EchoResponse
	if err := json.NewDecoder(resp.Body).Decode(&echo); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if echo.Method != http.MethodGet {
		t.Errorf("method = %q", echo.Method)
	}
	if echo.Path != "/api/unknown/route" {
		t.Errorf("path = %q", echo.Path)
	}
	if got := echo.Query["x"]; len(got) != 1 || got[0] != "1" {
		t.Errorf("query x = %v", got)
	}
}

func TestJobsRoutes(t *testing.T) {
	store, err := jobstore.OpenPath(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer store.Close()
	job, err := store.NewJob(context.Background(), "42", "art")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	server := newTestServer(t, defaultFakeCards(), store, "")

	resp, err := http.Get(server.URL + "/api/jobs")
	if err != nil {
		t.Fatalf("GET jobs: %v", err)
	}
	var list api.JobsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if !list.Success || len(list.Jobs) != 1 || list.Jobs[0].RequestID != job.RequestID {
		t.Fatalf("unexpected listing %+v", list)
	}

	resp, err = http.Get(server.URL + "/api/jobs/" + job.RequestID)
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	var single api.JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&single); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if !single.Success || single.Job == nil || single.Job.TokenID != "42" {
		t.Fatalf("unexpected job %+v", single)
	}

	resp, err = http.Get(server.URL + "/api/jobs/does-not-exist")
	if err != nil {
		t.Fatalf("GET missing job: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", resp.StatusCode)
	}
}

func TestTestNotifyRouteWithoutTopic(t *testing.T) {
	server := newTestServer(t, defaultFakeCards(), nil, "")

	resp, err := http.Post(server.URL+"/api/notify/test", "application/json", nil)
	if err != nil {
		t.Fatalf("POST notify test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out api.NotifyTestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || out.Sent {
		t.Fatalf("unexpected response %+v", out)
	}
	if out.Message != "ntfy topic not configured" {
		t.Errorf("message = %q", out.Message)
	}
}

func TestTestNotifyRouteSendsPush(t *testing.T) {
	var pushes int
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ntfy.Close)

	cfg := config.Default()
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Notifications.NtfyTopic = ntfy.URL
	srv := newAPIServer(&cfg, defaultFakeCards(), nil, logging.NewNop())
	server := httptest.NewServer(srv.handler())
	t.Cleanup(server.Close)

	resp, err := http.Post(server.URL+"/api/notify/test", "application/json", nil)
	if err != nil {
		t.Fatalf("POST notify test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out api.NotifyTestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || !out.Sent {
		t.Fatalf("unexpected response %+v", out)
	}
	if pushes != 1 {
		t.Errorf("pushes = %d, want 1", pushes)
	}
}
