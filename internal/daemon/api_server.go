package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"cardforge/internal/api"
	"cardforge/internal/cardgen"
	"cardforge/internal/config"
	"cardforge/internal/jobstore"
	"cardforge/internal/logging"
	"cardforge/internal/notifications"
	"cardforge/internal/services"
)

// cardService is the slice of the generator the HTTP surface needs.
type cardService interface {
	Card(ctx context.Context, tokenID string, force bool) (*api.Card, error)
	Traits(ctx context.Context, tokenID string) (*cardgen.TraitsArtifact, error)
}

type apiServer struct {
	bind   string
	logger *slog.Logger
	cfg    *config.Config
	cards  cardService
	jobs   *jobstore.Store

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, cards cardService, jobs *jobstore.Store, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api"),
		cfg:    cfg,
		cards:  cards,
		jobs:   jobs,
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/card/", authMiddleware(token, srv.handleCard))
	mux.HandleFunc("/api/traits/", authMiddleware(token, srv.handleTraits))
	mux.HandleFunc("/api/generate", authMiddleware(token, srv.handleGenerate))
	mux.HandleFunc("/api/jobs", authMiddleware(token, srv.handleJobs))
	mux.HandleFunc("/api/jobs/", authMiddleware(token, srv.handleJob))
	mux.HandleFunc("/api/notify/test", authMiddleware(token, srv.handleTestNotify))
	mux.HandleFunc("/api/", authMiddleware(token, srv.handleEcho))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Generation runs can poll the image service for minutes.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

func (s *apiServer) handler() http.Handler {
	return s.server.Handler
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	environment := strings.TrimSpace(os.Getenv("CARDFORGE_ENV"))
	if environment == "" {
		environment = "development"
	}
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:      "ok",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Environment: environment,
	})
}

func (s *apiServer) handleCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tokenID := strings.TrimPrefix(r.URL.Path, "/api/card/")
	card, err := s.cards.Card(r.Context(), tokenID, false)
	if err != nil && card == nil {
		s.writePipelineError(w, r, "card", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CardResponse{Success: true, Card: card})
}

func (s *apiServer) handleTraits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tokenID := strings.TrimPrefix(r.URL.Path, "/api/traits/")
	traits, err := s.cards.Traits(r.Context(), tokenID)
	if err != nil && traits == nil {
		s.writePipelineError(w, r, "traits", err)
		return
	}
	resp := api.TraitsResponse{
		Success:  true,
		TokenID:  traits.TokenID,
		Name:     traits.Name,
		ImageURL: traits.ImageURL,
	}
	for _, trait := range traits.Traits {
		resp.Traits = append(resp.Traits, api.Trait{TraitType: trait.TraitType, Value: string(trait.Value)})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	card, err := s.cards.Card(r.Context(), req.TokenID, req.Force)
	if err != nil && card == nil {
		s.writePipelineError(w, r, "generate", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.GenerateResponse{Success: true, Card: card})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.jobs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "job store unavailable")
		return
	}
	jobs, err := s.jobs.List(r.Context(), nil, 100)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := api.JobsResponse{Success: true, Jobs: make([]api.JobSummary, 0, len(jobs))}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, jobSummary(job))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.jobs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "job store unavailable")
		return
	}
	requestID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	job, err := s.jobs.GetByRequestID(r.Context(), requestID)
	if errors.Is(err, jobstore.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Success: true, Job: summaryPtr(jobSummary(job))})
}

// handleTestNotify sends a test push using the current notification settings.
func (s *apiServer) handleTestNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if strings.TrimSpace(s.cfg.Notifications.NtfyTopic) == "" {
		s.writeJSON(w, http.StatusOK, api.NotifyTestResponse{Success: true, Sent: false, Message: "ntfy topic not configured"})
		return
	}
	notifier := notifications.NewService(s.cfg)
	if err := notifier.TestNotification(r.Context()); err != nil {
		s.logger.Warn("test notification failed", logging.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to send notification")
		return
	}
	s.writeJSON(w, http.StatusOK, api.NotifyTestResponse{Success: true, Sent: true, Message: "test notification sent"})
}

// handleEcho answers any unrouted /api/ path with a diagnostic echo of the
// request.
func (s *apiServer) handleEcho(w http.ResponseWriter, r *http.Request) {
	headers := make(map[string][]string, len(r.Header))
	for name, values := range r.Header {
		if strings.EqualFold(name, "Authorization") {
			continue
		}
		headers[name] = values
	}
	s.writeJSON(w, http.StatusOK, api.EchoResponse{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.Query(),
		Headers: headers,
	})
}

func jobSummary(job *jobstore.Job) api.JobSummary {
	return api.JobSummary{
		ID:          job.ID,
		RequestID:   job.RequestID,
		TokenID:     job.TokenID,
		Artifact:    job.Artifact,
		Status:      string(job.Status),
		Attempts:    job.Attempts,
		ResultURL:   job.ResultURL,
		ErrorReason: job.ErrorReason,
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   job.UpdatedAt.Format(time.RFC3339),
	}
}

func summaryPtr(summary api.JobSummary) *api.JobSummary {
	return &summary
}

// writePipelineError maps pipeline error markers onto HTTP statuses. Handler
// errors are always answered, never panicked.
func (s *apiServer) writePipelineError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, services.ErrSubmission), errors.Is(err, services.ErrGeneration):
		status = http.StatusBadGateway
	}
	s.logger.Error("request failed",
		logging.String("operation", op),
		logging.String("path", r.URL.Path),
		logging.Int("status", status),
		logging.Error(err))
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Success: false, Error: message})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response failed", logging.Error(err))
	}
}
