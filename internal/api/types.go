package api

// Trait is one attribute reported by the marketplace for a token.
type Trait struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Ability is one named card ability.
type Ability struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Card is the fully assembled trading card for a token.
type Card struct {
	TokenID    string    `json:"token_id"`
	Name       string    `json:"name"`
	Rarity     string    `json:"rarity"`
	Element    string    `json:"element"`
	Attack     int       `json:"attack"`
	Defense    int       `json:"defense"`
	Cost       int       `json:"cost"`
	FlavorText string    `json:"flavor_text"`
	Abilities  []Ability `json:"abilities"`
	ImageURL   string    `json:"image_url"`
	SourceURL  string    `json:"source_url,omitempty"`
	Analysis   string    `json:"analysis,omitempty"`
	Traits     []Trait   `json:"traits"`
}

// CardResponse wraps a card lookup result.
type CardResponse struct {
	Success bool   `json:"success"`
	Card    *Card  `json:"card,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TraitsResponse wraps a trait lookup result.
type TraitsResponse struct {
	Success  bool    `json:"success"`
	TokenID  string  `json:"token_id,omitempty"`
	Name     string  `json:"name,omitempty"`
	ImageURL string  `json:"image_url,omitempty"`
	Traits   []Trait `json:"traits,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// GenerateRequest asks the daemon to run the card pipeline for a token.
// Force bypasses the art cache and regenerates the artwork.
type GenerateRequest struct {
	TokenID string `json:"token_id"`
	Force   bool   `json:"force"`
}

// GenerateResponse wraps the result of a generation run.
type GenerateResponse struct {
	Success bool   `json:"success"`
	Card    *Card  `json:"card,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JobSummary describes one generation job from the job store.
type JobSummary struct {
	ID          int64  `json:"id"`
	RequestID   string `json:"request_id"`
	TokenID     string `json:"token_id"`
	Artifact    string `json:"artifact"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	ResultURL   string `json:"result_url,omitempty"`
	ErrorReason string `json:"error_reason,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// JobsResponse wraps a job listing.
type JobsResponse struct {
	Success bool         `json:"success"`
	Jobs    []JobSummary `json:"jobs"`
	Error   string       `json:"error,omitempty"`
}

// JobResponse wraps a single job lookup.
type JobResponse struct {
	Success bool        `json:"success"`
	Job     *JobSummary `json:"job,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse reports daemon liveness.
type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
}

// NotifyTestResponse reports the outcome of a notification test push.
type NotifyTestResponse struct {
	Success bool   `json:"success"`
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse is the envelope returned for any failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// EchoResponse is the diagnostic payload from the catch-all route.
type EchoResponse struct {
	Method  string              `json:"method"`
	Path    string              `json:"path"`
	Query   map[string][]string `json:"query"`
	Headers map[string][]string `json:"headers"`
}
