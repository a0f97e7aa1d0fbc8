package cardgen

import (
	"strings"
	"time"

	"cardforge/internal/services/openai"
	"cardforge/internal/services/opensea"
)

// Artifact category names double as cache file basenames.
const (
	CategoryTraits   = "traits"
	CategoryAnalysis = "analysis"
	CategoryDetails  = "details"
	CategoryArt      = "art"
)

// Categories lists every artifact category the pipeline produces.
func Categories() []string {
	return []string{CategoryTraits, CategoryAnalysis, CategoryDetails, CategoryArt}
}

// TraitsArtifact is the cached marketplace lookup for a token.
type TraitsArtifact struct {
	TokenID     string          `json:"token_id"`
	Name        string          `json:"name"`
	Collection  string          `json:"collection"`
	Description string          `json:"description,omitempty"`
	ImageURL    string          `json:"image_url"`
	Traits      []opensea.Trait `json:"traits"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// Summary renders the traits as one "Type: Value" line each, the form the
// model prompts expect.
func (a *TraitsArtifact) Summary() string {
	if a == nil || len(a.Traits) == 0 {
		return ""
	}
	lines := make([]string, 0, len(a.Traits))
	for _, trait := range a.Traits {
		traitType := strings.TrimSpace(trait.TraitType)
		value := strings.TrimSpace(string(trait.Value))
		if traitType == "" || value == "" {
			continue
		}
		lines = append(lines, traitType+": "+value)
	}
	return strings.Join(lines, "\n")
}

// AnalysisArtifact is the cached vision model description of the artwork.
type AnalysisArtifact struct {
	TokenID     string    `json:"token_id"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
}

// DetailsArtifact is the cached structured card details.
type DetailsArtifact struct {
	TokenID     string           `json:"token_id"`
	Name        string           `json:"name"`
	Rarity      string           `json:"rarity"`
	Element     string           `json:"element"`
	Attack      int              `json:"attack"`
	Defense     int              `json:"defense"`
	Cost        int              `json:"cost"`
	FlavorText  string           `json:"flavor_text"`
	Abilities   []openai.Ability `json:"abilities"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// ArtArtifact is the cached generated artwork reference.
type ArtArtifact struct {
	TokenID     string    `json:"token_id"`
	ImageURL    string    `json:"image_url"`
	TaskID      string    `json:"task_id"`
	Prompt      string    `json:"prompt"`
	Attempts    int       `json:"attempts"`
	GeneratedAt time.Time `json:"generated_at"`
}
