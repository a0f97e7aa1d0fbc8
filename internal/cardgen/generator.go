package cardgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cardforge/internal/api"
	"cardforge/internal/artifactcache"
	"cardforge/internal/jobstore"
	"cardforge/internal/logging"
	"cardforge/internal/notifications"
	"cardforge/internal/poller"
	"cardforge/internal/services"
	"cardforge/internal/services/goapi"
	"cardforge/internal/services/openai"
	"cardforge/internal/services/opensea"
)

// Analyst produces artwork analysis and structured card details.
type Analyst interface {
	AnalyzeImage(ctx context.Context, imageURL, traitSummary string) (string, error)
	CardDetails(ctx context.Context, analysis, traitSummary string) (openai.Details, error)
}

// Caches groups the per-category artifact caches the pipeline writes through.
type Caches struct {
	Traits   *artifactcache.Cache
	Analysis *artifactcache.Cache
	Details  *artifactcache.Cache
	Art      *artifactcache.Cache
}

// Generator runs the cache-then-generate card pipeline.
type Generator struct {
	caches      Caches
	lookup      opensea.Lookuper
	model       Analyst
	images      goapi.Generator
	jobs        *jobstore.Store
	poll        *poller.Poller
	notifier    notifications.Service
	styleSuffix string
	logger      *slog.Logger
	titler      cases.Caser
	locks       keyedLocks
}

// Option customizes the generator.
type Option func(*Generator)

// WithPoller overrides the job poller (tests swap in a fast clock).
func WithPoller(p *poller.Poller) Option {
	return func(g *Generator) {
		if p != nil {
			g.poll = p
		}
	}
}

// WithNotifier wires push notifications for completed and failed runs.
func WithNotifier(notifier notifications.Service) Option {
	return func(g *Generator) {
		if notifier != nil {
			g.notifier = notifier
		}
	}
}

// WithStyleSuffix sets the suffix appended to every art prompt.
func WithStyleSuffix(suffix string) Option {
	return func(g *Generator) {
		g.styleSuffix = strings.TrimSpace(suffix)
	}
}

// New builds a generator from its collaborators. jobs may be nil, in which
// case runs are not recorded.
func New(caches Caches, lookup opensea.Lookuper, model Analyst, images goapi.Generator, jobs *jobstore.Store, logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	gen := &Generator{
		caches: caches,
		lookup: lookup,
		model:  model,
		images: images,
		jobs:   jobs,
		poll:   poller.New(poller.DefaultInterval, poller.DefaultMaxAttempts, poller.WithLogger(logger)),
		logger: logging.NewComponentLogger(logger, "cardgen"),
		titler: cases.Title(language.English),
	}
	for _, opt := range opts {
		opt(gen)
	}
	return gen
}

// Traits returns the cached marketplace traits for a token, fetching and
// caching them on a miss. When the cache write fails, the fetched artifact is
// returned together with the tagged error.
func (g *Generator) Traits(ctx context.Context, tokenID string) (*TraitsArtifact, error) {
	tokenID, err := normalizeTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	ctx = services.WithArtifact(ctx, CategoryTraits)
	release := g.locks.acquire(CategoryTraits + "/" + tokenID)
	defer release()

	var cached TraitsArtifact
	if hit, err := g.caches.Traits.LookupInto(tokenID, &cached); err == nil && hit {
		return &cached, nil
	}

	nft, err := g.lookup.GetNFT(ctx, tokenID)
	if err != nil {
		marker := services.ErrGeneration
		if errors.Is(err, opensea.ErrTokenNotFound) {
			marker = services.ErrNotFound
		}
		return nil, services.Wrap(marker, "cardgen", "traits", "marketplace lookup failed", err)
	}

	artifact := &TraitsArtifact{
		TokenID:     tokenID,
		Name:        nft.Name,
		Collection:  nft.Collection,
		Description: nft.Description,
		ImageURL:    nft.ImageURL,
		Traits:      nft.Traits,
		FetchedAt:   time.Now().UTC(),
	}
	if err := g.caches.Traits.Store(tokenID, artifact); err != nil {
		g.logger.WarnContext(ctx, "traits not persisted",
			logging.String(logging.FieldTokenID, tokenID), logging.Error(err))
		return artifact, err
	}
	g.logger.InfoContext(ctx, "traits fetched",
		logging.String(logging.FieldTokenID, tokenID),
		logging.Int("trait_count", len(artifact.Traits)))
	return artifact, nil
}

// Analysis returns the cached vision analysis for a token, generating it on a
// miss.
func (g *Generator) Analysis(ctx context.Context, tokenID string) (*AnalysisArtifact, error) {
	tokenID, err := normalizeTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	ctx = services.WithArtifact(ctx, CategoryAnalysis)
	release := g.locks.acquire(CategoryAnalysis + "/" + tokenID)
	defer release()

	var cached AnalysisArtifact
	if hit, err := g.caches.Analysis.LookupInto(tokenID, &cached); err == nil && hit {
		return &cached, nil
	}

	traits, err := g.Traits(ctx, tokenID)
	if err != nil && !errors.Is(err, services.ErrCacheWrite) {
		return nil, err
	}
	if strings.TrimSpace(traits.ImageURL) == "" {
		return nil, services.Wrap(services.ErrValidation, "cardgen", "analysis", "token has no source image", nil)
	}

	text, err := g.model.AnalyzeImage(ctx, traits.ImageURL, traits.Summary())
	if err != nil {
		return nil, services.Wrap(services.ErrGeneration, "cardgen", "analysis", "vision analysis failed", err)
	}

	artifact := &AnalysisArtifact{
		TokenID:     tokenID,
		Text:        text,
		GeneratedAt: time.Now().UTC(),
	}
	if err := g.caches.Analysis.Store(tokenID, artifact); err != nil {
		g.logger.WarnContext(ctx, "analysis not persisted",
			logging.String(logging.FieldTokenID, tokenID), logging.Error(err))
		return artifact, err
	}
	g.logger.InfoContext(ctx, "analysis generated", logging.String(logging.FieldTokenID, tokenID))
	return artifact, nil
}

// Details returns the cached card details for a token, generating them on a
// miss.
func (g *Generator) Details(ctx context.Context, tokenID string) (*DetailsArtifact, error) {
	tokenID, err := normalizeTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	ctx = services.WithArtifact(ctx, CategoryDetails)
	release := g.locks.acquire(CategoryDetails + "/" + tokenID)
	defer release()

	var cached DetailsArtifact
	if hit, err := g.caches.Details.LookupInto(tokenID, &cached); err == nil && hit {
		return &cached, nil
	}

	analysis, err := g.Analysis(ctx, tokenID)
	if err != nil && !errors.Is(err, services.ErrCacheWrite) {
		return nil, err
	}
	traits, err := g.Traits(ctx, tokenID)
	if err != nil && !errors.Is(err, services.ErrCacheWrite) {
		return nil, err
	}

	details, err := g.model.CardDetails(ctx, analysis.Text, traits.Summary())
	if err != nil {
		return nil, services.Wrap(services.ErrGeneration, "cardgen", "details", "card details generation failed", err)
	}

	artifact := &DetailsArtifact{
		TokenID:     tokenID,
		Name:        g.titler.String(strings.ToLower(strings.TrimSpace(details.Name))),
		Rarity:      details.Rarity,
		Element:     details.Element,
		Attack:      details.Attack,
		Defense:     details.Defense,
		Cost:        details.Cost,
		FlavorText:  details.FlavorText,
		Abilities:   details.Abilities,
		GeneratedAt: time.Now().UTC(),
	}
	if err := g.caches.Details.Store(tokenID, artifact); err != nil {
		g.logger.WarnContext(ctx, "details not persisted",
			logging.String(logging.FieldTokenID, tokenID), logging.Error(err))
		return artifact, err
	}
	g.logger.InfoContext(ctx, "details generated",
		logging.String(logging.FieldTokenID, tokenID),
		logging.String("card_name", artifact.Name),
		logging.String("rarity", artifact.Rarity))
	return artifact, nil
}

// Art returns the cached generated artwork for a token, running the async
// image job on a miss. force bypasses the cache and regenerates.
func (g *Generator) Art(ctx context.Context, tokenID string, force bool) (*ArtArtifact, error) {
	tokenID, err := normalizeTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	ctx = services.WithArtifact(ctx, CategoryArt)
	release := g.locks.acquire(CategoryArt + "/" + tokenID)
	defer release()

	if !force {
		var cached ArtArtifact
		if hit, err := g.caches.Art.LookupInto(tokenID, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	details, err := g.Details(ctx, tokenID)
	if err != nil && !errors.Is(err, services.ErrCacheWrite) {
		return nil, err
	}
	analysis, err := g.Analysis(ctx, tokenID)
	if err != nil && !errors.Is(err, services.ErrCacheWrite) {
		return nil, err
	}

	prompt := g.buildPrompt(details, analysis)
	artifact, err := g.runArtJob(ctx, tokenID, prompt)
	if err != nil {
		return nil, err
	}
	if err := g.caches.Art.Store(tokenID, artifact); err != nil {
		g.logger.WarnContext(ctx, "art not persisted",
			logging.String(logging.FieldTokenID, tokenID), logging.Error(err))
		return artifact, err
	}
	g.logger.InfoContext(ctx, "art generated",
		logging.String(logging.FieldTokenID, tokenID),
		logging.Int("attempts", artifact.Attempts))
	return artifact, nil
}

func (g *Generator) runArtJob(ctx context.Context, tokenID, prompt string) (*ArtArtifact, error) {
	var record *jobstore.Job
	if g.jobs != nil {
		job, err := g.jobs.NewJob(ctx, tokenID, CategoryArt)
		if err != nil {
			g.logger.WarnContext(ctx, "job record failed",
				logging.String(logging.FieldTokenID, tokenID), logging.Error(err))
		} else {
			record = job
			ctx = services.WithRequestID(ctx, job.RequestID)
			_ = g.jobs.SetSubmitting(ctx, job.ID)
		}
	}

	var fetches int
	outcome, err := g.poll.Run(ctx, poller.Job{
		Name: "art",
		Submit: func(ctx context.Context) (string, error) {
			taskID, err := g.images.Imagine(ctx, prompt)
			if err == nil && record != nil {
				_ = g.jobs.SetPolling(ctx, record.ID, taskID)
			}
			return taskID, err
		},
		Fetch: func(ctx context.Context, handle string) (poller.Update, error) {
			fetches++
			if record != nil {
				_ = g.jobs.RecordAttempt(ctx, record.ID, fetches)
			}
			task, err := g.images.Fetch(ctx, handle)
			if err != nil {
				// A vanished task never finishes; polling on is pointless.
				if errors.Is(err, goapi.ErrTaskNotFound) {
					return poller.Update{}, services.Wrap(services.ErrNotFound, "cardgen", "art", "image task no longer exists", err)
				}
				return poller.Update{}, err
			}
			return poller.Update{Status: task.Status, Result: task, Reason: task.Reason}, nil
		},
	})
	if err != nil {
		if record != nil {
			_ = g.jobs.MarkFailed(context.WithoutCancel(ctx), record.ID, err.Error())
		}
		return nil, err
	}

	task, ok := outcome.Result.(goapi.Task)
	if !ok || strings.TrimSpace(task.ImageURL) == "" {
		err := services.Wrap(services.ErrGeneration, "cardgen", "art", "job succeeded without an image url", nil)
		if record != nil {
			_ = g.jobs.MarkFailed(context.WithoutCancel(ctx), record.ID, err.Error())
		}
		return nil, err
	}
	if record != nil {
		_ = g.jobs.MarkCompleted(ctx, record.ID, task.ImageURL, outcome.Attempts)
	}

	return &ArtArtifact{
		TokenID:     tokenID,
		ImageURL:    task.ImageURL,
		TaskID:      outcome.Handle,
		Prompt:      prompt,
		Attempts:    outcome.Attempts,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (g *Generator) buildPrompt(details *DetailsArtifact, analysis *AnalysisArtifact) string {
	parts := make([]string, 0, 4)
	if summary := firstSentence(analysis.Text); summary != "" {
		parts = append(parts, summary)
	}
	if details.Name != "" {
		descriptor := details.Name
		if details.Element != "" && details.Element != "neutral" {
			descriptor = fmt.Sprintf("%s, %s element", descriptor, details.Element)
		}
		parts = append(parts, descriptor)
	}
	if g.styleSuffix != "" {
		parts = append(parts, g.styleSuffix)
	}
	return strings.Join(parts, ", ")
}

// Card runs the whole pipeline for a token and assembles the final card.
// A failed cache write leaves the artifact usable in-memory, so it degrades
// the run instead of failing it.
func (g *Generator) Card(ctx context.Context, tokenID string, force bool) (*api.Card, error) {
	tokenID, err := normalizeTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	ctx = services.WithTokenID(ctx, tokenID)

	traits, err := g.Traits(ctx, tokenID)
	if err != nil && !errors.Is(err, services.ErrCacheWrite) {
		return nil, err
	}
	analysis, err := g.Analysis(ctx, tokenID)
	if err != nil && !errors.Is(err, services.ErrCacheWrite) {
		return nil, err
	}
	details, err := g.Details(ctx, tokenID)
	if err != nil && !errors.Is(err, services.ErrCacheWrite) {
		return nil, err
	}
	art, err := g.Art(ctx, tokenID, force)
	if err != nil && !errors.Is(err, services.ErrCacheWrite) {
		if g.notifier != nil {
			if notifyErr := g.notifier.NotifyGenerationFailed(context.WithoutCancel(ctx), tokenID, err.Error()); notifyErr != nil {
				g.logger.WarnContext(ctx, "failure notification failed", logging.Error(notifyErr))
			}
		}
		return nil, err
	}
	if g.notifier != nil {
		if notifyErr := g.notifier.NotifyCardGenerated(ctx, tokenID, details.Name); notifyErr != nil {
			g.logger.WarnContext(ctx, "completion notification failed", logging.Error(notifyErr))
		}
	}

	card := &api.Card{
		TokenID:    tokenID,
		Name:       details.Name,
		Rarity:     details.Rarity,
		Element:    details.Element,
		Attack:     details.Attack,
		Defense:    details.Defense,
		Cost:       details.Cost,
		FlavorText: details.FlavorText,
		ImageURL:   art.ImageURL,
		SourceURL:  traits.ImageURL,
		Analysis:   analysis.Text,
	}
	for _, ability := range details.Abilities {
		card.Abilities = append(card.Abilities, api.Ability{Name: ability.Name, Description: ability.Description})
	}
	for _, trait := range traits.Traits {
		card.Traits = append(card.Traits, api.Trait{TraitType: trait.TraitType, Value: string(trait.Value)})
	}
	return card, nil
}

func normalizeTokenID(tokenID string) (string, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return "", services.Wrap(services.ErrValidation, "cardgen", "token", "token id must not be empty", nil)
	}
	for _, r := range tokenID {
		if r < '0' || r > '9' {
			return "", services.Wrap(services.ErrValidation, "cardgen", "token", fmt.Sprintf("token id %q must be numeric", tokenID), nil)
		}
	}
	return tokenID, nil
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if idx := strings.IndexAny(text, ".!?\n"); idx > 0 {
		return strings.TrimSpace(text[:idx])
	}
	return text
}
