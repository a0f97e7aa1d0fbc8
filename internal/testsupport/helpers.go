package testsupport

import (
	"testing"

	"cardforge/internal/artifactcache"
	"cardforge/internal/cardgen"
	"cardforge/internal/config"
	"cardforge/internal/jobstore"
	"cardforge/internal/logging"
)

// NewJobStore opens a job store under the test config's cache directory and
// closes it when the test finishes.
func NewJobStore(t testing.TB, cfg *config.Config) *jobstore.Store {
	t.Helper()
	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// NewCaches builds one artifact cache per pipeline category under the test
// config's cache directory.
func NewCaches(t testing.TB, cfg *config.Config) cardgen.Caches {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	logger := logging.NewNop()
	return cardgen.Caches{
		Traits:   artifactcache.New(cardgen.CategoryTraits, cfg.CachePath(cardgen.CategoryTraits), logger),
		Analysis: artifactcache.New(cardgen.CategoryAnalysis, cfg.CachePath(cardgen.CategoryAnalysis), logger),
		Details:  artifactcache.New(cardgen.CategoryDetails, cfg.CachePath(cardgen.CategoryDetails), logger),
		Art:      artifactcache.New(cardgen.CategoryArt, cfg.CachePath(cardgen.CategoryArt), logger),
	}
}
