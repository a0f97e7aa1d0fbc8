package artifactcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"cardforge/internal/logging"
	"cardforge/internal/services"
)

// Entry pairs a cache key with its stored artifact payload.
type Entry struct {
	Key   string
	Value json.RawMessage
}

// Cache provides thread-safe access to a single artifact category persisted as
// a flat JSON object on disk, keyed by token id or derived signature.
type Cache struct {
	path     string
	category string
	logger   *slog.Logger
	filelock *flock.Flock
	mu       sync.RWMutex
	entries  map[string]json.RawMessage
}

// New creates a cache instance for one artifact category. If path is empty,
// the cache is non-functional (all operations become no-ops). The cache file
// is created lazily on first Store call.
func New(category, path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "artifactcache")

	c := &Cache{
		path:     path,
		category: category,
		logger:   logger.With(logging.String("category", category)),
		entries:  make(map[string]json.RawMessage),
	}

	if path == "" {
		return c
	}
	c.filelock = flock.New(path + ".lock")

	// A broken cache file means regenerating artifacts, never a dead daemon.
	if err := c.load(); err != nil {
		c.logger.Warn("failed to load artifact cache",
			logging.String(logging.FieldEventType, "artifactcache_load_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "cache will start empty"),
			logging.String(logging.FieldImpact, "previously generated artifacts will be recomputed"))
	}

	return c
}

// Lookup returns the stored artifact for the given key if found.
func (c *Cache) Lookup(key string) (json.RawMessage, bool) {
	key = strings.TrimSpace(key)
	if key == "" || c == nil || c.path == "" {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	value, found := c.entries[key]
	return value, found
}

// LookupInto unmarshals the stored artifact for key into target.
func (c *Cache) LookupInto(key string, target any) (bool, error) {
	raw, found := c.Lookup(key)
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return false, fmt.Errorf("decode cached %s artifact for %q: %w", c.category, key, err)
	}
	return true, nil
}

// Store adds or overwrites an entry and persists the document to disk before
// returning. Overwrite is last-write-wins.
func (c *Cache) Store(key string, value any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("cache key cannot be empty")
	}
	if c == nil || c.path == "" {
		return nil // no-op when path not configured
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s artifact: %w", c.category, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = raw

	if err := c.save(); err != nil {
		return services.Wrap(services.ErrCacheWrite, "artifactcache", c.category, "persist cache", err)
	}

	c.logger.Debug("cached artifact",
		logging.String("key", key),
		logging.Int("bytes", len(raw)))

	return nil
}

// Remove deletes an entry by key and persists the change.
func (c *Cache) Remove(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("cache key cannot be empty")
	}
	if c == nil || c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		return fmt.Errorf("key %q not found in %s cache", key, c.category)
	}

	delete(c.entries, key)

	if err := c.save(); err != nil {
		return services.Wrap(services.ErrCacheWrite, "artifactcache", c.category, "persist cache", err)
	}

	c.logger.Debug("removed cached artifact", logging.String("key", key))
	return nil
}

// List returns all entries sorted by key.
func (c *Cache) List() []Entry {
	if c == nil || c.path == "" {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.entries))
	for key, value := range c.entries {
		entries = append(entries, Entry{Key: key, Value: value})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})

	return entries
}

// Clear removes all entries and persists the empty document.
func (c *Cache) Clear() error {
	if c == nil || c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]json.RawMessage)

	if err := c.save(); err != nil {
		return services.Wrap(services.ErrCacheWrite, "artifactcache", c.category, "persist cache", err)
	}

	c.logger.Debug("cleared artifact cache")
	return nil
}

// Count returns the number of entries in the cache.
func (c *Cache) Count() int {
	if c == nil || c.path == "" {
		return 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Category returns the artifact category this cache stores.
func (c *Cache) Category() string {
	if c == nil {
		return ""
	}
	return c.category
}

// Path returns the backing file path.
func (c *Cache) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// load reads the cache document from disk into memory. A missing, empty, or
// corrupt file is reported to the caller; the in-memory map stays empty.
func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // fresh start
		}
		return fmt.Errorf("read cache file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}

	c.entries = make(map[string]json.RawMessage, len(entries))
	for key, value := range entries {
		if strings.TrimSpace(key) != "" {
			c.entries[key] = value
		}
	}

	c.logger.Debug("loaded artifact cache",
		logging.Int("entry_count", len(c.entries)),
		logging.String("path", c.path))

	return nil
}

// save writes the cache document to disk atomically. A file lock keeps two
// cardforge processes from interleaving temp-file renames on the same path.
func (c *Cache) save() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	if c.filelock != nil {
		if err := c.filelock.Lock(); err != nil {
			return fmt.Errorf("acquire cache file lock: %w", err)
		}
		defer func() { _ = c.filelock.Unlock() }()
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath) // cleanup on failure
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
