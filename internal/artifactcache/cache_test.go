package artifactcache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cardforge/internal/services"
)

type artURL struct {
	URL string `json:"url"`
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return New("art", filepath.Join(t.TempDir(), "art.json"), nil)
}

func TestStoreAndLookup(t *testing.T) {
	cache := newTestCache(t)

	if err := cache.Store("1234", artURL{URL: "https://x/a.png"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	var got artURL
	found, err := cache.LookupInto("1234", &got)
	if err != nil {
		t.Fatalf("LookupInto failed: %v", err)
	}
	if !found {
		t.Fatal("expected entry for key 1234")
	}
	if got.URL != "https://x/a.png" {
		t.Errorf("URL = %q, want %q", got.URL, "https://x/a.png")
	}
}

func TestStoreOverwrites(t *testing.T) {
	cache := newTestCache(t)

	if err := cache.Store("1234", artURL{URL: "https://old"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := cache.Store("1234", artURL{URL: "https://new"}); err != nil {
		t.Fatalf("Store overwrite failed: %v", err)
	}

	var got artURL
	if _, err := cache.LookupInto("1234", &got); err != nil {
		t.Fatalf("LookupInto failed: %v", err)
	}
	if got.URL != "https://new" {
		t.Errorf("expected last write to win, got %q", got.URL)
	}
}

func TestLookupNotFound(t *testing.T) {
	cache := newTestCache(t)

	if _, ok := cache.Lookup("missing"); ok {
		t.Error("Lookup should return false for absent key")
	}
	if _, ok := cache.Lookup(""); ok {
		t.Error("Lookup should return false for empty key")
	}
	if _, ok := cache.Lookup("   "); ok {
		t.Error("Lookup should return false for whitespace key")
	}
}

func TestPersistenceAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "art.json")

	first := New("art", path, nil)
	if err := first.Store("5678", artURL{URL: "https://x/b.png"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	second := New("art", path, nil)
	var got artURL
	found, err := second.LookupInto("5678", &got)
	if err != nil {
		t.Fatalf("LookupInto failed: %v", err)
	}
	if !found || got.URL != "https://x/b.png" {
		t.Fatalf("expected persisted entry, found=%v value=%+v", found, got)
	}
}

func TestFileFormatIsFlatMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "traits.json")

	cache := New("traits", path, nil)
	if err := cache.Store("42", map[string]string{"Background": "Aquamarine"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("cache file is not a JSON object: %v", err)
	}
	if _, ok := doc["42"]; !ok {
		t.Fatalf("cache document missing key, got %v", doc)
	}
}

func TestCorruptFileDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "art.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	cache := New("art", path, nil)
	if cache.Count() != 0 {
		t.Fatalf("expected empty cache, got %d entries", cache.Count())
	}

	// The cache must remain usable after degrading.
	if err := cache.Store("1", artURL{URL: "https://x"}); err != nil {
		t.Fatalf("Store after corrupt load failed: %v", err)
	}
}

func TestRemoveAndClear(t *testing.T) {
	cache := newTestCache(t)

	if err := cache.Store("a", artURL{URL: "u"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := cache.Store("b", artURL{URL: "v"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if err := cache.Remove("a"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := cache.Lookup("a"); ok {
		t.Error("entry should not exist after removal")
	}
	if err := cache.Remove("a"); err == nil {
		t.Error("expected error removing absent key")
	}

	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cache.Count() != 0 {
		t.Errorf("expected empty cache after Clear, got %d", cache.Count())
	}
}

func TestListSortedByKey(t *testing.T) {
	cache := newTestCache(t)
	for _, key := range []string{"30", "10", "20"} {
		if err := cache.Store(key, artURL{URL: key}); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	entries := cache.List()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"10", "20", "30"} {
		if entries[i].Key != want {
			t.Errorf("entries[%d].Key = %q, want %q", i, entries[i].Key, want)
		}
	}
}

func TestUnconfiguredPathIsNoop(t *testing.T) {
	cache := New("art", "", nil)
	if err := cache.Store("1", artURL{URL: "u"}); err != nil {
		t.Fatalf("Store on unconfigured cache should be a no-op, got %v", err)
	}
	if _, ok := cache.Lookup("1"); ok {
		t.Error("unconfigured cache should never report hits")
	}
	if cache.Count() != 0 {
		t.Error("unconfigured cache should report zero entries")
	}
}

func TestWriteFailureIsTagged(t *testing.T) {
	dir := t.TempDir()
	// Point the cache file inside a path segment that is actually a file so
	// MkdirAll fails on save.
	blocker := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	cache := New("art", filepath.Join(blocker, "art.json"), nil)
	err := cache.Store("1", artURL{URL: "u"})
	if err == nil {
		t.Fatal("expected write failure")
	}
	if !errors.Is(err, services.ErrCacheWrite) {
		t.Fatalf("expected cache write marker, got %v", err)
	}
}
