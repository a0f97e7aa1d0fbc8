// Package artifactcache persists generated card artifacts as flat JSON
// documents on disk, one file per artifact category (traits, analysis,
// details, art).
//
// The cache is write-through: Store persists the full document atomically
// before returning, so a process restart never loses an acknowledged write.
// A missing or corrupt cache file degrades to an empty cache rather than an
// error, trading durability for availability: the worst case is re-invoking
// the external generation services.
package artifactcache
