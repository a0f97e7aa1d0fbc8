// Package services defines the shared error taxonomy and context annotation
// helpers used by the external API clients and the card generation pipeline.
//
// Errors are tagged with sentinel markers (submission, generation, timeout,
// transient, ...) so callers can classify outcomes with errors.Is without
// depending on client-specific error types.
package services
