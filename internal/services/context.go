package services

import "context"

type contextKey string

const (
	tokenIDKey   contextKey = "token_id"
	artifactKey  contextKey = "artifact"
	requestIDKey contextKey = "request_id"
)

// WithTokenID annotates context with the NFT token identifier being processed.
func WithTokenID(ctx context.Context, tokenID string) context.Context {
	if tokenID == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenIDKey, tokenID)
}

// TokenIDFromContext extracts the token identifier if present.
func TokenIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(tokenIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithArtifact annotates context with the artifact category being generated.
func WithArtifact(ctx context.Context, kind string) context.Context {
	if kind == "" {
		return ctx
	}
	return context.WithValue(ctx, artifactKey, kind)
}

// ArtifactFromContext returns the artifact category if present.
func ArtifactFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(artifactKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
