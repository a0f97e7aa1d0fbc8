package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSubmission    = errors.New("submission rejected")
	ErrGeneration    = errors.New("generation failed")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrCacheWrite    = errors.New("cache write failed")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Terminal reports whether the error carries a marker that represents a final
// outcome. Terminal errors are surfaced to the caller; untagged or transient
// errors may be absorbed by a retry loop.
func Terminal(err error) bool {
	if err == nil || errors.Is(err, ErrTransient) {
		return false
	}
	for _, marker := range []error{ErrSubmission, ErrGeneration, ErrTimeout, ErrValidation, ErrConfiguration, ErrNotFound} {
		if errors.Is(err, marker) {
			return true
		}
	}
	return false
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
