package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrGeneration marks script-generation collaborator failures.
	ErrGeneration = errors.New("generation error")
	// ErrSynthesis marks audio-synthesis collaborator failures.
	ErrSynthesis = errors.New("synthesis error")
	// ErrCapExceeded is surfaced synchronously when the rate guard denies
	// admission; no job record exists for a denied request.
	ErrCapExceeded = errors.New("production cap exceeded")
	// ErrNotFound marks queries for nonexistent job or series ids.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration marks missing or invalid collaborator settings.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes operation context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = errors.New("service failure")
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
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
