// ABOUTME: Error types for the text-generation client.
// ABOUTME: SchemaMismatchError signals structured output that failed to parse into the requested record shape.
package llm

import (
	"fmt"
)

// SchemaMismatchError reports a structured generation whose output could not
// be parsed into the requested record shape. Not retryable; the owning node
// aborts.
type SchemaMismatchError struct {
	Schema string // schema name the generation was constrained to
	Raw    string // raw model output that failed to parse
	Cause  error
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("structured output does not match schema %q: %v", e.Schema, e.Cause)
}

func (e *SchemaMismatchError) Unwrap() error {
	return e.Cause
}

// GenerationError reports a provider-side completion failure.
type GenerationError struct {
	Provider string
	Cause    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}
