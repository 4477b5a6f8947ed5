package memory

import (
	"errors"
	"fmt"
)

// Validation errors are surfaced immediately to the caller and never retried.
var (
	// ErrSizeMismatch is returned by batch saves when the record and
	// embedding collections differ in length.
	ErrSizeMismatch = errors.New("records and embeddings differ in length")

	// ErrBlankSegment is returned when a namespace segment is empty or blank.
	ErrBlankSegment = errors.New("namespace segment must not be blank")

	// ErrInvalidThreshold is returned when a decay threshold falls outside (0, 1).
	ErrInvalidThreshold = errors.New("threshold must be in (0, 1)")

	// ErrNotFound indicates an unknown record id. Store implementations
	// return it from lookups; the coordinator treats it as a no-op on
	// delete and access paths.
	ErrNotFound = errors.New("memory record not found")
)

// MissingVariableError is returned by NamespaceTemplate.Resolve when a
// placeholder references a variable absent from the supplied map.
type MissingVariableError struct {
	Variable string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("namespace template: missing variable %q", e.Variable)
}
