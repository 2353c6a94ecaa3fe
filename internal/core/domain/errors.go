package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCriteria indicates a search request that cannot be satisfied,
	// such as an inverted upload date range.
	ErrInvalidCriteria = errors.New("invalid search criteria")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Ingestion is disabled without it; search keeps working.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// Ingestion Errors.

	// ErrUnsupportedFormat indicates the payload is not a parseable PDF.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExtractionFailed indicates an extraction agent failed, timed out,
	// or returned output that does not conform to its schema.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrValidationFailed indicates normalised records violate an invariant,
	// for example a malformed CVE identifier.
	ErrValidationFailed = errors.New("validation failed")

	// ErrPersistenceFailed indicates the store rejected the batch.
	// Nothing from the batch was written.
	ErrPersistenceFailed = errors.New("persistence failed")
)

// IngestError reports which ingestion stage failed. It unwraps to both the
// failure kind and the underlying cause, so callers can match either with
// errors.Is.
type IngestError struct {
	Kind  error
	Stage string
	Err   error
}

// NewIngestError wraps err as a failure of kind during stage.
func NewIngestError(kind error, stage string, err error) *IngestError {
	return &IngestError{Kind: kind, Stage: stage, Err: err}
}

func (e *IngestError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap returns the kind and the cause.
func (e *IngestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
