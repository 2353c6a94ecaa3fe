package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
	"github.com/custodia-labs/threatdocs/internal/logger"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Stage     string `json:"stage,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// kinds maps sentinel errors to a status code and a stable kind name.
// Order matters: an IngestError matches its kind before its cause.
var kinds = []struct {
	err    error
	status int
	name   string
}{
	{domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, "unsupported_format"},
	{domain.ErrExtractionFailed, http.StatusBadGateway, "extraction_failed"},
	{domain.ErrValidationFailed, http.StatusUnprocessableEntity, "validation_failed"},
	{domain.ErrPersistenceFailed, http.StatusInternalServerError, "persistence_failed"},
	{domain.ErrInvalidCriteria, http.StatusBadRequest, "invalid_criteria"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrLLMUnavailable, http.StatusServiceUnavailable, "llm_unavailable"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
}

// classify returns the status code and kind name for err.
func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	}

	// The kind of an IngestError decides even when its cause also matches
	// a sentinel, e.g. a persistence failure caused by a validation error.
	var ingestErr *domain.IngestError
	if errors.As(err, &ingestErr) {
		err = ingestErr.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status, k.name
		}
	}
	return http.StatusInternalServerError, "internal"
}

// abortWithError writes err as a JSON error response.
func abortWithError(c *gin.Context, err error) {
	status, kind := classify(err)
	body := errorBody{
		Error:     err.Error(),
		Kind:      kind,
		RequestID: GetRequestID(c),
	}

	var ingestErr *domain.IngestError
	if errors.As(err, &ingestErr) {
		body.Stage = ingestErr.Stage
	}
	if status == http.StatusInternalServerError {
		// Keep store internals out of responses; they are in the logs.
		logger.Error("%s %s failed (request_id=%s): %v", c.Request.Method, c.Request.URL.Path, body.RequestID, err)
		body.Error = http.StatusText(status)
		if kind == "persistence_failed" {
			body.Error = "the document could not be stored"
		}
	}

	c.AbortWithStatusJSON(status, body)
}

// abortBadRequest rejects a malformed request before it reaches a service.
func abortBadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
		Error:     msg,
		Kind:      "invalid_input",
		RequestID: GetRequestID(c),
	})
}
