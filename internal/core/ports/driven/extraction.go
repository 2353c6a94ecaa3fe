package driven

import (
	"context"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

// TextExtractor turns a document on disk into plain text.
type TextExtractor interface {
	// Extract returns the text of every page concatenated in page order.
	// A valid document without extractable text yields "".
	// Returns domain.ErrUnsupportedFormat if the file is not a well-formed PDF.
	Extract(ctx context.Context, path string) (string, error)
}

// CVEExtractor finds CVE mentions in free text.
type CVEExtractor interface {
	// ExtractCVEs returns the CVEs found in text, or an empty slice.
	// Returns domain.ErrExtractionFailed on agent failure or malformed output.
	ExtractCVEs(ctx context.Context, text string) ([]domain.CVECandidate, error)
}

// ActorExtractor finds threat actor mentions in free text.
type ActorExtractor interface {
	// ExtractActors returns the threat actors found in text, or an empty slice.
	// Returns domain.ErrExtractionFailed on agent failure or malformed output.
	ExtractActors(ctx context.Context, text string) ([]domain.ActorCandidate, error)
}
