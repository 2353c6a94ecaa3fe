package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

// IngestService turns uploaded PDFs into persisted documents and records.
type IngestService interface {
	// Ingest processes a PDF payload and returns the new document's ID.
	// Failures are *domain.IngestError values matching one of
	// domain.ErrUnsupportedFormat, domain.ErrExtractionFailed,
	// domain.ErrValidationFailed or domain.ErrPersistenceFailed.
	Ingest(ctx context.Context, payload io.Reader, filename string) (*domain.IngestReport, error)

	// IngestFile opens path and ingests it under filename.
	// An empty filename uses the base name of path.
	IngestFile(ctx context.Context, path, filename string) (*domain.IngestReport, error)
}
