package driven

import (
	"context"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

// EntityStore persists documents and their extracted records.
// Records are insert-only; there is no update or delete.
type EntityStore interface {
	// SaveBatch writes the document and all of its records in one transaction.
	// Either everything is written or nothing is.
	SaveBatch(ctx context.Context, batch domain.Batch) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// SearchDocuments returns documents matching the document filters.
	SearchDocuments(ctx context.Context, c domain.SearchCriteria) ([]domain.Document, error)

	// SearchCVEs returns CVE records matching the CVE filters and the owning
	// document's filename filter.
	SearchCVEs(ctx context.Context, c domain.SearchCriteria) ([]domain.CVERecord, error)

	// SearchThreatActors returns threat actor records matching the actor
	// filters and the owning document's filename filter.
	SearchThreatActors(ctx context.Context, c domain.SearchCriteria) ([]domain.ThreatActorRecord, error)

	// ListCVEs returns the CVE records of one document.
	ListCVEs(ctx context.Context, documentID string) ([]domain.CVERecord, error)

	// ListThreatActors returns the threat actor records of one document.
	ListThreatActors(ctx context.Context, documentID string) ([]domain.ThreatActorRecord, error)

	// Close releases resources.
	Close() error
}
