package driving

import (
	"context"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

// DocumentService reads ingested documents.
type DocumentService interface {
	// Get returns a document with its CVEs and threat actors.
	// Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, documentID string) (*domain.DocumentDetails, error)
}
