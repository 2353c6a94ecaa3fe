package driving

import (
	"context"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

// SearchService provides the unified search to external actors.
type SearchService interface {
	// Search returns one result sequence per requested entity class.
	// Returns domain.ErrInvalidCriteria for criteria that can never match.
	Search(ctx context.Context, criteria domain.SearchCriteria) (*domain.SearchResult, error)
}
