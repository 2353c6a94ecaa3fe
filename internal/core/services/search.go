package services

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driving"
	"github.com/custodia-labs/threatdocs/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService composes filtered reads over documents, CVEs and threat actors.
type SearchService struct {
	store driven.EntityStore
}

// NewSearchService creates a new search service.
func NewSearchService(store driven.EntityStore) *SearchService {
	return &SearchService{store: store}
}

// Search runs one filtered read per requested entity class. Classes that
// are not requested are left nil in the result.
func (s *SearchService) Search(ctx context.Context, c domain.SearchCriteria) (*domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Requested: documents=%t, cves=%t, threat_actors=%t",
		c.ShowDocuments, c.ShowCVEs, c.ShowThreatActors)

	if err := c.Validate(); err != nil {
		return nil, err
	}

	result := &domain.SearchResult{}
	if !c.RequestsAnything() {
		logger.Debug("No entity class requested, returning empty result")
		return result, nil
	}

	g, gctx := errgroup.WithContext(ctx)

	if c.ShowDocuments {
		g.Go(func() error {
			docs, err := s.store.SearchDocuments(gctx, c)
			if err != nil {
				return fmt.Errorf("searching documents: %w", err)
			}
			docs = nonNil(docs)
			result.Documents = &docs
			return nil
		})
	}
	if c.ShowCVEs {
		g.Go(func() error {
			cves, err := s.store.SearchCVEs(gctx, c)
			if err != nil {
				return fmt.Errorf("searching cves: %w", err)
			}
			cves = nonNil(cves)
			result.CVEs = &cves
			return nil
		})
	}
	if c.ShowThreatActors {
		g.Go(func() error {
			actors, err := s.store.SearchThreatActors(gctx, c)
			if err != nil {
				return fmt.Errorf("searching threat actors: %w", err)
			}
			actors = nonNil(actors)
			result.ThreatActors = &actors
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn("Search failed: %v", err)
		return nil, err
	}

	logger.Info("Search complete: %s", describeResult(result))
	return result, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func describeResult(r *domain.SearchResult) string {
	var parts []string
	if r.Documents != nil {
		parts = append(parts, fmt.Sprintf("documents=%d", len(*r.Documents)))
	}
	if r.CVEs != nil {
		parts = append(parts, fmt.Sprintf("cves=%d", len(*r.CVEs)))
	}
	if r.ThreatActors != nil {
		parts = append(parts, fmt.Sprintf("threat_actors=%d", len(*r.ThreatActors)))
	}
	return strings.Join(parts, ", ")
}
