package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService reads documents together with their extracted records.
type DocumentService struct {
	store driven.EntityStore
}

// NewDocumentService creates a new document service.
func NewDocumentService(store driven.EntityStore) *DocumentService {
	return &DocumentService{store: store}
}

// Get returns a document with its CVEs and threat actors.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.DocumentDetails, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	cves, err := s.store.ListCVEs(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing cves: %w", err)
	}

	actors, err := s.store.ListThreatActors(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing threat actors: %w", err)
	}

	return &domain.DocumentDetails{
		Document:     *doc,
		CVEs:         nonNil(cves),
		ThreatActors: nonNil(actors),
	}, nil
}
