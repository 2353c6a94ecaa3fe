package mcp

import (
	"context"
	"io"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	result   *domain.SearchResult
	err      error
	criteria domain.SearchCriteria
}

func (m *mockSearchService) Search(_ context.Context, c domain.SearchCriteria) (*domain.SearchResult, error) {
	m.criteria = c
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.SearchResult{}, nil
	}
	return m.result, nil
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	details *domain.DocumentDetails
	err     error
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.DocumentDetails, error) {
	return m.details, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	report      *domain.IngestReport
	err         error
	gotPath     string
	gotFilename string
}

func (m *mockIngestService) Ingest(_ context.Context, _ io.Reader, _ string) (*domain.IngestReport, error) {
	return m.report, m.err
}

func (m *mockIngestService) IngestFile(_ context.Context, path, filename string) (*domain.IngestReport, error) {
	m.gotPath = path
	m.gotFilename = filename
	return m.report, m.err
}
