package httpapi

import (
	"context"
	"io"
	"sync"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

// mockIngest records the upload it receives.
type mockIngest struct {
	mu       sync.Mutex
	report   *domain.IngestReport
	err      error
	filename string
	payload  []byte
	calls    int
}

func (m *mockIngest) Ingest(_ context.Context, payload io.Reader, filename string) (*domain.IngestReport, error) {
	data, err := io.ReadAll(payload)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.filename = filename
	m.payload = data
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}

func (m *mockIngest) IngestFile(_ context.Context, _, _ string) (*domain.IngestReport, error) {
	return m.report, m.err
}

// mockSearch records the criteria it receives.
type mockSearch struct {
	result   *domain.SearchResult
	err      error
	criteria domain.SearchCriteria
}

func (m *mockSearch) Search(_ context.Context, c domain.SearchCriteria) (*domain.SearchResult, error) {
	m.criteria = c
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockDocuments serves one document.
type mockDocuments struct {
	details *domain.DocumentDetails
	err     error
	gotID   string
}

func (m *mockDocuments) Get(_ context.Context, id string) (*domain.DocumentDetails, error) {
	m.gotID = id
	if m.err != nil {
		return nil, m.err
	}
	return m.details, nil
}
