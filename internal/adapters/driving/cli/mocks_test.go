package cli

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/threatdocs/internal/config"
	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// mockIngestService implements driving.IngestService for testing.
type mockIngestService struct {
	mu    sync.Mutex
	paths []string
	names []string
	errs  map[string]error
}

func (m *mockIngestService) Ingest(_ context.Context, _ io.Reader, filename string) (*domain.IngestReport, error) {
	return &domain.IngestReport{DocumentID: "doc-1", Filename: filename}, nil
}

func (m *mockIngestService) IngestFile(_ context.Context, path, filename string) (*domain.IngestReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paths = append(m.paths, path)
	m.names = append(m.names, filename)
	if err := m.errs[path]; err != nil {
		return nil, err
	}
	if filename == "" {
		filename = path
	}
	return &domain.IngestReport{DocumentID: "doc-1", Filename: filename, CVECount: 2, ActorCount: 1}, nil
}

func (m *mockIngestService) ingested() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

// mockSearchService implements driving.SearchService for testing.
type mockSearchService struct {
	criteria domain.SearchCriteria
	err      error
}

func (m *mockSearchService) Search(_ context.Context, c domain.SearchCriteria) (*domain.SearchResult, error) {
	m.criteria = c
	if m.err != nil {
		return nil, m.err
	}

	var result domain.SearchResult
	if c.ShowDocuments {
		docs := []domain.Document{{ID: "doc-1", Filename: "apt-report.pdf", UploadedAt: testTime}}
		result.Documents = &docs
	}
	if c.ShowCVEs {
		cves := []domain.CVERecord{{
			ID: "cve-1", DocumentID: "doc-1", CVEID: "CVE-2024-12345",
			Description: "Remote code execution", Severity: "Critical", ExtractedAt: testTime,
		}}
		result.CVEs = &cves
	}
	if c.ShowThreatActors {
		actors := []domain.ThreatActorRecord{{
			ID: "actor-1", DocumentID: "doc-1", Name: "APT29",
			Aliases: []string{"Cozy Bear", "The Dukes"}, ExtractedAt: testTime,
		}}
		result.ThreatActors = &actors
	}
	return &result, nil
}

// mockDocumentService implements driving.DocumentService for testing.
type mockDocumentService struct {
	err error
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.DocumentDetails, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.DocumentDetails{
		Document: domain.Document{ID: id, Filename: "apt-report.pdf", UploadedAt: testTime},
		CVEs: []domain.CVERecord{{
			ID: "cve-1", DocumentID: id, CVEID: "CVE-2024-12345", Severity: "High",
		}},
		ThreatActors: []domain.ThreatActorRecord{},
	}, nil
}

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	mu      sync.Mutex
	reloads int
}

func (m *mockPromptStore) Load(_ string) (string, error) { return "prompt", nil }

func (m *mockPromptStore) Reload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloads++
}

type testServices struct {
	ingest    *mockIngestService
	search    *mockSearchService
	documents *mockDocumentService
	prompts   *mockPromptStore
	closed    bool
}

// setupTestServices installs mocks and a default configuration, restoring
// the previous state when the test ends.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()

	oldIngest, oldSearch, oldDocs := ingestService, searchService, documentService
	oldPrompts, oldClose, oldConfig := promptStore, closeServices, appConfig

	ts := &testServices{
		ingest:    &mockIngestService{},
		search:    &mockSearchService{},
		documents: &mockDocumentService{},
		prompts:   &mockPromptStore{},
	}
	SetServices(&Services{
		Ingest:    ts.ingest,
		Search:    ts.search,
		Documents: ts.documents,
		Prompts:   ts.prompts,
		Close: func() error {
			ts.closed = true
			return nil
		},
	})
	appConfig = config.Default()

	t.Cleanup(func() {
		ingestService, searchService, documentService = oldIngest, oldSearch, oldDocs
		promptStore, closeServices, appConfig = oldPrompts, oldClose, oldConfig
	})
	return ts
}
