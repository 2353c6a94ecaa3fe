package services

import (
	"context"
	"io"
	"sync"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
)

// mockSpool implements driven.PayloadSpool without touching the disk.
type mockSpool struct {
	mu         sync.Mutex
	path       string
	spoolErr   error
	releaseErr error
	payload    []byte
	limit      int64
	releases   int
}

var _ driven.PayloadSpool = (*mockSpool)(nil)

func (m *mockSpool) Spool(_ context.Context, r io.Reader, limit int64) (string, func() error, error) {
	if m.spoolErr != nil {
		return "", nil, m.spoolErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, err
	}
	m.mu.Lock()
	m.payload = data
	m.limit = limit
	m.mu.Unlock()

	path := m.path
	if path == "" {
		path = "/tmp/spooled.pdf"
	}
	return path, func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.releases++
		return m.releaseErr
	}, nil
}

func (m *mockSpool) releaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releases
}

// mockTextExtractor implements driven.TextExtractor.
type mockTextExtractor struct {
	text     string
	err      error
	lastPath string
}

func (m *mockTextExtractor) Extract(_ context.Context, path string) (string, error) {
	m.lastPath = path
	return m.text, m.err
}

// mockCVEAgent implements driven.CVEExtractor.
// When block is set it waits for the context to end.
type mockCVEAgent struct {
	cves  []domain.CVECandidate
	err   error
	block bool
	text  string
	ended chan error
}

func (m *mockCVEAgent) ExtractCVEs(ctx context.Context, text string) ([]domain.CVECandidate, error) {
	m.text = text
	if m.block {
		<-ctx.Done()
		if m.ended != nil {
			m.ended <- ctx.Err()
		}
		return nil, ctx.Err()
	}
	return m.cves, m.err
}

// mockActorAgent implements driven.ActorExtractor.
type mockActorAgent struct {
	actors []domain.ActorCandidate
	err    error
	block  bool
	ended  chan error
}

func (m *mockActorAgent) ExtractActors(ctx context.Context, _ string) ([]domain.ActorCandidate, error) {
	if m.block {
		<-ctx.Done()
		if m.ended != nil {
			m.ended <- ctx.Err()
		}
		return nil, ctx.Err()
	}
	return m.actors, m.err
}

// mockPostProcessor implements driven.PostProcessorPipeline.
type mockPostProcessor struct {
	fn  func(string) string
	err error
}

func (m *mockPostProcessor) Process(_ context.Context, text string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.fn(text), nil
}

// failingStore wraps an EntityStore and fails selected operations.
type failingStore struct {
	driven.EntityStore
	saveErr   error
	searchErr error
	listErr   error
	saves     int
}

func (f *failingStore) SaveBatch(ctx context.Context, batch domain.Batch) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.EntityStore.SaveBatch(ctx, batch)
}

func (f *failingStore) SearchCVEs(ctx context.Context, c domain.SearchCriteria) ([]domain.CVERecord, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.EntityStore.SearchCVEs(ctx, c)
}

func (f *failingStore) ListThreatActors(ctx context.Context, id string) ([]domain.ThreatActorRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.EntityStore.ListThreatActors(ctx, id)
}
