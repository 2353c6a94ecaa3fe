package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

var extracted = time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	if ports.Search == nil {
		ports.Search = &mockSearchService{}
	}
	if ports.Documents == nil {
		ports.Documents = &mockDocumentService{}
	}
	server, err := NewServer(ports, "test")
	require.NoError(t, err)
	return server
}

func strPtr(s string) *string { return &s }

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("maps criteria", func(t *testing.T) {
		search := &mockSearchService{}
		server := newTestServer(t, &Ports{Search: search})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{
			ShowCVEs:       true,
			Filename:       strPtr(""),
			CVESeverity:    strPtr("high"),
			UploadedAfter:  strPtr("2024-01-01"),
			UploadedBefore: strPtr("2024-01-31"),
		})
		require.NoError(t, err)

		c := search.criteria
		assert.True(t, c.ShowCVEs)
		assert.False(t, c.ShowDocuments)
		assert.True(t, c.Filename.IsSet())
		assert.Equal(t, "high", c.CVESeverity.OrElse(""))
		assert.False(t, c.ActorAlias.IsSet())

		before, _ := c.UploadedBefore.Get()
		assert.Equal(t, 23, before.Hour())
	})

	t.Run("only requested classes are present", func(t *testing.T) {
		actors := []domain.ThreatActorRecord{}
		cves := []domain.CVERecord{{
			ID: "c1", DocumentID: "doc-1", CVEID: "CVE-2024-12345", Severity: "High", ExtractedAt: extracted,
		}}
		server := newTestServer(t, &Ports{Search: &mockSearchService{result: &domain.SearchResult{
			CVEs:         &cves,
			ThreatActors: &actors,
		}}})

		_, output, err := server.handleSearch(ctx, nil, SearchInput{ShowCVEs: true, ShowThreatActors: true})
		require.NoError(t, err)

		data, err := json.Marshal(output)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"cves": [{"id": "c1", "pdf_id": "doc-1", "cve_id": "CVE-2024-12345", "description": "",
				"severity": "High", "extracted_at": "2024-02-01T09:30:00Z"}],
			"threat_actors": []
		}`, string(data))
	})

	t.Run("invalid date", func(t *testing.T) {
		search := &mockSearchService{}
		server := newTestServer(t, &Ports{Search: search})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{UploadedAfter: strPtr("last week")})
		assert.ErrorIs(t, err, domain.ErrInvalidCriteria)
	})

	t.Run("search failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{err: errors.New("search failed")}})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{ShowDocuments: true})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}

func TestServer_handleGetDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		server := newTestServer(t, &Ports{Documents: &mockDocumentService{details: &domain.DocumentDetails{
			Document: domain.Document{ID: "doc-1", Filename: "apt.pdf", UploadedAt: extracted, ProcessedAt: &extracted},
			CVEs:     []domain.CVERecord{},
			ThreatActors: []domain.ThreatActorRecord{{
				ID: "a1", DocumentID: "doc-1", Name: "APT99", ExtractedAt: extracted,
			}},
		}}})

		_, output, err := server.handleGetDocument(ctx, nil, GetDocumentInput{ID: "doc-1"})
		require.NoError(t, err)
		assert.Equal(t, "apt.pdf", output.Document.Filename)
		assert.Equal(t, "2024-02-01T09:30:00Z", output.Document.ProcessedAt)
		assert.Empty(t, output.CVEs)
		require.Len(t, output.ThreatActors, 1)
		assert.Equal(t, []string{}, output.ThreatActors[0].Aliases)
	})

	t.Run("not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{Documents: &mockDocumentService{err: domain.ErrNotFound}})

		_, _, err := server.handleGetDocument(ctx, nil, GetDocumentInput{ID: "nope"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestServer_handleIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		ingest := &mockIngestService{report: &domain.IngestReport{
			DocumentID: "doc-9", Filename: "weekly.pdf", CVECount: 3, ActorCount: 2,
		}}
		server := newTestServer(t, &Ports{Ingest: ingest})

		_, output, err := server.handleIngest(ctx, nil, IngestInput{Path: "/reports/weekly.pdf"})
		require.NoError(t, err)
		assert.Equal(t, IngestOutput{DocumentID: "doc-9", Filename: "weekly.pdf", CVEs: 3, ThreatActors: 2}, output)
		assert.Equal(t, "/reports/weekly.pdf", ingest.gotPath)
		assert.Equal(t, "", ingest.gotFilename)
	})

	t.Run("failure keeps its kind", func(t *testing.T) {
		ingest := &mockIngestService{
			err: domain.NewIngestError(domain.ErrExtractionFailed, "extract entities", errors.New("timeout")),
		}
		server := newTestServer(t, &Ports{Ingest: ingest})

		_, _, err := server.handleIngest(ctx, nil, IngestInput{Path: "/x.pdf", Filename: "x.pdf"})
		assert.ErrorIs(t, err, domain.ErrExtractionFailed)
		assert.Equal(t, "x.pdf", ingest.gotFilename)
	})
}
