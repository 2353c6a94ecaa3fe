package mcp

import (
	"github.com/custodia-labs/threatdocs/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides the unified search.
	Search driving.SearchService

	// Documents reads a document with its extracted records.
	Documents driving.DocumentService

	// Ingest processes local PDFs. Optional: without it the ingest_pdf
	// tool is not offered.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Documents == nil {
		return ErrMissingDocumentService
	}
	return nil
}
