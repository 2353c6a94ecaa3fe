package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

// SearchInput is the input schema for the search tool. Filters left out
// are not applied; every text filter is a case-insensitive substring match.
type SearchInput struct {
	ShowDocuments    bool `json:"show_documents,omitempty" jsonschema:"include matching documents"`
	ShowCVEs         bool `json:"show_cves,omitempty" jsonschema:"include matching CVEs"`
	ShowThreatActors bool `json:"show_threat_actors,omitempty" jsonschema:"include matching threat actors"`

	Filename       *string `json:"pdf_filename,omitempty" jsonschema:"document filename contains this text"`
	UploadedAfter  *string `json:"pdf_upload_at_gte,omitempty" jsonschema:"uploaded at or after, RFC 3339 or YYYY-MM-DD"`
	UploadedBefore *string `json:"pdf_upload_at_lte,omitempty" jsonschema:"uploaded at or before, RFC 3339 or YYYY-MM-DD"`

	CVEID          *string `json:"cve_id,omitempty" jsonschema:"CVE identifier contains this text"`
	CVESeverity    *string `json:"cve_severity,omitempty" jsonschema:"CVE severity contains this text"`
	CVEDescription *string `json:"cve_description,omitempty" jsonschema:"CVE description contains this text"`

	ActorName        *string `json:"actor_name,omitempty" jsonschema:"threat actor name contains this text"`
	ActorDescription *string `json:"actor_description,omitempty" jsonschema:"threat actor description contains this text"`
	ActorAlias       *string `json:"actor_alias,omitempty" jsonschema:"a threat actor alias contains this text"`
}

// SearchOutput holds one list per requested entity class. Classes that
// were not requested are absent.
type SearchOutput struct {
	Documents    *[]DocumentOutput `json:"documents,omitempty"`
	CVEs         *[]CVEOutput      `json:"cves,omitempty"`
	ThreatActors *[]ActorOutput    `json:"threat_actors,omitempty"`
}

// DocumentOutput is an ingested document.
type DocumentOutput struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	UploadedAt  string `json:"upload_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

// CVEOutput is an extracted CVE.
type CVEOutput struct {
	ID          string `json:"id"`
	DocumentID  string `json:"pdf_id"`
	CVEID       string `json:"cve_id"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	ExtractedAt string `json:"extracted_at"`
}

// ActorOutput is an extracted threat actor.
type ActorOutput struct {
	ID          string   `json:"id"`
	DocumentID  string   `json:"pdf_id"`
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases"`
	Description string   `json:"description"`
	ExtractedAt string   `json:"extracted_at"`
}

// IngestInput is the input schema for the ingest_pdf tool.
type IngestInput struct {
	Path     string `json:"path" jsonschema:"absolute path of a PDF on this machine"`
	Filename string `json:"filename,omitempty" jsonschema:"name to record for the document (default: base name of path)"`
}

// IngestOutput is the output schema for the ingest_pdf tool.
type IngestOutput struct {
	DocumentID   string `json:"pdf_id"`
	Filename     string `json:"filename"`
	CVEs         int    `json:"cves"`
	ThreatActors int    `json:"threat_actors"`
}

// GetDocumentInput is the input schema for the get_document tool.
type GetDocumentInput struct {
	ID string `json:"id" jsonschema:"document ID as returned by ingest_pdf or search"`
}

// DocumentDetailsOutput is a document with everything extracted from it.
type DocumentDetailsOutput struct {
	Document     DocumentOutput `json:"document"`
	CVEs         []CVEOutput    `json:"cves"`
	ThreatActors []ActorOutput  `json:"threat_actors"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "search",
		Description: "Search ingested threat intelligence. Set show_documents, show_cves and/or " +
			"show_threat_actors to choose what is returned; filters narrow the results.",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_document",
		Description: "Get an ingested document with its CVEs and threat actors",
	}, s.handleGetDocument)

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_pdf",
			Description: "Extract CVEs and threat actors from a local PDF and store them",
		}, s.handleIngest)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	criteria, err := input.criteria()
	if err != nil {
		return nil, SearchOutput{}, err
	}

	result, err := s.ports.Search.Search(ctx, criteria)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	var output SearchOutput
	if result.Documents != nil {
		docs := mapSlice(*result.Documents, toDocumentOutput)
		output.Documents = &docs
	}
	if result.CVEs != nil {
		cves := mapSlice(*result.CVEs, toCVEOutput)
		output.CVEs = &cves
	}
	if result.ThreatActors != nil {
		actors := mapSlice(*result.ThreatActors, toActorOutput)
		output.ThreatActors = &actors
	}
	return nil, output, nil
}

// handleGetDocument handles the get_document tool invocation.
func (s *Server) handleGetDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetDocumentInput,
) (*mcp.CallToolResult, DocumentDetailsOutput, error) {
	details, err := s.ports.Documents.Get(ctx, input.ID)
	if err != nil {
		return nil, DocumentDetailsOutput{}, err
	}
	return nil, toDetailsOutput(details), nil
}

// handleIngest handles the ingest_pdf tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	report, err := s.ports.Ingest.IngestFile(ctx, input.Path, input.Filename)
	if err != nil {
		return nil, IngestOutput{}, err
	}
	return nil, IngestOutput{
		DocumentID:   report.DocumentID,
		Filename:     report.Filename,
		CVEs:         report.CVECount,
		ThreatActors: report.ActorCount,
	}, nil
}

func (in SearchInput) criteria() (domain.SearchCriteria, error) {
	c := domain.SearchCriteria{
		ShowDocuments:    in.ShowDocuments,
		ShowCVEs:         in.ShowCVEs,
		ShowThreatActors: in.ShowThreatActors,
		Filename:         optional(in.Filename),
		CVEID:            optional(in.CVEID),
		CVESeverity:      optional(in.CVESeverity),
		CVEDescription:   optional(in.CVEDescription),
		ActorName:        optional(in.ActorName),
		ActorDescription: optional(in.ActorDescription),
		ActorAlias:       optional(in.ActorAlias),
	}

	if in.UploadedAfter != nil {
		t, err := domain.ParseUploadBound(*in.UploadedAfter, false)
		if err != nil {
			return c, err
		}
		c.UploadedAfter = domain.Some(t)
	}
	if in.UploadedBefore != nil {
		t, err := domain.ParseUploadBound(*in.UploadedBefore, true)
		if err != nil {
			return c, err
		}
		c.UploadedBefore = domain.Some(t)
	}
	return c, nil
}

func optional(p *string) domain.Optional[string] {
	if p == nil {
		return domain.None[string]()
	}
	return domain.Some(*p)
}

func mapSlice[T, U any](in []T, f func(T) U) []U {
	out := make([]U, len(in))
	for i := range in {
		out[i] = f(in[i])
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toDocumentOutput(d domain.Document) DocumentOutput {
	out := DocumentOutput{
		ID:         d.ID,
		Filename:   d.Filename,
		UploadedAt: formatTime(d.UploadedAt),
	}
	if d.ProcessedAt != nil {
		out.ProcessedAt = formatTime(*d.ProcessedAt)
	}
	return out
}

func toCVEOutput(r domain.CVERecord) CVEOutput {
	return CVEOutput{
		ID:          r.ID,
		DocumentID:  r.DocumentID,
		CVEID:       r.CVEID,
		Description: r.Description,
		Severity:    r.Severity,
		ExtractedAt: formatTime(r.ExtractedAt),
	}
}

func toActorOutput(r domain.ThreatActorRecord) ActorOutput {
	aliases := r.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	return ActorOutput{
		ID:          r.ID,
		DocumentID:  r.DocumentID,
		Name:        r.Name,
		Aliases:     aliases,
		Description: r.Description,
		ExtractedAt: formatTime(r.ExtractedAt),
	}
}

func toDetailsOutput(d *domain.DocumentDetails) DocumentDetailsOutput {
	return DocumentDetailsOutput{
		Document:     toDocumentOutput(d.Document),
		CVEs:         mapSlice(d.CVEs, toCVEOutput),
		ThreatActors: mapSlice(d.ThreatActors, toActorOutput),
	}
}
