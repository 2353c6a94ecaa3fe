package domain

import "time"

// Document is one ingested PDF file.
type Document struct {
	// ID is the unique document identifier.
	ID string `json:"id"`

	// Filename is the client-supplied name of the uploaded file.
	Filename string `json:"filename"`

	// UploadedAt is when the payload was received.
	UploadedAt time.Time `json:"upload_at"`

	// ProcessedAt is when extraction completed. Nil while the document
	// has not been fully processed.
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// CVERecord is a vulnerability mention extracted from a document.
type CVERecord struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"pdf_id"`
	CVEID       string    `json:"cve_id"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// ThreatActorRecord is an adversary group extracted from a document.
type ThreatActorRecord struct {
	ID         string `json:"id"`
	DocumentID string `json:"pdf_id"`
	Name       string `json:"name"`

	// Aliases never contains Name itself.
	Aliases     []string  `json:"aliases"`
	Description string    `json:"description"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// CVECandidate is a CVE as reported by an extraction agent, before it is
// assigned an identity and attached to a document.
type CVECandidate struct {
	CVEID       string `json:"cve_id"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// ActorCandidate is a threat actor as reported by an extraction agent.
type ActorCandidate struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases"`
	Description string   `json:"description"`
}

// Batch is the unit of work persisted for one ingestion: the document
// and every record extracted from it.
type Batch struct {
	Document Document
	CVEs     []CVERecord
	Actors   []ThreatActorRecord
}

// IngestReport summarises a completed ingestion.
type IngestReport struct {
	DocumentID string `json:"pdf_id"`
	Filename   string `json:"filename"`
	CVECount   int    `json:"cves"`
	ActorCount int    `json:"threat_actors"`
}

// DocumentDetails is a document together with everything extracted from it.
type DocumentDetails struct {
	Document     Document            `json:"document"`
	CVEs         []CVERecord         `json:"cves"`
	ThreatActors []ThreatActorRecord `json:"threat_actors"`
}
