package domain

import (
	"fmt"
	"time"
)

// SearchCriteria is the sparse set of filters and entity-class switches
// accepted by a unified search.
//
// Document filters apply to returned documents. Filename is also applied to
// CVEs and threat actors through their owning document, whether or not
// documents themselves are requested. Filters for an entity class that is
// not requested are ignored.
type SearchCriteria struct {
	ShowDocuments    bool `json:"show_documents"`
	ShowCVEs         bool `json:"show_cves"`
	ShowThreatActors bool `json:"show_threat_actors"`

	// Document filters.
	Filename       Optional[string]    `json:"pdf_filename"`
	UploadedAfter  Optional[time.Time] `json:"pdf_upload_at_gte"`
	UploadedBefore Optional[time.Time] `json:"pdf_upload_at_lte"`

	// CVE filters.
	CVEID          Optional[string] `json:"cve_id"`
	CVESeverity    Optional[string] `json:"cve_severity"`
	CVEDescription Optional[string] `json:"cve_description"`

	// Threat actor filters. ActorAlias matches against the serialised alias list.
	ActorName        Optional[string] `json:"actor_name"`
	ActorDescription Optional[string] `json:"actor_description"`
	ActorAlias       Optional[string] `json:"actor_alias"`
}

// Validate rejects criteria that can never match, such as an upload date
// range whose lower bound is after its upper bound. Upload bounds only
// filter documents, so the range is not checked when documents are not
// requested.
func (c SearchCriteria) Validate() error {
	if !c.ShowDocuments {
		return nil
	}
	after, hasAfter := c.UploadedAfter.Get()
	before, hasBefore := c.UploadedBefore.Get()
	if hasAfter && hasBefore && after.After(before) {
		return fmt.Errorf("%w: pdf_upload_at_gte %s is after pdf_upload_at_lte %s",
			ErrInvalidCriteria, after.Format(time.RFC3339), before.Format(time.RFC3339))
	}
	return nil
}

// RequestsAnything reports whether at least one entity class is switched on.
func (c SearchCriteria) RequestsAnything() bool {
	return c.ShowDocuments || c.ShowCVEs || c.ShowThreatActors
}

// SearchResult holds one ordered sequence per requested entity class.
// A nil field means the class was not requested and is omitted from JSON;
// a requested class with no matches is an empty, non-nil slice.
type SearchResult struct {
	Documents    *[]Document          `json:"documents,omitempty"`
	CVEs         *[]CVERecord         `json:"cves,omitempty"`
	ThreatActors *[]ThreatActorRecord `json:"threat_actors,omitempty"`
}

// Accepted layouts for upload time bounds, most specific first. Values
// without a zone are read as UTC.
var uploadTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

const dateOnly = "2006-01-02"

// ParseUploadBound parses a pdf_upload_at_gte or pdf_upload_at_lte value.
// A bare date is the start of that day (UTC) for a lower bound and its
// last instant for an upper bound, so both bounds include the whole day.
// Returns ErrInvalidCriteria if the value matches no accepted layout.
func ParseUploadBound(value string, upper bool) (time.Time, error) {
	for _, layout := range uploadTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(dateOnly, value); err == nil {
		if upper {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q is not an RFC 3339 timestamp or YYYY-MM-DD date", ErrInvalidCriteria, value)
}
