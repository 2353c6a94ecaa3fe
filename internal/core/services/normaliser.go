package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

// Normaliser turns extraction agent output into records owned by a document.
// It performs no I/O; given the same inputs and ID sequence it produces the
// same records.
type Normaliser struct {
	newID func() string
}

// NewNormaliser creates a normaliser that assigns random UUIDs.
func NewNormaliser() *Normaliser {
	return &Normaliser{newID: uuid.NewString}
}

// NewNormaliserWithIDs creates a normaliser drawing identifiers from newID.
func NewNormaliserWithIDs(newID func() string) *Normaliser {
	return &Normaliser{newID: newID}
}

// Normalise attaches every candidate to documentID, assigns each a fresh
// identifier, and stamps all of them with the same extractedAt.
// Actor names are removed from their own alias lists.
func (n *Normaliser) Normalise(
	documentID string,
	extractedAt time.Time,
	cves []domain.CVECandidate,
	actors []domain.ActorCandidate,
) ([]domain.CVERecord, []domain.ThreatActorRecord) {
	cveRecords := make([]domain.CVERecord, 0, len(cves))
	for _, c := range cves {
		cveRecords = append(cveRecords, domain.CVERecord{
			ID:          n.newID(),
			DocumentID:  documentID,
			CVEID:       c.CVEID,
			Description: c.Description,
			Severity:    c.Severity,
			ExtractedAt: extractedAt,
		})
	}

	actorRecords := make([]domain.ThreatActorRecord, 0, len(actors))
	for _, a := range actors {
		actorRecords = append(actorRecords, domain.ThreatActorRecord{
			ID:          n.newID(),
			DocumentID:  documentID,
			Name:        a.Name,
			Aliases:     withoutSelfAlias(a.Name, a.Aliases),
			Description: a.Description,
			ExtractedAt: extractedAt,
		})
	}

	return cveRecords, actorRecords
}

// withoutSelfAlias drops every alias that exactly equals name.
// Other entries keep their order, including repeats.
func withoutSelfAlias(name string, aliases []string) []string {
	out := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		if alias == name {
			continue
		}
		out = append(out, alias)
	}
	return out
}
