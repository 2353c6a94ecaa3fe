// Package memory provides in-memory implementations of driven ports.
// Data does not survive the process; useful for tests and throwaway runs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
)

// Ensure EntityStore implements the interface.
var _ driven.EntityStore = (*EntityStore)(nil)

// EntityStore is an in-memory implementation of driven.EntityStore.
// Records are kept in insertion order.
type EntityStore struct {
	mu        sync.RWMutex
	documents []domain.Document
	cves      []domain.CVERecord
	actors    []domain.ThreatActorRecord
	ids       map[string]struct{}
	docIndex  map[string]int
}

// NewEntityStore creates a new in-memory entity store.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		ids:      make(map[string]struct{}),
		docIndex: make(map[string]int),
	}
}

// SaveBatch checks every constraint first and only then appends, so a
// rejected batch leaves the store unchanged.
func (s *EntityStore) SaveBatch(ctx context.Context, batch domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(batch); err != nil {
		return err
	}

	s.docIndex[batch.Document.ID] = len(s.documents)
	s.documents = append(s.documents, batch.Document)
	s.ids[batch.Document.ID] = struct{}{}
	for _, c := range batch.CVEs {
		s.cves = append(s.cves, c)
		s.ids[c.ID] = struct{}{}
	}
	for _, a := range batch.Actors {
		a.Aliases = append([]string{}, a.Aliases...)
		s.actors = append(s.actors, a)
		s.ids[a.ID] = struct{}{}
	}
	return nil
}

// check enforces identifier uniqueness, ownership and the CVE identifier
// shape (caller must hold lock).
func (s *EntityStore) check(batch domain.Batch) error {
	seen := make(map[string]struct{})
	claim := func(id string) error {
		if id == "" {
			return errors.New("empty identifier")
		}
		if _, ok := s.ids[id]; ok {
			return fmt.Errorf("duplicate identifier %s", id)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("duplicate identifier %s", id)
		}
		seen[id] = struct{}{}
		return nil
	}

	if err := claim(batch.Document.ID); err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	for _, c := range batch.CVEs {
		if err := claim(c.ID); err != nil {
			return fmt.Errorf("saving cve: %w", err)
		}
		if c.DocumentID != batch.Document.ID {
			return fmt.Errorf("saving cve %s: unknown document %s", c.ID, c.DocumentID)
		}
		if !domain.IsValidCVEID(c.CVEID) {
			return fmt.Errorf("saving cve %s: malformed cve_id %q", c.ID, c.CVEID)
		}
	}
	for _, a := range batch.Actors {
		if err := claim(a.ID); err != nil {
			return fmt.Errorf("saving threat actor: %w", err)
		}
		if a.DocumentID != batch.Document.ID {
			return fmt.Errorf("saving threat actor %s: unknown document %s", a.ID, a.DocumentID)
		}
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *EntityStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.docIndex[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc := s.documents[i]
	return &doc, nil
}

// SearchDocuments returns documents matching the document filters.
func (s *EntityStore) SearchDocuments(_ context.Context, c domain.SearchCriteria) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Document{}
	for _, d := range s.documents {
		if !contains(d.Filename, c.Filename) {
			continue
		}
		if after, ok := c.UploadedAfter.Get(); ok && d.UploadedAt.Before(after) {
			continue
		}
		if before, ok := c.UploadedBefore.Get(); ok && d.UploadedAt.After(before) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// SearchCVEs returns CVE records matching the CVE filters and the owning
// document's filename filter.
func (s *EntityStore) SearchCVEs(_ context.Context, c domain.SearchCriteria) ([]domain.CVERecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.CVERecord{}
	for _, r := range s.cves {
		if !contains(r.CVEID, c.CVEID) ||
			!contains(r.Severity, c.CVESeverity) ||
			!contains(r.Description, c.CVEDescription) ||
			!contains(s.filenameOf(r.DocumentID), c.Filename) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// SearchThreatActors returns threat actor records matching the actor filters
// and the owning document's filename filter.
func (s *EntityStore) SearchThreatActors(
	_ context.Context,
	c domain.SearchCriteria,
) ([]domain.ThreatActorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.ThreatActorRecord{}
	for _, r := range s.actors {
		if !contains(r.Name, c.ActorName) ||
			!contains(r.Description, c.ActorDescription) ||
			!contains(r.AliasesText(), c.ActorAlias) ||
			!contains(s.filenameOf(r.DocumentID), c.Filename) {
			continue
		}
		out = append(out, cloneActor(r))
	}
	return out, nil
}

// ListCVEs returns the CVE records of one document.
func (s *EntityStore) ListCVEs(_ context.Context, documentID string) ([]domain.CVERecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.CVERecord{}
	for _, r := range s.cves {
		if r.DocumentID == documentID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListThreatActors returns the threat actor records of one document.
func (s *EntityStore) ListThreatActors(_ context.Context, documentID string) ([]domain.ThreatActorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.ThreatActorRecord{}
	for _, r := range s.actors {
		if r.DocumentID == documentID {
			out = append(out, cloneActor(r))
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *EntityStore) Close() error {
	return nil
}

// filenameOf returns the filename of a stored document (caller must hold lock).
func (s *EntityStore) filenameOf(documentID string) string {
	if i, ok := s.docIndex[documentID]; ok {
		return s.documents[i].Filename
	}
	return ""
}

// contains reports whether field holds the filter value as a
// case-insensitive substring. An unset filter matches everything.
func contains(field string, filter domain.Optional[string]) bool {
	needle, ok := filter.Get()
	if !ok {
		return true
	}
	return strings.Contains(strings.ToLower(field), strings.ToLower(needle))
}

func cloneActor(r domain.ThreatActorRecord) domain.ThreatActorRecord {
	r.Aliases = append([]string{}, r.Aliases...)
	return r
}
