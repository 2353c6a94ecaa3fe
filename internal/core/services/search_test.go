package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/threatdocs/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

func seededStore(t *testing.T) *memory.EntityStore {
	t.Helper()
	store := memory.NewEntityStore()
	ctx := context.Background()
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveBatch(ctx, domain.Batch{
		Document: domain.Document{ID: "doc-1", Filename: "apt-report.pdf", UploadedAt: jan},
		CVEs: []domain.CVERecord{
			{ID: "c1", DocumentID: "doc-1", CVEID: "CVE-2024-12345", Severity: "Critical", Description: "RCE", ExtractedAt: jan},
		},
		Actors: []domain.ThreatActorRecord{
			{ID: "a1", DocumentID: "doc-1", Name: "APT99", Aliases: []string{"Group X"}, ExtractedAt: jan},
		},
	}))
	require.NoError(t, store.SaveBatch(ctx, domain.Batch{
		Document: domain.Document{ID: "doc-2", Filename: "weekly.pdf", UploadedAt: feb},
		CVEs: []domain.CVERecord{
			{ID: "c2", DocumentID: "doc-2", CVEID: "CVE-2023-54321", Severity: "Low", ExtractedAt: feb},
		},
	}))
	return store
}

func TestSearchService_NothingRequested(t *testing.T) {
	svc := NewSearchService(seededStore(t))

	result, err := svc.Search(context.Background(), domain.SearchCriteria{Filename: domain.Some("apt")})
	require.NoError(t, err)
	assert.Nil(t, result.Documents)
	assert.Nil(t, result.CVEs)
	assert.Nil(t, result.ThreatActors)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestSearchService_OnlyRequestedKeysPresent(t *testing.T) {
	svc := NewSearchService(seededStore(t))

	result, err := svc.Search(context.Background(), domain.SearchCriteria{ShowCVEs: true})
	require.NoError(t, err)
	require.NotNil(t, result.CVEs)
	assert.Len(t, *result.CVEs, 2)
	assert.Nil(t, result.Documents)
	assert.Nil(t, result.ThreatActors)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &keys))
	assert.Len(t, keys, 1)
	assert.Contains(t, keys, "cves")
}

func TestSearchService_RequestedButEmptyIsEmptyList(t *testing.T) {
	svc := NewSearchService(seededStore(t))

	result, err := svc.Search(context.Background(), domain.SearchCriteria{
		ShowThreatActors: true,
		ActorName:        domain.Some("nobody"),
	})
	require.NoError(t, err)
	require.NotNil(t, result.ThreatActors)
	assert.Empty(t, *result.ThreatActors)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"threat_actors": []}`, string(data))
}

func TestSearchService_AllClassesWithFilename(t *testing.T) {
	svc := NewSearchService(seededStore(t))

	result, err := svc.Search(context.Background(), domain.SearchCriteria{
		ShowDocuments:    true,
		ShowCVEs:         true,
		ShowThreatActors: true,
		Filename:         domain.Some("APT"),
	})
	require.NoError(t, err)

	require.Len(t, *result.Documents, 1)
	assert.Equal(t, "doc-1", (*result.Documents)[0].ID)
	require.Len(t, *result.CVEs, 1)
	assert.Equal(t, "CVE-2024-12345", (*result.CVEs)[0].CVEID)
	require.Len(t, *result.ThreatActors, 1)
	assert.Equal(t, "APT99", (*result.ThreatActors)[0].Name)
}

func TestSearchService_DateRange(t *testing.T) {
	svc := NewSearchService(seededStore(t))

	result, err := svc.Search(context.Background(), domain.SearchCriteria{
		ShowDocuments: true,
		UploadedAfter: domain.Some(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	require.Len(t, *result.Documents, 1)
	assert.Equal(t, "weekly.pdf", (*result.Documents)[0].Filename)
}

func TestSearchService_InvalidRange(t *testing.T) {
	svc := NewSearchService(seededStore(t))

	_, err := svc.Search(context.Background(), domain.SearchCriteria{
		ShowDocuments:  true,
		UploadedAfter:  domain.Some(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		UploadedBefore: domain.Some(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCriteria)
}

func TestSearchService_UploadRangeIgnoredWithoutDocuments(t *testing.T) {
	svc := NewSearchService(seededStore(t))

	result, err := svc.Search(context.Background(), domain.SearchCriteria{
		ShowCVEs:       true,
		UploadedAfter:  domain.Some(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		UploadedBefore: domain.Some(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	require.NotNil(t, result.CVEs)
	assert.NotEmpty(t, *result.CVEs)
	assert.Nil(t, result.Documents)
}

func TestSearchService_StoreError(t *testing.T) {
	store := &failingStore{EntityStore: seededStore(t), searchErr: errors.New("database is locked")}
	svc := NewSearchService(store)

	result, err := svc.Search(context.Background(), domain.SearchCriteria{ShowDocuments: true, ShowCVEs: true})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "searching cves")
}

func TestDescribeResult(t *testing.T) {
	docs := []domain.Document{{ID: "d"}}
	cves := []domain.CVERecord{}
	assert.Equal(t, "documents=1, cves=0", describeResult(&domain.SearchResult{Documents: &docs, CVEs: &cves}))
	assert.Equal(t, "", describeResult(&domain.SearchResult{}))
}
