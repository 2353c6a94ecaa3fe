package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/threatdocs/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/threatdocs/internal/core/domain"
	"github.com/custodia-labs/threatdocs/internal/core/services"
)

const pdfBytes = "%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	ingest    *mockIngest
	search    *mockSearch
	documents *mockDocuments
	server    *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ingest: &mockIngest{report: &domain.IngestReport{
			DocumentID: "doc-1", Filename: "report.pdf", CVECount: 2, ActorCount: 1,
		}},
		search:    &mockSearch{result: &domain.SearchResult{}},
		documents: &mockDocuments{},
	}
	f.server = NewServer(Config{Version: "test", MaxUploadBytes: 1 << 16}, Services{
		Ingest:    f.ingest,
		Search:    f.search,
		Documents: f.documents,
	})
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

// uploadRequest builds a multipart upload with an explicit part content type.
func uploadRequest(t *testing.T, field, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-pdf/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestUpload_Success(t *testing.T) {
	f := newFixture(t)

	w := f.do(uploadRequest(t, "file", "report.pdf", "application/pdf", []byte(pdfBytes)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "doc-1", body["pdf_id"])
	assert.EqualValues(t, 2, body["cves"])
	assert.EqualValues(t, 1, body["threat_actors"])

	assert.Equal(t, "report.pdf", f.ingest.filename)
	assert.Equal(t, []byte(pdfBytes), f.ingest.payload)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestUpload_ContentTypeChecks(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		content     string
		wantOK      bool
	}{
		{"declared pdf", "a.bin", "application/pdf", pdfBytes, true},
		{"declared pdf with params", "a.pdf", "application/pdf; charset=binary", pdfBytes, true},
		{"octet stream pdf sniffed", "a.pdf", "application/octet-stream", pdfBytes, true},
		{"no content type pdf sniffed", "a.PDF", "", pdfBytes, true},
		{"text plain", "a.pdf", "text/plain", pdfBytes, false},
		{"octet stream wrong extension", "a.docx", "application/octet-stream", pdfBytes, false},
		{"octet stream not a pdf", "a.pdf", "application/octet-stream", "hello world", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			w := f.do(uploadRequest(t, "file", tt.filename, tt.contentType, []byte(tt.content)))
			if tt.wantOK {
				assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
				assert.Equal(t, []byte(tt.content), f.ingest.payload, "sniffing must not consume the payload")
				return
			}
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Only PDF files are supported", decode(t, w)["error"])
			assert.Zero(t, f.ingest.calls)
		})
	}
}

func TestUpload_MissingFile(t *testing.T) {
	f := newFixture(t)

	w := f.do(uploadRequest(t, "document", "a.pdf", "application/pdf", []byte(pdfBytes)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], `"file"`)
	assert.Zero(t, f.ingest.calls)
}

func TestUpload_TooLarge(t *testing.T) {
	f := newFixture(t)
	big := append([]byte(pdfBytes), bytes.Repeat([]byte("x"), 3<<20)...)

	w := f.do(uploadRequest(t, "file", "a.pdf", "application/pdf", big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, f.ingest.calls)
}

func TestUpload_ErrorMapping(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantStage  string
	}{
		{
			"unsupported format",
			domain.NewIngestError(domain.ErrUnsupportedFormat, services.StageText, cause),
			http.StatusUnsupportedMediaType, "unsupported_format", services.StageText,
		},
		{
			"extraction failed",
			domain.NewIngestError(domain.ErrExtractionFailed, services.StageAgents, cause),
			http.StatusBadGateway, "extraction_failed", services.StageAgents,
		},
		{
			"validation failed",
			domain.NewIngestError(domain.ErrValidationFailed, services.StageNormalise, cause),
			http.StatusUnprocessableEntity, "validation_failed", services.StageNormalise,
		},
		{
			"persistence failed caused by a constraint",
			domain.NewIngestError(domain.ErrPersistenceFailed, services.StagePersist,
				fmt.Errorf("%w: constraint", domain.ErrValidationFailed)),
			http.StatusInternalServerError, "persistence_failed", services.StagePersist,
		},
		{"llm unavailable", domain.ErrLLMUnavailable, http.StatusServiceUnavailable, "llm_unavailable", ""},
		{"invalid input", fmt.Errorf("staging upload: %w", domain.ErrInvalidInput), http.StatusBadRequest, "invalid_input", ""},
		{"unknown", cause, http.StatusInternalServerError, "internal", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.ingest.err = tt.err

			w := f.do(uploadRequest(t, "file", "a.pdf", "application/pdf", []byte(pdfBytes)))
			assert.Equal(t, tt.wantStatus, w.Code)

			body := decode(t, w)
			assert.Equal(t, tt.wantKind, body["kind"])
			if tt.wantStage != "" {
				assert.Equal(t, tt.wantStage, body["stage"])
			}
			assert.NotEmpty(t, body["request_id"])
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, body["error"], "boom")
				assert.NotContains(t, body["error"], "constraint")
			}
		})
	}
}

func TestSearch_QueryParsing(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/search/?show_pdfs=true&show_cves=1&pdf_filename=&"+
		"cve_severity=critical&actor_alias=Lazarus&pdf_upload_at_gte=2024-01-01&pdf_upload_at_lte=2024-01-31T12:00:00Z", nil)
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	c := f.search.criteria
	assert.True(t, c.ShowDocuments)
	assert.True(t, c.ShowCVEs)
	assert.False(t, c.ShowThreatActors)

	filename, ok := c.Filename.Get()
	assert.True(t, ok, "present but empty is still a filter")
	assert.Equal(t, "", filename)
	assert.Equal(t, "critical", c.CVESeverity.OrElse(""))
	assert.Equal(t, "Lazarus", c.ActorAlias.OrElse(""))
	assert.False(t, c.CVEID.IsSet())
	assert.False(t, c.ActorName.IsSet())

	after, _ := c.UploadedAfter.Get()
	before, _ := c.UploadedBefore.Get()
	assert.True(t, after.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, before.Equal(time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)))
}

func TestSearch_ShowDocumentsWinsOverAlias(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/search/?show_documents=false&show_pdfs=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, f.search.criteria.ShowDocuments)
}

func TestSearch_BadParameters(t *testing.T) {
	for _, query := range []string{
		"show_cves=maybe",
		"pdf_upload_at_gte=yesterday",
		"pdf_upload_at_lte=31/01/2024",
	} {
		t.Run(query, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(httptest.NewRequest(http.MethodGet, "/search/?"+query, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid_criteria", decode(t, w)["kind"])
		})
	}
}

func TestSearch_ResultKeys(t *testing.T) {
	store := memory.NewEntityStore()
	processed := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveBatch(context.Background(), domain.Batch{
		Document: domain.Document{ID: "doc-1", Filename: "apt.pdf", UploadedAt: processed, ProcessedAt: &processed},
		CVEs: []domain.CVERecord{{
			ID: "c1", DocumentID: "doc-1", CVEID: "CVE-2024-12345", Severity: "High", ExtractedAt: processed,
		}},
	}))

	server := NewServer(Config{}, Services{Search: services.NewSearchService(store)})

	tests := []struct {
		query string
		want  string
	}{
		{"", `{}`},
		{"show_threat_actors=true", `{"threat_actors": []}`},
		{"show_cves=true&cve_id=12345", `{"cves": [{"id": "c1", "pdf_id": "doc-1", "cve_id": "CVE-2024-12345",
			"description": "", "severity": "High", "extracted_at": "2024-01-10T00:00:00Z"}]}`},
		{"show_pdfs=true&pdf_filename=nomatch", `{"documents": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search/?"+tt.query, nil))
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestGetDocument(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := newFixture(t)
		f.documents.details = &domain.DocumentDetails{
			Document:     domain.Document{ID: "doc-1", Filename: "a.pdf"},
			CVEs:         []domain.CVERecord{},
			ThreatActors: []domain.ThreatActorRecord{},
		}

		w := f.do(httptest.NewRequest(http.MethodGet, "/documents/doc-1", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "doc-1", f.documents.gotID)

		body := decode(t, w)
		assert.Equal(t, "a.pdf", body["document"].(map[string]any)["filename"])
		assert.Equal(t, []any{}, body["cves"])
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		f.documents.err = fmt.Errorf("document missing: %w", domain.ErrNotFound)

		w := f.do(httptest.NewRequest(http.MethodGet, "/documents/nope", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decode(t, w)["kind"])
	})
}

func TestRequestID_Propagated(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "caller-id-1")
	w := f.do(req)
	assert.Equal(t, "caller-id-1", w.Header().Get(requestIDHeader))
}

func TestRecovery(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID(), Recovery())
	engine.GET("/panic", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)
	assert.NotEmpty(t, body.RequestID)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
