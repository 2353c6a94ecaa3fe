package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

// uploadResponse is returned by POST /upload-pdf/.
type uploadResponse struct {
	Status       string `json:"status"`
	DocumentID   string `json:"pdf_id"`
	Filename     string `json:"filename"`
	CVEs         int    `json:"cves"`
	ThreatActors int    `json:"threat_actors"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   s.cfg.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// uploadPDF ingests the multipart field "file". The whole pipeline runs
// inside the request; the response carries the new document's ID.
func (s *Server) uploadPDF(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes+multipartOverhead)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, err)
			return
		}
		abortBadRequest(c, "no file provided in form field \"file\"")
		return
	}
	defer file.Close()

	if !isPDFUpload(header, file) {
		abortBadRequest(c, "Only PDF files are supported")
		return
	}

	report, err := s.services.Ingest.Ingest(c.Request.Context(), file, header.Filename)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, uploadResponse{
		Status:       "success",
		DocumentID:   report.DocumentID,
		Filename:     report.Filename,
		CVEs:         report.CVECount,
		ThreatActors: report.ActorCount,
	})
}

// isPDFUpload accepts a part declared as application/pdf, or one with a
// .pdf name and a generic content type whose bytes sniff as PDF.
// The extractor still verifies the payload itself.
func isPDFUpload(header *multipart.FileHeader, file multipart.File) bool {
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if contentType == "application/pdf" {
		return true
	}
	if strings.ToLower(filepath.Ext(header.Filename)) != ".pdf" {
		return false
	}
	if contentType != "" && contentType != "application/octet-stream" {
		return false
	}

	buf := make([]byte, 512)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return false
	}
	return http.DetectContentType(buf[:n]) == "application/pdf"
}

func (s *Server) search(c *gin.Context) {
	criteria, err := criteriaFromQuery(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	result, err := s.services.Search.Search(c.Request.Context(), criteria)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getDocument(c *gin.Context) {
	details, err := s.services.Documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// criteriaFromQuery reads search criteria from the query string. A filter
// is set when its parameter is present, even if empty. show_pdfs is an
// alias of show_documents.
func criteriaFromQuery(c *gin.Context) (domain.SearchCriteria, error) {
	var criteria domain.SearchCriteria
	var err error

	if criteria.ShowDocuments, err = queryBool(c, "show_documents", "show_pdfs"); err != nil {
		return criteria, err
	}
	if criteria.ShowCVEs, err = queryBool(c, "show_cves"); err != nil {
		return criteria, err
	}
	if criteria.ShowThreatActors, err = queryBool(c, "show_threat_actors"); err != nil {
		return criteria, err
	}

	criteria.Filename = queryString(c, "pdf_filename")
	criteria.CVEID = queryString(c, "cve_id")
	criteria.CVESeverity = queryString(c, "cve_severity")
	criteria.CVEDescription = queryString(c, "cve_description")
	criteria.ActorName = queryString(c, "actor_name")
	criteria.ActorDescription = queryString(c, "actor_description")
	criteria.ActorAlias = queryString(c, "actor_alias")

	if criteria.UploadedAfter, err = queryTime(c, "pdf_upload_at_gte", false); err != nil {
		return criteria, err
	}
	if criteria.UploadedBefore, err = queryTime(c, "pdf_upload_at_lte", true); err != nil {
		return criteria, err
	}
	return criteria, nil
}

func queryString(c *gin.Context, key string) domain.Optional[string] {
	if v, ok := c.GetQuery(key); ok {
		return domain.Some(v)
	}
	return domain.None[string]()
}

// queryBool reads the first present key. Absent means false.
func queryBool(c *gin.Context, keys ...string) (bool, error) {
	for _, key := range keys {
		v, ok := c.GetQuery(key)
		if !ok {
			continue
		}
		if v == "" {
			return true, nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%w: %s=%q is not true or false", domain.ErrInvalidCriteria, key, v)
		}
		return b, nil
	}
	return false, nil
}

func queryTime(c *gin.Context, key string, upper bool) (domain.Optional[time.Time], error) {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return domain.None[time.Time](), nil
	}
	t, err := domain.ParseUploadBound(v, upper)
	if err != nil {
		return domain.None[time.Time](), err
	}
	return domain.Some(t), nil
}
