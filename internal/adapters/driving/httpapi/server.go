// Package httpapi exposes ingestion, search and document lookup over HTTP
// using gin.
//
// Routes:
//
//	POST /upload-pdf/        multipart upload, form field "file"
//	GET  /search/            unified search, filters as query parameters
//	GET  /documents/:id      a document with its CVEs and threat actors
//	GET  /health             liveness
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/threatdocs/internal/core/ports/driving"
	"github.com/custodia-labs/threatdocs/internal/logger"
)

// Default server settings.
const (
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxUploadBytes  = 50 << 20

	// multipartOverhead is allowed on top of the file limit for form
	// boundaries and part headers.
	multipartOverhead = 1 << 20
)

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// MaxUploadBytes caps the uploaded file (default: 50 MiB).
	MaxUploadBytes int64

	// ExtractionTimeout is the agent deadline; the write timeout is derived
	// from it so slow extractions are not cut off mid-response.
	ExtractionTimeout time.Duration

	// Version is reported by /health.
	Version string
}

// Services are the driving ports the server calls.
type Services struct {
	Ingest    driving.IngestService
	Search    driving.SearchService
	Documents driving.DocumentService
}

// Server is the threatdocs HTTP API.
type Server struct {
	cfg      Config
	services Services
	engine   *gin.Engine
}

// NewServer builds the router. It does not start listening.
func NewServer(cfg Config, services Services) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	engine := gin.New()
	engine.Use(RequestID(), Recovery(), RequestLogger())

	s := &Server{cfg: cfg, services: services, engine: engine}

	engine.GET("/health", s.health)
	engine.POST("/upload-pdf/", s.uploadPDF)
	engine.GET("/search/", s.search)
	engine.GET("/documents/:id", s.getDocument)

	return s
}

// Handler returns the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down
// gracefully, letting in-flight ingestions finish within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.ExtractionTimeout + time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
