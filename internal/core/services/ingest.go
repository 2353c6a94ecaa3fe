package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driving"
	"github.com/custodia-labs/threatdocs/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// Default ingestion limits.
const (
	DefaultExtractionTimeout = 120 * time.Second
	DefaultMaxPayloadBytes   = 50 << 20
)

// Ingestion stages reported in domain.IngestError.
const (
	StageText      = "extract text"
	StagePrepare   = "prepare text"
	StageAgents    = "extract entities"
	StageNormalise = "normalise"
	StagePersist   = "persist"
)

// IngestConfig bounds a single ingestion.
type IngestConfig struct {
	// ExtractionTimeout bounds both agent calls together (default: 120s).
	ExtractionTimeout time.Duration

	// MaxPayloadBytes caps the size of an uploaded payload (default: 50 MiB).
	MaxPayloadBytes int64
}

// IngestService runs uploaded PDFs through text extraction, the two
// extraction agents and normalisation, then persists the outcome as one batch.
type IngestService struct {
	store      driven.EntityStore
	spool      driven.PayloadSpool
	text       driven.TextExtractor
	cves       driven.CVEExtractor
	actors     driven.ActorExtractor
	normaliser *Normaliser
	post       driven.PostProcessorPipeline
	cfg        IngestConfig

	now   func() time.Time
	newID func() string
}

// NewIngestService creates a new ingestion orchestrator.
// cves and actors may be nil, in which case every ingestion fails with
// domain.ErrLLMUnavailable.
func NewIngestService(
	store driven.EntityStore,
	spool driven.PayloadSpool,
	text driven.TextExtractor,
	cves driven.CVEExtractor,
	actors driven.ActorExtractor,
	cfg IngestConfig,
) *IngestService {
	if cfg.ExtractionTimeout <= 0 {
		cfg.ExtractionTimeout = DefaultExtractionTimeout
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	return &IngestService{
		store:      store,
		spool:      spool,
		text:       text,
		cves:       cves,
		actors:     actors,
		normaliser: NewNormaliser(),
		cfg:        cfg,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// SetPostProcessor installs a pipeline applied to extracted text before
// the agents see it. Without one the text is passed on unchanged.
func (s *IngestService) SetPostProcessor(p driven.PostProcessorPipeline) {
	s.post = p
}

// Ingest spools payload to temporary storage and processes it.
// The temporary copy is removed on every exit path; a failure to remove it
// is logged and never replaces the ingestion outcome.
func (s *IngestService) Ingest(ctx context.Context, payload io.Reader, filename string) (*domain.IngestReport, error) {
	logger.Section("Ingestion")

	filename, err := s.precheck(filename)
	if err != nil {
		return nil, err
	}
	uploadedAt := s.now().UTC()

	path, release, err := s.spool.Spool(ctx, payload, s.cfg.MaxPayloadBytes)
	if err != nil {
		return nil, fmt.Errorf("staging upload: %w", err)
	}
	defer func() {
		if rerr := release(); rerr != nil {
			logger.Warn("Removing spooled upload %s: %v", path, rerr)
		}
	}()
	logger.Debug("Spooled %q to %s", filename, path)

	return s.process(ctx, path, filename, uploadedAt)
}

// IngestFile processes a PDF already on local disk. The file is read in place
// and left untouched.
func (s *IngestService) IngestFile(ctx context.Context, path, filename string) (*domain.IngestReport, error) {
	logger.Section("Ingestion")

	if filename == "" {
		filename = filepath.Base(path)
	}
	filename, err := s.precheck(filename)
	if err != nil {
		return nil, err
	}
	uploadedAt := s.now().UTC()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if info.Size() > s.cfg.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d",
			domain.ErrInvalidInput, path, info.Size(), s.cfg.MaxPayloadBytes)
	}

	return s.process(ctx, path, filename, uploadedAt)
}

func (s *IngestService) precheck(filename string) (string, error) {
	if s.cves == nil || s.actors == nil {
		return "", domain.ErrLLMUnavailable
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", fmt.Errorf("%w: filename is required", domain.ErrInvalidInput)
	}
	return filename, nil
}

// process runs steps that follow staging. No row is written unless every
// earlier step succeeded.
func (s *IngestService) process(
	ctx context.Context,
	path, filename string,
	uploadedAt time.Time,
) (*domain.IngestReport, error) {
	text, err := s.text.Extract(ctx, path)
	if err != nil {
		logger.Warn("Text extraction failed for %q: %v", filename, err)
		kind := domain.ErrExtractionFailed
		if errors.Is(err, domain.ErrUnsupportedFormat) {
			kind = domain.ErrUnsupportedFormat
		}
		return nil, domain.NewIngestError(kind, StageText, err)
	}
	logger.Debug("Extracted %d characters from %q", len(text), filename)

	if s.post != nil {
		if text, err = s.post.Process(ctx, text); err != nil {
			logger.Warn("Preparing text of %q failed: %v", filename, err)
			return nil, domain.NewIngestError(domain.ErrExtractionFailed, StagePrepare, err)
		}
	}

	cves, actors, err := s.extract(ctx, text)
	if err != nil {
		logger.Warn("Entity extraction failed for %q: %v", filename, err)
		return nil, domain.NewIngestError(domain.ErrExtractionFailed, StageAgents, err)
	}
	logger.Debug("Agents returned %d CVEs and %d threat actors", len(cves), len(actors))

	documentID := s.newID()
	processedAt := s.now().UTC()
	cveRecords, actorRecords := s.normaliser.Normalise(documentID, processedAt, cves, actors)
	if err := validateRecords(cveRecords, actorRecords); err != nil {
		logger.Warn("Normalised records rejected for %q: %v", filename, err)
		return nil, domain.NewIngestError(domain.ErrValidationFailed, StageNormalise, err)
	}

	batch := domain.Batch{
		Document: domain.Document{
			ID:          documentID,
			Filename:    filename,
			UploadedAt:  uploadedAt,
			ProcessedAt: &processedAt,
		},
		CVEs:   cveRecords,
		Actors: actorRecords,
	}
	if err := s.store.SaveBatch(ctx, batch); err != nil {
		logger.Warn("Persisting %q failed: %v", filename, err)
		return nil, domain.NewIngestError(domain.ErrPersistenceFailed, StagePersist, err)
	}

	logger.Info("Ingested %q as %s (%d CVEs, %d threat actors)",
		filename, documentID, len(cveRecords), len(actorRecords))

	return &domain.IngestReport{
		DocumentID: documentID,
		Filename:   filename,
		CVECount:   len(cveRecords),
		ActorCount: len(actorRecords),
	}, nil
}

// extract runs both agents concurrently under one deadline. The first
// failure cancels the other call.
func (s *IngestService) extract(
	ctx context.Context,
	text string,
) ([]domain.CVECandidate, []domain.ActorCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExtractionTimeout)
	defer cancel()

	var (
		cves   []domain.CVECandidate
		actors []domain.ActorCandidate
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cves, err = s.cves.ExtractCVEs(gctx, text)
		if err != nil {
			return fmt.Errorf("cve agent: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		actors, err = s.actors.ExtractActors(gctx, text)
		if err != nil {
			return fmt.Errorf("threat actor agent: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("agents did not finish within %s: %w", s.cfg.ExtractionTimeout, err)
		}
		return nil, nil, err
	}
	return cves, actors, nil
}

func validateRecords(cves []domain.CVERecord, actors []domain.ThreatActorRecord) error {
	for _, c := range cves {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, a := range actors {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}
