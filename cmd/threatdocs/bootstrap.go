package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/threatdocs/internal/adapters/driven/ai"
	"github.com/custodia-labs/threatdocs/internal/adapters/driven/config/file"
	"github.com/custodia-labs/threatdocs/internal/adapters/driven/extraction"
	"github.com/custodia-labs/threatdocs/internal/adapters/driven/spool"
	"github.com/custodia-labs/threatdocs/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/threatdocs/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/threatdocs/internal/adapters/driving/cli"
	"github.com/custodia-labs/threatdocs/internal/config"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
	"github.com/custodia-labs/threatdocs/internal/core/services"
	"github.com/custodia-labs/threatdocs/internal/logger"
	"github.com/custodia-labs/threatdocs/internal/normalisers/pdf"
	"github.com/custodia-labs/threatdocs/internal/postprocessors"
)

// bootstrap wires the adapters selected by cfg into the core services.
func bootstrap(ctx context.Context, cfg *config.Config) (*cli.Services, error) {
	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	pipeline, err := registry.BuildPipeline(cfg.Ingest.Processors, map[string]any{
		"max_chars": cfg.Ingest.MaxTextChars,
	})
	if err != nil {
		return nil, fmt.Errorf("building text processors: %w", err)
	}

	prompts, err := file.NewPromptStore(cfg.Prompts.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening prompts: %w", err)
	}

	llm, err := ai.CreateLLMService(ctx, cfg.LLMSettings())
	if err != nil {
		return nil, fmt.Errorf("creating LLM service: %w", err)
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		if llm != nil {
			llm.Close()
		}
		return nil, err
	}

	var (
		cves   driven.CVEExtractor
		actors driven.ActorExtractor
	)
	if llm != nil {
		cveAgent := extraction.NewCVEAgent(llm)
		cveAgent.SetPromptStore(prompts)
		actorAgent := extraction.NewActorAgent(llm)
		actorAgent.SetPromptStore(prompts)
		cves, actors = cveAgent, actorAgent
		logger.Debug("LLM: %s (%s)", cfg.LLM.Provider, llm.ModelName())
	} else {
		logger.Warn("No LLM provider configured; ingestion is disabled. Run 'threatdocs config check'.")
	}

	if err := pdf.CheckAvailable(); err != nil {
		logger.Debug("pdftotext fallback unavailable: %v", err)
	}

	ingest := services.NewIngestService(
		store,
		spool.New(cfg.Ingest.TempDir),
		pdf.New(),
		cves,
		actors,
		services.IngestConfig{
			ExtractionTimeout: cfg.Ingest.ExtractionTimeout.Std(),
			MaxPayloadBytes:   cfg.Ingest.MaxUploadBytes,
		},
	)
	ingest.SetPostProcessor(pipeline)
	logger.Debug("Text processors: %v", pipeline.Names())

	return &cli.Services{
		Ingest:    ingest,
		Search:    services.NewSearchService(store),
		Documents: services.NewDocumentService(store),
		Prompts:   prompts,
		Close: func() error {
			var errs []error
			if llm != nil {
				errs = append(errs, llm.Close())
			}
			errs = append(errs, store.Close())
			return errors.Join(errs...)
		},
	}, nil
}

func openStore(cfg config.StorageConfig) (driven.EntityStore, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("Using the in-memory store; nothing is kept after exit")
		return memory.NewEntityStore(), nil
	default:
		db, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		logger.Debug("Database: %s", db.Path())
		return db.EntityStore(), nil
	}
}
