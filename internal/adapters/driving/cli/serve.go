package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/threatdocs/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
	"github.com/custodia-labs/threatdocs/internal/logger"
)

var serveAddr string

var serveCmd = withServices(&cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the HTTP API:

  POST /upload-pdf/      ingest a PDF (multipart field "file")
  GET  /search/          unified search
  GET  /documents/{id}   a document with its CVEs and threat actors
  GET  /health           liveness

Send SIGHUP to reload the extraction prompts from disk. Interrupt to shut
down; in-flight uploads are given time to finish.`,
	Args: cobra.NoArgs,
	RunE: runServe,
})

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if ingestService == nil || searchService == nil || documentService == nil {
		return errors.New("services not configured")
	}

	if !logger.IsVerbose() {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := serveAddr
	if addr == "" {
		addr = appConfig.Server.Addr
	}

	server := httpapi.NewServer(httpapi.Config{
		Addr:              addr,
		MaxUploadBytes:    appConfig.Ingest.MaxUploadBytes,
		ExtractionTimeout: appConfig.Ingest.ExtractionTimeout.Std(),
		Version:           version,
	}, httpapi.Services{
		Ingest:    ingestService,
		Search:    searchService,
		Documents: documentService,
	})

	ctx := cmd.Context()
	if promptStore != nil {
		go reloadOnHangup(ctx, promptStore)
	}

	cmd.Printf("threatdocs %s listening on %s\n", version, addr)
	return server.Run(ctx)
}

// reloadOnHangup drops cached prompts on every SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, prompts driven.PromptStore) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			prompts.Reload()
			logger.Info("Prompts reloaded")
		}
	}
}
