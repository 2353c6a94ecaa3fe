// Package cli implements the threatdocs command line.
//
// Commands that touch documents need the services built from the loaded
// configuration. They are constructed once, before the command runs, by the
// Bootstrap passed to Execute.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/threatdocs/internal/config"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driving"
	"github.com/custodia-labs/threatdocs/internal/logger"
)

// version is set by Execute.
var version = "dev"

// annotationServices marks commands that need the services.
const annotationServices = "threatdocs/services"

// Services are the driving ports the commands call.
type Services struct {
	Ingest    driving.IngestService
	Search    driving.SearchService
	Documents driving.DocumentService

	// Prompts is reloaded by serve on SIGHUP. Optional.
	Prompts driven.PromptStore

	// Close releases storage and LLM clients. Optional.
	Close func() error
}

// Bootstrap builds the services from a loaded configuration.
type Bootstrap func(ctx context.Context, cfg *config.Config) (*Services, error)

var (
	ingestService   driving.IngestService
	searchService   driving.SearchService
	documentService driving.DocumentService
	promptStore     driven.PromptStore
	closeServices   func() error

	appConfig *config.Config
	bootstrap Bootstrap
)

var (
	configPath  string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "threatdocs",
	Short: "Extract CVEs and threat actors from PDF reports",
	Long: `threatdocs reads threat intelligence reports in PDF form, asks an LLM to
extract the CVEs and threat actors they mention, and stores the results for
search over HTTP, MCP or this command line.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default ~/.threatdocs/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "verbose logging")
}

// Execute runs the command line with the given version string.
func Execute(ctx context.Context, v string, boot Bootstrap) error {
	version = v
	bootstrap = boot
	return rootCmd.ExecuteContext(ctx)
}

// SetServices installs the services used by the commands.
func SetServices(s *Services) {
	ingestService = s.Ingest
	searchService = s.Search
	documentService = s.Documents
	promptStore = s.Prompts
	closeServices = s.Close
}

func needsServices(cmd *cobra.Command) bool {
	return cmd.Annotations[annotationServices] == "true"
}

func withServices(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = make(map[string]string)
	}
	cmd.Annotations[annotationServices] = "true"
	return cmd
}

func setup(cmd *cobra.Command, _ []string) error {
	if verboseFlag {
		logger.SetVerbose(true)
	}
	if !needsServices(cmd) || appConfig != nil {
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Log.Verbose {
		logger.SetVerbose(true)
	}

	if bootstrap == nil {
		return errors.New("no service bootstrap configured")
	}
	services, err := bootstrap(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("starting services: %w", err)
	}
	SetServices(services)
	appConfig = cfg
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if closeServices == nil {
		return nil
	}
	err := closeServices()
	closeServices = nil
	return err
}

// configFile returns the --config path or the default location.
func configFile() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}
