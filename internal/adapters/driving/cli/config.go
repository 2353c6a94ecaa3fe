package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/threatdocs/internal/adapters/driven/ai"
	"github.com/custodia-labs/threatdocs/internal/adapters/driven/config/file"
	"github.com/custodia-labs/threatdocs/internal/config"
	"github.com/custodia-labs/threatdocs/internal/normalisers/pdf"
)

// Replaced in tests.
var (
	checkLLM      = ai.ValidateLLMConfig
	checkPDFTools = pdf.CheckAvailable
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long: `View and edit ~/.threatdocs/config.toml (or the file given by --config).

Keys use dot notation, e.g. llm.provider or ingest.extraction_timeout.
API keys are best left to the environment: THREATDOCS_LLM_API_KEY or the
provider's own variable such as OPENAI_API_KEY.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every default",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one effective setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting in the configuration file",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset [key]",
	Short: "Remove a setting so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and reach the LLM provider",
	Args:  cobra.NoArgs,
	RunE:  runConfigCheck,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path, err := configFile()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	data, err := config.Encode(config.Default())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return err
	}

	cmd.Printf("Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	data, err := config.Encode(cfg.Redacted())
	if err != nil {
		return err
	}
	cmd.Print(string(data))
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	path, err := configFile()
	if err != nil {
		return err
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}

	value, err := lookupKey(cfg, args[0])
	if err != nil {
		return err
	}
	cmd.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	store, err := openConfigStore()
	if err != nil {
		return err
	}

	old, existed := store.Get(key)
	if err := store.Set(key, value); err != nil {
		return err
	}

	// Reject values the loader would refuse, leaving the file as it was.
	if _, err := config.LoadFile(store.Path()); err != nil {
		if rerr := store.Restore(key, old, existed); rerr != nil {
			return errors.Join(err, fmt.Errorf("restoring %s: %w", key, rerr))
		}
		return err
	}

	cmd.Printf("%s = %s\n", key, value)
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	store, err := openConfigStore()
	if err != nil {
		return err
	}
	if err := store.Unset(args[0]); err != nil {
		return err
	}
	cmd.Printf("Unset %s\n", args[0])
	return nil
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cmd.Println(successStyle.Render("✓") + " configuration is valid")

	if err := checkPDFTools(); err != nil {
		cmd.Printf("%s pdftotext not found; only the built-in PDF reader is used\n", mutedStyle.Render("-"))
	} else {
		cmd.Printf("%s pdftotext available as fallback\n", successStyle.Render("✓"))
	}

	settings := cfg.LLMSettings()
	cmd.Printf("  Provider: %s\n", settings.Provider.Description())
	if settings.Model != "" {
		cmd.Printf("  Model:    %s\n", settings.Model)
	}
	if settings.Provider.RequiresAPIKey() {
		if settings.APIKey != "" {
			cmd.Printf("  API Key:  %s\n", maskAPIKey(settings.APIKey))
		} else {
			cmd.Printf("  API Key:  (not set)\n")
		}
	}

	if err := checkLLM(cmd.Context(), settings); err != nil {
		cmd.Println(errorStyle.Render("✗") + " LLM provider unreachable")
		return err
	}
	cmd.Println(successStyle.Render("✓") + " LLM provider reachable")
	return nil
}

func openConfigStore() (*file.ConfigStore, error) {
	path, err := configFile()
	if err != nil {
		return nil, err
	}
	return file.NewConfigStore(path)
}

// lookupKey returns the value of a dotted key in cfg, rendered as TOML.
func lookupKey(cfg *config.Config, key string) (string, error) {
	data, err := config.Encode(cfg.Redacted())
	if err != nil {
		return "", err
	}
	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return "", err
	}

	var node any = tree
	for _, part := range strings.Split(key, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return "", fmt.Errorf("unknown key %q", key)
		}
		if node, ok = m[part]; !ok {
			return "", fmt.Errorf("%q is not set", key)
		}
	}
	if _, ok := node.(map[string]any); ok {
		return "", fmt.Errorf("%q is a section, not a key", key)
	}
	return fmt.Sprint(node), nil
}

// maskAPIKey masks an API key for display.
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
