// Package config holds the typed runtime configuration of threatdocs.
//
// Configuration is read from a TOML file (default ~/.threatdocs/config.toml),
// completed with defaults, then API keys are taken from the environment.
// The resulting Config is passed explicitly to the constructors that need it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

// Default values.
const (
	DefaultDirName           = ".threatdocs"
	DefaultFileName          = "config.toml"
	DefaultDriver            = "sqlite"
	DefaultProvider          = domain.AIProviderOpenAI
	DefaultExtractionTimeout = 120 * time.Second
	DefaultLLMTimeout        = 120 * time.Second
	DefaultMaxUploadBytes    = 50 << 20
	DefaultServerAddr        = ":8080"
	DefaultMCPAddr           = "127.0.0.1:8081"
)

// Duration is a time.Duration written in TOML as a string such as "90s".
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete application configuration.
type Config struct {
	Storage StorageConfig `toml:"storage"`
	LLM     LLMConfig     `toml:"llm"`
	Ingest  IngestConfig  `toml:"ingest"`
	Server  ServerConfig  `toml:"server"`
	MCP     MCPConfig     `toml:"mcp"`
	Log     LogConfig     `toml:"log"`
	Prompts PromptsConfig `toml:"prompts"`
}

// StorageConfig selects the entity store.
type StorageConfig struct {
	// Driver is "sqlite" or "memory". The memory store loses everything on exit.
	Driver  string `toml:"driver" validate:"oneof=sqlite memory"`
	DataDir string `toml:"data_dir"`
}

// LLMConfig configures the provider behind the extraction agents.
type LLMConfig struct {
	Provider          string   `toml:"provider" validate:"omitempty,oneof=ollama openai openrouter anthropic gemini"`
	Model             string   `toml:"model,omitempty"`
	BaseURL           string   `toml:"base_url,omitempty" validate:"omitempty,url"`
	APIKey            string   `toml:"api_key,omitempty"`
	Timeout           Duration `toml:"timeout" validate:"gt=0"`
	RequestsPerMinute int      `toml:"requests_per_minute" validate:"gte=0"`
}

// IngestConfig bounds ingestion.
type IngestConfig struct {
	ExtractionTimeout Duration `toml:"extraction_timeout" validate:"gt=0"`
	MaxUploadBytes    int64    `toml:"max_upload_bytes" validate:"gt=0"`

	// TempDir holds spooled uploads. Empty uses the system temp directory.
	TempDir string `toml:"temp_dir,omitempty"`

	// Processors prepare extracted text for the agents, in order.
	Processors []string `toml:"processors" validate:"dive,oneof=whitespace truncate"`

	// MaxTextChars is the limit applied by the truncate processor.
	// Zero uses the processor's default.
	MaxTextChars int `toml:"max_text_chars" validate:"gte=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr" validate:"required"`
}

// MCPConfig configures the MCP server when served over HTTP.
type MCPConfig struct {
	Addr string `toml:"addr" validate:"required"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Verbose bool `toml:"verbose"`
}

// PromptsConfig locates the editable agent prompts.
type PromptsConfig struct {
	// Dir defaults to ~/.threatdocs/prompts.
	Dir string `toml:"dir,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Driver: DefaultDriver},
		LLM: LLMConfig{
			Provider: string(DefaultProvider),
			Timeout:  Duration(DefaultLLMTimeout),
		},
		Ingest: IngestConfig{
			ExtractionTimeout: Duration(DefaultExtractionTimeout),
			MaxUploadBytes:    DefaultMaxUploadBytes,
			Processors:        []string{"whitespace"},
		},
		Server: ServerConfig{Addr: DefaultServerAddr},
		MCP:    MCPConfig{Addr: DefaultMCPAddr},
	}
}

// HomeDir returns ~/.threatdocs.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// DefaultPath returns ~/.threatdocs/config.toml.
func DefaultPath() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultFileName), nil
}

// Load reads the configuration at path, falling back to DefaultPath when
// path is empty. A missing file yields the defaults. API keys are then
// resolved from the process environment and an optional .env file in the
// working directory.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads and validates the configuration file only, without
// consulting the environment.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML into cfg. Keys absent from data keep their current values.
func Parse(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("unknown keys:\n%s", strict.String())
		}
		return err
	}
	return nil
}

// Encode renders cfg as TOML.
func Encode(cfg *Config) ([]byte, error) {
	return toml.Marshal(cfg)
}

// providerKeyEnv names the conventional API key variable of each provider.
var providerKeyEnv = map[domain.AIProvider]string{
	domain.AIProviderOpenAI:     "OPENAI_API_KEY",
	domain.AIProviderOpenRouter: "OPENROUTER_API_KEY",
	domain.AIProviderAnthropic:  "ANTHROPIC_API_KEY",
	domain.AIProviderGemini:     "GEMINI_API_KEY",
}

// ApplyEnv overlays environment settings. THREATDOCS_LLM_PROVIDER and
// THREATDOCS_LLM_MODEL replace the file values. The API key comes from
// THREATDOCS_LLM_API_KEY, else the provider's conventional variable, and
// only when the file leaves it empty.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("THREATDOCS_LLM_PROVIDER"); ok && v != "" {
		c.LLM.Provider = v
	}
	if v, ok := lookup("THREATDOCS_LLM_MODEL"); ok && v != "" {
		c.LLM.Model = v
	}
	if c.LLM.APIKey != "" {
		return
	}
	if v, ok := lookup("THREATDOCS_LLM_API_KEY"); ok && v != "" {
		c.LLM.APIKey = v
		return
	}
	if name, ok := providerKeyEnv[domain.AIProvider(c.LLM.Provider)]; ok {
		if v, ok := lookup(name); ok {
			c.LLM.APIKey = v
		}
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: config: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// LLMSettings converts the [llm] section for the provider factory.
func (c *Config) LLMSettings() *domain.LLMSettings {
	return &domain.LLMSettings{
		Provider:          domain.AIProvider(c.LLM.Provider),
		Model:             c.LLM.Model,
		BaseURL:           c.LLM.BaseURL,
		APIKey:            c.LLM.APIKey,
		Timeout:           c.LLM.Timeout.Std(),
		RequestsPerMinute: c.LLM.RequestsPerMinute,
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.LLM.APIKey != "" {
		cp.LLM.APIKey = "********"
	}
	return &cp
}
