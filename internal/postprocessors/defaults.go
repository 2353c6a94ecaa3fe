package postprocessors

import (
	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
	"github.com/custodia-labs/threatdocs/internal/postprocessors/truncate"
	"github.com/custodia-labs/threatdocs/internal/postprocessors/whitespace"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register(whitespace.Name, buildWhitespace)
	r.Register(truncate.Name, buildTruncate)
}

func buildWhitespace(_ map[string]any) (driven.PostProcessor, error) {
	return whitespace.New(), nil
}

// buildTruncate creates a truncation processor from generic config.
// Supported config keys:
//   - max_chars (int): characters kept (default: 200000)
func buildTruncate(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []truncate.Option

	if cfg != nil {
		if limit := getIntFromConfig(cfg, "max_chars"); limit > 0 {
			opts = append(opts, truncate.WithMaxChars(limit))
		}
	}

	return truncate.New(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
