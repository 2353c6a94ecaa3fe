package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
	"github.com/custodia-labs/threatdocs/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore serves the system prompts of the extraction agents from
// editable files, one per agent, falling back to built-in defaults.
// The directory and default files are written on first use.
type PromptStore struct {
	mu       sync.RWMutex
	dir      string
	cache    map[string]string
	initOnce sync.Once
	initErr  error
}

//nolint:lll
var defaultPrompts = map[string]string{
	driven.PromptCVEExtraction: `You are a vulnerability analyst. Extract every CVE mentioned in the document text supplied by the user.
For each CVE give its identifier exactly as written (CVE-YYYY-NNNNN), a short description of the vulnerability and its severity (Critical, High, Medium, Low or Unknown).
Only report CVEs that appear in the text. If there are none, return an empty list.
Reply with JSON only.`,

	driven.PromptActorExtraction: `You are a cyber threat intelligence expert. Extract every threat actor mentioned in the document text supplied by the user.
For each actor give its primary name, a short description, and every alias it is known by.
Only report actors that appear in the text. If there are none, return an empty list.
Reply with JSON only.`,
}

// NewPromptStore creates a prompt store rooted at dir, or
// ~/.threatdocs/prompts when dir is empty. Nothing is read or written yet.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".threatdocs", "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Load returns the prompt called name. The file content wins over the
// default; an empty or unreadable file yields the default.
func (s *PromptStore) Load(name string) (string, error) {
	fallback, known := defaultPrompts[name]
	if !known {
		return "", fmt.Errorf("unknown prompt %q", name)
	}

	s.initOnce.Do(s.writeDefaults)
	if s.initErr != nil {
		return fallback, nil
	}

	s.mu.RLock()
	prompt, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return prompt, nil
	}

	prompt = fallback
	if data, err := os.ReadFile(s.path(name)); err == nil {
		if text := strings.TrimSpace(string(data)); text != "" {
			prompt = text
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[name]; ok {
		return cached, nil
	}
	s.cache[name] = prompt
	return prompt, nil
}

// Reload drops cached prompts so the next Load reads the files again.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.dir, name+".txt")
}

// writeDefaults creates the directory and any missing prompt file.
// Existing files are never overwritten.
func (s *PromptStore) writeDefaults() {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		logger.Warn("Prompt directory unavailable, using built-in prompts: %v", err)
		return
	}
	for name, content := range defaultPrompts {
		if err := writeIfMissing(s.path(name), content); err != nil {
			s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
			return
		}
	}
	if err := writeIfMissing(filepath.Join(s.dir, "README.md"), readme); err != nil {
		s.initErr = err
	}
}

func writeIfMissing(path, content string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0600)
}

const readme = `# threatdocs Prompts

This directory contains the system prompts of the extraction agents.

## Files

- ` + "`cve_extraction.txt`" + ` - Instructs the CVE agent
- ` + "`actor_extraction.txt`" + ` - Instructs the threat actor agent

## Customisation

Edit either file to tune extraction. Changes take effect on the next
ingestion; a running server picks them up after the prompt cache is reloaded
(send SIGHUP or restart).

The reply schema and the document text are sent as separate messages, so the
prompts contain no placeholders. Keep the instruction to reply with JSON.
`
