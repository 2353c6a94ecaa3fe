// Package extraction implements the CVE and threat actor extraction agents
// on top of any driven.LLMService.
//
// Each agent sends its system prompt, the JSON shape it expects back and
// the document text. The reply is decoded and its shape validated before
// being handed to the ingestion orchestrator; any failure is reported as
// domain.ErrExtractionFailed.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
	"github.com/custodia-labs/threatdocs/internal/logger"
)

// DefaultMaxTokens caps each agent reply.
const DefaultMaxTokens = 4096

// agent holds what both extraction agents share.
type agent struct {
	name        string
	llm         driven.LLMService
	promptStore driven.PromptStore
	promptName  string
	fallback    string
	schema      string
	validate    *validator.Validate
}

func newAgent(name string, llm driven.LLMService, promptName, fallback, schema string) agent {
	return agent{
		name:       name,
		llm:        llm,
		promptName: promptName,
		fallback:   fallback,
		schema:     schema,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// run asks the model for a report and decodes it into out, which must be
// a pointer to a struct carrying validate tags.
func (a *agent) run(ctx context.Context, text string, out any) error {
	messages := []driven.ChatMessage{
		{Role: "system", Content: a.loadPrompt()},
		{Role: "system", Content: "Reply with a single JSON object of exactly this shape:\n" + a.schema},
		{Role: "user", Content: "Document text:\n\n" + text},
	}

	reply, err := a.llm.Chat(ctx, messages, driven.ChatOptions{
		MaxTokens:   DefaultMaxTokens,
		Temperature: 0,
		JSON:        true,
	})
	if err != nil {
		return fmt.Errorf("%w: %s agent: %w", domain.ErrExtractionFailed, a.name, err)
	}
	logger.Debug("%s agent replied with %d bytes using %s", a.name, len(reply), a.llm.ModelName())

	if err := decodeReply(reply, out); err != nil {
		return fmt.Errorf("%w: %s agent: %w", domain.ErrExtractionFailed, a.name, err)
	}
	if err := a.validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %s agent: reply does not match schema: %s",
			domain.ErrExtractionFailed, a.name, describeValidation(err))
	}
	return nil
}

// loadPrompt loads the system prompt from the store, falling back to the
// built-in default if unavailable.
func (a *agent) loadPrompt() string {
	if a.promptStore == nil {
		return a.fallback
	}
	prompt, err := a.promptStore.Load(a.promptName)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return a.fallback
	}
	return prompt
}

// decodeReply parses a model reply. Markdown code fences around the JSON
// are tolerated.
func decodeReply(reply string, out any) error {
	body := stripFences(reply)
	if body == "" {
		return errors.New("empty reply")
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("reply is not valid JSON: %w", err)
	}
	return nil
}

func stripFences(reply string) string {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag line, e.g. ```json.
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

func blank(text string) bool {
	return strings.TrimSpace(text) == ""
}
