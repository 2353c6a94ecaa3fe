package extraction

import (
	"context"
	"strings"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
)

// Ensure ActorAgent implements the interfaces.
var (
	_ driven.ActorExtractor   = (*ActorAgent)(nil)
	_ driven.PromptStoreAware = (*ActorAgent)(nil)
)

// defaultActorPrompt is the fallback prompt when no PromptStore is configured.
const defaultActorPrompt = `You are a cyber threat intelligence expert. Extract every threat actor mentioned in the document text.
Give each actor's primary name, a short description and every alias it is known by.
Only report actors that appear in the text. If there are none, return an empty list.`

const actorSchema = `{"threat_actors": [{"name": "string", "description": "string", "aliases": ["string"]}]}`

type actorReport struct {
	Actors []actorItem `json:"threat_actors" validate:"dive"`
}

type actorItem struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases"`
}

// ActorAgent extracts threat actor mentions with a language model.
type ActorAgent struct {
	agent
}

// NewActorAgent creates a threat actor agent backed by llm.
func NewActorAgent(llm driven.LLMService) *ActorAgent {
	return &ActorAgent{agent: newAgent("threat actor", llm, driven.PromptActorExtraction, defaultActorPrompt, actorSchema)}
}

// SetPromptStore sets the prompt store for loading the customisable prompt.
func (a *ActorAgent) SetPromptStore(store driven.PromptStore) {
	a.promptStore = store
}

// ExtractActors returns the threat actors the model finds in text. Blank
// text yields an empty result without consulting the model. Alias lists
// are passed through as reported; removing the actor's own name is left
// to normalisation.
func (a *ActorAgent) ExtractActors(ctx context.Context, text string) ([]domain.ActorCandidate, error) {
	if blank(text) {
		return []domain.ActorCandidate{}, nil
	}

	var report actorReport
	if err := a.run(ctx, text, &report); err != nil {
		return nil, err
	}

	actors := make([]domain.ActorCandidate, 0, len(report.Actors))
	for _, item := range report.Actors {
		aliases := item.Aliases
		if aliases == nil {
			aliases = []string{}
		}
		actors = append(actors, domain.ActorCandidate{
			Name:        item.Name,
			Aliases:     aliases,
			Description: strings.TrimSpace(item.Description),
		})
	}
	return actors, nil
}
