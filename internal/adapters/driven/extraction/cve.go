package extraction

import (
	"context"
	"strings"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
)

// Ensure CVEAgent implements the interfaces.
var (
	_ driven.CVEExtractor     = (*CVEAgent)(nil)
	_ driven.PromptStoreAware = (*CVEAgent)(nil)
)

// defaultCVEPrompt is the fallback prompt when no PromptStore is configured.
const defaultCVEPrompt = `You are a vulnerability analyst. Extract every CVE mentioned in the document text.
Give each CVE's identifier exactly as written, a short description and its severity.
Only report CVEs that appear in the text. If there are none, return an empty list.`

const cveSchema = `{"cves": [{"cve_id": "CVE-2024-12345", "description": "string", "severity": "Critical|High|Medium|Low|Unknown"}]}`

type cveReport struct {
	CVEs []cveItem `json:"cves" validate:"dive"`
}

type cveItem struct {
	CVEID       string `json:"cve_id" validate:"required"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// CVEAgent extracts CVE mentions with a language model.
type CVEAgent struct {
	agent
}

// NewCVEAgent creates a CVE agent backed by llm.
func NewCVEAgent(llm driven.LLMService) *CVEAgent {
	return &CVEAgent{agent: newAgent("cve", llm, driven.PromptCVEExtraction, defaultCVEPrompt, cveSchema)}
}

// SetPromptStore sets the prompt store for loading the customisable prompt.
func (a *CVEAgent) SetPromptStore(store driven.PromptStore) {
	a.promptStore = store
}

// ExtractCVEs returns the CVEs the model finds in text. Blank text yields
// an empty result without consulting the model.
func (a *CVEAgent) ExtractCVEs(ctx context.Context, text string) ([]domain.CVECandidate, error) {
	if blank(text) {
		return []domain.CVECandidate{}, nil
	}

	var report cveReport
	if err := a.run(ctx, text, &report); err != nil {
		return nil, err
	}

	cves := make([]domain.CVECandidate, 0, len(report.CVEs))
	for _, item := range report.CVEs {
		cves = append(cves, domain.CVECandidate{
			CVEID:       strings.TrimSpace(item.CVEID),
			Description: strings.TrimSpace(item.Description),
			Severity:    strings.TrimSpace(item.Severity),
		})
	}
	return cves, nil
}
