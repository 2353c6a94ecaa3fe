package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

var (
	searchDocuments bool
	searchCVEs      bool
	searchActors    bool
	searchJSON      bool
)

// stringFilters maps flag names onto criteria fields.
var stringFilters = map[string]func(*domain.SearchCriteria, string){
	"filename":          func(c *domain.SearchCriteria, v string) { c.Filename = domain.Some(v) },
	"cve-id":            func(c *domain.SearchCriteria, v string) { c.CVEID = domain.Some(v) },
	"severity":          func(c *domain.SearchCriteria, v string) { c.CVESeverity = domain.Some(v) },
	"cve-description":   func(c *domain.SearchCriteria, v string) { c.CVEDescription = domain.Some(v) },
	"actor":             func(c *domain.SearchCriteria, v string) { c.ActorName = domain.Some(v) },
	"actor-description": func(c *domain.SearchCriteria, v string) { c.ActorDescription = domain.Some(v) },
	"alias":             func(c *domain.SearchCriteria, v string) { c.ActorAlias = domain.Some(v) },
}

var searchCmd = withServices(&cobra.Command{
	Use:   "search",
	Short: "Search extracted documents, CVEs and threat actors",
	Long: `Searches everything ingested so far. Choose what to list with --documents,
--cves and --actors; with none of them, all three are listed.

Text filters are case-insensitive substring matches. --filename narrows CVEs
and threat actors to those from matching documents. --after and --before take
RFC 3339 times or YYYY-MM-DD dates and apply to documents.`,
	Example: `  threatdocs search --cves --severity critical
  threatdocs search --actors --alias bear --json
  threatdocs search --documents --after 2024-01-01`,
	Args: cobra.NoArgs,
	RunE: runSearch,
})

func init() {
	f := searchCmd.Flags()
	f.BoolVarP(&searchDocuments, "documents", "d", false, "list matching documents")
	f.BoolVarP(&searchCVEs, "cves", "c", false, "list matching CVEs")
	f.BoolVarP(&searchActors, "actors", "a", false, "list matching threat actors")
	f.BoolVar(&searchJSON, "json", false, "output results as JSON")

	f.String("filename", "", "document filename contains")
	f.String("after", "", "uploaded at or after")
	f.String("before", "", "uploaded at or before")
	f.String("cve-id", "", "CVE identifier contains")
	f.String("severity", "", "CVE severity contains")
	f.String("cve-description", "", "CVE description contains")
	f.String("actor", "", "threat actor name contains")
	f.String("actor-description", "", "threat actor description contains")
	f.String("alias", "", "a threat actor alias contains")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	criteria, err := criteriaFromFlags(cmd)
	if err != nil {
		return err
	}

	result, err := searchService.Search(cmd.Context(), criteria)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printSearchResult(cmd, result)
	return nil
}

func criteriaFromFlags(cmd *cobra.Command) (domain.SearchCriteria, error) {
	c := domain.SearchCriteria{
		ShowDocuments:    searchDocuments,
		ShowCVEs:         searchCVEs,
		ShowThreatActors: searchActors,
	}
	if !c.RequestsAnything() {
		c.ShowDocuments, c.ShowCVEs, c.ShowThreatActors = true, true, true
	}

	flags := cmd.Flags()
	for name, set := range stringFilters {
		if flags.Changed(name) {
			v, _ := flags.GetString(name)
			set(&c, v)
		}
	}

	for _, bound := range []struct {
		flag  string
		upper bool
		dst   *domain.Optional[time.Time]
	}{
		{"after", false, &c.UploadedAfter},
		{"before", true, &c.UploadedBefore},
	} {
		if !flags.Changed(bound.flag) {
			continue
		}
		v, _ := flags.GetString(bound.flag)
		t, err := domain.ParseUploadBound(v, bound.upper)
		if err != nil {
			return c, fmt.Errorf("--%s: %w", bound.flag, err)
		}
		*bound.dst = domain.Some(t)
	}

	return c, c.Validate()
}

func printSearchResult(cmd *cobra.Command, r *domain.SearchResult) {
	if r.Documents != nil {
		cmd.Println(heading("Documents", len(*r.Documents)))
		for _, d := range *r.Documents {
			cmd.Printf("  %s  %s  %s\n", d.ID, d.Filename,
				mutedStyle.Render("uploaded "+d.UploadedAt.Local().Format(time.DateTime)))
		}
		cmd.Println()
	}

	if r.CVEs != nil {
		cmd.Println(heading("CVEs", len(*r.CVEs)))
		for _, c := range *r.CVEs {
			printCVE(cmd, c)
		}
		cmd.Println()
	}

	if r.ThreatActors != nil {
		cmd.Println(heading("Threat actors", len(*r.ThreatActors)))
		for _, a := range *r.ThreatActors {
			printActor(cmd, a)
		}
		cmd.Println()
	}
}

func printCVE(cmd *cobra.Command, c domain.CVERecord) {
	line := "  " + accentStyle.Render(c.CVEID)
	if c.Severity != "" {
		line += " [" + c.Severity + "]"
	}
	if c.Description != "" {
		line += " " + c.Description
	}
	cmd.Println(line)
	cmd.Printf("      %s\n", mutedStyle.Render("document "+c.DocumentID))
}

func printActor(cmd *cobra.Command, a domain.ThreatActorRecord) {
	line := "  " + accentStyle.Render(a.Name)
	if len(a.Aliases) > 0 {
		line += " (aka " + strings.Join(a.Aliases, ", ") + ")"
	}
	if a.Description != "" {
		line += " " + a.Description
	}
	cmd.Println(line)
	cmd.Printf("      %s\n", mutedStyle.Render("document "+a.DocumentID))
}
