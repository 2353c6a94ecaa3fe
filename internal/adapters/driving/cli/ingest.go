package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var ingestName string

var ingestCmd = withServices(&cobra.Command{
	Use:   "ingest [file.pdf]...",
	Short: "Extract CVEs and threat actors from PDF files",
	Long: `Runs each file through text extraction and the CVE and threat actor
agents, then stores the document with everything found in it.
Files are processed one at a time; a failure does not stop the rest.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
})

func init() {
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "filename to record (single file only)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	if ingestName != "" && len(args) > 1 {
		return errors.New("--name can only be used with a single file")
	}

	failed := 0
	for _, path := range args {
		if !ingestOne(cmd, path, ingestName) {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

// ingestOne ingests a single file and reports the outcome. It returns
// false when ingestion failed.
func ingestOne(cmd *cobra.Command, path, name string) bool {
	report, err := ingestService.IngestFile(cmd.Context(), path, name)
	if err != nil {
		cmd.PrintErrf("%s %s: %v\n", errorStyle.Render("✗"), path, err)
		return false
	}

	cmd.Printf("%s %s %s %d CVEs, %d threat actors\n",
		successStyle.Render("✓"),
		report.Filename,
		mutedStyle.Render(report.DocumentID),
		report.CVECount,
		report.ActorCount,
	)
	return true
}
