package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var documentJSON bool

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Inspect ingested documents",
}

var documentGetCmd = withServices(&cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show a document with its CVEs and threat actors",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
})

func init() {
	documentGetCmd.Flags().BoolVar(&documentJSON, "json", false, "output as JSON")
	documentCmd.AddCommand(documentGetCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	details, err := documentService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if documentJSON {
		data, err := json.MarshalIndent(details, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	doc := details.Document
	cmd.Println(headingStyle.Render(doc.Filename))
	cmd.Printf("  ID:        %s\n", doc.ID)
	cmd.Printf("  Uploaded:  %s\n", doc.UploadedAt.Local().Format(time.DateTime))
	if doc.ProcessedAt != nil {
		cmd.Printf("  Processed: %s\n", doc.ProcessedAt.Local().Format(time.DateTime))
	} else {
		cmd.Printf("  Processed: %s\n", mutedStyle.Render("pending"))
	}
	cmd.Println()

	cmd.Println(heading("CVEs", len(details.CVEs)))
	for _, c := range details.CVEs {
		printCVE(cmd, c)
	}
	cmd.Println()

	cmd.Println(heading("Threat actors", len(details.ThreatActors)))
	for _, a := range details.ThreatActors {
		printActor(cmd, a)
	}
	return nil
}
