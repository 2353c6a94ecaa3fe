// Command threatdocs extracts CVEs and threat actors from PDF reports and
// serves them over HTTP, MCP and the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/threatdocs/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, version, bootstrap); err != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
		fmt.Fprintln(os.Stderr, errStyle.Render("Error: ")+err.Error())
		stop()
		os.Exit(1)
	}
}
