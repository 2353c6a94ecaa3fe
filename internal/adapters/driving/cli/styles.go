package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Output styles. Without a colour terminal they render as plain text.
var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
)

// heading renders a section title with its item count, e.g. "CVEs (3)".
func heading(title string, count int) string {
	return headingStyle.Render(title) + " " + mutedStyle.Render(fmt.Sprintf("(%d)", count))
}
