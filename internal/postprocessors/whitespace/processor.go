// Package whitespace tidies text as it comes out of PDF extraction.
package whitespace

import (
	"context"
	"strings"
	"unicode"

	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
)

// Name is the processor name used in configuration.
const Name = "whitespace"

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Processor normalises whitespace: control characters other than tab and
// newline are dropped, runs of spaces and tabs become one space, lines are
// trimmed and at most one blank line separates paragraphs.
type Processor struct{}

// New creates a whitespace processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return Name
}

// Process returns the tidied text.
func (p *Processor) Process(_ context.Context, text string) (string, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))

	blank := 0
	for _, line := range strings.Split(text, "\n") {
		line = collapse(line)
		if line == "" {
			blank++
			continue
		}
		if b.Len() > 0 {
			if blank > 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		b.WriteString(line)
		blank = 0
	}
	return b.String(), nil
}

// collapse trims line and squeezes inner whitespace runs to a single space.
func collapse(line string) string {
	var b strings.Builder
	b.Grow(len(line))

	space := false
	for _, r := range line {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsControl(r) || r == unicode.ReplacementChar:
			// dropped
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}
