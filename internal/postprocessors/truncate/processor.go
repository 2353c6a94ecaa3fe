// Package truncate caps the amount of document text sent to the agents.
package truncate

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
	"github.com/custodia-labs/threatdocs/internal/logger"
)

// Name is the processor name used in configuration.
const Name = "truncate"

// DefaultMaxChars is the default number of characters kept.
const DefaultMaxChars = 200_000

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Processor keeps at most maxChars characters of text. When it has to cut,
// it cuts at the last line break in the final tenth of the budget, if any,
// so a line is not split.
type Processor struct {
	maxChars int
}

// Option configures the truncate processor.
type Option func(*Processor)

// WithMaxChars sets the number of characters kept.
func WithMaxChars(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxChars = n
		}
	}
}

// New creates a new truncate processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{maxChars: DefaultMaxChars}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return Name
}

// MaxChars returns the configured limit.
func (p *Processor) MaxChars() int {
	return p.maxChars
}

// Process returns text cut to the limit. Characters are runes, so
// multi-byte text is never split mid-rune.
func (p *Processor) Process(_ context.Context, text string) (string, error) {
	if utf8.RuneCountInString(text) <= p.maxChars {
		return text, nil
	}

	// Byte offset of the first rune past the limit.
	end, n := 0, 0
	for i := range text {
		if n == p.maxChars {
			end = i
			break
		}
		n++
	}

	cut := text[:end]
	floor := len(cut) - len(cut)/10
	if nl := strings.LastIndexByte(cut, '\n'); nl >= floor {
		cut = cut[:nl]
	}

	logger.Debug("truncate: kept %d of %d bytes", len(cut), len(text))
	return cut, nil
}
