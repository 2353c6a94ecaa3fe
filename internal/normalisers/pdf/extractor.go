// Package pdf extracts plain text from PDF files.
//
// Text is read natively with github.com/ledongthuc/pdf. When the native
// reader fails or finds no text and poppler's pdftotext is installed, the
// extractor falls back to it.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
	"github.com/custodia-labs/threatdocs/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// magic is the header every PDF file starts with.
var magic = []byte("%PDF-")

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

// Extractor reads the text layer of PDF files.
type Extractor struct {
	runner   CommandRunner
	lookPath func(string) (string, error)
}

// New creates an extractor that may shell out to pdftotext.
func New() *Extractor {
	return NewWithRunner(execRunner{})
}

// NewWithRunner creates an extractor with a custom command runner.
// A nil runner disables the pdftotext fallback.
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{runner: runner, lookPath: exec.LookPath}
}

// Extract returns the text of the PDF at path. Files that are not PDFs, or
// that cannot be parsed, fail with domain.ErrUnsupportedFormat. I/O errors
// and cancellation are returned as they are.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if err := checkMagic(path); err != nil {
		return "", err
	}

	text, nativeErr := readNative(path)
	if nativeErr == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}

	if e.runner != nil && e.available() {
		logger.Debug("Native PDF reader gave no text for %s, trying pdftotext", path)
		out, err := e.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("pdftotext: %w", ctx.Err())
			}
			return "", fmt.Errorf("%w: pdftotext failed: %w", domain.ErrUnsupportedFormat, err)
		}
		return string(out), nil
	}

	if nativeErr != nil {
		return "", nativeErr
	}
	// A valid PDF without a text layer yields empty text.
	return text, nil
}

// CheckAvailable reports whether pdftotext can be found.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions describes how to install the pdftotext fallback.
func InstallInstructions() string {
	return `Scanned or unusual PDFs may need pdftotext (poppler):
  macOS:         brew install poppler
  Debian/Ubuntu: apt install poppler-utils
  Fedora:        dnf install poppler-utils`
}

func (e *Extractor) available() bool {
	_, err := e.lookPath("pdftotext")
	return err == nil
}

func checkMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, len(magic))
	if _, err := io.ReadFull(f, header); err != nil || !bytes.Equal(header, magic) {
		return fmt.Errorf("%w: missing PDF header", domain.ErrUnsupportedFormat)
	}
	return nil
}

// readNative extracts text page by page. The parser panics on some
// malformed inputs, so panics are turned into errors.
func readNative(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: parsing PDF: %v", domain.ErrUnsupportedFormat, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnsupportedFormat, err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %w", domain.ErrUnsupportedFormat, i, err)
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
