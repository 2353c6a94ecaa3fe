package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
	calls  int
	args   []string
}

func (m *mockRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	m.calls++
	m.args = args
	return m.output, m.err
}

func withTool(e *Extractor, found bool) *Extractor {
	e.lookPath = func(string) (string, error) {
		if found {
			return "/usr/bin/pdftotext", nil
		}
		return "", errors.New("not found")
	}
	return e
}

// buildPDF assembles a single-page PDF whose content stream shows text.
func buildPDF(text string) []byte {
	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
			"/Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
	}

	var sb strings.Builder
	sb.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = sb.Len()
		fmt.Fprintf(&sb, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := sb.Len()
	fmt.Fprintf(&sb, "xref\n0 %d\n", len(objects)+1)
	sb.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&sb, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&sb, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(sb.String())
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestNew(t *testing.T) {
	e := New()
	require.NotNil(t, e)
	assert.NotNil(t, e.runner)
}

func TestExtract_NativeText(t *testing.T) {
	path := writeFile(t, "advisory.pdf", buildPDF("APT99 exploited CVE-2024-12345"))
	runner := &mockRunner{}

	text, err := withTool(NewWithRunner(runner), true).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "CVE-2024-12345")
	assert.Zero(t, runner.calls)
}

func TestExtract_NotAPDF(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("just some text"))
	runner := &mockRunner{output: []byte("should not be used")}

	_, err := withTool(NewWithRunner(runner), true).Extract(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.Zero(t, runner.calls)
}

func TestExtract_EmptyFile(t *testing.T) {
	path := writeFile(t, "empty.pdf", nil)

	_, err := NewWithRunner(nil).Extract(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestExtract_CorruptWithoutFallback(t *testing.T) {
	path := writeFile(t, "broken.pdf", []byte("%PDF-1.4\nthis is not a real pdf body"))

	_, err := withTool(NewWithRunner(&mockRunner{}), false).Extract(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestExtract_CorruptFallsBackToPdftotext(t *testing.T) {
	path := writeFile(t, "broken.pdf", []byte("%PDF-1.4\nthis is not a real pdf body"))
	runner := &mockRunner{output: []byte("Recovered text\n")}

	text, err := withTool(NewWithRunner(runner), true).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Recovered text\n", text)
	assert.Equal(t, 1, runner.calls)
	assert.Contains(t, runner.args, path)
}

func TestExtract_PdftotextFails(t *testing.T) {
	path := writeFile(t, "broken.pdf", []byte("%PDF-1.4\ngarbage"))
	runner := &mockRunner{err: errors.New("exit status 1")}

	_, err := withTool(NewWithRunner(runner), true).Extract(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestExtract_PdftotextCancelled(t *testing.T) {
	path := writeFile(t, "broken.pdf", []byte("%PDF-1.4\ngarbage"))
	runner := &mockRunner{err: errors.New("signal: killed")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := withTool(NewWithRunner(runner), true).Extract(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, domain.ErrUnsupportedFormat))
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := New().Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, errors.Is(err, domain.ErrUnsupportedFormat))
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
}

func TestErrPDFToolNotFound(t *testing.T) {
	assert.Contains(t, ErrPDFToolNotFound.Error(), "pdftotext")
}
