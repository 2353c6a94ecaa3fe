// Package spool stages uploaded payloads in temporary files so that the PDF
// reader can seek through them.
package spool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/custodia-labs/threatdocs/internal/core/domain"
	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
)

// Ensure FileSpool implements the interface.
var _ driven.PayloadSpool = (*FileSpool)(nil)

// pattern names every spooled file.
const pattern = "threatdocs-upload-*.pdf"

// FileSpool writes payloads to files under a directory.
type FileSpool struct {
	dir string
}

// New creates a spool rooted at dir. An empty dir selects os.TempDir().
func New(dir string) *FileSpool {
	return &FileSpool{dir: dir}
}

// Dir returns the directory spooled files are written to.
func (s *FileSpool) Dir() string {
	if s.dir == "" {
		return os.TempDir()
	}
	return s.dir
}

// Spool copies at most limit bytes of r to a new temporary file.
// Payloads larger than limit fail with domain.ErrInvalidInput and leave no
// file behind. The returned release removes the file; removing an already
// missing file is not an error.
func (s *FileSpool) Spool(ctx context.Context, r io.Reader, limit int64) (string, func() error, error) {
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0700); err != nil {
			return "", nil, fmt.Errorf("creating spool directory: %w", err)
		}
	}

	f, err := os.CreateTemp(s.dir, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("creating spool file: %w", err)
	}
	path := f.Name()
	release := func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}

	n, err := io.Copy(f, io.LimitReader(&ctxReader{ctx: ctx, r: r}, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > limit {
		err = fmt.Errorf("%w: payload exceeds %d bytes", domain.ErrInvalidInput, limit)
	}
	if err != nil {
		_ = release()
		return "", nil, err
	}

	return path, release, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
