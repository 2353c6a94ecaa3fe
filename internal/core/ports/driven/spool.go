package driven

import (
	"context"
	"io"
)

// PayloadSpool stages an uploaded payload on local storage so that the
// text extractor can read it by path.
type PayloadSpool interface {
	// Spool copies at most limit bytes from r into a new temporary file.
	// The returned release func removes the file and must always be called.
	// Returns domain.ErrInvalidInput if the payload exceeds limit.
	Spool(ctx context.Context, r io.Reader, limit int64) (path string, release func() error, err error)
}
