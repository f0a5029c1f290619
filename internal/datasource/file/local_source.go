package file

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Local opens a flat file from local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path. It is safe for concurrent use.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound file path.
func (l *Local) Path() string { return l.path }

// Open returns the context error without touching the filesystem when ctx
// is already done. Filesystem errors keep their cause for errors.Is checks
// such as os.ErrNotExist.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", l.path)
	}
	return f, nil
}
