// Package datasource defines where flat-file bytes come from.
package datasource

import (
	"context"
	"io"
)

// Source opens a readable stream of delimited text. Callers close it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
