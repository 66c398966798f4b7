// Package datasource abstracts where raw transaction exports come from.
// Implementations exist for local files and HTTP downloads.
package datasource

import (
	"context"
	"io"
)

type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
