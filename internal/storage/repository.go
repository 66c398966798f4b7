// Package storage contains storage-agnostic contracts and utilities for the
// transaction load path: the Repository interface, the backend registry, and
// the batched loader.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Repository is the destination for cleaned transaction rows. Backends
// (mysql, postgres, mssql, sqlite) implement it with their most efficient
// bulk primitive.
type Repository interface {
	// CopyFrom bulk-inserts rows aligned to the columns order and returns
	// the number of rows inserted.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// Exec runs a statement with no result rows (DDL, maintenance).
	Exec(ctx context.Context, sql string) error

	// ReadWatermark returns the load-order position of the newest row in
	// table: the greatest (invoice_date, invoice) pair. ok is false when
	// the table is empty.
	ReadWatermark(ctx context.Context, table string) (ts time.Time, invoice string, ok bool, err error)

	// Close releases the underlying connection pool.
	Close()
}

// Config carries the backend-agnostic connection settings handed to a
// factory. Kind selects the backend.
type Config struct {
	Kind            string
	DSN             string
	Table           string
	Columns         []string
	AutoCreateTable bool
}

// Factory opens a Repository for a Config. Backends register one per kind
// from their init functions.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for a storage kind. It is
// typically called from backend packages' init() functions; importing
// storage/all wires in every built-in backend.
func Register(kind string, fn Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = fn
}

// New opens a Repository for cfg.Kind using the registered factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	fn, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	repo, err := fn(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s repository: %w", cfg.Kind, err)
	}
	return repo, nil
}

// ListKinds returns a sorted snapshot of the registered storage kinds.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
