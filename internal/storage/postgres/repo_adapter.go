// This adapter wires the Postgres backend into the storage-agnostic factory by
// registering a constructor at init time. The CLI (cmd/etl) and other callers
// can then obtain a Repository via storage.New(...) without importing this
// package directly.
//
// The adapter also registers a DDL bootstrapper so that callers can apply
// backend-specific DDL based only on storage.Kind, without branching on the
// backend themselves.
package postgres

import (
	"context"
	"fmt"

	"retailetl/internal/config"
	"retailetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Repository by delegating to the concrete
// *postgres.Repository while providing a Close method that calls the close
// function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Ensure wrappedRepo satisfies storage.Repository at compile time.
var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// init registers the "postgres" backend with the storage factory and also
// registers a DDL bootstrapper for storage.Kind == "postgres". This keeps the
// wiring in one place and allows callers to remain backend-agnostic.
//
// Typical usage:
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "postgres", ...})
//	defer repo.Close()
//
//	if spec.Storage.DB.AutoCreateTable {
//	    if err := storage.EnsureTableFromPipeline(ctx, spec, repo); err != nil {
//	        // handle DDL error
//	    }
//	}
func init() {
	// Repository factory registration.
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:   cfg.DSN,
			Table: cfg.Table,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	// DDL bootstrap registration: apply the transactions DDL via the generic
	// Repository.Exec method.
	storage.RegisterDDL("postgres",
		func(ctx context.Context, repo storage.Repository, spec config.Pipeline) error {
			for _, stmt := range transactionsDDL(spec.Storage.DB.Table) {
				if err := repo.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("apply DDL: %w", err)
				}
			}
			return nil
		})
}
