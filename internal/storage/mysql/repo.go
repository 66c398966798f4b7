// Package mysql implements a MySQL-backed storage.Repository using
// database/sql and the go-sql-driver. Bulk loads use multi-row INSERTs.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Config holds MySQL repository configuration. The DSN should carry
// parseTime=true so DATETIME columns scan into time.Time.
type Config struct {
	DSN   string
	Table string
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a connection pool and returns a Close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// CopyFrom bulk-inserts rows with a single multi-row INSERT statement.
// MySQL has no COPY protocol; a multi-row VALUES list is its fastest
// client-side path.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(myIdent(r.cfg.Table))
	b.WriteString(" (")
	b.WriteString(strings.Join(mapIdent(columns), ","))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(placeholder)
		args = append(args, row...)
	}

	res, err := r.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", r.cfg.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return int64(len(rows)), nil
	}
	return n, nil
}

// Exec implements storage.Repository.Exec for MySQL.
func (r *Repository) Exec(ctx context.Context, query string) error {
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// ReadWatermark returns the greatest (invoice_date, invoice) pair in table.
func (r *Repository) ReadWatermark(ctx context.Context, table string) (time.Time, string, bool, error) {
	q := fmt.Sprintf(
		"SELECT invoice_date, invoice FROM %s ORDER BY invoice_date DESC, invoice DESC LIMIT 1",
		myIdent(table),
	)
	var ts time.Time
	var invoice string
	err := r.db.QueryRowContext(ctx, q).Scan(&ts, &invoice)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, "", false, nil
	}
	if err != nil {
		return time.Time{}, "", false, fmt.Errorf("read watermark from %s: %w", table, err)
	}
	return ts, invoice, true, nil
}

// myIdent quotes an identifier with backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = myIdent(c)
	}
	return out
}
