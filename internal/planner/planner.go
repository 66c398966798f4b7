// Package planner decides which cleaned rows a load run ships to storage.
// In incremental mode the decision is a strict total order over
// (invoice_date, invoice) against the destination's high watermark.
package planner

import (
	"sort"
	"time"

	"retailetl/internal/schema"
	"retailetl/pkg/records"
)

// Mode selects the load strategy.
type Mode int

const (
	// Incremental admits only rows strictly above the watermark.
	Incremental Mode = iota
	// Full admits every cleaned row regardless of watermark.
	Full
)

func (m Mode) String() string {
	if m == Full {
		return "full"
	}
	return "incremental"
}

// Watermark is the load-order position of the newest row already in the
// destination. The invoice tie-break makes the order total: two rows with
// the same timestamp still compare deterministically.
type Watermark struct {
	Timestamp time.Time `json:"timestamp"`
	Invoice   string    `json:"invoice"`
}

// Zero reports whether no rows have ever been loaded.
func (w Watermark) Zero() bool {
	return w.Timestamp.IsZero() && w.Invoice == ""
}

// Less orders watermarks by timestamp, then invoice lexicographically.
func (w Watermark) Less(o Watermark) bool {
	if !w.Timestamp.Equal(o.Timestamp) {
		return w.Timestamp.Before(o.Timestamp)
	}
	return w.Invoice < o.Invoice
}

// Plan is the outcome of a planning pass over one cleaned batch.
type Plan struct {
	Mode    Mode
	ToLoad  []records.Record
	Skipped []records.Record

	// Next is the watermark the destination will hold after the load
	// commits. It never moves backwards.
	Next Watermark
}

// Build partitions cleaned rows into to-load and skipped sets.
//
// Incremental mode admits a row only when its (invoice_date, invoice) key
// is strictly greater than the current watermark, so re-running a load
// against an unchanged source ships nothing. Rows without a parseable
// invoice_date are skipped rather than guessed at. Full mode admits
// everything and still advances the watermark. Input order is preserved
// in both partitions; an empty batch yields an empty plan with Next
// equal to the current watermark.
func Build(rows []records.Record, current Watermark, mode Mode) Plan {
	p := Plan{Mode: mode, Next: current}

	for _, r := range rows {
		key, ok := rowKey(r)
		if !ok {
			p.Skipped = append(p.Skipped, r)
			continue
		}
		if mode == Incremental && !current.Less(key) {
			p.Skipped = append(p.Skipped, r)
			continue
		}
		p.ToLoad = append(p.ToLoad, r)
		if p.Next.Less(key) {
			p.Next = key
		}
	}
	return p
}

// rowKey extracts a row's position in the load order.
func rowKey(r records.Record) (Watermark, bool) {
	ts, ok := r.Time(schema.ColInvoiceDate)
	if !ok {
		return Watermark{}, false
	}
	return Watermark{Timestamp: ts, Invoice: r.String(schema.ColInvoice)}, true
}

// MaxKey returns the greatest (invoice_date, invoice) key in the batch,
// or the zero watermark for an empty batch. Used by full refreshes to
// seed the destination watermark from scratch.
func MaxKey(rows []records.Record) Watermark {
	keys := make([]Watermark, 0, len(rows))
	for _, r := range rows {
		if k, ok := rowKey(r); ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return Watermark{}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys[len(keys)-1]
}
