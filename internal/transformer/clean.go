package transformer

import (
	"math"
	"strings"

	"retailetl/internal/schema"
	"retailetl/pkg/records"
)

// CanonicalDateLayout is the single date representation rows carry after
// cleaning. Stored values are time.Time; this layout is used for audit
// entries and storage rendering.
const CanonicalDateLayout = "2006-01-02 15:04:05"

// Cleaner repairs and normalizes tagged rows. It is the only stage that
// mutates row data; everything it changes lands in the audit trail.
type Cleaner struct {
	Contract             schema.Contract
	CancellationPrefixes []string
	DateLayouts          []string // lenient fallback layouts, defaulted when empty

	// UppercaseFields lists string columns normalized to upper case.
	// Defaults to the country column.
	UppercaseFields []string
}

// Result is the cleaner's batch output: cleaned rows in input order, the
// append-only audit, the rejected report, and summary stats.
type Result struct {
	Rows     []records.Record
	Audit    []Change
	Rejected []RejectedRow
	Stats    Stats
}

// Stats summarizes a cleaning run, mirroring the metrics report persisted
// alongside the load plan.
type Stats struct {
	OriginalRows      int     `json:"original_rows"`
	CleanedRows       int     `json:"cleaned_rows"`
	RejectedRows      int     `json:"rejected_rows"`
	DuplicatesDropped int     `json:"duplicates_dropped"`
	Transformations   int     `json:"transformations"`
	RejectionRate     float64 `json:"rejection_rate"`
}

// Clean processes the tagged batch. Verdict handling:
//   - Valid rows get the uniform normalizations only.
//   - Repairable rows additionally get their rule-specific repair; a repair
//     that cannot complete reclassifies the row as rejected.
//   - Rejected rows are excluded from Rows but retained with reason.
//   - Later duplicate occurrences are dropped.
//
// Re-running Clean on already-cleaned rows is a no-op: rows carrying the
// cleaned marker pass through unchanged and append no audit entries.
func (c *Cleaner) Clean(tagged []Tagged) Result {
	res := Result{Rows: make([]records.Record, 0, len(tagged))}
	res.Stats.OriginalRows = len(tagged)

	uppercase := c.UppercaseFields
	if uppercase == nil {
		uppercase = []string{schema.ColCountry}
	}
	upperSet := make(map[string]struct{}, len(uppercase))
	for _, f := range uppercase {
		upperSet[f] = struct{}{}
	}

	for _, tr := range tagged {
		if tr.Row.Cleaned() {
			res.Rows = append(res.Rows, tr.Row)
			continue
		}
		switch {
		case tr.Verdict.Code == Rejected:
			res.Rejected = append(res.Rejected, RejectedRow{
				Index: tr.Index, Row: tr.Row,
				Reason: tr.Verdict.Reason, Field: tr.Verdict.Field,
			})
			continue
		case tr.Verdict.Reason == ReasonDuplicate:
			res.Stats.DuplicatesDropped++
			res.Audit = append(res.Audit, Change{
				Row: tr.Index, Field: schema.ColInvoice,
				Before: tr.Row.String(schema.ColInvoice), Rule: RuleDropDuplicate,
			})
			continue
		}

		row, reject := c.cleanRow(tr, upperSet, &res.Audit)
		if reject != nil {
			res.Rejected = append(res.Rejected, *reject)
			continue
		}
		res.Rows = append(res.Rows, row)
	}

	res.Stats.CleanedRows = len(res.Rows)
	res.Stats.RejectedRows = len(res.Rejected)
	res.Stats.Transformations = len(res.Audit)
	if res.Stats.OriginalRows > 0 {
		rate := float64(res.Stats.RejectedRows) / float64(res.Stats.OriginalRows)
		res.Stats.RejectionRate = math.Round(rate*10000) / 10000
	}
	return res
}

// cleanRow builds the cleaned record for a single row. Columns not in the
// contract are dropped. A nil reject return means the row survived.
func (c *Cleaner) cleanRow(tr Tagged, upperSet map[string]struct{}, audit *[]Change) (records.Record, *RejectedRow) {
	out := make(records.Record, len(c.Contract.Fields)+3)

	for _, f := range c.Contract.Fields {
		raw := tr.Row[f.Name]
		if isEmpty(raw) {
			if f.Default != "" {
				out[f.Name] = f.Default
				*audit = append(*audit, Change{Row: tr.Index, Field: f.Name, After: f.Default, Rule: RuleFillDefault})
			} else {
				out[f.Name] = nil
			}
			continue
		}

		switch f.Type {
		case schema.TypeInteger:
			n, ok := strictInteger(raw)
			if !ok {
				var repaired int64
				if repaired, ok = lenientInteger(raw); !ok {
					return nil, &RejectedRow{Index: tr.Index, Row: tr.Row, Reason: ReasonUncoercible, Field: f.Name}
				}
				n = repaired
				*audit = append(*audit, Change{Row: tr.Index, Field: f.Name, Before: raw, After: n, Rule: RuleCoerce})
			}
			out[f.Name] = n

		case schema.TypeDecimal:
			d, ok := strictDecimal(raw)
			if !ok {
				var repaired float64
				if repaired, ok = lenientDecimal(raw); !ok {
					return nil, &RejectedRow{Index: tr.Index, Row: tr.Row, Reason: ReasonUncoercible, Field: f.Name}
				}
				d = repaired
				*audit = append(*audit, Change{Row: tr.Index, Field: f.Name, Before: raw, After: d, Rule: RuleCoerce})
			}
			if f.Min != nil && d < *f.Min {
				*audit = append(*audit, Change{Row: tr.Index, Field: f.Name, Before: d, After: *f.Min, Rule: RuleClampFloor})
				d = *f.Min
			}
			if f.Max != nil && d > *f.Max {
				*audit = append(*audit, Change{Row: tr.Index, Field: f.Name, Before: d, After: *f.Max, Rule: RuleClampCeiling})
				d = *f.Max
			}
			out[f.Name] = d

		case schema.TypeDate:
			ts, ok := strictDate(raw, f.Layout)
			if !ok {
				if ts, ok = lenientDate(raw, c.DateLayouts); !ok {
					return nil, &RejectedRow{Index: tr.Index, Row: tr.Row, Reason: ReasonUncoercible, Field: f.Name}
				}
			}
			if s, wasString := raw.(string); wasString {
				if canonical := ts.Format(CanonicalDateLayout); strings.TrimSpace(s) != canonical {
					*audit = append(*audit, Change{Row: tr.Index, Field: f.Name, Before: s, After: canonical, Rule: RuleNormalizeDate})
				}
			}
			out[f.Name] = ts

		default: // string, enum
			s := records.AsString(raw)
			if trimmed := strings.TrimSpace(s); trimmed != s {
				*audit = append(*audit, Change{Row: tr.Index, Field: f.Name, Before: s, After: trimmed, Rule: RuleTrim})
				s = trimmed
			}
			if _, up := upperSet[f.Name]; up {
				if u := strings.ToUpper(s); u != s {
					*audit = append(*audit, Change{Row: tr.Index, Field: f.Name, Before: s, After: u, Rule: RuleUppercase})
					s = u
				}
			}
			if len(f.Enum) > 0 && !contains(f.Enum, s) {
				if f.Default == "" {
					return nil, &RejectedRow{Index: tr.Index, Row: tr.Row, Reason: ReasonConstraint, Field: f.Name}
				}
				*audit = append(*audit, Change{Row: tr.Index, Field: f.Name, Before: s, After: f.Default, Rule: RuleFillDefault})
				s = f.Default
			}
			out[f.Name] = s
		}
	}

	return c.deriveFields(tr, out, audit)
}

// deriveFields computes is_cancellation and line_total and applies the
// cancellation repair for negative quantities. A negative quantity on a
// non-cancellation invoice has no defined repair.
func (c *Cleaner) deriveFields(tr Tagged, out records.Record, audit *[]Change) (records.Record, *RejectedRow) {
	invoice := out.String(schema.ColInvoice)
	cancel := hasAnyPrefix(invoice, c.CancellationPrefixes)
	out[schema.ColIsCancellation] = cancel

	qty, hasQty := out[schema.ColQuantity].(int64)
	if hasQty && qty < 0 {
		if !cancel {
			return nil, &RejectedRow{Index: tr.Index, Row: tr.Row, Reason: ReasonConstraint, Field: schema.ColQuantity}
		}
		*audit = append(*audit, Change{
			Row: tr.Index, Field: schema.ColIsCancellation,
			After: true, Rule: RuleCancellation,
		})
	}

	if price, hasPrice := out[schema.ColPrice].(float64); hasQty && hasPrice {
		out[schema.ColLineTotal] = roundHalfEven2(float64(qty) * price)
	}

	out[records.CleanedKey] = true
	return out, nil
}

// roundHalfEven2 rounds to 2 decimal places using banker's rounding; the
// policy is load-bearing for line_total and pinned by tests.
func roundHalfEven2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
