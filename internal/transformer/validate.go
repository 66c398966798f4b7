package transformer

import (
	"regexp"
	"strings"
	"sync"

	"retailetl/internal/schema"
	"retailetl/pkg/records"
)

// Validator classifies a batch of rows against a schema contract. It
// precomputes per-field metadata (enum sets, compiled patterns) once and
// never mutates rows, so re-validation is deterministic.
type Validator struct {
	Contract schema.Contract

	// CancellationPrefixes are invoice prefixes that mark reversal rows;
	// a negative quantity on such an invoice has a defined repair.
	CancellationPrefixes []string

	// AdjustmentPrefixes are invoice prefixes for manual adjustments; these
	// rows have no defined repair and are rejected.
	AdjustmentPrefixes []string

	// DateLayouts optionally overrides the lenient date layouts.
	DateLayouts []string

	metaOnce sync.Once
	meta     []fieldMeta
}

type fieldMeta struct {
	field   schema.Field
	enumSet map[string]struct{}
	pattern *regexp.Regexp
}

func (v *Validator) buildMeta() {
	v.metaOnce.Do(func() {
		v.meta = make([]fieldMeta, 0, len(v.Contract.Fields))
		for _, f := range v.Contract.Fields {
			m := fieldMeta{field: f}
			if len(f.Enum) > 0 {
				m.enumSet = make(map[string]struct{}, len(f.Enum))
				for _, e := range f.Enum {
					m.enumSet[e] = struct{}{}
				}
			}
			if f.Pattern != "" {
				// Registry validation already compiled this once.
				m.pattern = regexp.MustCompile(f.Pattern)
			}
			v.meta = append(v.meta, m)
		}
	})
}

// Validate tags every row in the batch. Rules apply in order, first match
// wins: missing required, failed coercion, constraint violation, duplicate
// natural key, valid. A later occurrence of a surviving row's natural key
// is always tagged intra_batch_duplicate so that the cleaner keeps exactly
// one occurrence.
func (v *Validator) Validate(rows []records.Record) []Tagged {
	v.buildMeta()
	out := make([]Tagged, 0, len(rows))
	seen := make(map[uint64]struct{}, len(rows))

	for i, r := range rows {
		verdict := v.classify(r)
		if verdict.Code != Rejected {
			if key, ok := NaturalKey(r); ok {
				if _, dup := seen[key]; dup {
					verdict = Verdict{Code: Repairable, Reason: ReasonDuplicate}
				} else {
					seen[key] = struct{}{}
				}
			}
		}
		out = append(out, Tagged{Index: i, Row: r, Verdict: verdict})
	}
	return out
}

// classify applies rules 1-3 to a single row.
func (v *Validator) classify(r records.Record) Verdict {
	// Rule 1: required column missing.
	for i := range v.meta {
		f := v.meta[i].field
		if f.Required && isEmpty(r[f.Name]) {
			return Verdict{Code: Rejected, Reason: ReasonMissingRequired, Field: f.Name}
		}
	}

	// Rule 2: semantic-type coercion. Any uncoercible value rejects the row;
	// otherwise the first value needing lenient coercion makes it repairable.
	var repairable *Verdict
	for i := range v.meta {
		f := v.meta[i].field
		val := r[f.Name]
		if isEmpty(val) {
			continue
		}
		strictOK, lenientOK := v.coercible(f, val)
		if strictOK {
			continue
		}
		if !lenientOK {
			return Verdict{Code: Rejected, Reason: ReasonUncoercible, Field: f.Name}
		}
		if repairable == nil {
			repairable = &Verdict{Code: Repairable, Reason: ReasonTypeMismatch, Field: f.Name}
		}
	}
	if repairable != nil {
		return *repairable
	}

	// Rule 3: declared constraints on the coerced values.
	for i := range v.meta {
		m := v.meta[i]
		f := m.field
		val := r[f.Name]
		if isEmpty(val) {
			continue
		}
		if verdict, violated := v.checkConstraint(m, val, r); violated {
			return verdict
		}
	}

	return Verdict{Code: Valid}
}

// coercible reports (strict, lenient) coercion success for a value.
func (v *Validator) coercible(f schema.Field, val any) (bool, bool) {
	switch f.Type {
	case schema.TypeInteger:
		if _, ok := strictInteger(val); ok {
			return true, true
		}
		_, ok := lenientInteger(val)
		return false, ok
	case schema.TypeDecimal:
		if _, ok := strictDecimal(val); ok {
			return true, true
		}
		_, ok := lenientDecimal(val)
		return false, ok
	case schema.TypeDate:
		if _, ok := strictDate(val, f.Layout); ok {
			return true, true
		}
		_, ok := lenientDate(val, v.DateLayouts)
		return false, ok
	default:
		// string and enum accept any scalar; enum membership is a constraint.
		return true, true
	}
}

// checkConstraint evaluates range / pattern / enum constraints plus the
// adjustment-invoice rule. The verdict is Repairable when a deterministic
// repair exists for the violation, Rejected otherwise.
func (v *Validator) checkConstraint(m fieldMeta, val any, r records.Record) (Verdict, bool) {
	f := m.field

	if f.HasRange() {
		num, ok := v.numericValue(f, val)
		if ok {
			below := f.Min != nil && num < *f.Min
			above := f.Max != nil && num > *f.Max
			if below || above {
				if v.rangeRepairExists(f, num, r) {
					return Verdict{Code: Repairable, Reason: ReasonConstraint, Field: f.Name}, true
				}
				return Verdict{Code: Rejected, Reason: ReasonConstraint, Field: f.Name}, true
			}
		}
	}

	if m.pattern != nil {
		if s := strings.TrimSpace(records.AsString(val)); s != "" && !m.pattern.MatchString(s) {
			return Verdict{Code: Rejected, Reason: ReasonConstraint, Field: f.Name}, true
		}
	}

	if m.enumSet != nil {
		if _, ok := m.enumSet[strings.TrimSpace(records.AsString(val))]; !ok {
			if f.Default != "" {
				return Verdict{Code: Repairable, Reason: ReasonConstraint, Field: f.Name}, true
			}
			return Verdict{Code: Rejected, Reason: ReasonConstraint, Field: f.Name}, true
		}
	}

	// Adjustment invoices pass the pattern but have no defined repair.
	if f.Name == schema.ColInvoice && hasAnyPrefix(records.AsString(val), v.AdjustmentPrefixes) {
		return Verdict{Code: Rejected, Reason: ReasonConstraint, Field: f.Name}, true
	}

	return Verdict{}, false
}

func (v *Validator) numericValue(f schema.Field, val any) (float64, bool) {
	switch f.Type {
	case schema.TypeInteger:
		if n, ok := strictInteger(val); ok {
			return float64(n), true
		}
		if n, ok := lenientInteger(val); ok {
			return float64(n), true
		}
	case schema.TypeDecimal:
		if n, ok := strictDecimal(val); ok {
			return n, true
		}
		if n, ok := lenientDecimal(val); ok {
			return n, true
		}
	}
	return 0, false
}

// rangeRepairExists reports whether a deterministic repair is defined for an
// out-of-range value: decimals clamp to the declared floor/ceiling, and a
// negative quantity on a cancellation invoice is retained as a reversal.
func (v *Validator) rangeRepairExists(f schema.Field, num float64, r records.Record) bool {
	if f.Type == schema.TypeDecimal {
		return true
	}
	if f.Name == schema.ColQuantity && num < 0 {
		return hasAnyPrefix(strings.TrimSpace(r.String(schema.ColInvoice)), v.CancellationPrefixes)
	}
	return false
}

// isEmpty treats nil and blank strings as absent values.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
