// Package records defines the untyped row representation shared by the
// parser, transformers, planner, and storage loader.
package records

import (
	"fmt"
	"strconv"
	"time"
)

// Record is a single row keyed by canonical column name. Values are untyped
// at ingress (strings or nil from the CSV parser) and become typed during
// cleaning. Records are mutated in place only by the cleaner; all other
// stages treat them as read-only.
type Record map[string]any

// CleanedKey marks a record that already passed through the cleaner. It is
// an internal bookkeeping key, never part of any storage column list.
const CleanedKey = "_cleaned"

// Cleaned reports whether the record carries the cleaned marker.
func (r Record) Cleaned() bool {
	v, ok := r[CleanedKey]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the value for key converted to its string form, or "" when
// absent or nil. Conversion avoids fmt.Sprint for the common scalar types.
func (r Record) String(key string) string {
	return AsString(r[key])
}

// Time returns the value for key when it is a time.Time.
func (r Record) Time(key string) (time.Time, bool) {
	t, ok := r[key].(time.Time)
	return t, ok
}

// AsString converts common value types to string without incurring the
// overhead of fmt.Sprint; falls back to fmt.Sprint for uncommon types.
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
