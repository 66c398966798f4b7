package transformer

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Coercion is split into a strict form (the value is already in the column's
// semantic type, modulo a plain parse) and a lenient form (a deterministic
// repair exists: locale decimal separators, embedded spaces, alternate date
// layouts). Strict failure with lenient success is what the validator tags
// as type_mismatch; failure of both is uncoercible.

// defaultDateLayouts are tried, in order, by the lenient date coercion when
// the field layout and ISO forms fail. The slash layouts cover the export
// format of the original dataset.
var defaultDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"02.01.2006",
}

func strictInteger(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if t == math.Trunc(t) {
			return int64(t), true
		}
		return 0, false
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func lenientInteger(v any) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	// Accept decimal renderings of whole numbers ("5.0", "5,0").
	if f, ok := lenientDecimalString(s); ok && f == math.Trunc(f) {
		return int64(f), true
	}
	return 0, false
}

func strictDecimal(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

func lenientDecimal(v any) (float64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	return lenientDecimalString(strings.TrimSpace(s))
}

// lenientDecimalString parses a numeric string that may use a comma decimal
// separator or embedded grouping spaces.
func lenientDecimalString(s string) (float64, bool) {
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// strictDate accepts time.Time values and strings in the field layout (when
// declared) or ISO date form.
func strictDate(v any, fieldLayout string) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		if fieldLayout != "" {
			if ts, err := time.Parse(fieldLayout, t); err == nil {
				return ts, true
			}
		}
		if ts, err := time.Parse("2006-01-02 15:04:05", t); err == nil {
			return ts, true
		}
		if ts, err := time.Parse("2006-01-02", t); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// lenientDate walks the extra layouts after trimming.
func lenientDate(v any, extraLayouts []string) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	layouts := extraLayouts
	if len(layouts) == 0 {
		layouts = defaultDateLayouts
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
