package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Load reads a contract from a declarative JSON source and verifies its
// structure. Pure beyond the read: no side effects, no row processing.
func Load(r io.Reader) (Contract, error) {
	var c Contract
	dec := json.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return Contract{}, fmt.Errorf("schema: decode contract: %w", err)
	}
	if err := check(c); err != nil {
		return Contract{}, err
	}
	return c, nil
}

// LoadFile opens path and delegates to Load.
func LoadFile(path string) (Contract, error) {
	f, err := os.Open(path)
	if err != nil {
		return Contract{}, fmt.Errorf("schema: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// check enforces the structural invariants of a contract. Violations are
// returned as *SchemaError naming the column and rule.
func check(c Contract) error {
	if len(c.Fields) == 0 {
		return &SchemaError{Rule: "contract has no fields"}
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for _, f := range c.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return &SchemaError{Rule: "field with empty name"}
		}
		if _, dup := seen[f.Name]; dup {
			return &SchemaError{Column: f.Name, Rule: "duplicate column name"}
		}
		seen[f.Name] = struct{}{}

		switch f.Type {
		case TypeInteger, TypeDecimal, TypeString, TypeDate, TypeEnum:
		default:
			return &SchemaError{Column: f.Name, Rule: fmt.Sprintf("unknown semantic type %q", f.Type)}
		}
		if f.Type == TypeEnum && len(f.Enum) == 0 {
			return &SchemaError{Column: f.Name, Rule: "enum type without allowed values"}
		}
		if f.Type != TypeEnum && len(f.Enum) > 0 {
			return &SchemaError{Column: f.Name, Rule: "enum values on non-enum type"}
		}
		if f.HasRange() && f.Type != TypeInteger && f.Type != TypeDecimal {
			return &SchemaError{Column: f.Name, Rule: "range constraint on non-numeric type"}
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return &SchemaError{Column: f.Name, Rule: "min greater than max"}
		}
		if f.Pattern != "" {
			if _, err := regexp.Compile(f.Pattern); err != nil {
				return &SchemaError{Column: f.Name, Rule: fmt.Sprintf("invalid pattern: %v", err)}
			}
		}
		if f.Required && !f.Nullable && f.Default != "" {
			// A required column with a default would make "missing_required"
			// unreachable; defaults belong on nullable columns.
			return &SchemaError{Column: f.Name, Rule: "default on required non-nullable column"}
		}
	}
	return nil
}
