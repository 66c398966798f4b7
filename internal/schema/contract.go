// Package schema defines column contracts for the retail transaction batch
// and loads them from a declarative JSON source.
package schema

import "fmt"

// Semantic type tags accepted in a contract. Anything else is a SchemaError.
const (
	TypeInteger = "integer"
	TypeDecimal = "decimal"
	TypeString  = "string"
	TypeDate    = "date"
	TypeEnum    = "enum"
)

// Field is a single column contract. Immutable once loaded.
type Field struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"` // integer | decimal | string | date | enum
	Required bool     `json:"required,omitempty"`
	Nullable bool     `json:"nullable,omitempty"`
	Default  string   `json:"default,omitempty"` // fill value for missing nullable columns
	Enum     []string `json:"enum,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Pattern  string   `json:"pattern,omitempty"`
	Layout   string   `json:"layout,omitempty"` // field-specific date layout
}

// HasRange reports whether the field declares a numeric range constraint.
func (f Field) HasRange() bool { return f.Min != nil || f.Max != nil }

// Contract is an ordered set of fields, unique by name. Rows downstream may
// only reference columns present here: unknown columns are dropped by the
// cleaner, missing required columns reject the row.
type Contract struct {
	Name      string            `json:"name"`
	Fields    []Field           `json:"fields"`
	HeaderMap map[string]string `json:"header_map,omitempty"`
}

// Field returns the contract field with the given name.
func (c Contract) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Has reports whether name is a contract column.
func (c Contract) Has(name string) bool {
	_, ok := c.Field(name)
	return ok
}

// ColumnNames returns the contract column names in declaration order.
func (c Contract) ColumnNames() []string {
	out := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		out[i] = f.Name
	}
	return out
}

// SchemaError reports a structurally malformed contract. It is fatal: the
// run aborts before any row processing.
type SchemaError struct {
	Column string // offending column, "" for contract-level faults
	Rule   string // which part of the definition is malformed
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema: %s", e.Rule)
	}
	return fmt.Sprintf("schema: column %q: %s", e.Column, e.Rule)
}
