// Package config defines the canonical, JSON-serializable configuration model
// for the retail ETL application. It is intentionally small, explicit, and
// dependency-free so that pipelines can be loaded from disk (or other sources)
// and passed through the program without additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in pipeline
//     files under configs/pipelines/*.json.
//  3. Minimalism: No third-party config libraries; decoding is performed by the
//     standard library, with a light Options helper for typed access.
//
// Example (trimmed):
//
//	{
//	  "job":      "online-retail",
//	  "source":   { "kind": "file", "file": { "path": "online_retail.csv" } },
//	  "parser":   { "kind": "csv", "options": { "has_header": true, "encoding": "windows-1252" } },
//	  "cleaning": { "cancellation_prefixes": ["C"], "adjustment_prefixes": ["A"] },
//	  "load":     { "mode": "incremental" },
//	  "storage":  { "kind": "mysql", "db": { "dsn": "...", "table": "transactions" } }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Pipeline describes one full clean-validate-load run in JSON. It is the
// top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run for logging and metrics labeling.
	Job string `json:"job"`

	// Source describes where raw transaction data comes from.
	Source Source `json:"source"`

	// Parser configures how raw bytes become records (e.g., CSV).
	Parser Parser `json:"parser"`

	// Schema optionally points at a contract file. When empty, the built-in
	// online-retail contract is used.
	Schema SchemaConfig `json:"schema"`

	// Cleaning tunes the validator and cleaner.
	Cleaning CleaningConfig `json:"cleaning"`

	// Load selects the load strategy against the destination.
	Load LoadConfig `json:"load"`

	// Storage describes where cleaned rows are written.
	Storage Storage       `json:"storage"`
	Runtime RuntimeConfig `json:"runtime"`
	Metrics MetricsConfig `json:"metrics"`
}

// SchemaConfig locates the schema contract.
type SchemaConfig struct {
	// Path is a JSON contract file. Empty means the built-in contract.
	Path string `json:"path"`
}

// CleaningConfig carries the knobs the validator and cleaner share.
type CleaningConfig struct {
	// CancellationPrefixes are invoice prefixes marking reversal rows.
	// Defaults to ["C"] when empty.
	CancellationPrefixes []string `json:"cancellation_prefixes"`

	// AdjustmentPrefixes are invoice prefixes for manual adjustments, which
	// are rejected. Defaults to ["A"] when empty.
	AdjustmentPrefixes []string `json:"adjustment_prefixes"`

	// UppercaseFields lists string columns normalized to upper case.
	UppercaseFields []string `json:"uppercase_fields"`

	// DateLayouts overrides the lenient date layouts tried during coercion.
	DateLayouts []string `json:"date_layouts"`

	// ReportPath, when set, is where the run writes its cleaning stats and
	// audit trail as JSON.
	ReportPath string `json:"report_path"`
}

// LoadConfig selects the load strategy.
type LoadConfig struct {
	// Mode is "incremental" (default) or "full".
	Mode string `json:"mode"`
}

// MetricsConfig selects the metrics backend. An empty kind is a no-op.
type MetricsConfig struct {
	// Kind selects the backend: "pushgateway" or "datadog".
	Kind string `json:"kind"`

	// Pushgateway carries options for the "pushgateway" kind.
	Pushgateway PushgatewayConfig `json:"pushgateway"`

	// Datadog carries options for the "datadog" kind.
	Datadog DatadogConfig `json:"datadog"`
}

// PushgatewayConfig configures the Prometheus Pushgateway backend.
type PushgatewayConfig struct {
	URL string `json:"url"`
	Job string `json:"job"`
}

// DatadogConfig configures the DogStatsD backend.
type DatadogConfig struct {
	// Addr is the DogStatsD address, e.g. "127.0.0.1:8125".
	Addr string `json:"addr"`

	// Namespace is an optional prefix added to all metric names.
	Namespace string `json:"namespace"`
}

// RuntimeConfig controls concurrency, batching, and channel buffer sizes.
type RuntimeConfig struct {
	LoaderWorkers int `json:"loader_workers"`
	BatchSize     int `json:"batch_size"`
	ChannelBuffer int `json:"channel_buffer"`
}

// Source identifies the data source. Additional kinds can be added over time.
type Source struct {
	// Kind selects the source implementation: "file" or "http".
	Kind string `json:"kind"`

	// File carries options for the "file" source kind.
	File SourceFile `json:"file"`

	// HTTP carries options for the "http" source kind.
	HTTP SourceHTTP `json:"http"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	// Path is the local filesystem path to the input file.
	Path string `json:"path"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	// URL is the location of the input file.
	URL string `json:"url"`

	// TimeoutSeconds bounds a single request attempt. Zero means the
	// client default.
	TimeoutSeconds int `json:"timeout_seconds"`

	// Retries is the number of re-attempts after a failed request.
	Retries int `json:"retries"`
}

// Parser selects how to parse the raw source into logical rows/columns.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind"`

	// Options is a free-form map interpreted by the parser implementation.
	// For CSV, typical keys include:
	//   has_header (bool), comma (string), trim_space (bool),
	//   encoding (string), expected_fields (int), header_map (object)
	Options Options `json:"options"`
}

// Storage selects the sink used to persist cleaned records.
type Storage struct {
	// Kind selects the storage backend: "mysql", "postgres", "mssql",
	// or "sqlite".
	Kind string `json:"kind"`

	// DB carries the backend-agnostic connection settings.
	DB DBConfig `json:"db"`
}

// DBConfig configures the DB sink shared across backends.
type DBConfig struct {
	// DSN is the backend's connection string.
	DSN string `json:"dsn"`

	// Table is the destination table name (e.g., "transactions").
	Table string `json:"table"`

	// Columns enumerates the destination columns in COPY/INSERT order.
	// Empty means the canonical transaction column list.
	Columns []string `json:"columns"`

	// AutoCreateTable bootstraps the destination table from the registered
	// DDL when it does not exist yet.
	AutoCreateTable bool `json:"auto_create_table"`
}

// LoadFile reads and decodes a pipeline file.
func LoadFile(path string) (Pipeline, error) {
	var p Pipeline
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read pipeline config: %w", err)
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("decode pipeline config %s: %w", path, err)
	}
	return p, nil
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It purposefully
// performs only minimal type coercion and returns provided defaults when a key
// is absent or of an unexpected type.
//
// Options is used for parser-specific configuration where the shape varies by
// implementation.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
// If the value is neither float64 nor int, def is returned.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. This is useful for single-character parser settings such as
// a CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored. Returns an empty map
// when the key is missing or the value is not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of strings
// (or an array of interface values containing strings). Returns nil when the
// key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key (which may itself be a nested
// map[string]any, []any, or primitive). This is useful for retrieving nested
// configuration blocks that will be unmarshaled into a typed struct by the
// caller.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null "options"
// object in JSON decodes to a non-nil, empty Options map. This simplifies call
// sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
