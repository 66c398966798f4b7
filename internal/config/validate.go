// Package config provides configuration models and helpers for ETL pipelines.
//
// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "cleaning.cancellation_prefixes"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateCleaning(p.Cleaning)...)
	issues = append(issues, validateLoad(p.Load)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateMetrics(p.Metrics)...)

	return issues
}

// validateSource validates Source configuration.
func validateSource(s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
		return issues
	}

	// Unknown kinds are warnings for forward compatibility.
	known := map[string]struct{}{
		"file": {},
		"http": {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; ensure a matching implementation exists", s.Kind),
		})
	}

	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a non-empty path",
			})
		}
	case "http":
		if strings.TrimSpace(s.HTTP.URL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.url",
				Message:  "http source requires a non-empty url",
			})
		}
		if s.HTTP.Retries < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.retries",
				Message:  "retries must not be negative",
			})
		}
	}

	return issues
}

// validateParser validates parser configuration.
func validateParser(p Parser) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  "parser.kind must not be empty",
		})
		return issues
	}

	if p.Kind != "csv" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unknown parser kind %q; ensure a matching implementation exists", p.Kind),
		})
		return issues
	}

	// Encoding names are resolved at parser construction; lint the obvious
	// ones here so typos fail before a run starts.
	if enc := p.Options.String("encoding", ""); enc != "" {
		known := map[string]struct{}{
			"utf-8": {}, "windows-1252": {}, "latin-1": {}, "iso-8859-1": {},
		}
		if _, ok := known[strings.ToLower(enc)]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options.encoding",
				Message:  fmt.Sprintf("unsupported encoding %q", enc),
			})
		}
	}

	return issues
}

// validateCleaning validates cleaning configuration.
func validateCleaning(c CleaningConfig) []Issue {
	var issues []Issue

	for i, p := range c.CancellationPrefixes {
		if strings.TrimSpace(p) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("cleaning.cancellation_prefixes[%d]", i),
				Message:  "prefix must not be empty",
			})
		}
	}
	for i, p := range c.AdjustmentPrefixes {
		if strings.TrimSpace(p) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("cleaning.adjustment_prefixes[%d]", i),
				Message:  "prefix must not be empty",
			})
		}
	}

	// A prefix in both sets would make the verdict depend on rule order.
	cancel := make(map[string]struct{}, len(c.CancellationPrefixes))
	for _, p := range c.CancellationPrefixes {
		cancel[p] = struct{}{}
	}
	for _, p := range c.AdjustmentPrefixes {
		if _, ok := cancel[p]; ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "cleaning.adjustment_prefixes",
				Message:  fmt.Sprintf("prefix %q is also a cancellation prefix", p),
			})
		}
	}

	return issues
}

// validateLoad validates the load strategy.
func validateLoad(l LoadConfig) []Issue {
	var issues []Issue
	switch l.Mode {
	case "", "incremental", "full":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "load.mode",
			Message:  fmt.Sprintf("unknown load mode %q; expected incremental or full", l.Mode),
		})
	}
	return issues
}

// validateStorage validates storage configuration and DB settings.
func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	}

	known := map[string]struct{}{
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	db := s.DB
	if strings.TrimSpace(db.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(db.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}

	return issues
}

// validateRuntime validates RuntimeConfig for obvious misconfigurations
// (negative values, zero-sized batches, etc.).
func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; non-positive batch sizes fall back to the default", r.BatchSize),
		})
	}
	if r.LoaderWorkers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.loader_workers",
			Message:  "loader_workers must not be negative",
		})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer must not be negative",
		})
	}

	return issues
}

// validateMetrics validates the metrics backend selection.
func validateMetrics(m MetricsConfig) []Issue {
	var issues []Issue

	switch m.Kind {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(m.Pushgateway.URL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway.url",
				Message:  "pushgateway backend requires a non-empty url",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.Datadog.Addr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog.addr",
				Message:  "datadog backend requires a non-empty addr",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.kind",
			Message:  fmt.Sprintf("unknown metrics kind %q", m.Kind),
		})
	}

	return issues
}
