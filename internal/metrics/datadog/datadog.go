// Package datadog forwards run metrics to a Datadog agent over DogStatsD.
//
// Labels become Datadog tags ("step:load", "kind:rejected") and the counter
// and duration metrics keep the same names the pipeline records everywhere
// else, so dashboards can switch between this backend and the Pushgateway one
// without renaming anything. Only this package imports the statsd client.
package datadog

import (
	"fmt"

	"retailetl/internal/metrics"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Config holds Datadog backend configuration.
type Config struct {
	// Addr is the DogStatsD address, e.g. "127.0.0.1:8125" or
	// "unix:///var/run/datadog/dsd.socket".
	Addr string

	// Namespace is an optional prefix added to all metric names,
	// e.g. "retail.".
	Namespace string

	// GlobalTags are applied to every metric emitted by this backend,
	// e.g. []string{"env:prod", "service:retail-etl"}.
	GlobalTags []string
}

// Backend implements metrics.Backend over a DogStatsD client. One instance
// is installed process-wide via metrics.SetBackend.
type Backend struct {
	client *statsd.Client
}

// NewBackend dials the configured agent. Addr is required.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}

	var opts []statsd.Option
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}

	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}

	return &Backend{client: c}, nil
}

// IncCounter emits a Datadog Count.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	// DogStatsD counts are integral; row and batch deltas always are.
	b.client.Count(name, int64(delta), labelsToTags(labels), 1)
}

// ObserveHistogram emits a Datadog Histogram, used for step durations.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	b.client.Histogram(name, value, labelsToTags(labels), 1)
}

// Flush closes the client, which drains anything still buffered. The runner
// calls it once at the end of a run.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// labelsToTags converts labels into "key:value" tag strings.
func labelsToTags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, fmt.Sprintf("%s:%s", k, v))
	}
	return out
}
