// Package etl wires the full pipeline end-to-end: source → parse → validate
// → clean → plan → load. It depends only on storage-agnostic interfaces and
// never imports database drivers or backend-specific packages directly.
package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"retailetl/internal/config"
	"retailetl/internal/datasource/file"
	"retailetl/internal/datasource/httpds"
	"retailetl/internal/metrics"
	csvparser "retailetl/internal/parser/csv"
	"retailetl/internal/planner"
	"retailetl/internal/schema"
	"retailetl/internal/storage"
	"retailetl/internal/transformer"
	"retailetl/pkg/records"
)

// Options are per-invocation switches layered on top of the pipeline config,
// typically set from CLI flags.
type Options struct {
	// DryRun runs every stage except the database write.
	DryRun bool

	// OnlyClean stops after cleaning: no planner, no storage connection.
	OnlyClean bool

	// FullRefresh forces load.mode=full for this run regardless of config.
	FullRefresh bool
}

// Summary aggregates the counters of one run.
type Summary struct {
	RunID      string `json:"run_id"`
	Job        string `json:"job"`
	Parsed     int    `json:"parsed"`
	ParseSkips int    `json:"parse_skips"`
	Cleaned    int    `json:"cleaned"`
	Rejected   int    `json:"rejected"`
	Duplicates int    `json:"duplicates"`

	// Planner counters; zero when OnlyClean is set.
	Mode      string `json:"mode,omitempty"`
	ToLoad    int    `json:"to_load"`
	Skipped   int    `json:"skipped"`
	Loaded    int64  `json:"loaded"`
	Watermark string `json:"watermark,omitempty"`
}

// runtimeConfig contains the resolved concurrency and buffering configuration
// for a run. Values are derived from the pipeline spec with optional
// environment variable overrides (12-factor style).
type runtimeConfig struct {
	loaderWorkers int
	batchSize     int
	bufferSize    int
}

type Repository = storage.Repository

// Function variables used to introduce test seams.
// In production these point to real implementations; tests can override them.
var (
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (Repository, error) {
		return storage.New(ctx, cfg)
	}

	openSourceFn = openSource
)

// Run executes one pipeline invocation and returns its summary. Stages are
// instrumented individually; a failed stage aborts the run with its error.
func Run(ctx context.Context, spec config.Pipeline, opts Options) (Summary, error) {
	runID := uuid.NewString()
	sum := Summary{RunID: runID, Job: spec.Job}

	log.Printf("run=%s job=%s starting", runID, spec.Job)

	contract, err := loadContract(spec)
	if err != nil {
		return sum, err
	}

	// Parse.
	start := time.Now()
	rows, skipped, err := parseSource(ctx, spec, contract)
	metrics.RecordStep(spec.Job, "parse", err, time.Since(start))
	if err != nil {
		return sum, err
	}
	sum.Parsed = len(rows)
	sum.ParseSkips = skipped
	metrics.RecordRow(spec.Job, "parsed", int64(len(rows)))
	log.Printf("run=%s parsed=%d skipped=%d", runID, len(rows), skipped)

	// Validate + clean.
	start = time.Now()
	cleaned := cleanRows(spec, contract, rows)
	metrics.RecordStep(spec.Job, "clean", nil, time.Since(start))
	sum.Cleaned = cleaned.Stats.CleanedRows
	sum.Rejected = cleaned.Stats.RejectedRows
	sum.Duplicates = cleaned.Stats.DuplicatesDropped
	metrics.RecordRow(spec.Job, "rejected", int64(sum.Rejected))
	metrics.RecordRow(spec.Job, "duplicates", int64(sum.Duplicates))
	log.Printf(
		"run=%s cleaned=%d rejected=%d duplicates=%d transformations=%d rejection_rate=%.4f",
		runID, sum.Cleaned, sum.Rejected, sum.Duplicates,
		cleaned.Stats.Transformations, cleaned.Stats.RejectionRate,
	)

	if p := spec.Cleaning.ReportPath; p != "" {
		if err := writeReport(p, runID, spec.Job, cleaned); err != nil {
			return sum, fmt.Errorf("write cleaning report: %w", err)
		}
		log.Printf("run=%s cleaning report written to %s", runID, p)
	}

	if opts.OnlyClean {
		return sum, flushMetrics(runID)
	}

	// Storage. A dry run still connects so the watermark read and the plan
	// reflect the real destination, but never writes.
	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:  spec.Storage.Kind,
		DSN:   spec.Storage.DB.DSN,
		Table: spec.Storage.DB.Table,
	})
	if err != nil {
		return sum, fmt.Errorf("init repo: %w", err)
	}
	defer repo.Close()

	if spec.Storage.DB.AutoCreateTable && !opts.DryRun {
		if err := storage.EnsureTableFromPipeline(ctx, spec, repo); err != nil {
			return sum, fmt.Errorf("apply DDL: %w", err)
		}
	}

	// Plan.
	start = time.Now()
	plan, err := buildPlan(ctx, spec, opts, repo, cleaned.Rows)
	metrics.RecordStep(spec.Job, "plan", err, time.Since(start))
	if err != nil {
		return sum, err
	}
	sum.Mode = plan.Mode.String()
	sum.ToLoad = len(plan.ToLoad)
	sum.Skipped = len(plan.Skipped)
	metrics.RecordRow(spec.Job, "skipped", int64(sum.Skipped))
	log.Printf(
		"run=%s mode=%s to_load=%d skipped=%d next_watermark=(%s, %s)",
		runID, sum.Mode, sum.ToLoad, sum.Skipped,
		plan.Next.Timestamp.Format(transformer.CanonicalDateLayout), plan.Next.Invoice,
	)

	if opts.DryRun {
		log.Printf("run=%s dry-run: skipping load of %d rows", runID, sum.ToLoad)
		return sum, flushMetrics(runID)
	}

	// Load.
	start = time.Now()
	loaded, err := loadRows(ctx, spec, repo, plan.ToLoad)
	metrics.RecordStep(spec.Job, "load", err, time.Since(start))
	sum.Loaded = loaded
	metrics.RecordRow(spec.Job, "loaded", loaded)
	if err != nil {
		return sum, fmt.Errorf("load: %w", err)
	}
	if sum.ToLoad > 0 {
		sum.Watermark = plan.Next.Timestamp.Format(transformer.CanonicalDateLayout) + " " + plan.Next.Invoice
	}
	log.Printf("run=%s loaded=%d", runID, loaded)

	return sum, flushMetrics(runID)
}

// loadContract resolves the schema contract for the run.
func loadContract(spec config.Pipeline) (schema.Contract, error) {
	if p := spec.Schema.Path; p != "" {
		return schema.LoadFile(p)
	}
	return schema.DefaultContract(), nil
}

// parseSource opens the configured source and parses it into records. The
// contract's header map backs the parser unless the pipeline overrides it.
func parseSource(ctx context.Context, spec config.Pipeline, contract schema.Contract) ([]records.Record, int, error) {
	src, err := openSourceFn(ctx, spec)
	if err != nil {
		return nil, 0, fmt.Errorf("source open: %w", err)
	}
	defer src.Close()

	if spec.Parser.Kind != "csv" {
		return nil, 0, fmt.Errorf("unsupported parser.kind=%s", spec.Parser.Kind)
	}

	headerMap := spec.Parser.Options.StringMap("header_map")
	if len(headerMap) == 0 {
		headerMap = contract.HeaderMap
	}
	p := csvparser.NewParser(csvparser.Options{
		HasHeader:      spec.Parser.Options.Bool("has_header", true),
		Comma:          spec.Parser.Options.Rune("comma", ','),
		TrimSpace:      spec.Parser.Options.Bool("trim_space", true),
		ExpectedFields: spec.Parser.Options.Int("expected_fields", 0),
		Encoding:       spec.Parser.Options.String("encoding", ""),
		HeaderMap:      headerMap,
	})
	return p.Parse(src)
}

// cleanRows runs the validator and cleaner over the parsed batch.
func cleanRows(spec config.Pipeline, contract schema.Contract, rows []records.Record) transformer.Result {
	cancel := spec.Cleaning.CancellationPrefixes
	if len(cancel) == 0 {
		cancel = []string{"C"}
	}
	adjust := spec.Cleaning.AdjustmentPrefixes
	if len(adjust) == 0 {
		adjust = []string{"A"}
	}

	v := &transformer.Validator{
		Contract:             contract,
		CancellationPrefixes: cancel,
		AdjustmentPrefixes:   adjust,
		DateLayouts:          spec.Cleaning.DateLayouts,
	}
	c := &transformer.Cleaner{
		Contract:             contract,
		CancellationPrefixes: cancel,
		DateLayouts:          spec.Cleaning.DateLayouts,
		UppercaseFields:      spec.Cleaning.UppercaseFields,
	}
	return c.Clean(v.Validate(rows))
}

// buildPlan reads the destination watermark and derives the load plan.
func buildPlan(
	ctx context.Context,
	spec config.Pipeline,
	opts Options,
	repo Repository,
	rows []records.Record,
) (planner.Plan, error) {
	mode := planner.Incremental
	if opts.FullRefresh || spec.Load.Mode == "full" {
		mode = planner.Full
	}

	current := planner.Watermark{}
	ts, invoice, ok, err := repo.ReadWatermark(ctx, spec.Storage.DB.Table)
	if err != nil {
		return planner.Plan{}, fmt.Errorf("read watermark: %w", err)
	}
	if ok {
		current = planner.Watermark{Timestamp: ts, Invoice: invoice}
		log.Printf(
			"watermark: (%s, %s)",
			ts.Format(transformer.CanonicalDateLayout), invoice,
		)
	} else {
		log.Printf("watermark: none (empty destination), loading full batch")
	}

	return planner.Build(rows, current, mode), nil
}

// loadRows fans admitted rows through the batched loader. Loader workers
// share one input channel; one writer per table is usually best, but the
// worker count is configurable for backends that tolerate it.
func loadRows(ctx context.Context, spec config.Pipeline, repo Repository, rows []records.Record) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	rt := newRuntimeConfig(spec)
	columns := spec.Storage.DB.Columns
	if len(columns) == 0 {
		columns = schema.TransactionColumns()
	}
	log.Printf(
		"load runtime: loaders=%d batch=%d buffer=%d columns=%d",
		rt.loaderWorkers, rt.batchSize, rt.bufferSize, len(columns),
	)

	in := make(chan []any, rt.bufferSize)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(in)
		for _, rec := range rows {
			select {
			case in <- storage.RowValues(rec, columns):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	var total int64
	totals := make(chan int64, rt.loaderWorkers)
	for i := 0; i < rt.loaderWorkers; i++ {
		g.Go(func() error {
			n, err := storage.LoadBatches(ctx, columns, in, rt.batchSize, repo.CopyFrom)
			totals <- n
			return err
		})
	}

	err := g.Wait()
	close(totals)
	for n := range totals {
		total += n
	}
	metrics.RecordBatches(spec.Job, (total+int64(rt.batchSize)-1)/int64(rt.batchSize))
	return total, err
}

// report is the JSON document written to cleaning.report_path.
type report struct {
	RunID       string                    `json:"run_id"`
	Job         string                    `json:"job"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Stats       transformer.Stats         `json:"stats"`
	Audit       []transformer.Change      `json:"audit"`
	Rejected    []transformer.RejectedRow `json:"rejected"`
}

// writeReport persists the cleaning stats, audit trail, and rejected rows.
func writeReport(path, runID, job string, res transformer.Result) error {
	doc := report{
		RunID:       runID,
		Job:         job,
		GeneratedAt: time.Now().UTC(),
		Stats:       res.Stats,
		Audit:       res.Audit,
		Rejected:    res.Rejected,
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// flushMetrics pushes buffered metrics; failures are logged, not fatal.
func flushMetrics(runID string) error {
	if err := metrics.Flush(); err != nil {
		log.Printf("run=%s metrics flush: %v", runID, err)
	}
	return nil
}

// openSource maps source configuration onto a concrete datasource.
func openSource(ctx context.Context, spec config.Pipeline) (io.ReadCloser, error) {
	switch spec.Source.Kind {
	case "file":
		return file.NewLocal(spec.Source.File.Path).Open(ctx)
	case "http":
		client := httpds.NewClient(httpds.Config{
			Timeout:    time.Duration(spec.Source.HTTP.TimeoutSeconds) * time.Second,
			MaxRetries: spec.Source.HTTP.Retries,
		})
		return httpds.NewRemote(client, spec.Source.HTTP.URL).Open(ctx)
	default:
		return nil, fmt.Errorf("unsupported source.kind=%s", spec.Source.Kind)
	}
}

// newRuntimeConfig resolves the runtime configuration for a run using the
// pipeline spec and environment-variable fallbacks.
func newRuntimeConfig(spec config.Pipeline) runtimeConfig {
	return runtimeConfig{
		loaderWorkers: pickInt(spec.Runtime.LoaderWorkers, getenvInt("ETL_LOADER_WORKERS", 1)),
		batchSize:     pickInt(spec.Runtime.BatchSize, getenvInt("ETL_BATCH_SIZE", 10000)),
		bufferSize:    pickInt(spec.Runtime.ChannelBuffer, getenvInt("ETL_CH_BUFFER", 4096)),
	}
}

// getenvInt reads an int from environment, returning def when unset/invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
