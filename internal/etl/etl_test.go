package etl

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"retailetl/internal/config"
	"retailetl/internal/storage"
)

// fakeRepo captures CopyFrom calls and serves a configurable watermark.
type fakeRepo struct {
	watermarkTS      time.Time
	watermarkInvoice string
	hasWatermark     bool

	copiedColumns []string
	copiedRows    [][]any
	execs         []string
	closed        bool
}

func (f *fakeRepo) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	f.copiedColumns = columns
	f.copiedRows = append(f.copiedRows, rows...)
	return int64(len(rows)), nil
}

func (f *fakeRepo) Exec(ctx context.Context, sql string) error {
	f.execs = append(f.execs, sql)
	return nil
}

func (f *fakeRepo) ReadWatermark(ctx context.Context, table string) (time.Time, string, bool, error) {
	return f.watermarkTS, f.watermarkInvoice, f.hasWatermark, nil
}

func (f *fakeRepo) Close() { f.closed = true }

// installFakeRepo swaps the repository seam for the test's lifetime.
func installFakeRepo(t *testing.T, repo *fakeRepo) {
	t.Helper()
	orig := newRepositoryFn
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (Repository, error) {
		return repo, nil
	}
	t.Cleanup(func() { newRepositoryFn = orig })
}

const sampleCSV = `Invoice,StockCode,Description,Quantity,InvoiceDate,Price,Customer ID,Country
1001,85123A,WHITE HEART HOLDER,5,2010-12-01 08:26:00,2.50,17850,United Kingdom
C1002,22728,ALARM CLOCK BAKELIKE,-3,2010-12-01 09:41:00,1.00,17850,France
1001,85123A,WHITE HEART HOLDER,5,2010-12-01 08:26:00,2.50,17850,United Kingdom
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "retail.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func samplePipeline(path string) config.Pipeline {
	return config.Pipeline{
		Job:    "retail-test",
		Source: config.Source{Kind: "file", File: config.SourceFile{Path: path}},
		Parser: config.Parser{Kind: "csv", Options: config.Options{}},
		Storage: config.Storage{
			Kind: "postgres",
			DB:   config.DBConfig{DSN: "unused", Table: "transactions"},
		},
		Runtime: config.RuntimeConfig{BatchSize: 2, LoaderWorkers: 1},
	}
}

/*
TestRun_EndToEnd drives the whole pipeline over a three-row export: one plain
sale, one cancellation with a negative quantity, and an exact duplicate of the
first row. The duplicate is dropped, the cancellation is retained, and both
surviving rows reach the repository in column order.
*/
func TestRun_EndToEnd(t *testing.T) {
	repo := &fakeRepo{}
	installFakeRepo(t, repo)

	spec := samplePipeline(writeSample(t))
	sum, err := Run(context.Background(), spec, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Parsed != 3 {
		t.Errorf("Parsed = %d, want 3", sum.Parsed)
	}
	if sum.Cleaned != 2 {
		t.Errorf("Cleaned = %d, want 2", sum.Cleaned)
	}
	if sum.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", sum.Duplicates)
	}
	if sum.Rejected != 0 {
		t.Errorf("Rejected = %d, want 0", sum.Rejected)
	}
	if sum.ToLoad != 2 || sum.Loaded != 2 {
		t.Errorf("ToLoad/Loaded = %d/%d, want 2/2", sum.ToLoad, sum.Loaded)
	}
	if !repo.closed {
		t.Errorf("repository was not closed")
	}

	if len(repo.copiedRows) != 2 {
		t.Fatalf("repo received %d rows, want 2", len(repo.copiedRows))
	}
	if len(repo.copiedColumns) != 11 {
		t.Fatalf("repo received %d columns, want 11", len(repo.copiedColumns))
	}

	// Column order is the canonical transaction list; spot-check the first row.
	byName := map[string]any{}
	for i, c := range repo.copiedColumns {
		byName[c] = repo.copiedRows[0][i]
	}
	if got := byName["country"]; got != "UNITED KINGDOM" {
		t.Errorf("country = %v, want UNITED KINGDOM", got)
	}
	if got := byName["line_total"]; got != 12.50 {
		t.Errorf("line_total = %v, want 12.50", got)
	}
	if got := byName["is_cancellation"]; got != false {
		t.Errorf("is_cancellation = %v, want false", got)
	}

	// Second row is the cancellation: negative quantity retained.
	for i, c := range repo.copiedColumns {
		byName[c] = repo.copiedRows[1][i]
	}
	if got := byName["invoice"]; got != "C1002" {
		t.Errorf("invoice = %v, want C1002", got)
	}
	if got := byName["quantity"]; got != int64(-3) {
		t.Errorf("quantity = %v (%T), want int64(-3)", got, got)
	}
	if got := byName["is_cancellation"]; got != true {
		t.Errorf("is_cancellation = %v, want true", got)
	}
}

/*
TestRun_IncrementalSkipsBehindWatermark seeds the fake destination with a
watermark equal to the first row's (invoice_date, invoice) pair; only the
strictly greater cancellation row ships.
*/
func TestRun_IncrementalSkipsBehindWatermark(t *testing.T) {
	repo := &fakeRepo{
		watermarkTS:      time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC),
		watermarkInvoice: "1001",
		hasWatermark:     true,
	}
	installFakeRepo(t, repo)

	spec := samplePipeline(writeSample(t))
	sum, err := Run(context.Background(), spec, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.ToLoad != 1 || sum.Skipped != 1 {
		t.Fatalf("ToLoad/Skipped = %d/%d, want 1/1", sum.ToLoad, sum.Skipped)
	}
	if len(repo.copiedRows) != 1 {
		t.Fatalf("repo received %d rows, want 1", len(repo.copiedRows))
	}
}

/*
TestRun_FullRefreshLoadsEverything forces full mode over the same seeded
watermark; both surviving rows ship.
*/
func TestRun_FullRefreshLoadsEverything(t *testing.T) {
	repo := &fakeRepo{
		watermarkTS:      time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC),
		watermarkInvoice: "1001",
		hasWatermark:     true,
	}
	installFakeRepo(t, repo)

	spec := samplePipeline(writeSample(t))
	sum, err := Run(context.Background(), spec, Options{FullRefresh: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Mode != "full" {
		t.Errorf("Mode = %q, want full", sum.Mode)
	}
	if sum.ToLoad != 2 || sum.Loaded != 2 {
		t.Fatalf("ToLoad/Loaded = %d/%d, want 2/2", sum.ToLoad, sum.Loaded)
	}
}

/*
TestRun_DryRunNeverWrites plans against the live watermark but skips the load.
*/
func TestRun_DryRunNeverWrites(t *testing.T) {
	repo := &fakeRepo{}
	installFakeRepo(t, repo)

	spec := samplePipeline(writeSample(t))
	sum, err := Run(context.Background(), spec, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.ToLoad != 2 {
		t.Errorf("ToLoad = %d, want 2", sum.ToLoad)
	}
	if sum.Loaded != 0 || len(repo.copiedRows) != 0 {
		t.Fatalf("dry run wrote %d rows", len(repo.copiedRows))
	}
}

/*
TestRun_OnlyCleanWritesReport stops after cleaning and persists the report
with stats, audit, and rejected rows.
*/
func TestRun_OnlyCleanWritesReport(t *testing.T) {
	repo := &fakeRepo{}
	installFakeRepo(t, repo)

	spec := samplePipeline(writeSample(t))
	spec.Cleaning.ReportPath = filepath.Join(t.TempDir(), "report.json")

	sum, err := Run(context.Background(), spec, Options{OnlyClean: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Loaded != 0 || len(repo.copiedRows) != 0 {
		t.Fatalf("only-clean reached storage")
	}

	b, err := os.ReadFile(spec.Cleaning.ReportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var doc struct {
		RunID string `json:"run_id"`
		Stats struct {
			OriginalRows      int `json:"original_rows"`
			CleanedRows       int `json:"cleaned_rows"`
			DuplicatesDropped int `json:"duplicates_dropped"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if doc.RunID != sum.RunID {
		t.Errorf("report run_id = %q, want %q", doc.RunID, sum.RunID)
	}
	if doc.Stats.OriginalRows != 3 || doc.Stats.CleanedRows != 2 || doc.Stats.DuplicatesDropped != 1 {
		t.Errorf("report stats = %+v", doc.Stats)
	}
}

/*
TestRun_UnsupportedSource surfaces configuration mistakes as errors.
*/
func TestRun_UnsupportedSource(t *testing.T) {
	spec := samplePipeline("ignored")
	spec.Source.Kind = "ftp"

	if _, err := Run(context.Background(), spec, Options{}); err == nil {
		t.Fatal("expected error for unsupported source kind")
	}
}
