package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"retailetl/internal/config"
	"retailetl/internal/etl"
	"retailetl/internal/metrics"
	"retailetl/internal/metrics/datadog"
	"retailetl/internal/metrics/prompush"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "retailetl/internal/storage/all"
)

// main is the entry point for the retail ETL binary. It loads the pipeline
// config, optionally initializes a metrics backend, and executes the run.
func main() {
	var (
		cfgPath     string
		validate    bool
		dryRun      bool
		onlyClean   bool
		fullRefresh bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/online_retail.json", "pipeline config JSON path")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "run every stage except the database write")
	flag.BoolVar(&onlyClean, "only-clean", false, "stop after cleaning; no storage connection")
	flag.BoolVar(&fullRefresh, "full-refresh", false, "ignore the watermark and load the full batch")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	p, err := config.LoadFile(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	// Validate pipeline config.
	issues := config.ValidatePipeline(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}

	// If validate flag is set, only validate the configuration and exit
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	initMetrics(p, *verbose)

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("pipeline: source=%s parser=%s storage=%s table=%s",
			p.Source.Kind, p.Parser.Kind, p.Storage.Kind, p.Storage.DB.Table)
	}

	sum, err := etl.Run(ctx, p, etl.Options{
		DryRun:      dryRun,
		OnlyClean:   onlyClean,
		FullRefresh: fullRefresh,
	})
	if err != nil {
		log.Fatalf("%v", err)
	}

	log.Printf(
		"summary: parsed=%d parse_skips=%d cleaned=%d rejected=%d duplicates=%d to_load=%d skipped=%d loaded=%d",
		sum.Parsed, sum.ParseSkips, sum.Cleaned, sum.Rejected,
		sum.Duplicates, sum.ToLoad, sum.Skipped, sum.Loaded,
	)

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// initMetrics installs the metrics backend selected by the pipeline config.
// The no-op backend remains installed when nothing is configured or setup
// fails; metrics are never fatal.
func initMetrics(p config.Pipeline, verbose bool) {
	switch p.Metrics.Kind {
	case "pushgateway":
		gwURL := p.Metrics.Pushgateway.URL
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}

		jobName := p.Metrics.Pushgateway.Job
		if jobName == "" {
			jobName = p.Job
		}

		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=pushgateway url=%v job_name=%v", gwURL, jobName)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:      p.Metrics.Datadog.Addr,
			Namespace: p.Metrics.Datadog.Namespace,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=datadog addr=%v", p.Metrics.Datadog.Addr)
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", p.Metrics.Kind)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", p.Metrics.Kind)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
