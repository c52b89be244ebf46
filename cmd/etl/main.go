package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go-sales-etl/internal/config"
	"go-sales-etl/internal/pipeline"
	"go-sales-etl/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	sourceType := flag.String("source-type", "", "source type (csv, json, api); overrides config")
	sourceURL := flag.String("source-url", "", "source path or URL; overrides config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *sourceType != "" {
		cfg.Source.Type = *sourceType
	}
	if *sourceURL != "" {
		cfg.Source.URL = *sourceURL
	}
	if cfg.Source.Type == "" || cfg.Source.URL == "" {
		log.Fatal("a source type and URL are required (flags or config)")
	}

	runStore, err := store.NewRunStore(cfg.RunDB)
	if err != nil {
		log.Fatalf("open run store: %v", err)
	}
	defer runStore.Close()

	sink, err := store.NewSQLSink(cfg.Sink.Driver, cfg.Sink.DSN, cfg.Sink.Table)
	if err != nil {
		log.Fatalf("open sink: %v", err)
	}
	defer sink.Close()

	// SIGINT/SIGTERM cancels the run between chunks
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sink.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure sink schema: %v", err)
	}

	orch := pipeline.NewOrchestrator(cfg.RunConfig(), cfg.Source,
		pipeline.NewSourceExtractor(), sink,
		pipeline.WithObserver(runStore),
		pipeline.WithReportSink(runStore),
	)

	runErr := orch.Run(ctx)
	run := orch.Snapshot()

	fmt.Printf("\nrun %s finished with status %s\n", run.RunID, run.Status)
	fmt.Printf("  extracted:    %d\n", run.Counts.Extracted)
	fmt.Printf("  transformed:  %d\n", run.Counts.Transformed)
	fmt.Printf("  loaded:       %d\n", run.Counts.Loaded)
	fmt.Printf("  rejected:     %d\n", run.Counts.Rejected)
	fmt.Printf("  failed loads: %d\n", run.Counts.FailedLoads)
	if run.Report != nil {
		fmt.Printf("  overall quality score: %.1f\n", run.Report.OverallScore)
	}

	if runErr != nil {
		os.Exit(1)
	}
}
