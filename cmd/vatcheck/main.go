package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nexconsult/vies-api/internal/config"
	"github.com/nexconsult/vies-api/internal/logger"
	"github.com/nexconsult/vies-api/internal/logstream"
	"github.com/nexconsult/vies-api/internal/models"
	"github.com/nexconsult/vies-api/internal/services"
	"github.com/nexconsult/vies-api/internal/spreadsheet"
)

func main() {
	input := flag.String("input", "", "input spreadsheet (.xlsx, .xlsm or .csv)")
	output := flag.String("output", "", "output spreadsheet (defaults to <input>_results.<ext>)")
	logFile := flag.String("log", "", "optional path to export the request log")
	workers := flag.Int("workers", 0, "concurrent lookups (overrides BATCH_WORKERS)")
	timeout := flag.Duration("timeout", 0, "overall batch timeout, 0 for none")
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}
	if *timeout > 0 {
		cfg.Batch.Timeout = *timeout
	}

	appLogger := logger.New(cfg.Log.Level, cfg.Log.Format)
	stream := logstream.New(cfg.Batch.LogBufferSize)

	table, err := spreadsheet.ReadFile(*input)
	if err != nil {
		appLogger.Fatalf("Failed to read %s: %v", *input, err)
	}
	fmt.Fprintf(os.Stderr, "Read %d VAT numbers from %s\n", len(table.Rows), *input)

	cache := services.NewResultCache(nil, cfg.VIES.CacheTTL, appLogger)
	vies := services.NewViesClient(cfg.VIES, cache, stream, appLogger)
	batch := services.NewBatchService(vies, cfg.Batch.Workers, cfg.Batch.Timeout, appLogger)

	job, err := batch.RunWithProgress(context.Background(), table.Rows, func(p models.Progress) {
		fmt.Fprintf(os.Stderr, "\rValidated %d/%d", p.Completed, p.Total)
	})
	if err != nil {
		appLogger.Fatalf("Failed to start batch: %v", err)
	}

	// Ctrl-C requests cancellation; lookups already in flight finish.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Fprintln(os.Stderr, "\nCancelling, waiting for in-flight lookups...")
		job.RequestCancel()
	}()

	if err := job.Wait(context.Background()); err != nil {
		appLogger.Fatalf("Batch failed: %v", err)
	}
	fmt.Fprintln(os.Stderr)

	results := job.Results()
	outPath := *output
	if outPath == "" {
		outPath = spreadsheet.DefaultOutputPath(*input)
	}
	if err := spreadsheet.Export(table, results, outPath); err != nil {
		appLogger.Fatalf("Failed to export results: %v", err)
	}

	if *logFile != "" {
		if err := stream.Export(*logFile); err != nil {
			appLogger.Errorf("Failed to export log: %v", err)
		}
	}

	var valid, invalid, failed int
	for _, r := range results {
		switch {
		case r.IsValid():
			valid++
		case r.ErrorCode == models.CodeInvalid:
			invalid++
		default:
			failed++
		}
	}

	status := job.Status()
	fmt.Fprintf(os.Stderr, "%s: %d valid, %d invalid, %d errors, written to %s",
		status, valid, invalid, failed, outPath)
	if status == models.JobCancelled {
		fmt.Fprintf(os.Stderr, " (partial)")
	}
	fmt.Fprintln(os.Stderr)
}
