package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	_ "time/tzdata"

	"github.com/joseph-ayodele/gauge-tracker/internal/common"
	"github.com/joseph-ayodele/gauge-tracker/internal/entity"
	"github.com/joseph-ayodele/gauge-tracker/internal/ingest"
	"github.com/joseph-ayodele/gauge-tracker/internal/pipeline"
	repo "github.com/joseph-ayodele/gauge-tracker/internal/repository"
	"github.com/joseph-ayodele/gauge-tracker/internal/table"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory of gauge photos (required)")
		out     = flag.String("out", "", "output .xlsx or .csv path (default: gauge_readings.xlsx next to --dir)")
		inmem   = flag.Bool("inmem", false, "use in-memory SQLite database")
		nosave  = flag.Bool("nosave", false, "do not store readings in the database")
		workers = flag.Int("workers", 0, "parallel photos (default from config)")
		hidden  = flag.Bool("hidden", false, "include hidden files and directories")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "gauge_readings.xlsx")
	}
	ext := strings.ToLower(filepath.Ext(*out))
	if ext != ".xlsx" && ext != ".csv" {
		printError("Error: --out must end in .xlsx or .csv\n")
		os.Exit(1)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var readings repo.ReadingRepository
	if !*nosave {
		db, err := repo.InitDatabase(ctx, cfg, *inmem, logger)
		if err != nil {
			logger.Error("failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		readings = repo.NewReadingRepository(db, logger)
	}

	processor, err := pipeline.FromConfig(cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	paths, stats, err := ingest.ScanDirectory(ctx, *dir, !*hidden)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("scan complete", "dir", *dir, "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)

	n := *workers
	if n <= 0 {
		n = cfg.Pipeline.Workers
	}
	outcomes, summary := pipeline.RunBatch(ctx, processor, paths, n, logger)

	builder := table.NewBuilder()
	records := make([]*entity.Reading, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			logger.Error("photo failed", "path", o.Path, "error", o.Err)
		}
		builder.Append(o.Path, o.Result)
		records = append(records, o.Record())
	}

	if readings != nil {
		if err := readings.Insert(ctx, records...); err != nil {
			logger.Error("failed to store readings", "error", err)
			os.Exit(1)
		}
	}

	if err := writeTable(*out, ext, builder.Rows()); err != nil {
		logger.Error("failed to write output file", "output", *out, "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"photos", summary.Total,
		"rows", builder.Len(),
		"skipped", builder.Skipped(),
		"output_file", *out,
		"elapsed_ms", summary.Elapsed.Milliseconds(),
	)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Photos: %d\n", summary.Total)
	fmt.Printf("- Complete rows: %d\n", summary.OK)
	fmt.Printf("- Partial rows (review): %d\n", summary.Partial)
	fmt.Printf("- No reading: %d\n", summary.NoReading)
	fmt.Printf("- Errors: %d\n", summary.Errors)
	fmt.Printf("- Output: %s\n", *out)
}

func writeTable(path, ext string, rows []table.Row) (err error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if ext == ".csv" {
		return table.WriteCSV(f, rows)
	}
	return table.WriteXLSX(f, rows)
}
