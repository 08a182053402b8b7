package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/joseph-ayodele/gauge-tracker/internal/common"
	"github.com/joseph-ayodele/gauge-tracker/internal/pipeline"
)

// readgauge runs one photo through the pipeline and prints the stored record as JSON.
func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "readgauge [-timeout 2m] <photo>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	p, err := pipeline.FromConfig(cfg, logger)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(1)
	}

	out := p.ProcessPhoto(ctx, path)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out.Record()); err != nil {
		logger.Error("encode", "error", err)
		os.Exit(1)
	}

	logger.Info("read gauge done",
		"status", out.Status,
		"tokens", out.Tokens,
		"refined", len(out.Refined),
		"duration_ms", out.Elapsed.Milliseconds(),
	)
	if out.Err != nil {
		os.Exit(1)
	}
}
