package common

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres"; c.Database.DSN = "" }, "database.dsn"},
		{"bad timezone", func(c *Config) { c.Metadata.Timezone = "Mars/Olympus" }, "metadata.timezone"},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }, "pipeline.workers"},
		{"unknown ocr engine", func(c *Config) { c.OCR.Engine = "easyocr" }, "ocr.engine"},
		{"psm out of range", func(c *Config) { c.OCR.PSM = 14 }, "ocr.psm"},
		{"inverted range", func(c *Config) { c.Extract.Temperature.Min = 70 }, "temperature range is inverted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			var appErr *AppError
			if !errors.As(err, &appErr) || appErr.Code != "CONFIG_ERROR" {
				t.Errorf("expected CONFIG_ERROR, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gauge.yaml")
	yml := `
database:
  driver: postgres
  dsn: ${TEST_GAUGE_DSN:-postgres://localhost/gauges}
extract:
  temperature:
    min: -10
    max: 50
  min_confidence: 0.5
pipeline:
  process_timeout: 90s
metadata:
  timezone: UTC
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("GAUGE_CONFIG", path)
	t.Setenv("GAUGE_TEMP_MAX", "45")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://localhost/gauges" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Extract.Temperature.Min != -10 || cfg.Extract.Temperature.Max != 45 {
		t.Errorf("temperature range = %+v, env should override yaml max", cfg.Extract.Temperature)
	}
	if cfg.Extract.Humidity != DefaultConfig().Extract.Humidity {
		t.Errorf("humidity range should keep its default, got %+v", cfg.Extract.Humidity)
	}
	if cfg.Extract.MinConfidence != 0.5 {
		t.Errorf("min confidence = %v", cfg.Extract.MinConfidence)
	}
	if cfg.Pipeline.ProcessTimeout != 90*time.Second {
		t.Errorf("process timeout = %v", cfg.Pipeline.ProcessTimeout)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.Log.SlogLevel())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GAUGE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestToStatus(t *testing.T) {
	if got := ToStatus(nil); got != nil {
		t.Errorf("nil should stay nil")
	}
	err := ToStatus(WrapError(ErrNotFound, "reading 42"))
	if !strings.Contains(err.Error(), "NotFound") {
		t.Errorf("expected NotFound status, got %v", err)
	}
}

func TestLoadConfigWatchDirsAndLenient(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GAUGE_CONFIG", "")
	t.Setenv("WATCH_DIRS", " /data/in , ,/data/extra")
	t.Setenv("OPENAI_LENIENT", "false")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := cfg.Pipeline.WatchDirs; len(got) != 2 || got[0] != "/data/in" || got[1] != "/data/extra" {
		t.Errorf("watch dirs = %q", got)
	}
	if cfg.LLM.Lenient {
		t.Error("OPENAI_LENIENT=false should disable lenient parsing")
	}
}
