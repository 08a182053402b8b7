package common

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/gauge-tracker/internal/extract"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	LLM      LLMConfig      `yaml:"llm"`
	Extract  ExtractConfig  `yaml:"extract"`
	Metadata MetadataConfig `yaml:"metadata"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // sqlite | postgres
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine           string `yaml:"engine"` // tesseract | gosseract
	Tesseract        string `yaml:"tesseract"`
	Language         string `yaml:"language"`
	PSM              int    `yaml:"psm"`
	Whitelist        string `yaml:"whitelist"`
	HeicConverter    string `yaml:"heic_converter"`
	TessdataDir      string `yaml:"tessdata_dir"`
	ArtifactCacheDir string `yaml:"artifact_cache_dir"`
}

// LLMConfig holds configuration for the optional refinement step.
type LLMConfig struct {
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	Lenient     bool          `yaml:"lenient"` // repair near-miss replies instead of rejecting them
}

// Enabled reports whether refinement can run at all.
func (c LLMConfig) Enabled() bool { return c.APIKey != "" }

// ExtractConfig holds the plausibility ranges and the token confidence floor.
type ExtractConfig struct {
	Temperature   extract.Range `yaml:"temperature"`
	Humidity      extract.Range `yaml:"humidity"`
	MinConfidence float64       `yaml:"min_confidence"`
}

// Options converts the section into engine options.
func (c ExtractConfig) Options() extract.Options {
	return extract.Options{
		Temperature:   c.Temperature,
		Humidity:      c.Humidity,
		MinConfidence: c.MinConfidence,
	}
}

type MetadataConfig struct {
	Timezone string `yaml:"timezone"`
}

// Location resolves the configured zone used for EXIF wall-clock timestamps.
func (c MetadataConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

type PipelineConfig struct {
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
	WatchDebounce  time.Duration `yaml:"watch_debounce"`
	WatchDirs      []string      `yaml:"watch_dirs"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level name, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// DefaultConfig returns the built-in settings before any file or environment is applied.
func DefaultConfig() *Config {
	opts := extract.DefaultOptions()
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "file:gauge.db?_pragma=foreign_keys(1)",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr: ":8080",
			HTTPAddr: ":8081",
		},
		OCR: OCRConfig{
			Engine:           "tesseract",
			Tesseract:        "tesseract",
			Language:         "eng",
			PSM:              11,
			HeicConverter:    "magick",
			ArtifactCacheDir: "./tmp",
		},
		LLM: LLMConfig{
			Model:   "gpt-4o-mini",
			Timeout: 45 * time.Second,
			Lenient: true,
		},
		Extract: ExtractConfig{
			Temperature:   opts.Temperature,
			Humidity:      opts.Humidity,
			MinConfidence: opts.MinConfidence,
		},
		Metadata: MetadataConfig{Timezone: "Asia/Seoul"},
		Pipeline: PipelineConfig{
			Workers:        4,
			QueueSize:      256,
			ProcessTimeout: 3 * time.Minute,
			WatchDebounce:  500 * time.Millisecond,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig builds the configuration in layers: defaults, then the YAML file named by
// GAUGE_CONFIG (if any), then environment variables. A .env file in the working
// directory is loaded first and never overrides variables already set.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError("CONFIG_ERROR", "failed to load .env", err)
	}

	cfg := DefaultConfig()
	if path := os.Getenv("GAUGE_CONFIG"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "failed to load "+path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(expandEnvVars(data), c); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)

	c.OCR.Engine = getEnv("OCR_ENGINE", c.OCR.Engine)
	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.Language = getEnv("OCR_LANG", c.OCR.Language)
	c.OCR.PSM = getEnvAsInt("OCR_PSM", c.OCR.PSM)
	c.OCR.Whitelist = getEnv("OCR_WHITELIST", c.OCR.Whitelist)
	c.OCR.HeicConverter = getEnv("HEIC_CONVERTER", c.OCR.HeicConverter)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.ArtifactCacheDir = getEnv("ARTIFACT_CACHE_DIR", c.OCR.ArtifactCacheDir)

	c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.LLM.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", c.LLM.Timeout)
	c.LLM.Lenient = getEnvAsBool("OPENAI_LENIENT", c.LLM.Lenient)

	c.Extract.Temperature.Min = getEnvAsFloat64("GAUGE_TEMP_MIN", c.Extract.Temperature.Min)
	c.Extract.Temperature.Max = getEnvAsFloat64("GAUGE_TEMP_MAX", c.Extract.Temperature.Max)
	c.Extract.Humidity.Min = getEnvAsFloat64("GAUGE_HUMIDITY_MIN", c.Extract.Humidity.Min)
	c.Extract.Humidity.Max = getEnvAsFloat64("GAUGE_HUMIDITY_MAX", c.Extract.Humidity.Max)
	c.Extract.MinConfidence = getEnvAsFloat64("GAUGE_MIN_CONFIDENCE", c.Extract.MinConfidence)

	c.Metadata.Timezone = getEnv("GAUGE_TIMEZONE", c.Metadata.Timezone)

	c.Pipeline.Workers = getEnvAsInt("PIPELINE_WORKERS", c.Pipeline.Workers)
	c.Pipeline.QueueSize = getEnvAsInt("QUEUE_SIZE", c.Pipeline.QueueSize)
	c.Pipeline.ProcessTimeout = getEnvAsDuration("PROCESS_TIMEOUT", c.Pipeline.ProcessTimeout)
	c.Pipeline.WatchDebounce = getEnvAsDuration("WATCH_DEBOUNCE", c.Pipeline.WatchDebounce)
	c.Pipeline.WatchDirs = getEnvAsList("WATCH_DIRS", c.Pipeline.WatchDirs)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ${VAR} and ${VAR:-default} inside the YAML file.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("database.driver", c.Database.Driver, OneOf("sqlite", "postgres")).
		Field("ocr.engine", c.OCR.Engine, OneOf("tesseract", "gosseract")).
		Field("ocr.psm", c.OCR.PSM, Between(0, 13)).
		Field("metadata.timezone", c.Metadata.Timezone, Timezone).
		Field("pipeline.workers", c.Pipeline.Workers, Positive).
		Field("pipeline.queue_size", c.Pipeline.QueueSize, Positive)
	if c.Database.Driver == "postgres" {
		v.Field("database.dsn", c.Database.DSN, Required)
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	if err := c.Extract.Options().Validate(); err != nil {
		return NewAppError("CONFIG_ERROR", "extract", err)
	}
	return nil
}
