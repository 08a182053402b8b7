package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Config for the OpenAI-compatible client.
type Config struct {
	APIKey      string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL     string        // empty keeps the library default (api.openai.com/v1)
	Model       string        // e.g., "gpt-4o-mini"
	Temperature float32       // 0..2
	Timeout     time.Duration // http client timeout
	// Lenient runs NormalizeReadingJSON when the strict schema check fails.
	Lenient bool
}

type Client struct {
	cfg    Config
	api    *openai.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		cfg:    cfg,
		api:    openai.NewClientWithConfig(clientCfg),
		logger: logger,
	}
}
