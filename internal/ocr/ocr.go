// Package ocr turns a gauge photo into word tokens with confidence and position.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/joseph-ayodele/gauge-tracker/constants"
	"github.com/joseph-ayodele/gauge-tracker/internal/common"
	"github.com/joseph-ayodele/gauge-tracker/internal/extract"
)

// Recognizer returns the tokens found in a photo, in scan order.
// A photo without text yields an empty slice and a nil error.
type Recognizer interface {
	Recognize(ctx context.Context, path string) ([]extract.Token, error)
}

const (
	EngineTesseract = "tesseract" // tesseract CLI in TSV mode
	EngineGosseract = "gosseract" // libtesseract through cgo
)

type Config struct {
	Engine    string
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Language  string // default "eng"
	PSM       int    // 11 (sparse text) suits scattered display digits
	OEM       int    // 0 keeps tesseract's default
	Whitelist string

	TessdataDir      string
	HeicConverter    string
	ArtifactCacheDir string
}

func (c *Config) applyDefaults() {
	if c.Engine == "" {
		c.Engine = EngineTesseract
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Language == "" {
		c.Language = "eng"
	}
	if c.PSM <= 0 {
		c.PSM = 11
	}
}

// New builds the recognizer selected by cfg.Engine.
func New(cfg Config, logger *slog.Logger) (Recognizer, error) {
	cfg.applyDefaults()
	switch cfg.Engine {
	case EngineTesseract:
		return NewTesseract(cfg, logger), nil
	case EngineGosseract:
		g, err := NewGosseract(cfg, logger)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", cfg.Engine)
	}
}

// prepareImage validates the extension and converts HEIC/HEIF to PNG.
// cleanup may be nil.
func prepareImage(ctx context.Context, r Runner, logger *slog.Logger, cfg Config, path string) (string, func(), error) {
	ext := filepath.Ext(path)
	if !constants.IsAllowedExt(ext) {
		return "", nil, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, constants.NormalizeExt(ext))
	}
	if !constants.IsHEICExt(ext) {
		return path, nil, nil
	}
	hashHex, _ := contentHashFromCtx(ctx)
	out, cleanup, err := convertHEICtoPNG(ctx, r, logger, cfg.HeicConverter, path, cfg.ArtifactCacheDir, hashHex)
	if err != nil {
		logger.Error("heic conversion failed", "path", path, "error", err)
		return "", nil, err
	}
	return out, cleanup, nil
}
