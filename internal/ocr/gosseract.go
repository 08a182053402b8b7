//go:build cgo

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/gauge-tracker/internal/extract"
)

// Gosseract recognizes in-process through libtesseract.
// A client is created per call since gosseract clients are not safe for concurrent use.
type Gosseract struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewGosseract(cfg Config, logger *slog.Logger) (*Gosseract, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Gosseract{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}, nil
}

func (g *Gosseract) Recognize(ctx context.Context, path string) ([]extract.Token, error) {
	start := time.Now()
	img, cleanup, err := prepareImage(ctx, g.runner, g.logger, g.cfg, path)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// phones store portrait shots rotated and rely on the EXIF orientation tag
	src, err := imaging.Open(img, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	client := gosseract.NewClient()
	defer func() {
		if err := client.Close(); err != nil {
			g.logger.Warn("failed to close gosseract client", "error", err)
		}
	}()

	if g.cfg.TessdataDir != "" {
		if err := client.SetTessdataPrefix(g.cfg.TessdataDir); err != nil {
			return nil, fmt.Errorf("set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(g.cfg.Language); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(g.cfg.PSM)); err != nil {
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if g.cfg.Whitelist != "" {
		if err := client.SetWhitelist(g.cfg.Whitelist); err != nil {
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("ocr failed: %w", err)
	}
	tokens := boxesToTokens(boxes)

	g.logger.Debug("ocr.gosseract.ok",
		"path", path,
		"tokens", len(tokens),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return tokens, nil
}

func boxesToTokens(boxes []gosseract.BoundingBox) []extract.Token {
	tokens := make([]extract.Token, 0, len(boxes))
	for _, b := range boxes {
		if b.Word == "" || b.Confidence < 0 {
			continue
		}
		tokens = append(tokens, extract.Token{
			Text:       b.Word,
			Confidence: min(b.Confidence/100, 1),
			Box: &extract.Bounds{
				Left:   b.Box.Min.X,
				Top:    b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
		})
	}
	return tokens
}
