package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/gauge-tracker/internal/extract"
)

// Tesseract runs the tesseract CLI in TSV mode and keeps word-level rows.
type Tesseract struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg Config, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Tesseract{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

func (t *Tesseract) Recognize(ctx context.Context, path string) ([]extract.Token, error) {
	start := time.Now()
	img, cleanup, err := prepareImage(ctx, t.runner, t.logger, t.cfg, path)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, t.args(img)...)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	tokens, err := parseTSV(out)
	if err != nil {
		return nil, err
	}

	t.logger.Debug("ocr.tesseract.ok",
		"path", path,
		"tokens", len(tokens),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return tokens, nil
}

// tesseract <img> stdout -l <lang> --psm N [--oem N] [--tessdata-dir D] [-c whitelist] tsv
func (t *Tesseract) args(img string) []string {
	args := []string{img, "stdout", "-l", t.cfg.Language, "--psm", strconv.Itoa(t.cfg.PSM)}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	if t.cfg.Whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+t.cfg.Whitelist)
	}
	return append(args, "tsv")
}

const wordLevel = "5"

var errTSVHeader = errors.New("tesseract tsv: missing or malformed header")

// parseTSV keeps word rows (level 5) with text and a non-negative confidence.
// Columns are located by header name.
func parseTSV(out []byte) ([]extract.Token, error) {
	tokens := make([]extract.Token, 0)
	var col map[string]int

	for _, ln := range strings.Split(string(out), "\n") {
		ln = strings.TrimRight(ln, "\r")
		if ln == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if col == nil {
			col = make(map[string]int, len(cols))
			for i, name := range cols {
				col[name] = i
			}
			for _, need := range []string{"level", "left", "top", "width", "height", "conf", "text"} {
				if _, ok := col[need]; !ok {
					return nil, errTSVHeader
				}
			}
			continue
		}
		if len(cols) <= col["text"] || cols[col["level"]] != wordLevel {
			continue
		}
		text := strings.TrimSpace(cols[col["text"]])
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[col["conf"]], 64)
		if err != nil || conf < 0 {
			continue
		}
		tokens = append(tokens, extract.Token{
			Text:       text,
			Confidence: min(conf/100, 1),
			Box: &extract.Bounds{
				Left:   atoi(cols[col["left"]]),
				Top:    atoi(cols[col["top"]]),
				Width:  atoi(cols[col["width"]]),
				Height: atoi(cols[col["height"]]),
			},
		})
	}
	return tokens, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
