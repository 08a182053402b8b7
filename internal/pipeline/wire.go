package pipeline

import (
	"log/slog"

	"github.com/joseph-ayodele/gauge-tracker/internal/common"
	"github.com/joseph-ayodele/gauge-tracker/internal/extract"
	"github.com/joseph-ayodele/gauge-tracker/internal/llm"
	"github.com/joseph-ayodele/gauge-tracker/internal/llm/openai"
	"github.com/joseph-ayodele/gauge-tracker/internal/metadata"
	"github.com/joseph-ayodele/gauge-tracker/internal/ocr"
)

// FromConfig wires recognizer, metadata reader, engine and (when an API key is
// configured) the refiner into a Processor.
func FromConfig(cfg *common.Config, logger *slog.Logger) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	recognizer, err := ocr.New(ocr.Config{
		Engine:           cfg.OCR.Engine,
		Tesseract:        cfg.OCR.Tesseract,
		Language:         cfg.OCR.Language,
		PSM:              cfg.OCR.PSM,
		Whitelist:        cfg.OCR.Whitelist,
		TessdataDir:      cfg.OCR.TessdataDir,
		HeicConverter:    cfg.OCR.HeicConverter,
		ArtifactCacheDir: cfg.OCR.ArtifactCacheDir,
	}, logger)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "ocr", err)
	}

	loc, err := cfg.Metadata.Location()
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "metadata.timezone", err)
	}

	engine, err := extract.NewEngine(extract.WithOptions(cfg.Extract.Options()))
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "extract", err)
	}

	var refiner llm.Refiner
	if cfg.LLM.Enabled() {
		refiner = openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
			Lenient:     cfg.LLM.Lenient,
		}, logger)
		logger.Info("pipeline.refiner.enabled", "model", cfg.LLM.Model)
	} else {
		logger.Warn("OpenAI API key not configured, refinement will be skipped")
	}

	return NewProcessor(logger, recognizer, metadata.NewReader(loc, logger), engine, refiner, cfg.OCR.ArtifactCacheDir), nil
}
