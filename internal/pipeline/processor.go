// Package pipeline runs a photo through recognition, metadata, extraction and
// optional refinement, one photo or a whole batch at a time.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/gauge-tracker/constants"
	"github.com/joseph-ayodele/gauge-tracker/internal/common"
	"github.com/joseph-ayodele/gauge-tracker/internal/entity"
	"github.com/joseph-ayodele/gauge-tracker/internal/extract"
	"github.com/joseph-ayodele/gauge-tracker/internal/llm"
	"github.com/joseph-ayodele/gauge-tracker/internal/metrics"
	"github.com/joseph-ayodele/gauge-tracker/internal/ocr"
)

// MetadataReader is satisfied by *metadata.Reader.
type MetadataReader interface {
	Read(ctx context.Context, path string) (extract.CaptureMetadata, error)
}

// Outcome is everything learned about one photo.
type Outcome struct {
	Path        string
	ContentHash string
	Tokens      int
	Result      extract.Result
	Refined     []extract.Field // fields filled by the refiner
	LLMReason   string
	Status      constants.PhotoStatus
	NeedsReview bool
	Err         error
	Elapsed     time.Duration
}

// Record converts the outcome into a storable reading.
func (o Outcome) Record() *entity.Reading {
	rec := &entity.Reading{
		Source:      o.Path,
		ContentHash: o.ContentHash,
		Status:      o.Status,
		NeedsReview: o.NeedsReview,
		LLMReason:   o.LLMReason,
	}
	if rd := o.Result.Reading; rd != nil {
		rec.Date, rec.Temperature, rec.Humidity, rec.Lat, rec.Lng = rd.Date, rd.TemperatureC, rd.HumidityPct, rd.Lat, rd.Lng
	}
	notes := make([]string, 0, len(o.Result.Notes)+1)
	if o.Result.Failure != nil {
		notes = append(notes, o.Result.Failure.Error())
	}
	for _, n := range o.Result.Notes {
		notes = append(notes, n.String())
	}
	rec.Notes = strings.Join(notes, "; ")
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	return rec
}

// Processor coordinates recognition and metadata, then extraction and refinement.
type Processor struct {
	logger           *slog.Logger
	recognizer       ocr.Recognizer
	metadata         MetadataReader
	engine           *extract.Engine
	refiner          llm.Refiner // nil disables refinement
	artifactCacheDir string
}

func NewProcessor(
	logger *slog.Logger,
	recognizer ocr.Recognizer,
	metadata MetadataReader,
	engine *extract.Engine,
	refiner llm.Refiner,
	artifactCacheDir string,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:           logger,
		recognizer:       recognizer,
		metadata:         metadata,
		engine:           engine,
		refiner:          refiner,
		artifactCacheDir: artifactCacheDir,
	}
}

// ProcessPhoto never returns an error: stage failures are recorded in the outcome.
func (p *Processor) ProcessPhoto(ctx context.Context, path string) Outcome {
	start := time.Now()
	out := p.process(ctx, path)
	out.Elapsed = time.Since(start)
	metrics.PhotosTotal.WithLabelValues(string(out.Status)).Inc()
	return out
}

func (p *Processor) process(ctx context.Context, path string) Outcome {
	start := time.Now()
	logger := common.LoggerFrom(ctx, p.logger)
	out := Outcome{Path: path}

	hash, err := HashFile(path)
	if err != nil {
		return p.failed(logger, out, fmt.Errorf("read photo: %w", err))
	}
	out.ContentHash = hash
	ctx = ocr.WithContentHash(ctx, hash)

	// Recognition and metadata are independent.
	var (
		tokens []extract.Token
		meta   extract.CaptureMetadata
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer metrics.ObserveStage("ocr", time.Now())
		var err error
		if tokens, err = p.recognizer.Recognize(gctx, path); err != nil {
			return fmt.Errorf("recognize: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer metrics.ObserveStage("metadata", time.Now())
		var err error
		if meta, err = p.metadata.Read(gctx, path); err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return p.failed(logger, out, err)
	}
	out.Tokens = len(tokens)

	t0 := time.Now()
	out.Result = p.engine.Extract(tokens, meta)
	metrics.ObserveStage("extract", t0)
	for _, n := range out.Result.Notes {
		metrics.FieldNotesTotal.WithLabelValues(string(n.Field), string(n.Kind)).Inc()
	}

	if p.refiner != nil && llm.NeedsRefinement(out.Result) {
		p.refine(ctx, logger, &out, tokens)
	}

	out.Status = statusOf(out.Result)
	out.NeedsReview = out.Status != constants.PhotoStatusOK || len(out.Refined) > 0

	logger.Info("pipeline.photo.ok",
		"path", path,
		"status", out.Status,
		"tokens", out.Tokens,
		"notes", len(out.Result.Notes),
		"refined", len(out.Refined),
		"needs_review", out.NeedsReview,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out
}

func (p *Processor) refine(ctx context.Context, logger *slog.Logger, out *Outcome, tokens []extract.Token) {
	defer metrics.ObserveStage("refine", time.Now())
	opts := p.engine.Options()
	ref, _, err := p.refiner.Refine(ctx, llm.RefineRequest{
		Path:             out.Path,
		OCRText:          joinTokens(tokens),
		Current:          *out.Result.Reading,
		Temperature:      opts.Temperature,
		Humidity:         opts.Humidity,
		ArtifactCacheDir: p.artifactCacheDir,
		ContentHashHex:   out.ContentHash,
	})
	if err != nil {
		// the engine's row stands on its own
		metrics.RefinementsTotal.WithLabelValues("error").Inc()
		logger.Warn("pipeline.refine.failed", "path", out.Path, "error", err)
		out.LLMReason = "LLM error: " + err.Error()
		return
	}
	out.Result, out.Refined = llm.Merge(out.Result, ref, opts.Temperature, opts.Humidity)
	out.LLMReason = ref.Reason
	if len(out.Refined) > 0 {
		metrics.RefinementsTotal.WithLabelValues("filled").Inc()
	} else {
		metrics.RefinementsTotal.WithLabelValues("empty").Inc()
	}
}

func (p *Processor) failed(logger *slog.Logger, out Outcome, err error) Outcome {
	out.Err = err
	out.Status = constants.PhotoStatusError
	out.NeedsReview = true
	logger.Error("pipeline.photo.failed", "path", out.Path, "error", err)
	return out
}

func statusOf(res extract.Result) constants.PhotoStatus {
	switch {
	case !res.OK():
		return constants.PhotoStatusNoReading
	case res.Reading.Complete():
		return constants.PhotoStatusOK
	default:
		return constants.PhotoStatusPartial
	}
}

func joinTokens(tokens []extract.Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// HashFile returns the hex SHA-256 of the file contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
