package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/gauge-tracker/constants"
	"github.com/joseph-ayodele/gauge-tracker/internal/extract"
	"github.com/joseph-ayodele/gauge-tracker/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tok(text string) extract.Token { return extract.Token{Text: text, Confidence: 0.9} }

// fakeRecognizer answers by file base name.
type fakeRecognizer struct {
	tokens map[string][]extract.Token
	err    error
	delay  map[string]time.Duration
}

func (f *fakeRecognizer) Recognize(ctx context.Context, path string) ([]extract.Token, error) {
	if d := f.delay[filepath.Base(path)]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.tokens[filepath.Base(path)], nil
}

type fakeMetadata struct {
	meta extract.CaptureMetadata
	err  error
}

func (f fakeMetadata) Read(context.Context, string) (extract.CaptureMetadata, error) {
	return f.meta, f.err
}

type fakeRefiner struct {
	mu   sync.Mutex
	reqs []llm.RefineRequest
	ref  llm.Refinement
	err  error
}

func (f *fakeRefiner) Refine(_ context.Context, req llm.RefineRequest) (llm.Refinement, []byte, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.ref, nil, f.err
}

func f64(v float64) *float64 { return &v }

func writePhotos(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
		if err := os.WriteFile(paths[i], []byte("photo "+n), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return paths
}

func newEngine(t *testing.T) *extract.Engine {
	t.Helper()
	e, err := extract.NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func seoulMeta() extract.CaptureMetadata {
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.FixedZone("KST", 9*3600))
	return extract.CaptureMetadata{Timestamp: &ts, Latitude: f64(37.5), Longitude: f64(127)}
}

func TestProcessPhotoComplete(t *testing.T) {
	paths := writePhotos(t, "full.jpg")
	rec := &fakeRecognizer{tokens: map[string][]extract.Token{
		"full.jpg": {tok("24.5"), tok("°C"), tok("58"), tok("%")},
	}}
	ref := &fakeRefiner{}
	p := NewProcessor(discardLogger(), rec, fakeMetadata{meta: seoulMeta()}, newEngine(t), ref, "")

	out := p.ProcessPhoto(context.Background(), paths[0])
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Status != constants.PhotoStatusOK || out.NeedsReview {
		t.Errorf("status = %s needs_review = %v", out.Status, out.NeedsReview)
	}
	if len(out.ContentHash) != 64 {
		t.Errorf("content hash = %q", out.ContentHash)
	}
	if len(ref.reqs) != 0 {
		t.Error("complete rows must not be refined")
	}

	record := out.Record()
	if *record.Temperature != 24.5 || *record.Humidity != 58 || *record.Lat != 37.5 || record.Date == nil {
		t.Errorf("record = %+v", record)
	}
}

func TestProcessPhotoRefinesPartialRow(t *testing.T) {
	paths := writePhotos(t, "half.jpg")
	rec := &fakeRecognizer{tokens: map[string][]extract.Token{
		"half.jpg": {tok("24.5"), tok("°C"), tok("5B")},
	}}
	ref := &fakeRefiner{ref: llm.Refinement{TemperatureC: f64(30), HumidityPct: f64(58), Reason: "digits under RH label"}}
	p := NewProcessor(discardLogger(), rec, fakeMetadata{}, newEngine(t), ref, "/cache")

	out := p.ProcessPhoto(context.Background(), paths[0])
	if len(ref.reqs) != 1 {
		t.Fatalf("expected one refine call, got %d", len(ref.reqs))
	}
	req := ref.reqs[0]
	if req.OCRText != "24.5 °C 5B" || req.ContentHashHex != out.ContentHash || req.ArtifactCacheDir != "/cache" {
		t.Errorf("refine request = %+v", req)
	}
	if req.Temperature != extract.DefaultTemperatureRange {
		t.Errorf("ranges should come from the engine, got %+v", req.Temperature)
	}
	rd := out.Result.Reading
	if *rd.TemperatureC != 24.5 {
		t.Errorf("engine temperature must win, got %v", *rd.TemperatureC)
	}
	if rd.HumidityPct == nil || *rd.HumidityPct != 58 {
		t.Errorf("humidity should be filled by refinement")
	}
	if out.Status != constants.PhotoStatusOK || !out.NeedsReview {
		t.Errorf("refined rows are flagged for review: status=%s review=%v", out.Status, out.NeedsReview)
	}
	if out.LLMReason != "digits under RH label" {
		t.Errorf("llm reason = %q", out.LLMReason)
	}
}

func TestProcessPhotoRefinerErrorKeepsRow(t *testing.T) {
	paths := writePhotos(t, "half.jpg")
	rec := &fakeRecognizer{tokens: map[string][]extract.Token{"half.jpg": {tok("99.9")}}}
	ref := &fakeRefiner{err: errors.New("quota")}
	p := NewProcessor(discardLogger(), rec, fakeMetadata{}, newEngine(t), ref, "")

	out := p.ProcessPhoto(context.Background(), paths[0])
	if out.Err != nil || out.Status != constants.PhotoStatusPartial {
		t.Fatalf("status = %s err = %v", out.Status, out.Err)
	}
	if *out.Result.Reading.HumidityPct != 99.9 {
		t.Errorf("humidity = %v", *out.Result.Reading.HumidityPct)
	}
	if !strings.Contains(out.LLMReason, "quota") {
		t.Errorf("llm reason = %q", out.LLMReason)
	}
}

func TestProcessPhotoNoReadingSkipsRefiner(t *testing.T) {
	paths := writePhotos(t, "blank.jpg")
	rec := &fakeRecognizer{tokens: map[string][]extract.Token{"blank.jpg": {tok("abc"), tok("def")}}}
	ref := &fakeRefiner{ref: llm.Refinement{TemperatureC: f64(20)}}
	p := NewProcessor(discardLogger(), rec, fakeMetadata{meta: seoulMeta()}, newEngine(t), ref, "")

	out := p.ProcessPhoto(context.Background(), paths[0])
	if out.Status != constants.PhotoStatusNoReading || out.Result.OK() {
		t.Errorf("status = %s", out.Status)
	}
	if len(ref.reqs) != 0 {
		t.Error("failures are never refined")
	}
	if record := out.Record(); !strings.Contains(record.Notes, string(extract.ReasonNoNumericTokens)) || record.Temperature != nil {
		t.Errorf("record = %+v", record)
	}
}

func TestProcessPhotoStageErrors(t *testing.T) {
	paths := writePhotos(t, "x.jpg")
	engine := newEngine(t)

	tests := []struct {
		name string
		path string
		rec  *fakeRecognizer
		meta fakeMetadata
		want string
	}{
		{"missing file", filepath.Join(t.TempDir(), "gone.jpg"), &fakeRecognizer{}, fakeMetadata{}, "read photo"},
		{"recognizer", paths[0], &fakeRecognizer{err: errors.New("tesseract missing")}, fakeMetadata{}, "recognize"},
		{"metadata", paths[0], &fakeRecognizer{}, fakeMetadata{err: errors.New("permission denied")}, "metadata"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(discardLogger(), tt.rec, tt.meta, engine, nil, "")
			out := p.ProcessPhoto(context.Background(), tt.path)
			if out.Status != constants.PhotoStatusError || out.Err == nil || !strings.Contains(out.Err.Error(), tt.want) {
				t.Errorf("status = %s err = %v", out.Status, out.Err)
			}
			if rec := out.Record(); rec.Error == "" {
				t.Error("record should carry the error")
			}
		})
	}
}

// countingProcessor records peak concurrency.
type countingProcessor struct {
	inner   PhotoProcessor
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (c *countingProcessor) ProcessPhoto(ctx context.Context, path string) Outcome {
	n := c.active.Add(1)
	for {
		m := c.maxSeen.Load()
		if n <= m || c.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	defer c.active.Add(-1)
	return c.inner.ProcessPhoto(ctx, path)
}

func TestRunBatchKeepsInputOrder(t *testing.T) {
	paths := writePhotos(t, "slow.jpg", "fast.jpg", "blank.jpg", "mid.jpg")
	rec := &fakeRecognizer{
		tokens: map[string][]extract.Token{
			"slow.jpg":  {tok("21"), tok("°C")},
			"fast.jpg":  {tok("55"), tok("%")},
			"blank.jpg": {tok("---")},
			"mid.jpg":   {tok("24.5"), tok("°C"), tok("58"), tok("%")},
		},
		delay: map[string]time.Duration{"slow.jpg": 30 * time.Millisecond, "mid.jpg": 10 * time.Millisecond},
	}
	p := &countingProcessor{inner: NewProcessor(discardLogger(), rec, fakeMetadata{}, newEngine(t), nil, "")}

	outcomes, sum := RunBatch(context.Background(), p, paths, 2, discardLogger())
	for i, o := range outcomes {
		if o.Path != paths[i] {
			t.Errorf("outcome %d path = %s, want %s", i, o.Path, paths[i])
		}
	}
	if sum.Total != 4 || sum.OK != 1 || sum.Partial != 2 || sum.NoReading != 1 || sum.Errors != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if m := p.maxSeen.Load(); m > 2 {
		t.Errorf("worker limit exceeded: %d", m)
	}
}

func TestRunBatchCancelled(t *testing.T) {
	paths := writePhotos(t, "a.jpg", "b.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewProcessor(discardLogger(), &fakeRecognizer{}, fakeMetadata{}, newEngine(t), nil, "")
	outcomes, sum := RunBatch(ctx, p, paths, 4, discardLogger())
	for _, o := range outcomes {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("%s: err = %v", o.Path, o.Err)
		}
	}
	if sum.Errors != 2 {
		t.Errorf("summary = %+v", sum)
	}
}
