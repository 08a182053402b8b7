package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/joseph-ayodele/gauge-tracker/internal/common"
)

type call struct {
	name string
	args []string
}

// fakeRunner records invocations and answers from canned output. For converter
// commands it writes a file at the output path so conversion appears to succeed.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []call
	stdout []byte
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args})
	f.mu.Unlock()
	if f.err != nil {
		return nil, []byte("boom"), f.err
	}
	switch name {
	case "magick", "heif-convert", "sips":
		out := args[len(args)-1]
		if err := os.WriteFile(out, []byte("png"), 0o600); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	return f.stdout, nil, nil
}

func (f *fakeRunner) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t640\t480\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t20\t200\t40\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t20\t80\t40\t91.5\t24.5\n" +
	"5\t1\t1\t1\t1\t2\t95\t20\t30\t40\t88\t°C\n" +
	"5\t1\t1\t1\t1\t3\t130\t20\t10\t40\t12\t \n" +
	"5\t1\t1\t1\t2\t1\t10\t70\t60\t40\t73\t58%\n"

func writePhoto(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("img"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newFakeTesseract(cfg Config, r Runner) *Tesseract {
	tr := NewTesseract(cfg, nil)
	tr.runner = r
	return tr
}

func TestParseTSV(t *testing.T) {
	tokens, err := parseTSV([]byte(sampleTSV))
	if err != nil {
		t.Fatalf("parseTSV: %v", err)
	}
	want := []string{"24.5", "°C", "58%"}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(tokens), len(want), tokens)
	}
	for i, w := range want {
		if tokens[i].Text != w {
			t.Errorf("token %d = %q, want %q", i, tokens[i].Text, w)
		}
	}
	if tokens[0].Confidence != 0.915 {
		t.Errorf("confidence = %v, want 0.915", tokens[0].Confidence)
	}
	if b := tokens[2].Box; b == nil || b.Left != 10 || b.Top != 70 || b.Width != 60 || b.Height != 40 {
		t.Errorf("box = %+v", tokens[2].Box)
	}
}

func TestParseTSVEdgeCases(t *testing.T) {
	tokens, err := parseTSV(nil)
	if err != nil || tokens == nil || len(tokens) != 0 {
		t.Errorf("empty output should give an empty slice, got %v, %v", tokens, err)
	}
	if _, err := parseTSV([]byte("foo\tbar\n1\t2\n")); !errors.Is(err, errTSVHeader) {
		t.Errorf("expected header error, got %v", err)
	}
	crlf := strings.ReplaceAll(sampleTSV, "\n", "\r\n")
	if tokens, _ := parseTSV([]byte(crlf)); len(tokens) != 3 {
		t.Errorf("CRLF output: got %d tokens", len(tokens))
	}
}

func TestTesseractRecognize(t *testing.T) {
	r := &fakeRunner{stdout: []byte(sampleTSV)}
	tr := newFakeTesseract(Config{Language: "eng+kor", PSM: 6, Whitelist: "0123456789.,%°C-"}, r)

	path := writePhoto(t, "gauge.jpg")
	tokens, err := tr.Recognize(context.Background(), path)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("got %d tokens", len(tokens))
	}
	if len(r.calls) != 1 {
		t.Fatalf("expected a single tesseract call, got %+v", r.calls)
	}
	args := r.calls[0].args
	if args[0] != path || args[len(args)-1] != "tsv" {
		t.Errorf("unexpected args %v", args)
	}
	for _, want := range []string{"eng+kor", "6", "tessedit_char_whitelist=0123456789.,%°C-"} {
		if !slices.Contains(args, want) {
			t.Errorf("args %v missing %q", args, want)
		}
	}
}

func TestTesseractRecognizeErrors(t *testing.T) {
	r := &fakeRunner{err: errors.New("exit status 1")}
	tr := newFakeTesseract(Config{}, r)

	if _, err := tr.Recognize(context.Background(), writePhoto(t, "gauge.png")); err == nil {
		t.Error("expected runner failure to surface")
	}
	_, err := tr.Recognize(context.Background(), writePhoto(t, "notes.pdf"))
	if !errors.Is(err, common.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestTesseractConvertsHEICWithCache(t *testing.T) {
	r := &fakeRunner{stdout: []byte(sampleTSV)}
	cache := t.TempDir()
	tr := newFakeTesseract(Config{HeicConverter: "magick", ArtifactCacheDir: cache}, r)

	path := writePhoto(t, "IMG_0001.HEIC")
	ctx := WithContentHash(context.Background(), "abc123")
	for range 2 {
		if _, err := tr.Recognize(ctx, path); err != nil {
			t.Fatalf("Recognize: %v", err)
		}
	}
	if n := r.count("magick"); n != 1 {
		t.Errorf("converter ran %d times, want 1 (second run should hit the cache)", n)
	}
	cached := filepath.Join(cache, "abc123.png")
	if _, err := os.Stat(cached); err != nil {
		t.Errorf("expected cached artifact: %v", err)
	}
	last := r.calls[len(r.calls)-1]
	if last.name != "tesseract" || last.args[0] != cached {
		t.Errorf("tesseract should read the cached png, got %+v", last)
	}
}

func TestConvertHEICWithoutCacheCleansUp(t *testing.T) {
	r := &fakeRunner{}
	out, cleanup, err := convertHEICtoPNG(context.Background(), r, discardLogger(), "sips", "in.heic", "", "")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if cleanup == nil {
		t.Fatal("expected cleanup for temp output")
	}
	cleanup()
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("temp output should be removed, stat err = %v", err)
	}

	if _, _, err := convertHEICtoPNG(context.Background(), r, discardLogger(), "ffmpeg", "in.heic", "", ""); err == nil {
		t.Error("unknown converter should fail")
	}
}

func TestNewSelectsEngine(t *testing.T) {
	rec, err := New(Config{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := rec.(*Tesseract); !ok {
		t.Errorf("default engine should be tesseract, got %T", rec)
	}
	if _, err := New(Config{Engine: "easyocr"}, nil); err == nil {
		t.Error("unknown engine should fail")
	}
}
