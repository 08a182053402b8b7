package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	got := truncate("온도 24.5°C", 4) // cuts inside the second hangul syllable
	if !utf8.ValidString(got) || !strings.HasSuffix(got, "...(truncated)") {
		t.Errorf("got %q", got)
	}
	if !strings.HasPrefix(got, "온") || strings.HasPrefix(got, "온도") {
		t.Errorf("expected a cut after the first syllable, got %q", got)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := execRunner{logger: discardLogger()}
	_, _, err := r.Run(context.Background(), "gauge-tracker-no-such-binary")
	if err == nil {
		t.Fatal("expected an error for a missing binary")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = r.Run(ctx, "gauge-tracker-no-such-binary")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled run should report the context error, got %v", err)
	}
}
