package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// execRunner runs commands on the host. A command that outlives ctx is killed;
// its pipes get waitDelay to drain before Run gives up on them.
type execRunner struct {
	logger    *slog.Logger
	waitDelay time.Duration
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = r.waitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 5 * time.Second
	}
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		// report the deadline rather than "signal: killed"
		err = fmt.Errorf("%s: %w", name, errors.Join(ctx.Err(), err))
	}

	attrs := []any{
		"cmd", name,
		"args", strings.Join(args, " "),
		"elapsed_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		r.logger.Error("ocr.exec.failed", append(attrs, "error", err, "stderr", truncate(errb.String(), 8<<10))...)
	} else {
		r.logger.Debug("ocr.exec.ok", append(attrs, "stdout_bytes", out.Len())...)
	}
	return out.Bytes(), errb.Bytes(), err
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}
