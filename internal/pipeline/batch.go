package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/gauge-tracker/constants"
	"github.com/joseph-ayodele/gauge-tracker/internal/common"
)

// PhotoProcessor is satisfied by *Processor.
type PhotoProcessor interface {
	ProcessPhoto(ctx context.Context, path string) Outcome
}

// Summary counts batch outcomes by status.
type Summary struct {
	Total     int
	OK        int
	Partial   int
	NoReading int
	Errors    int
	Elapsed   time.Duration
}

// RunBatch processes paths on at most workers goroutines. The returned outcomes
// are in input order whatever order the photos finish in. Photos not started
// before ctx is cancelled carry ctx's error.
func RunBatch(ctx context.Context, p PhotoProcessor, paths []string, workers int, logger *slog.Logger) ([]Outcome, Summary) {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	start := time.Now()
	batchID := uuid.NewString()
	ctx = common.WithBatchID(ctx, batchID)
	outcomes := make([]Outcome, len(paths))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			outcomes[i] = Outcome{Path: path, Status: constants.PhotoStatusError, Err: err, NeedsReview: true}
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = Outcome{Path: path, Status: constants.PhotoStatusError, Err: err, NeedsReview: true}
				return nil
			}
			outcomes[i] = p.ProcessPhoto(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	sum := Summarize(outcomes)
	sum.Elapsed = time.Since(start)
	logger.Info("pipeline.batch.ok",
		"batch_id", batchID,
		"total", sum.Total,
		"ok", sum.OK,
		"partial", sum.Partial,
		"no_reading", sum.NoReading,
		"errors", sum.Errors,
		"workers", workers,
		"elapsed_ms", sum.Elapsed.Milliseconds(),
	)
	return outcomes, sum
}

func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case constants.PhotoStatusOK:
			s.OK++
		case constants.PhotoStatusPartial:
			s.Partial++
		case constants.PhotoStatusNoReading:
			s.NoReading++
		default:
			s.Errors++
		}
	}
	return s
}
