package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
	"github.com/couchcryptid/storm-lightning-align/internal/observability"
)

// RowSink persists one storm's aligned table. WriteStorm must be atomic:
// either every row of the storm lands or none do.
type RowSink interface {
	WriteStorm(ctx context.Context, out domain.StormOutput) error
}

// Result records the outcome of one storm.
type Result struct {
	Code     string
	Name     string
	Rows     int
	Err      error
	Duration time.Duration
}

// Runner fans the storm catalog out over a bounded pool of workers, each
// running the shared Pipeline one storm at a time. Storms never share
// mutable state, so a failure in one leaves the others untouched.
type Runner struct {
	pipeline *Pipeline
	sink     RowSink
	workers  int
	logger   *slog.Logger
	metrics  *observability.Metrics

	processed atomic.Int64
}

// NewRunner creates a Runner. Workers below 1 are raised to 1.
func NewRunner(p *Pipeline, sink RowSink, workers int, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		pipeline: p,
		sink:     sink,
		workers:  workers,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run processes every storm in the catalog and returns one Result per
// storm, in catalog order. Per-storm errors are captured in the Result;
// only catalog retrieval or context cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, storms []domain.StormInfo) []Result {
	results := make([]Result, len(storms))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = r.runOne(ctx, storms[i])
			}
		}()
	}

	for i := range storms {
		if ctx.Err() != nil {
			for j := i; j < len(storms); j++ {
				results[j] = Result{Code: storms[j].Code, Name: storms[j].Name, Err: ctx.Err()}
			}
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func (r *Runner) runOne(ctx context.Context, storm domain.StormInfo) Result {
	r.metrics.StormsRunning.Inc()
	defer r.metrics.StormsRunning.Dec()

	started := domain.Now()
	out, err := r.pipeline.Run(ctx, storm)
	if err == nil {
		err = r.sink.WriteStorm(ctx, out)
		if err != nil {
			err = fmt.Errorf("write storm %s: %w", storm.Code, err)
		}
	}
	elapsed := domain.Now().Sub(started)
	r.metrics.StormDuration.Observe(elapsed.Seconds())

	res := Result{
		Code:     storm.Code,
		Name:     storm.Name,
		Rows:     len(out.Rows),
		Err:      err,
		Duration: elapsed,
	}

	switch {
	case err == nil:
		r.metrics.StormsProcessed.WithLabelValues("success").Inc()
		r.logger.Info("storm aligned",
			"storm", storm.Code, "name", storm.Name, "rows", res.Rows, "duration", elapsed)
	case errors.Is(err, domain.ErrDegenerateTrack):
		res.Rows = 0
		r.metrics.StormsProcessed.WithLabelValues("skipped").Inc()
		r.logger.Warn("storm skipped, track too short", "storm", storm.Code, "name", storm.Name)
	default:
		res.Rows = 0
		r.metrics.StormsProcessed.WithLabelValues("error").Inc()
		r.logger.Error("storm failed", "storm", storm.Code, "name", storm.Name, "error", err)
	}

	r.processed.Add(1)
	return res
}

// Processed returns how many storms have finished, successfully or not.
func (r *Runner) Processed() int64 {
	return r.processed.Load()
}

// CheckReadiness reports whether the runner has finished at least one
// storm, for readiness probes.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if r.processed.Load() == 0 {
		return errors.New("no storms processed yet")
	}
	return nil
}
