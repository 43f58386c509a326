package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/storm-lightning-align/internal/align"
	"github.com/couchcryptid/storm-lightning-align/internal/domain"
	"github.com/couchcryptid/storm-lightning-align/internal/observability"
)

// TrackSource provides the storm catalog and per-storm best-track series.
type TrackSource interface {
	Storms(ctx context.Context) ([]domain.StormInfo, error)
	Track(ctx context.Context, code string) ([]domain.TrackPoint, error)
}

// ScalarSource provides a storm's scalar predictor series.
type ScalarSource interface {
	Scalars(ctx context.Context, code string) ([]domain.ScalarRecord, error)
}

// EventSourceFactory opens the event stream covering one storm's time
// window. Resources held by the stream (caches, connections) are released
// by its Close.
type EventSourceFactory interface {
	Events(ctx context.Context, storm domain.StormInfo, w domain.Window) (align.EventSource, error)
}

// Options carries the alignment parameters for one pipeline instance.
type Options struct {
	Interval    time.Duration // bin width
	BoxSize     float64       // degrees
	RMWMultiple float64       // RMW distance cut multiple; 0 disables
	Tolerance   time.Duration // scalar nearest-neighbor tolerance; <= 0 means no limit
	Fields      []string      // declared scalar fields
	Reductions  []align.Reduction
}

// Pipeline aligns one storm at a time: bins from the track span, path onto
// bin midpoints, then scalar alignment and event aggregation concurrently
// (both only read the bins and path). Pipelines hold no mutable state
// between storms; cross-storm parallelism is the Runner's job, with one
// Pipeline per worker.
type Pipeline struct {
	tracks  TrackSource
	scalars ScalarSource
	events  EventSourceFactory
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Pipeline with the given sources and alignment options.
func New(tracks TrackSource, scalars ScalarSource, events EventSourceFactory, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		tracks:  tracks,
		scalars: scalars,
		events:  events,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Run aligns one storm and returns its output table. Errors are fatal for
// this storm only; inside a storm, scalar and event failures degrade to
// missing/zero values so the one-row-per-bin invariant holds.
func (p *Pipeline) Run(ctx context.Context, storm domain.StormInfo) (domain.StormOutput, error) {
	track, err := p.tracks.Track(ctx, storm.Code)
	if err != nil {
		return domain.StormOutput{}, fmt.Errorf("load track for %s: %w", storm.Code, err)
	}
	if len(track) < 2 {
		return domain.StormOutput{}, fmt.Errorf("storm %s: %w", storm.Code, domain.ErrDegenerateTrack)
	}

	bins, err := align.Bins(track[0].Time, track[len(track)-1].Time, p.opts.Interval)
	if err != nil {
		return domain.StormOutput{}, fmt.Errorf("storm %s: %w", storm.Code, err)
	}

	path, err := align.InterpolatePath(track, bins)
	if err != nil {
		return domain.StormOutput{}, fmt.Errorf("storm %s: %w", storm.Code, err)
	}
	for _, pt := range path {
		if pt.Clamped {
			p.metrics.ClampedPoints.Inc()
		}
	}

	scalars, stats := p.alignAndAggregate(ctx, storm, bins, path)
	if err := ctx.Err(); err != nil {
		return domain.StormOutput{}, err
	}

	rows := make([]domain.Row, len(bins))
	for i, b := range bins {
		rows[i] = domain.Row{
			Bin:        b,
			Lat:        path[i].Lat,
			Lon:        path[i].Lon,
			Clamped:    path[i].Clamped,
			Scalars:    scalars[i],
			EventCount: stats[i].Count,
			Aggregates: stats[i].Aggregates,
		}
	}
	p.metrics.BinsProduced.Add(float64(len(rows)))

	return domain.StormOutput{
		Code:       storm.Code,
		Name:       storm.Name,
		Year:       storm.Year,
		Rows:       rows,
		ProducedAt: domain.Now(),
	}, nil
}

// alignAndAggregate runs the scalar aligner and event aggregator in
// parallel over the shared read-only bins and path, degrading either side
// to missing/zero on failure.
func (p *Pipeline) alignAndAggregate(ctx context.Context, storm domain.StormInfo, bins []domain.Bin, path []domain.PathPoint) ([]map[string]*float64, []align.BinStats) {
	var (
		wg      sync.WaitGroup
		scalars []map[string]*float64
		stats   []align.BinStats
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		scalars = p.alignScalars(ctx, storm, bins)
	}()
	go func() {
		defer wg.Done()
		stats = p.aggregateEvents(ctx, storm, bins, path)
	}()
	wg.Wait()

	return scalars, stats
}

func (p *Pipeline) alignScalars(ctx context.Context, storm domain.StormInfo, bins []domain.Bin) []map[string]*float64 {
	series, err := p.scalars.Scalars(ctx, storm.Code)
	if err != nil {
		p.logger.Warn("scalar series unavailable, all fields missing",
			"storm", storm.Code, "error", err)
		series = nil
	}

	rows := align.AlignScalars(series, bins, p.opts.Fields, p.opts.Tolerance)
	for i, row := range rows {
		for field, v := range row {
			if v == nil {
				p.metrics.ScalarMisses.Inc()
				p.logger.Debug("scalar beyond tolerance",
					"storm", storm.Code, "bin_mid", bins[i].Mid, "field", field)
			}
		}
	}
	return rows
}

func (p *Pipeline) aggregateEvents(ctx context.Context, storm domain.StormInfo, bins []domain.Bin, path []domain.PathPoint) []align.BinStats {
	agg, err := align.NewAggregator(p.opts.BoxSize, p.opts.RMWMultiple, p.opts.Reductions)
	if err == nil {
		var stats []align.BinStats
		stats, err = p.streamEvents(ctx, agg, storm, bins, path)
		if err == nil {
			return stats
		}
	}

	p.logger.Warn("event aggregation unavailable, counts zeroed",
		"storm", storm.Code, "error", err)
	return emptyStats(bins, p.opts.Reductions)
}

func (p *Pipeline) streamEvents(ctx context.Context, agg *align.Aggregator, storm domain.StormInfo, bins []domain.Bin, path []domain.PathPoint) ([]align.BinStats, error) {
	src, err := p.events.Events(ctx, storm, domain.Window{
		Start: bins[0].Start,
		End:   bins[len(bins)-1].End,
	})
	if err != nil {
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			p.logger.Warn("close event stream", "storm", storm.Code, "error", cerr)
		}
	}()

	stats, dropped, err := agg.Aggregate(ctx, src, path, bins)
	if err != nil {
		return nil, err
	}

	var matched int64
	for _, s := range stats {
		matched += s.Count
	}
	p.metrics.EventsMatched.Add(float64(matched))
	p.metrics.EventsDropped.Add(float64(dropped))
	return stats, nil
}

// emptyStats builds zero-count stats so degraded storms still produce one
// row per bin.
func emptyStats(bins []domain.Bin, reductions []align.Reduction) []align.BinStats {
	stats := make([]align.BinStats, len(bins))
	for i, b := range bins {
		aggs := make(map[string]float64, len(reductions))
		for _, r := range reductions {
			aggs[r.Name()] = 0
		}
		stats[i] = align.BinStats{Mid: b.Mid, Aggregates: aggs}
	}
	return stats
}
