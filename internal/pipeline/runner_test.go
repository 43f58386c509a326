package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

type mockSink struct {
	mu      sync.Mutex
	written []domain.StormOutput
	err     error
}

func (m *mockSink) WriteStorm(_ context.Context, out domain.StormOutput) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, out)
	return nil
}

// catalogTracks serves a different track per storm code.
type catalogTracks struct {
	tracks map[string][]domain.TrackPoint
}

func (c *catalogTracks) Storms(context.Context) ([]domain.StormInfo, error) { return nil, nil }

func (c *catalogTracks) Track(_ context.Context, code string) ([]domain.TrackPoint, error) {
	track, ok := c.tracks[code]
	if !ok {
		return nil, domain.ErrStormNotFound
	}
	return track, nil
}

func twoPointTrack(lat float64) []domain.TrackPoint {
	return []domain.TrackPoint{
		{Time: ts(0, 0), Lat: lat, Lon: -82.0},
		{Time: ts(2, 0), Lat: lat + 1, Lon: -81.0},
	}
}

func testRunner(tracks TrackSource, sink RowSink, workers int) *Runner {
	p := testPipeline(tracks, &mockScalars{}, &mockEvents{})
	return NewRunner(p, sink, workers, p.logger, p.metrics)
}

func TestRunner_Run(t *testing.T) {
	tracks := &catalogTracks{tracks: map[string][]domain.TrackPoint{
		"AL092022": twoPointTrack(24),
		"AL072008": twoPointTrack(18),
		"EP022014": twoPointTrack(12),
	}}
	sink := &mockSink{}
	runner := testRunner(tracks, sink, 2)

	storms := []domain.StormInfo{
		{Code: "AL092022", Name: "IAN", Year: 2022},
		{Code: "AL072008", Name: "GUSTAV", Year: 2008},
		{Code: "EP022014", Name: "BORIS", Year: 2014},
	}
	results := runner.Run(context.Background(), storms)
	require.Len(t, results, 3)

	// Results keep catalog order regardless of worker scheduling.
	for i, res := range results {
		assert.Equal(t, storms[i].Code, res.Code)
		require.NoError(t, res.Err)
		assert.Equal(t, 2, res.Rows)
	}
	assert.Len(t, sink.written, 3)
}

func TestRunner_Run_IsolatesFailures(t *testing.T) {
	tracks := &catalogTracks{tracks: map[string][]domain.TrackPoint{
		"AL092022": twoPointTrack(24),
		"AL052019": {{Time: ts(0, 0), Lat: 30, Lon: -70}}, // single fix
	}}
	sink := &mockSink{}
	runner := testRunner(tracks, sink, 1)

	results := runner.Run(context.Background(), []domain.StormInfo{
		{Code: "AL052019", Name: "DORIAN", Year: 2019},
		{Code: "AL092022", Name: "IAN", Year: 2022},
		{Code: "CP012020", Name: "UNKNOWN", Year: 2020},
	})
	require.Len(t, results, 3)

	assert.ErrorIs(t, results[0].Err, domain.ErrDegenerateTrack)
	assert.NoError(t, results[1].Err)
	assert.ErrorIs(t, results[2].Err, domain.ErrStormNotFound)

	require.Len(t, sink.written, 1, "only the healthy storm reaches the sink")
	assert.Equal(t, "AL092022", sink.written[0].Code)
}

func TestRunner_Run_SinkError(t *testing.T) {
	tracks := &catalogTracks{tracks: map[string][]domain.TrackPoint{
		"AL092022": twoPointTrack(24),
	}}
	sink := &mockSink{err: errors.New("disk full")}
	runner := testRunner(tracks, sink, 1)

	results := runner.Run(context.Background(), []domain.StormInfo{
		{Code: "AL092022", Name: "IAN", Year: 2022},
	})
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "disk full")
}

func TestRunner_Run_ContextCancelled(t *testing.T) {
	tracks := &catalogTracks{tracks: map[string][]domain.TrackPoint{}}
	runner := testRunner(tracks, &mockSink{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	storms := make([]domain.StormInfo, 8)
	for i := range storms {
		storms[i] = domain.StormInfo{Code: "AL092022"}
	}
	results := runner.Run(ctx, storms)
	require.Len(t, results, len(storms))

	var cancelled int
	for _, res := range results {
		if errors.Is(res.Err, context.Canceled) {
			cancelled++
		}
	}
	assert.Greater(t, cancelled, 0, "cancellation must surface in unprocessed results")
}

func TestRunner_CheckReadiness(t *testing.T) {
	tracks := &catalogTracks{tracks: map[string][]domain.TrackPoint{
		"AL092022": twoPointTrack(24),
	}}
	runner := testRunner(tracks, &mockSink{}, 1)

	ctx := context.Background()
	assert.Error(t, runner.CheckReadiness(ctx), "not ready before the first storm")

	runner.Run(ctx, []domain.StormInfo{
		{Code: "AL092022", Name: "IAN", Year: 2022},
	})
	assert.NoError(t, runner.CheckReadiness(ctx))
	assert.Equal(t, int64(1), runner.Processed())
}

func TestNewRunner_MinimumWorkers(t *testing.T) {
	runner := testRunner(&catalogTracks{}, &mockSink{}, 0)
	assert.Equal(t, 1, runner.workers)
}
