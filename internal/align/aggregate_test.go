package align

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceSource serves events from memory, in the order given.
type sliceSource struct {
	events []domain.EventRecord
	i      int
}

func (s *sliceSource) Next(_ context.Context) (domain.EventRecord, error) {
	if s.i >= len(s.events) {
		return domain.EventRecord{}, io.EOF
	}
	ev := s.events[s.i]
	s.i++
	return ev, nil
}

func (s *sliceSource) Close() error { return nil }

func event(h, m int, lat, lon float64, payload map[string]float64) domain.EventRecord {
	return domain.EventRecord{Time: date(h, m), Lat: lat, Lon: lon, Payload: payload}
}

func window(h, m int) (domain.Bin, domain.PathPoint) {
	start := date(h, m)
	b := domain.Bin{Start: start, Mid: start.Add(15 * time.Minute), End: start.Add(30 * time.Minute)}
	return b, domain.PathPoint{Time: b.Mid, Lat: 25.0, Lon: -80.0}
}

func TestAggregate_TemporalAndSpatialWindow(t *testing.T) {
	bin, center := window(6, 0)
	agg, err := NewAggregator(6, 0, nil)
	require.NoError(t, err)

	src := &sliceSource{events: []domain.EventRecord{
		event(6, 10, 25.0, -80.0, nil), // inside both windows
		event(6, 40, 25.0, -80.0, nil), // spatially inside, temporally out
		event(6, 10, 29.0, -80.0, nil), // temporally inside, north of the box
		event(6, 10, 25.0, -84.5, nil), // temporally inside, west of the box
	}}

	stats, dropped, err := agg.Aggregate(context.Background(), src, []domain.PathPoint{center}, []domain.Bin{bin})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].Count)
	assert.Equal(t, int64(3), dropped)
}

func TestAggregate_BinEndExclusive(t *testing.T) {
	bin, center := window(6, 0)
	agg, err := NewAggregator(6, 0, nil)
	require.NoError(t, err)

	src := &sliceSource{events: []domain.EventRecord{
		event(6, 0, 25.0, -80.0, nil),  // start is inclusive
		event(6, 30, 25.0, -80.0, nil), // end is exclusive
	}}

	stats, dropped, err := agg.Aggregate(context.Background(), src, []domain.PathPoint{center}, []domain.Bin{bin})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[0].Count)
	assert.Equal(t, int64(1), dropped)
}

func TestAggregate_ZeroEventBinsReportZero(t *testing.T) {
	bins, err := Bins(date(6, 0), date(8, 0), 30*time.Minute)
	require.NoError(t, err)
	path := make([]domain.PathPoint, len(bins))
	for i, b := range bins {
		path[i] = domain.PathPoint{Time: b.Mid, Lat: 25, Lon: -80}
	}

	agg, err := NewAggregator(6, 0, []Reduction{{Field: "energy", Op: ReduceSum}})
	require.NoError(t, err)

	src := &sliceSource{events: []domain.EventRecord{
		event(6, 40, 25.0, -80.0, map[string]float64{"energy": 2e-15}),
	}}

	stats, _, err := agg.Aggregate(context.Background(), src, path, bins)
	require.NoError(t, err)
	require.Len(t, stats, len(bins), "one stats row per bin, always")

	assert.Equal(t, int64(0), stats[0].Count)
	assert.Equal(t, 0.0, stats[0].Aggregates["energy_sum"])
	assert.Equal(t, int64(1), stats[1].Count)
	assert.Equal(t, 2e-15, stats[1].Aggregates["energy_sum"])
}

func TestAggregate_Reductions(t *testing.T) {
	bin, center := window(6, 0)
	agg, err := NewAggregator(6, 0, []Reduction{
		{Field: "energy", Op: ReduceSum},
		{Field: "energy", Op: ReduceMean},
		{Field: "area", Op: ReduceMax},
	})
	require.NoError(t, err)

	src := &sliceSource{events: []domain.EventRecord{
		event(6, 5, 25.0, -80.0, map[string]float64{"energy": 1, "area": 100}),
		event(6, 10, 25.5, -79.5, map[string]float64{"energy": 3, "area": 400}),
		event(6, 15, 24.5, -80.5, map[string]float64{"energy": 2, "area": 250}),
	}}

	stats, _, err := agg.Aggregate(context.Background(), src, []domain.PathPoint{center}, []domain.Bin{bin})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats[0].Count)
	assert.InDelta(t, 6.0, stats[0].Aggregates["energy_sum"], 1e-9)
	assert.InDelta(t, 2.0, stats[0].Aggregates["energy_mean"], 1e-9)
	assert.InDelta(t, 400.0, stats[0].Aggregates["area_max"], 1e-9)
}

func TestAggregate_UnsortedStream(t *testing.T) {
	bins, err := Bins(date(6, 0), date(7, 0), 30*time.Minute)
	require.NoError(t, err)
	path := []domain.PathPoint{
		{Time: bins[0].Mid, Lat: 25, Lon: -80},
		{Time: bins[1].Mid, Lat: 26, Lon: -81},
	}

	agg, err := NewAggregator(6, 0, nil)
	require.NoError(t, err)

	// Event order deliberately scrambled relative to bin order.
	src := &sliceSource{events: []domain.EventRecord{
		event(6, 45, 26.0, -81.0, nil),
		event(6, 5, 25.0, -80.0, nil),
		event(6, 50, 26.0, -81.0, nil),
		event(6, 20, 25.0, -80.0, nil),
	}}

	stats, dropped, err := agg.Aggregate(context.Background(), src, path, bins)
	require.NoError(t, err)
	assert.Equal(t, int64(0), dropped)
	assert.Equal(t, int64(2), stats[0].Count)
	assert.Equal(t, int64(2), stats[1].Count)
}

func TestAggregate_BoxAcrossAntimeridian(t *testing.T) {
	bin, _ := window(6, 0)
	center := domain.PathPoint{Time: bin.Mid, Lat: 15, Lon: 179}
	agg, err := NewAggregator(6, 0, nil)
	require.NoError(t, err)

	src := &sliceSource{events: []domain.EventRecord{
		event(6, 10, 15.0, -179.0, nil), // 2 degrees east of center, across the line
		event(6, 10, 15.0, 175.0, nil),  // 4 degrees west, outside ±3
	}}

	stats, dropped, err := agg.Aggregate(context.Background(), src, []domain.PathPoint{center}, []domain.Bin{bin})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[0].Count)
	assert.Equal(t, int64(1), dropped)
}

func TestAggregate_RMWDistanceCut(t *testing.T) {
	bin, _ := window(6, 0)
	rmw := 30.0 // nm; x5 = 150 nm ≈ 277.8 km around the center
	center := domain.PathPoint{Time: bin.Mid, Lat: 25.0, Lon: -80.0, RMW: &rmw}
	agg, err := NewAggregator(6, 5, nil)
	require.NoError(t, err)

	src := &sliceSource{events: []domain.EventRecord{
		event(6, 10, 25.0, -80.0, nil), // at the center
		event(6, 10, 26.0, -80.0, nil), // ~111 km out, within the cut
		event(6, 10, 27.8, -80.0, nil), // ~311 km out, inside the box but past the cut
	}}

	stats, dropped, err := agg.Aggregate(context.Background(), src, []domain.PathPoint{center}, []domain.Bin{bin})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats[0].Count)
	assert.Equal(t, int64(1), dropped)
}

func TestAggregate_RMWCutSkippedWhenUnreported(t *testing.T) {
	bin, center := window(6, 0) // center.RMW is nil
	agg, err := NewAggregator(6, 5, nil)
	require.NoError(t, err)

	src := &sliceSource{events: []domain.EventRecord{
		event(6, 10, 27.8, -80.0, nil), // would fail any plausible RMW cut
	}}

	stats, dropped, err := agg.Aggregate(context.Background(), src, []domain.PathPoint{center}, []domain.Bin{bin})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[0].Count, "box alone decides when RMW is missing")
	assert.Equal(t, int64(0), dropped)
}

func TestNewAggregator_InvalidParams(t *testing.T) {
	_, err := NewAggregator(0, 0, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = NewAggregator(-2, 0, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = NewAggregator(6, -1, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}
