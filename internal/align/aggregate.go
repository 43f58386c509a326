package align

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

// EventSource is a lazy stream of event records. Next returns io.EOF when
// the stream is drained. Sources may be unbounded in size; the aggregator
// holds only per-bin accumulators, never the events themselves.
type EventSource interface {
	Next(ctx context.Context) (domain.EventRecord, error)
	Close() error
}

// ReduceOp names a payload reduction.
type ReduceOp string

const (
	ReduceSum  ReduceOp = "sum"
	ReduceMean ReduceOp = "mean"
	ReduceMax  ReduceOp = "max"
)

// Reduction declares one payload field reduction computed per bin in
// addition to the event count.
type Reduction struct {
	Field string
	Op    ReduceOp
}

// Name is the output column for this reduction, e.g. "energy_sum".
func (r Reduction) Name() string { return r.Field + "_" + string(r.Op) }

// BinStats holds the aggregates for one bin. Count 0 is a real measurement
// (no lightning), not missing data. Reductions over an empty bin report 0.
type BinStats struct {
	Mid        time.Time
	Count      int64
	Aggregates map[string]float64
}

// Aggregator attributes event records to bins and reduces their payloads.
// An event belongs to a bin iff its timestamp is in [bin.Start, bin.End)
// and its position is inside the fixed-degree box centered on that bin's
// interpolated path point. With a positive RMW multiple, events inside the
// box must additionally lie within rmwMult x RMW great-circle distance of
// the center; the cut is skipped for bins whose RMW is unreported. Events
// matching no bin are dropped silently.
type Aggregator struct {
	halfBox    float64
	rmwMult    float64
	reductions []Reduction
}

// NewAggregator creates an Aggregator with the given box edge length in
// degrees (a box of size 6 spans ±3 around the center), the RMW multiple
// for the distance cut (0 disables it), and the reductions to compute
// beyond the mandatory count.
func NewAggregator(boxSizeDegrees, rmwMultiple float64, reductions []Reduction) (*Aggregator, error) {
	if boxSizeDegrees <= 0 {
		return nil, fmt.Errorf("box size %g degrees: %w", boxSizeDegrees, domain.ErrInvalidRange)
	}
	if rmwMultiple < 0 {
		return nil, fmt.Errorf("rmw multiple %g: %w", rmwMultiple, domain.ErrInvalidRange)
	}
	return &Aggregator{halfBox: boxSizeDegrees / 2, rmwMult: rmwMultiple, reductions: reductions}, nil
}

// binAcc accumulates one bin's statistics during a streaming pass.
type binAcc struct {
	count int64
	sum   []float64
	max   []float64
	n     []int64
}

// Aggregate drains src in a single pass and returns one BinStats per bin in
// bin order, plus the number of events dropped for falling outside every
// bin's window. path must be the interpolated positions for the same bins
// (one per bin). Bins are temporally exclusive, so each event is located by
// binary search on its timestamp and then tested against that bin's box.
func (a *Aggregator) Aggregate(ctx context.Context, src EventSource, path []domain.PathPoint, bins []domain.Bin) ([]BinStats, int64, error) {
	if len(path) != len(bins) {
		return nil, 0, fmt.Errorf("path has %d points for %d bins: %w", len(path), len(bins), domain.ErrInvalidRange)
	}

	accs := make([]binAcc, len(bins))
	for i := range accs {
		accs[i] = binAcc{
			sum: make([]float64, len(a.reductions)),
			max: make([]float64, len(a.reductions)),
			n:   make([]int64, len(a.reductions)),
		}
	}

	var dropped int64
	for {
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, dropped, fmt.Errorf("read event: %w", err)
		}

		i, ok := locateBin(bins, ev.Time)
		if !ok || !a.inBox(path[i], ev) {
			dropped++
			continue
		}

		acc := &accs[i]
		acc.count++
		for r, red := range a.reductions {
			v, ok := ev.Payload[red.Field]
			if !ok {
				continue
			}
			acc.sum[r] += v
			if acc.n[r] == 0 || v > acc.max[r] {
				acc.max[r] = v
			}
			acc.n[r]++
		}
	}

	stats := make([]BinStats, len(bins))
	for i, b := range bins {
		stats[i] = BinStats{Mid: b.Mid, Count: accs[i].count, Aggregates: a.finish(&accs[i])}
	}
	return stats, dropped, nil
}

// locateBin finds the bin whose [Start, End) window contains t.
func locateBin(bins []domain.Bin, t time.Time) (int, bool) {
	i := sort.Search(len(bins), func(i int) bool { return bins[i].End.After(t) })
	if i == len(bins) || t.Before(bins[i].Start) {
		return 0, false
	}
	return i, true
}

// inBox tests the event position against the box centered on the path
// point, then against the RMW distance cut when one applies. Latitude
// bounds are inclusive; longitude distance is measured along the shorter
// arc so boxes straddling the antimeridian still work.
func (a *Aggregator) inBox(center domain.PathPoint, ev domain.EventRecord) bool {
	if math.Abs(ev.Lat-center.Lat) > a.halfBox {
		return false
	}
	if math.Abs(lonDelta(center.Lon, ev.Lon)) > a.halfBox {
		return false
	}
	if a.rmwMult > 0 && center.RMW != nil {
		maxDist := a.rmwMult * *center.RMW * metersPerNauticalMile
		return distanceMeters(center.Lat, center.Lon, ev.Lat, ev.Lon) < maxDist
	}
	return true
}

const (
	metersPerNauticalMile = 1852.0
	earthRadiusMeters     = 6371e3
)

// distanceMeters is the haversine great-circle distance between two
// positions, accurate to well under a percent at storm scales.
func distanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := lonDelta(lon1, lon2) * rad
	s := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(s))
}

// finish materializes the aggregate map for one bin.
func (a *Aggregator) finish(acc *binAcc) map[string]float64 {
	out := make(map[string]float64, len(a.reductions))
	for r, red := range a.reductions {
		switch red.Op {
		case ReduceMean:
			if acc.n[r] > 0 {
				out[red.Name()] = acc.sum[r] / float64(acc.n[r])
			} else {
				out[red.Name()] = 0
			}
		case ReduceMax:
			out[red.Name()] = acc.max[r]
		default:
			out[red.Name()] = acc.sum[r]
		}
	}
	return out
}
