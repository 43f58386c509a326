package align

import (
	"sort"
	"time"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

// AlignScalars assigns each bin midpoint the nearest-in-time value of every
// declared field, one map per bin in bin order. A field is nil when the
// nearest record carrying it is farther from the midpoint than tolerance;
// a tolerance <= 0 means no limit. Values are selected, never interpolated
// or averaged — SHIPS-style predictors are categorical snapshots, not
// continuous signals. When two records are exactly equidistant the earlier
// one wins, keeping output deterministic.
//
// The input series need not contain every field in every record; each field
// is aligned against the records that carry it.
func AlignScalars(series []domain.ScalarRecord, bins []domain.Bin, fields []string, tolerance time.Duration) []map[string]*float64 {
	out := make([]map[string]*float64, len(bins))
	for i := range out {
		out[i] = make(map[string]*float64, len(fields))
		for _, f := range fields {
			out[i][f] = nil
		}
	}

	for _, field := range fields {
		times, values := fieldSeries(series, field)
		if len(times) == 0 {
			continue
		}
		for i, b := range bins {
			if v, ok := nearestWithin(times, values, b.Mid, tolerance); ok {
				v := v
				out[i][field] = &v
			}
		}
	}
	return out
}

// fieldSeries extracts the (time, value) sub-series of records carrying the
// field, preserving input order (series are time-ordered per storm).
func fieldSeries(series []domain.ScalarRecord, field string) ([]time.Time, []float64) {
	var times []time.Time
	var values []float64
	for _, rec := range series {
		if v, ok := rec.Fields[field]; ok {
			times = append(times, rec.Time)
			values = append(values, v)
		}
	}
	return times, values
}

// nearestWithin returns the value whose timestamp is closest to t, provided
// the gap is within tolerance. Ties prefer the earlier record.
func nearestWithin(times []time.Time, values []float64, t time.Time, tolerance time.Duration) (float64, bool) {
	// First record at or after t.
	i := sort.Search(len(times), func(i int) bool { return !times[i].Before(t) })

	best := -1
	var bestGap time.Duration
	if i > 0 {
		best = i - 1
		bestGap = t.Sub(times[i-1])
	}
	if i < len(times) {
		gap := times[i].Sub(t)
		// Strict < keeps the earlier record on an exact tie.
		if best == -1 || gap < bestGap {
			best = i
			bestGap = gap
		}
	}
	if best == -1 {
		return 0, false
	}
	if tolerance > 0 && bestGap > tolerance {
		return 0, false
	}
	return values[best], true
}
