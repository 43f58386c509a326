package align

import (
	"fmt"
	"math"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

// InterpolatePath resamples a storm track onto the bin midpoints, one
// PathPoint per bin in bin order. Position between two fixes is a linear
// blend in latitude and longitude, with longitude taken along the shorter
// arc so tracks crossing the antimeridian interpolate through ±180 rather
// than through 0. This approximates a great circle well enough at best-track
// granularity (fixes every six hours, a few degrees apart).
//
// Midpoints before the first fix or after the last are clamped to that
// endpoint and flagged; the track is never extrapolated. Output timestamps
// are the bin midpoints themselves, not the nearest fix times. The radius
// of maximum winds is not interpolated; each point carries the RMW of the
// fix nearest in time (earlier fix on a tie).
func InterpolatePath(track []domain.TrackPoint, bins []domain.Bin) ([]domain.PathPoint, error) {
	if len(track) < 2 {
		return nil, fmt.Errorf("track has %d points: %w", len(track), domain.ErrDegenerateTrack)
	}

	first, last := track[0], track[len(track)-1]
	out := make([]domain.PathPoint, 0, len(bins))

	// Bins arrive in time order, so the bracketing segment only advances.
	seg := 0
	for _, b := range bins {
		mid := b.Mid
		switch {
		case !mid.After(first.Time):
			out = append(out, domain.PathPoint{
				Time: mid, Lat: first.Lat, Lon: first.Lon, RMW: first.RMW,
				Clamped: mid.Before(first.Time),
			})
		case !mid.Before(last.Time):
			out = append(out, domain.PathPoint{
				Time: mid, Lat: last.Lat, Lon: last.Lon, RMW: last.RMW,
				Clamped: mid.After(last.Time),
			})
		default:
			for track[seg+1].Time.Before(mid) {
				seg++
			}
			p0, p1 := track[seg], track[seg+1]
			w := float64(mid.Sub(p0.Time)) / float64(p1.Time.Sub(p0.Time))
			rmw := p0.RMW
			if mid.Sub(p0.Time) > p1.Time.Sub(mid) {
				rmw = p1.RMW
			}
			out = append(out, domain.PathPoint{
				Time: mid,
				Lat:  p0.Lat + w*(p1.Lat-p0.Lat),
				Lon:  lerpLon(p0.Lon, p1.Lon, w),
				RMW:  rmw,
			})
		}
	}
	return out, nil
}

// lerpLon blends two longitudes along the shorter arc.
func lerpLon(a, b, w float64) float64 {
	return normalizeLon(a + w*lonDelta(a, b))
}

// lonDelta returns the signed shortest angular distance from a to b,
// in [-180, 180).
func lonDelta(a, b float64) float64 {
	d := math.Mod(b-a+540, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}

// normalizeLon wraps a longitude into [-180, 180).
func normalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
