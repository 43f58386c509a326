// Package align implements the resampling core: time binning, track
// interpolation, nearest-neighbor scalar alignment, and spatio-temporal
// event aggregation. Everything here is pure computation over domain types;
// I/O stays in the adapters.
package align

import (
	"fmt"
	"time"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

// Bins returns the ordered sequence of bins covering [start, end). Bin i
// starts at start + i*interval; the final bin is truncated to end when the
// span is not an exact multiple of the interval, never dropped or padded.
// The midpoint is the arithmetic mean of the bin's own start and end, so a
// truncated final bin has a correspondingly earlier midpoint.
func Bins(start, end time.Time, interval time.Duration) ([]domain.Bin, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("bin range %s..%s: %w", start.Format(time.RFC3339), end.Format(time.RFC3339), domain.ErrInvalidRange)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("bin interval %s: %w", interval, domain.ErrInvalidRange)
	}

	span := end.Sub(start)
	n := int(span / interval)
	if span%interval != 0 {
		n++
	}

	bins := make([]domain.Bin, 0, n)
	for i := 0; i < n; i++ {
		bs := start.Add(time.Duration(i) * interval)
		be := bs.Add(interval)
		if be.After(end) {
			be = end
		}
		bins = append(bins, domain.Bin{
			Start: bs,
			Mid:   bs.Add(be.Sub(bs) / 2),
			End:   be,
		})
	}
	return bins, nil
}
