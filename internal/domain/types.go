package domain

import "time"

// TrackPoint is one best-track fix. Points for a storm are ordered by time
// with no duplicate timestamps, and are immutable once loaded.
type TrackPoint struct {
	Time        time.Time
	Lat         float64
	Lon         float64
	MaxWind     *float64 // knots, nil when unreported
	MinPressure *float64 // millibars, nil when unreported
	RMW         *float64 // radius of maximum winds, nautical miles
	Status      string   // system status code, e.g. "HU", "TS"
}

// Bin is one fixed-width time interval. Bins are derived, contiguous and
// non-overlapping; the last bin of a storm may be shorter than the nominal
// width. A bin is identified by its midpoint.
type Bin struct {
	Start time.Time
	Mid   time.Time
	End   time.Time
}

// ScalarRecord is one timestamped set of named predictor values, e.g. a
// SHIPS block. Scalar series are independent of the track series.
type ScalarRecord struct {
	Time   time.Time
	Fields map[string]float64
}

// EventRecord is one point event (a GLM lightning group) with its payload
// fields (energy, area, quality flag).
type EventRecord struct {
	Time    time.Time
	Lat     float64
	Lon     float64
	Payload map[string]float64
}

// PathPoint is the storm position interpolated onto one bin midpoint.
// Clamped marks midpoints outside the track span that were pinned to the
// nearest endpoint instead of extrapolated. RMW is carried from the
// nearest fix in time (nautical miles, nil when unreported) for
// distance-based event filtering.
type PathPoint struct {
	Time    time.Time
	Lat     float64
	Lon     float64
	RMW     *float64
	Clamped bool
}

// Row is one output row: everything known about a storm during one bin.
// Scalars holds one entry per declared field; a nil value means no record
// fell within the alignment tolerance. EventCount is always present — zero
// means no lightning, not missing data.
type Row struct {
	Bin        Bin
	Lat        float64
	Lon        float64
	Clamped    bool
	Scalars    map[string]*float64
	EventCount int64
	Aggregates map[string]float64
}

// StormInfo is one catalog entry derived from the best-track file.
type StormInfo struct {
	Code     string // ATCF ID, e.g. "AL092022"
	Name     string
	Year     int
	Start    time.Time
	End      time.Time
	Statuses []string // distinct status codes, in order first reached
}

// ReachedStatus reports whether the storm reached the given status code.
func (s StormInfo) ReachedStatus(code string) bool {
	for _, st := range s.Statuses {
		if st == code {
			return true
		}
	}
	return false
}

// StormOutput is the aligned table for one storm: one Row per Bin, in bin
// order. ProducedAt comes from the package clock so fixture generation and
// tests can freeze it.
type StormOutput struct {
	Code       string
	Name       string
	Year       int
	Rows       []Row
	ProducedAt time.Time
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
