package domain

import "errors"

var (
	// ErrInvalidRange reports a malformed binning request: end not after
	// start, or a non-positive interval. Fatal for the storm, not the batch.
	ErrInvalidRange = errors.New("invalid time range")

	// ErrDegenerateTrack reports a track with fewer than two points, which
	// cannot be interpolated. The storm is skipped and logged.
	ErrDegenerateTrack = errors.New("degenerate track")

	// ErrStormNotFound reports a storm code absent from a source.
	ErrStormNotFound = errors.New("storm not found")
)
