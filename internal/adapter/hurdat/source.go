package hurdat

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

// Source serves the storm catalog and tracks from a HURDAT2 URL, fetching
// and parsing the file once on first use.
type Source struct {
	client         *http.Client
	url            string
	window         domain.Window // zero window disables the filter
	hurricanesOnly bool
	logger         *slog.Logger

	once   sync.Once
	err    error
	storms []domain.StormInfo
	tracks map[string][]domain.TrackPoint
}

// NewSource creates a Source for the given HURDAT2 URL. Storms whose track
// span does not overlap the window are dropped from the catalog; with
// hurricanesOnly set, so are storms that never reach hurricane status.
func NewSource(client *http.Client, url string, window domain.Window, hurricanesOnly bool, logger *slog.Logger) *Source {
	return &Source{
		client:         client,
		url:            url,
		window:         window,
		hurricanesOnly: hurricanesOnly,
		logger:         logger,
	}
}

// Storms returns the filtered storm catalog.
func (s *Source) Storms(ctx context.Context) ([]domain.StormInfo, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s.storms, nil
}

// Track returns the best-track series for one storm code.
func (s *Source) Track(ctx context.Context, code string) ([]domain.TrackPoint, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	track, ok := s.tracks[code]
	if !ok {
		return nil, fmt.Errorf("storm %s: %w", code, domain.ErrStormNotFound)
	}
	return track, nil
}

func (s *Source) load(ctx context.Context) error {
	s.once.Do(func() {
		s.err = s.fetch(ctx)
	})
	return s.err
}

func (s *Source) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("build hurdat2 request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch hurdat2: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch hurdat2: unexpected status %d", resp.StatusCode)
	}

	storms, err := Parse(resp.Body)
	if err != nil {
		return err
	}

	s.tracks = make(map[string][]domain.TrackPoint, len(storms))
	for _, storm := range storms {
		if !s.keep(storm.Info) {
			continue
		}
		s.storms = append(s.storms, storm.Info)
		s.tracks[storm.Info.Code] = storm.Track
	}
	s.logger.Info("best-track catalog loaded",
		"url", s.url, "storms_total", len(storms), "storms_kept", len(s.storms))
	return nil
}

func (s *Source) keep(info domain.StormInfo) bool {
	if s.hurricanesOnly && !info.ReachedStatus("HU") {
		return false
	}
	if s.window.Start.IsZero() && s.window.End.IsZero() {
		return true
	}
	// Keep storms whose span overlaps the processing window.
	return info.Start.Before(s.window.End) && info.End.After(s.window.Start)
}
