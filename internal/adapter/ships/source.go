package ships

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

// Source serves per-storm scalar series from a SHIPS diagnostics URL,
// fetching and parsing the file once on first use.
type Source struct {
	client *http.Client
	url    string
	logger *slog.Logger

	once   sync.Once
	err    error
	series map[string][]domain.ScalarRecord
}

// NewSource creates a Source for the given SHIPS URL.
func NewSource(client *http.Client, url string, logger *slog.Logger) *Source {
	return &Source{client: client, url: url, logger: logger}
}

// Scalars returns the storm's predictor series in chronological order. A
// storm absent from the file yields an empty series, not an error: the
// aligner represents the gap as missing values.
func (s *Source) Scalars(ctx context.Context, code string) ([]domain.ScalarRecord, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	series, ok := s.series[code]
	if !ok {
		s.logger.Debug("storm absent from ships file", "storm", code, "url", s.url)
	}
	return series, nil
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
		return fmt.Errorf("build ships request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch ships: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch ships: unexpected status %d", resp.StatusCode)
	}

	records, err := Parse(resp.Body)
	if err != nil {
		return err
	}

	s.series = make(map[string][]domain.ScalarRecord)
	for _, rec := range records {
		s.series[rec.Code] = append(s.series[rec.Code], rec.Scalar)
	}
	for code := range s.series {
		sort.Slice(s.series[code], func(i, j int) bool {
			return s.series[code][i].Time.Before(s.series[code][j].Time)
		})
	}
	s.logger.Info("ships predictors loaded",
		"url", s.url, "blocks", len(records), "storms", len(s.series))
	return nil
}
