package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

// Region binds one basin to its data sources and processing time range.
type Region struct {
	BestTrackURL string    `yaml:"besttrack_url"`
	ShipsURL     string    `yaml:"ships_url"`
	Start        time.Time `yaml:"start"`
	End          time.Time `yaml:"end"`
}

// Window returns the region's processing window. Both bounds zero means
// no time filter.
func (r Region) Window() domain.Window {
	return domain.Window{Start: r.Start, End: r.End}
}

// Catalog maps region names to their configuration.
type Catalog struct {
	Regions map[string]Region `yaml:"regions"`
}

// LoadCatalog reads and validates the region catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region catalog: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse region catalog %s: %w", path, err)
	}
	if len(catalog.Regions) == 0 {
		return nil, fmt.Errorf("region catalog %s: no regions defined", path)
	}

	for name, region := range catalog.Regions {
		if region.BestTrackURL == "" {
			return nil, fmt.Errorf("region %s: besttrack_url is required", name)
		}
		if region.ShipsURL == "" {
			return nil, fmt.Errorf("region %s: ships_url is required", name)
		}
		if !region.Start.IsZero() && !region.End.IsZero() && !region.End.After(region.Start) {
			return nil, fmt.Errorf("region %s: end must be after start", name)
		}
	}
	return &catalog, nil
}

// Region returns the named region.
func (c *Catalog) Region(name string) (Region, error) {
	region, ok := c.Regions[name]
	if !ok {
		return Region{}, fmt.Errorf("region %q not in catalog", name)
	}
	return region, nil
}
