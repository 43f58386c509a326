// Package hurdat reads NHC HURDAT2 best-track files and serves them as the
// storm catalog and per-storm track series.
//
// The format interleaves storm headers ("AL092022, IAN, 45,") with fix
// rows ("20220928, 1200, , HU, 26.0N, 82.2W, 135, 940, ..."). Latitude and
// longitude carry hemisphere suffixes, and negative sentinel values mark
// missing wind, pressure, and radius fields.
package hurdat

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

// Storm is one parsed best-track entry: catalog info plus its fix series.
type Storm struct {
	Info  domain.StormInfo
	Track []domain.TrackPoint
}

// rmwColumn is where the radius of maximum winds sits in post-2021 files;
// older rows end before it.
const rmwColumn = 20

// Parse reads a complete HURDAT2 file. Fix rows are returned in file
// order, which the format guarantees is chronological per storm.
func Parse(r io.Reader) ([]Storm, error) {
	var (
		storms  []Storm
		current *Storm
	)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := splitFields(text)

		if isHeader(fields[0]) {
			info, err := parseHeader(fields)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			storms = append(storms, Storm{Info: info})
			current = &storms[len(storms)-1]
			continue
		}

		if current == nil {
			return nil, fmt.Errorf("line %d: fix row before any storm header", line)
		}
		pt, err := parseFix(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d (%s): %w", line, current.Info.Code, err)
		}
		current.Track = append(current.Track, pt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read hurdat2: %w", err)
	}

	for i := range storms {
		finishStorm(&storms[i])
	}
	return storms, nil
}

func splitFields(line string) []string {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// isHeader reports whether the first field is an ATCF code (basin letters
// followed by cyclone number and year) rather than a fix row's date.
func isHeader(field string) bool {
	return len(field) == 8 && field[0] >= 'A' && field[0] <= 'Z'
}

func parseHeader(fields []string) (domain.StormInfo, error) {
	if len(fields) < 2 {
		return domain.StormInfo{}, fmt.Errorf("header needs code and name, got %d fields", len(fields))
	}
	code := fields[0]
	year, err := strconv.Atoi(code[4:])
	if err != nil {
		return domain.StormInfo{}, fmt.Errorf("storm code %q: %w", code, err)
	}
	return domain.StormInfo{
		Code: code,
		Name: fields[1],
		Year: year,
	}, nil
}

func parseFix(fields []string) (domain.TrackPoint, error) {
	if len(fields) < 8 {
		return domain.TrackPoint{}, fmt.Errorf("fix row needs 8 fields, got %d", len(fields))
	}

	ts, err := time.Parse("200601021504", fields[0]+fields[1])
	if err != nil {
		return domain.TrackPoint{}, fmt.Errorf("fix timestamp: %w", err)
	}

	lat, err := parseHemisphere(fields[4], "N", "S")
	if err != nil {
		return domain.TrackPoint{}, err
	}
	lon, err := parseHemisphere(fields[5], "E", "W")
	if err != nil {
		return domain.TrackPoint{}, err
	}

	pt := domain.TrackPoint{
		Time:        ts.UTC(),
		Lat:         lat,
		Lon:         lon,
		Status:      fields[3],
		MaxWind:     parseOptional(fields[6]),
		MinPressure: parseOptional(fields[7]),
	}
	if len(fields) > rmwColumn {
		pt.RMW = parseOptional(fields[rmwColumn])
	}
	return pt, nil
}

// parseHemisphere converts "26.0N" / "82.2W" style coordinates to signed
// degrees: north and east positive.
func parseHemisphere(s, positive, negative string) (float64, error) {
	var sign float64
	switch {
	case strings.HasSuffix(s, positive):
		sign = 1
	case strings.HasSuffix(s, negative):
		sign = -1
	default:
		return 0, fmt.Errorf("coordinate %q: missing hemisphere suffix", s)
	}
	v, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("coordinate %q: %w", s, err)
	}
	return sign * v, nil
}

// parseOptional maps the format's negative sentinels (-99, -999) and blank
// fields to a missing value.
func parseOptional(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

func finishStorm(s *Storm) {
	seen := make(map[string]struct{})
	for _, pt := range s.Track {
		if _, ok := seen[pt.Status]; !ok {
			seen[pt.Status] = struct{}{}
			s.Info.Statuses = append(s.Info.Statuses, pt.Status)
		}
	}
	if len(s.Track) > 0 {
		s.Info.Start = s.Track[0].Time
		s.Info.End = s.Track[len(s.Track)-1].Time
	}
}
