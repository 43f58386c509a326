// Package glm streams lightning group events for one storm window from
// collector-exported CSV objects in S3.
//
// Objects are laid out hour by hour under <prefix>/YYYY/DDD/HH/ (DDD is
// the day of year), and each filename carries the file's coverage start in
// its "s" field, sYYYYDDDHHMMSSt, with a trailing tenths-of-second digit.
package glm

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

// HourPrefixes returns the hour-resolution listing prefixes covering the
// window, oldest first.
func HourPrefixes(prefix string, w domain.Window) []string {
	var prefixes []string
	for h := w.Start.UTC().Truncate(time.Hour); h.Before(w.End); h = h.Add(time.Hour) {
		prefixes = append(prefixes, path.Join(prefix, fmt.Sprintf("%04d/%03d/%02d", h.Year(), h.YearDay(), h.Hour()))+"/")
	}
	return prefixes
}

// startTimeFromKey extracts the coverage start from an object key's
// s-field. The field is sYYYYDDDHHMMSSt; the tenths digit is dropped.
func startTimeFromKey(key string) (time.Time, error) {
	var field string
	for _, part := range strings.Split(path.Base(key), "_") {
		if len(part) == 15 && part[0] == 's' {
			field = part[1:]
			break
		}
	}
	if field == "" {
		return time.Time{}, fmt.Errorf("key %q: no s-field in filename", key)
	}

	nums := make([]int, 0, 5)
	for _, span := range []struct{ from, to int }{
		{0, 4}, {4, 7}, {7, 9}, {9, 11}, {11, 13},
	} {
		n, err := strconv.Atoi(field[span.from:span.to])
		if err != nil {
			return time.Time{}, fmt.Errorf("key %q: s-field %q: %w", key, field, err)
		}
		nums = append(nums, n)
	}
	year, doy, hh, mm, ss := nums[0], nums[1], nums[2], nums[3], nums[4]

	t := time.Date(year, 1, 1, hh, mm, ss, 0, time.UTC).AddDate(0, 0, doy-1)
	if t.Year() != year {
		return time.Time{}, fmt.Errorf("key %q: day of year %d out of range", key, doy)
	}
	return t, nil
}

// keyInWindow reports whether the object's coverage start falls inside
// [w.Start, w.End). Keys without a parsable s-field are excluded.
func keyInWindow(key string, w domain.Window) bool {
	start, err := startTimeFromKey(key)
	if err != nil {
		return false
	}
	return w.Contains(start)
}
