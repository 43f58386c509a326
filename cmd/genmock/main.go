// Command genmock writes a synthetic best-track file, SHIPS diagnostics
// file, and GLM group objects for local pipeline runs and demos. The GLM
// objects land in the same YYYY/DDD/HH key layout the collector uses in
// S3, so a file-server or localstack bucket can serve them unchanged.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -storms 3 -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var baseDate = time.Date(2022, time.September, 20, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for generated fixtures")
	storms := flag.Int("storms", 3, "number of synthetic storms")
	seed := flag.Int64("seed", 42, "random seed, fixed for reproducible fixtures")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}
	tracks, err := os.Create(filepath.Join(*out, "hurdat2.txt"))
	if err != nil {
		return err
	}
	defer tracks.Close()
	ships, err := os.Create(filepath.Join(*out, "ships.txt"))
	if err != nil {
		return err
	}
	defer ships.Close()

	for i := 0; i < *storms; i++ {
		storm := newStorm(i, rng)
		if err := storm.writeTrack(tracks); err != nil {
			return fmt.Errorf("storm %s: write track: %w", storm.code, err)
		}
		if err := storm.writeShips(ships); err != nil {
			return fmt.Errorf("storm %s: write ships: %w", storm.code, err)
		}
		objects, err := storm.writeEvents(*out, rng)
		if err != nil {
			return fmt.Errorf("storm %s: write events: %w", storm.code, err)
		}
		log.Printf("%s (%s): %d fixes, %d event objects", storm.code, storm.name, len(storm.fixes), objects)
	}
	return nil
}

var names = []string{"ALPHA", "BRAVO", "CARLA", "DELIA", "ERNST", "FIONA", "GERT", "HILDA"}

type fix struct {
	t        time.Time
	lat, lon float64
	wind     int
	pressure int
}

type storm struct {
	code  string
	name  string
	start time.Time
	fixes []fix
}

// newStorm builds a northwest-tracking storm with a wind peak mid-life,
// crossing hurricane strength so the HU catalog filter keeps it.
func newStorm(i int, rng *rand.Rand) *storm {
	s := &storm{
		code:  fmt.Sprintf("AL%02d2022", i+1),
		name:  names[i%len(names)],
		start: baseDate.AddDate(0, 0, 2*i),
	}

	n := 8 + rng.Intn(8) // 2 to 4 days of 6-hourly fixes
	lat := 12.0 + rng.Float64()*5
	lon := -50.0 - rng.Float64()*10
	for j := 0; j < n; j++ {
		peak := 1 - math.Abs(float64(2*j-n))/float64(n) // 0 at the ends, 1 mid-life
		s.fixes = append(s.fixes, fix{
			t:        s.start.Add(time.Duration(j) * 6 * time.Hour),
			lat:      lat,
			lon:      lon,
			wind:     30 + int(peak*60) + rng.Intn(10),
			pressure: 1005 - int(peak*60),
		})
		lat += 0.8 + rng.Float64()*0.6
		lon -= 1.0 + rng.Float64()*0.8
	}
	return s
}

func (s *storm) status(f fix) string {
	if f.wind >= 64 {
		return "HU"
	}
	if f.wind >= 34 {
		return "TS"
	}
	return "TD"
}

func (s *storm) writeTrack(f *os.File) error {
	if _, err := fmt.Fprintf(f, "%s,%18s,%7d,\n", s.code, s.name, len(s.fixes)); err != nil {
		return err
	}
	for _, fx := range s.fixes {
		_, err := fmt.Fprintf(f, "%s, %s,  , %s, %4.1fN, %5.1fW, %3d, %4d,    0,    0,    0,    0,    0,    0,    0,    0,    0,    0,    0,    0,  -999,\n",
			fx.t.Format("20060102"), fx.t.Format("1504"), s.status(fx), fx.lat, -fx.lon, fx.wind, fx.pressure)
		if err != nil {
			return err
		}
	}
	return nil
}

// writeShips emits one block per fix: the nine-field HEAD line (name,
// yymmdd, hour, intensity, position, pressure, ATCF code), the two shear
// predictors, and the closing LAST.
func (s *storm) writeShips(f *os.File) error {
	for _, fx := range s.fixes {
		shearTenths := 50 + (fx.wind-30)*3 // loosely wind-correlated
		_, err := fmt.Fprintf(f, "%-8s %s %s %4d %5.1f %6.1f %4d %s HEAD\n%5d SHRD\n%5d SHTD\n    0 LAST\n",
			s.name, fx.t.Format("060102"), fx.t.Format("15"),
			fx.wind, fx.lat, 360+fx.lon, fx.pressure, s.code,
			shearTenths, 180+fx.wind)
		if err != nil {
			return err
		}
	}
	return nil
}

// writeEvents emits one CSV object per 20-minute slice of the storm's
// life, with lightning groups scattered around the current fix position.
func (s *storm) writeEvents(out string, rng *rand.Rand) (int, error) {
	end := s.fixes[len(s.fixes)-1].t
	objects := 0
	for t := s.start; t.Before(end); t = t.Add(20 * time.Minute) {
		dir := filepath.Join(out, "glm-groups",
			fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%03d", t.YearDay()), fmt.Sprintf("%02d", t.Hour()))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}

		name := fmt.Sprintf("groups_s%04d%03d%02d%02d%02d0_v1.csv",
			t.Year(), t.YearDay(), t.Hour(), t.Minute(), t.Second())
		if err := s.writeObject(filepath.Join(dir, name), t, rng); err != nil {
			return 0, err
		}
		objects++
	}
	return objects, nil
}

func (s *storm) writeObject(path string, t time.Time, rng *rand.Rand) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "lat", "lon", "energy", "area", "quality_flag"}); err != nil {
		return err
	}

	fx := s.fixAt(t)
	groups := rng.Intn(30)
	for g := 0; g < groups; g++ {
		ts := t.Add(time.Duration(rng.Intn(20*60)) * time.Second)
		record := []string{
			ts.Format(time.RFC3339),
			formatCoord(fx.lat + (rng.Float64()-0.5)*4),
			formatCoord(fx.lon + (rng.Float64()-0.5)*4),
			strconv.FormatFloat(rng.Float64()*5e-15, 'g', 6, 64),
			strconv.Itoa(100 + rng.Intn(400)),
			qualityFlags[rng.Intn(len(qualityFlags))],
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func (s *storm) fixAt(t time.Time) fix {
	for i := len(s.fixes) - 1; i >= 0; i-- {
		if !s.fixes[i].t.After(t) {
			return s.fixes[i]
		}
	}
	return s.fixes[0]
}

// qualityFlags skews toward 0 (good group) with the occasional degraded
// flag value the instrument reports.
var qualityFlags = []string{"0", "0", "0", "0", "1", "3", "5"}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
