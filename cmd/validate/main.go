// Command validate checks the invariants of an aligned-output CSV
// directory: bins are contiguous and uniformly spaced (a truncated final
// bin excepted), every row belongs to its file's storm, and counts are
// non-negative. With -compare it also checks that two runs over the same
// inputs produced byte-identical files.
//
// Usage:
//
//	go run ./cmd/validate -dir out -interval 30
//	go run ./cmd/validate -dir out -compare out2
package main

import (
	"bytes"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "aligned-output CSV directory")
	intervalMin := flag.Int("interval", 30, "bin interval in minutes the run was configured with")
	compare := flag.String("compare", "", "second output directory to compare byte for byte")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	interval := time.Duration(*intervalMin) * time.Minute
	phases := []*phase{validateTables(*dir, interval)}
	if *compare != "" {
		phases = append(phases, validateIdempotence(*dir, *compare))
	}

	allPassed := true
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS  %s\n", p.name)
			continue
		}
		allPassed = false
		fmt.Printf("FAIL  %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("      - %s\n", e)
		}
	}
	if !allPassed {
		os.Exit(1)
	}
}

func validateTables(dir string, interval time.Duration) *phase {
	p := &phase{name: "table invariants"}

	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil || len(files) == 0 {
		p.errorf("no CSV files under %s", dir)
		return p
	}

	for _, file := range files {
		validateTable(p, file, interval)
	}
	return p
}

func validateTable(p *phase, file string, interval time.Duration) {
	storm := strings.TrimSuffix(filepath.Base(file), ".csv")
	rows, cols, err := readTable(file)
	if err != nil {
		p.errorf("%s: %v", storm, err)
		return
	}
	if len(rows) == 0 {
		p.errorf("%s: no data rows", storm)
		return
	}

	var prevEnd time.Time
	for i, row := range rows {
		if row[cols["storm"]] != storm {
			p.errorf("%s row %d: storm column %q does not match filename", storm, i, row[cols["storm"]])
		}

		start, err1 := time.Parse(time.RFC3339, row[cols["bin_start"]])
		mid, err2 := time.Parse(time.RFC3339, row[cols["bin_mid"]])
		end, err3 := time.Parse(time.RFC3339, row[cols["bin_end"]])
		if err1 != nil || err2 != nil || err3 != nil {
			p.errorf("%s row %d: unparsable bin timestamps", storm, i)
			continue
		}

		if !mid.Equal(start.Add(end.Sub(start) / 2)) {
			p.errorf("%s row %d: midpoint is not centered in the bin", storm, i)
		}
		if i > 0 && !start.Equal(prevEnd) {
			p.errorf("%s row %d: bin start %s does not meet previous end %s", storm, i, start, prevEnd)
		}
		if width := end.Sub(start); width != interval && i != len(rows)-1 {
			p.errorf("%s row %d: bin width %s, expected %s", storm, i, width, interval)
		} else if width > interval || width <= 0 {
			p.errorf("%s row %d: final bin width %s out of range", storm, i, width)
		}
		prevEnd = end

		count, err := strconv.ParseInt(row[cols["event_count"]], 10, 64)
		if err != nil || count < 0 {
			p.errorf("%s row %d: bad event_count %q", storm, i, row[cols["event_count"]])
		}
	}
}

func readTable(file string) ([][]string, map[string]int, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 1 {
		return nil, nil, fmt.Errorf("empty file")
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[name] = i
	}
	for _, required := range []string{"storm", "bin_start", "bin_mid", "bin_end", "event_count"} {
		if _, ok := cols[required]; !ok {
			return nil, nil, fmt.Errorf("missing column %s", required)
		}
	}
	return records[1:], cols, nil
}

func validateIdempotence(dirA, dirB string) *phase {
	p := &phase{name: "idempotence"}

	filesA, _ := filepath.Glob(filepath.Join(dirA, "*.csv"))
	for _, fileA := range filesA {
		name := filepath.Base(fileA)
		a, err := os.ReadFile(fileA)
		if err != nil {
			p.errorf("%s: %v", name, err)
			continue
		}
		b, err := os.ReadFile(filepath.Join(dirB, name))
		if err != nil {
			p.errorf("%s: missing from %s", name, dirB)
			continue
		}
		if !bytes.Equal(a, b) {
			p.errorf("%s: runs differ", name)
		}
	}
	return p
}
