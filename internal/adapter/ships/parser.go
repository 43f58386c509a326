// Package ships reads SHIPS diagnostic text files and serves per-storm
// scalar predictor series.
//
// The file is a sequence of blocks. Each block opens with a HEAD line of
// nine whitespace-separated fields (storm name, yymmdd date, analysis hour,
// intensity, latitude, longitude, minimum pressure, ATCF code, then the
// HEAD code itself), followed by one line per predictor (the line code is
// the last token), and closes with LAST. Shear magnitude (SHRD) is stored
// in tenths of knots; 9999 marks a missing value.
package ships

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

// FieldShearMag and FieldShearDir are the scalar field names this parser
// produces, matching the aligner's declared-field configuration.
const (
	FieldShearMag = "shear_mag"
	FieldShearDir = "shear_dir"
)

const missingSentinel = 9999

// Record is one analysis block keyed by its storm's ATCF code.
type Record struct {
	Code   string
	Scalar domain.ScalarRecord
}

// Parse reads a SHIPS diagnostics file. A block whose HEAD line is
// malformed is skipped through its closing LAST; unknown predictor lines
// are skipped.
func Parse(r io.Reader) ([]Record, error) {
	var (
		records  []Record
		current  *Record
		skipping bool
	)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 {
			continue
		}

		switch tokens[len(tokens)-1] {
		case "HEAD":
			rec, err := parseHead(tokens)
			if err != nil {
				current, skipping = nil, true
				continue
			}
			records = append(records, rec)
			current, skipping = &records[len(records)-1], false
		case "SHRD":
			if skipping {
				continue
			}
			if current == nil {
				return nil, fmt.Errorf("line %d: predictor before any HEAD", line)
			}
			if v, ok := parseValue(tokens[0]); ok {
				current.Scalar.Fields[FieldShearMag] = v / 10 // tenths of kt
			}
		case "SHTD":
			if skipping {
				continue
			}
			if current == nil {
				return nil, fmt.Errorf("line %d: predictor before any HEAD", line)
			}
			if v, ok := parseValue(tokens[0]); ok {
				current.Scalar.Fields[FieldShearDir] = v
			}
		case "LAST":
			current, skipping = nil, false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ships: %w", err)
	}
	return records, nil
}

// parseHead unpacks the nine HEAD fields: name, yymmdd date, hour,
// intensity, latitude, longitude, minimum pressure, ATCF code, HEAD.
func parseHead(tokens []string) (Record, error) {
	if len(tokens) != 9 {
		return Record{}, fmt.Errorf("HEAD has %d fields, want 9", len(tokens))
	}
	ts, err := time.Parse("06010215", tokens[1]+tokens[2])
	if err != nil {
		return Record{}, fmt.Errorf("HEAD timestamp %q %q: %w", tokens[1], tokens[2], err)
	}
	return Record{
		Code: tokens[7],
		Scalar: domain.ScalarRecord{
			Time:   ts.UTC(),
			Fields: make(map[string]float64, 2),
		},
	}, nil
}

func parseValue(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v == missingSentinel {
		return 0, false
	}
	return v, true
}
