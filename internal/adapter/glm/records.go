package glm

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

// PayloadEnergy, PayloadArea, and PayloadQualityFlag are the event payload
// fields the collector exports, usable as reduction fields.
const (
	PayloadEnergy      = "energy"
	PayloadArea        = "area"
	PayloadQualityFlag = "quality_flag"
)

// recordReader decodes one exported CSV object into events. The collector
// writes a header row of time,lat,lon,energy,area,quality_flag with
// RFC 3339 group times, group energy in joules, group area in square
// meters, and the instrument's group quality flag.
type recordReader struct {
	csv *csv.Reader
	key string
	row int
}

func newRecordReader(r io.Reader, key string) (*recordReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("object %s: read header: %w", key, err)
	}
	if header[0] != "time" {
		return nil, fmt.Errorf("object %s: unexpected header %v", key, header)
	}
	return &recordReader{csv: cr, key: key, row: 1}, nil
}

// next returns the following event, or io.EOF when the object is done.
func (r *recordReader) next() (domain.EventRecord, error) {
	row, err := r.csv.Read()
	if err == io.EOF {
		return domain.EventRecord{}, io.EOF
	}
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("object %s: %w", r.key, err)
	}
	r.row++

	ts, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("object %s row %d: time: %w", r.key, r.row, err)
	}
	lat, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("object %s row %d: lat: %w", r.key, r.row, err)
	}
	lon, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("object %s row %d: lon: %w", r.key, r.row, err)
	}
	energy, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("object %s row %d: energy: %w", r.key, r.row, err)
	}
	area, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("object %s row %d: area: %w", r.key, r.row, err)
	}
	qflag, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("object %s row %d: quality flag: %w", r.key, r.row, err)
	}

	return domain.EventRecord{
		Time: ts.UTC(),
		Lat:  lat,
		Lon:  lon,
		Payload: map[string]float64{
			PayloadEnergy:      energy,
			PayloadArea:        area,
			PayloadQualityFlag: qflag,
		},
	}, nil
}
