// Package csvfile writes each storm's aligned table to its own CSV file,
// atomically via a temp file and rename.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

// Writer writes one <code>.csv per storm under a target directory. The
// column order is fixed at construction and the run timestamp stays out of
// the table, so repeated runs over the same inputs produce byte-identical
// files.
type Writer struct {
	dir        string
	fields     []string // scalar columns, in order
	aggregates []string // reduction columns, in order
	logger     *slog.Logger
}

// NewWriter creates a Writer targeting dir, which is created if absent.
func NewWriter(dir string, fields, aggregates []string, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir, fields: fields, aggregates: aggregates, logger: logger}, nil
}

// WriteStorm writes the storm's table to a temp file in the target
// directory and renames it into place, so readers never see a partial
// file.
func (w *Writer) WriteStorm(ctx context.Context, out domain.StormOutput) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(w.dir, out.Code+".csv.tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", out.Code, err)
	}
	defer os.Remove(tmp.Name())

	if err := w.writeTable(tmp, out); err != nil {
		tmp.Close()
		return fmt.Errorf("write table for %s: %w", out.Code, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file for %s: %w", out.Code, err)
	}

	final := filepath.Join(w.dir, out.Code+".csv")
	if err := os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("publish %s: %w", out.Code, err)
	}
	w.logger.Debug("storm written",
		"storm", out.Code, "rows", len(out.Rows), "path", final,
		"produced_at", out.ProducedAt.UTC().Format(time.RFC3339))
	return nil
}

func (w *Writer) writeTable(f *os.File, out domain.StormOutput) error {
	cw := csv.NewWriter(f)

	header := []string{"storm", "name", "year", "bin_start", "bin_mid", "bin_end", "lat", "lon", "clamped"}
	header = append(header, w.fields...)
	header = append(header, "event_count")
	header = append(header, w.aggregates...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range out.Rows {
		record := []string{
			out.Code,
			out.Name,
			strconv.Itoa(out.Year),
			row.Bin.Start.UTC().Format(time.RFC3339),
			row.Bin.Mid.UTC().Format(time.RFC3339),
			row.Bin.End.UTC().Format(time.RFC3339),
			formatFloat(row.Lat),
			formatFloat(row.Lon),
			strconv.FormatBool(row.Clamped),
		}
		for _, field := range w.fields {
			if v := row.Scalars[field]; v != nil {
				record = append(record, formatFloat(*v))
			} else {
				record = append(record, "") // missing stays visibly empty
			}
		}
		record = append(record, strconv.FormatInt(row.EventCount, 10))
		for _, name := range w.aggregates {
			record = append(record, formatFloat(row.Aggregates[name]))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
