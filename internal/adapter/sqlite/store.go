// Package sqlite persists aligned rows to a local SQLite database, one
// transaction per storm.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS aligned_rows (
	storm       TEXT    NOT NULL,
	name        TEXT    NOT NULL,
	year        INTEGER NOT NULL,
	bin_start   TEXT    NOT NULL,
	bin_mid     TEXT    NOT NULL,
	bin_end     TEXT    NOT NULL,
	lat         REAL    NOT NULL,
	lon         REAL    NOT NULL,
	clamped     INTEGER NOT NULL,
	scalars     TEXT    NOT NULL,
	event_count INTEGER NOT NULL,
	aggregates  TEXT    NOT NULL,
	produced_at TEXT    NOT NULL,
	PRIMARY KEY (storm, bin_mid)
);
CREATE INDEX IF NOT EXISTS idx_aligned_rows_year ON aligned_rows (year);
`

// Store writes storm tables to SQLite. Scalars and aggregates are stored
// as JSON so the schema does not depend on the configured field set.
type Store struct {
	path   string
	logger *slog.Logger

	once sync.Once
	db   *sql.DB
	err  error
}

// NewStore creates a Store backed by the database file at path. The file
// and schema are created lazily on first write.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	s.once.Do(func() {
		dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.path)
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			s.err = fmt.Errorf("open %s: %w", s.path, err)
			return
		}
		if _, err := db.ExecContext(ctx, schema); err != nil {
			db.Close()
			s.err = fmt.Errorf("apply schema: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.err
}

// WriteStorm replaces the storm's rows in one transaction: a re-run
// either fully supersedes the previous output or leaves it untouched.
func (s *Store) WriteStorm(ctx context.Context, out domain.StormOutput) error {
	db, err := s.open(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for %s: %w", out.Code, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM aligned_rows WHERE storm = ?`, out.Code); err != nil {
		return fmt.Errorf("clear previous rows for %s: %w", out.Code, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO aligned_rows
			(storm, name, year, bin_start, bin_mid, bin_end, lat, lon, clamped, scalars, event_count, aggregates, produced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert for %s: %w", out.Code, err)
	}
	defer stmt.Close()

	for _, row := range out.Rows {
		scalars, err := json.Marshal(row.Scalars)
		if err != nil {
			return fmt.Errorf("encode scalars for %s: %w", out.Code, err)
		}
		aggregates, err := json.Marshal(row.Aggregates)
		if err != nil {
			return fmt.Errorf("encode aggregates for %s: %w", out.Code, err)
		}
		_, err = stmt.ExecContext(ctx,
			out.Code, out.Name, out.Year,
			row.Bin.Start.UTC().Format(time.RFC3339),
			row.Bin.Mid.UTC().Format(time.RFC3339),
			row.Bin.End.UTC().Format(time.RFC3339),
			row.Lat, row.Lon, row.Clamped,
			string(scalars), row.EventCount, string(aggregates),
			out.ProducedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("insert row for %s: %w", out.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", out.Code, err)
	}
	s.logger.Debug("storm stored", "storm", out.Code, "rows", len(out.Rows), "path", s.path)
	return nil
}

// Close closes the database if it was opened.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
