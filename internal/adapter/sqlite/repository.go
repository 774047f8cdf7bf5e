// Package sqlite persists the SST archive in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
	CREATE TABLE IF NOT EXISTS archive_dates (
		date TEXT PRIMARY KEY
	);
	CREATE TABLE IF NOT EXISTS sst_readings (
		date TEXT NOT NULL,
		location TEXT NOT NULL,
		value REAL NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (date, location)
	);
	CREATE INDEX IF NOT EXISTS idx_sst_readings_location ON sst_readings(location, date);
`

// Repository stores archive dates and per-site readings. Saving only inserts
// or overwrites; rows are never deleted, matching the archive merge rules.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*Repository, error) {
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create archive db directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create archive schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Load reads the whole archive.
func (r *Repository) Load(ctx context.Context) (domain.Archive, error) {
	archive := domain.NewArchive()
	if err := r.loadDates(ctx, archive); err != nil {
		return nil, err
	}
	if err := r.loadReadings(ctx, archive); err != nil {
		return nil, err
	}
	return archive, nil
}

func (r *Repository) loadDates(ctx context.Context, archive domain.Archive) error {
	rows, err := r.db.QueryContext(ctx, `SELECT date FROM archive_dates`)
	if err != nil {
		return fmt.Errorf("query archive dates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return fmt.Errorf("scan archive date: %w", err)
		}
		archive[date] = make(domain.Entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate archive dates: %w", err)
	}
	return nil
}

func (r *Repository) loadReadings(ctx context.Context, archive domain.Archive) error {
	rows, err := r.db.QueryContext(ctx, `SELECT date, location, value FROM sst_readings`)
	if err != nil {
		return fmt.Errorf("query sst readings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			date, location string
			value          float64
		)
		if err := rows.Scan(&date, &location, &value); err != nil {
			return fmt.Errorf("scan sst reading: %w", err)
		}
		entry, ok := archive[date]
		if !ok {
			entry = make(domain.Entry)
			archive[date] = entry
		}
		entry[location] = value
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate sst readings: %w", err)
	}
	return nil
}

// Save upserts every date and reading of the archive in one transaction.
func (r *Repository) Save(ctx context.Context, archive domain.Archive) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	dateStmt, err := tx.PrepareContext(ctx, `INSERT INTO archive_dates (date) VALUES (?) ON CONFLICT(date) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare date insert: %w", err)
	}
	defer dateStmt.Close()

	readingStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sst_readings (date, location, value) VALUES (?, ?, ?)
		ON CONFLICT(date, location) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
		WHERE sst_readings.value <> excluded.value`)
	if err != nil {
		return fmt.Errorf("prepare reading upsert: %w", err)
	}
	defer readingStmt.Close()

	for _, date := range archive.Dates() {
		if _, err := dateStmt.ExecContext(ctx, date); err != nil {
			return fmt.Errorf("insert date %s: %w", date, err)
		}
		for location, value := range archive[date] {
			if _, err := readingStmt.ExecContext(ctx, date, location, value); err != nil {
				return fmt.Errorf("upsert %s/%s: %w", date, location, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// CheckReadiness pings the database.
func (r *Repository) CheckReadiness(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("archive db unavailable: %w", err)
	}
	return nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}
