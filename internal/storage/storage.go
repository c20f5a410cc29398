// Package storage provides a SQLite-backed cache of fetched GeoJSON datasets.
// It keeps the raw body of every successful fetch so the view can start from
// the newest copy when the source is unreachable. Old copies are rotated out
// per source.
//
// Only input data is stored. The sequence index and marker state live in
// memory for the lifetime of the view.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/symbolmap/internal/models"
)

// ErrNotFound is returned when no cached dataset exists for a source.
var ErrNotFound = errors.New("dataset not found")

const schema = `
CREATE TABLE IF NOT EXISTS datasets (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	body          BLOB NOT NULL,
	feature_count INTEGER NOT NULL,
	fetched_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_datasets_source_fetched ON datasets(source, fetched_at DESC);
`

// Storage is a dataset cache. It is safe for concurrent use.
type Storage struct {
	db          *sql.DB
	maxDatasets int
}

// New opens (or creates) the cache at dbPath. ":memory:" gives a private
// in-memory database.
func New(dbPath string, maxDatasets int) (*Storage, error) {
	if maxDatasets < 1 {
		maxDatasets = 1
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Storage{db: db, maxDatasets: maxDatasets}, nil
}

// Close releases the database handle.
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveDataset stores a fetched body and rotates old copies of the same source.
func (s *Storage) SaveDataset(ctx context.Context, source string, body []byte, featureCount int) (*models.Dataset, error) {
	ds := &models.Dataset{
		ID:           uuid.New().String(),
		Source:       source,
		Body:         body,
		FeatureCount: featureCount,
		FetchedAt:    time.Now(),
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO datasets (id, source, body, feature_count, fetched_at) VALUES (?, ?, ?, ?, ?)`,
		ds.ID, ds.Source, ds.Body, ds.FeatureCount, ds.FetchedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert dataset: %w", err)
	}

	if err := s.RotateDatasets(ctx, source); err != nil {
		return ds, err
	}
	return ds, nil
}

// LatestDataset returns the newest cached copy for source.
func (s *Storage) LatestDataset(ctx context.Context, source string) (*models.Dataset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, body, feature_count, fetched_at FROM datasets
		 WHERE source = ? ORDER BY fetched_at DESC LIMIT 1`, source)

	var ds models.Dataset
	var fetchedAt int64
	if err := row.Scan(&ds.ID, &ds.Source, &ds.Body, &ds.FeatureCount, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, source)
		}
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	ds.FetchedAt = time.Unix(0, fetchedAt)
	return &ds, nil
}

// ListDatasets returns metadata (without bodies) for every cached copy, newest first.
func (s *Storage) ListDatasets(ctx context.Context) ([]models.Dataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, feature_count, fetched_at FROM datasets ORDER BY fetched_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var out []models.Dataset
	for rows.Next() {
		var ds models.Dataset
		var fetchedAt int64
		if err := rows.Scan(&ds.ID, &ds.Source, &ds.FeatureCount, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		ds.FetchedAt = time.Unix(0, fetchedAt)
		out = append(out, ds)
	}
	return out, rows.Err()
}

// RotateDatasets removes copies of source beyond the configured maximum, oldest first.
func (s *Storage) RotateDatasets(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM datasets WHERE source = ? AND id NOT IN (
			SELECT id FROM datasets WHERE source = ? ORDER BY fetched_at DESC LIMIT ?
		)`, source, source, s.maxDatasets)
	if err != nil {
		return fmt.Errorf("failed to rotate datasets: %w", err)
	}
	return nil
}
