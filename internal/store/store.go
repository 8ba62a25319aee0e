package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"intake-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned by single-row getters when the row does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetCatalogEntry retrieves a persisted catalog entry by its natural key.
// Returns (nil, nil) when no entry exists.
func (s *Store) GetCatalogEntry(ctx context.Context, vendor, brand, model, color, sizeKey string) (*models.CatalogEntry, error) {
	var entry models.CatalogEntry
	err := s.db.GetContext(ctx, &entry, `
		SELECT * FROM catalog_entries
		WHERE vendor = $1 AND brand = $2 AND model = $3 AND color = $4 AND size_key = $5`,
		vendor, brand, model, color, sizeKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpsertCatalogEntry stores a catalog entry, replacing any previous fetch
// for the same key.
func (s *Store) UpsertCatalogEntry(ctx context.Context, entry *models.CatalogEntry) error {
	query := `
		INSERT INTO catalog_entries
			(vendor, brand, model, color, size_key, eye, bridge, temple, full_size,
			 a, b, dbl, ed, upc, wholesale_price, confidence, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
		ON CONFLICT (vendor, brand, model, color, size_key) DO UPDATE SET
			eye = EXCLUDED.eye, bridge = EXCLUDED.bridge, temple = EXCLUDED.temple,
			full_size = EXCLUDED.full_size, a = EXCLUDED.a, b = EXCLUDED.b,
			dbl = EXCLUDED.dbl, ed = EXCLUDED.ed, upc = EXCLUDED.upc,
			wholesale_price = EXCLUDED.wholesale_price, confidence = EXCLUDED.confidence,
			fetched_at = NOW()
		RETURNING id, fetched_at`

	return s.db.GetContext(ctx, entry, query,
		entry.Vendor, entry.Brand, entry.Model, entry.Color, entry.SizeKey,
		entry.Eye, entry.Bridge, entry.Temple, entry.FullSize,
		entry.A, entry.B, entry.DBL, entry.ED, entry.UPC,
		entry.WholesalePrice, entry.Confidence)
}

// DeleteCatalogEntry removes a persisted catalog entry (manual invalidation).
func (s *Store) DeleteCatalogEntry(ctx context.Context, vendor, brand, model, color string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM catalog_entries
		WHERE vendor = $1 AND brand = $2 AND model = $3 AND color = $4`,
		vendor, brand, model, color)
	return err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
