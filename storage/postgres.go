package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"mb_scrooper/models"
)

// PostgresMirror copies the latest property snapshots into a shared Postgres
// database for downstream consumers. The SQLite tracking database stays the
// source of truth.
type PostgresMirror struct {
	pool *pgxpool.Pool
}

func NewPostgresMirror(ctx context.Context, connString string) (*PostgresMirror, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresMirror{pool: pool}, nil
}

func (m *PostgresMirror) Close() {
	m.pool.Close()
}

func (m *PostgresMirror) SetupSchema(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS property_snapshots (
			url_hash TEXT PRIMARY KEY,
			property_url TEXT NOT NULL,
			scraping_session_id TEXT,
			scraped_at TIMESTAMPTZ NOT NULL,
			data_quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			title TEXT,
			price TEXT,
			area TEXT,
			locality TEXT,
			property_type TEXT,
			bedrooms TEXT,
			data JSONB NOT NULL,
			synced_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_pg_snapshots_scraped_at ON property_snapshots(scraped_at);
		CREATE INDEX IF NOT EXISTS idx_pg_snapshots_locality ON property_snapshots(locality)`)
	if err != nil {
		return fmt.Errorf("setup schema: %w", err)
	}
	return nil
}

// SyncSnapshots upserts the given snapshots in one batch. Rows whose
// scraped_at is not newer than the mirrored copy are left alone.
func (m *PostgresMirror) SyncSnapshots(ctx context.Context, snaps []models.PropertySnapshot) (int, error) {
	if len(snaps) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO property_snapshots (
			url_hash, property_url, scraping_session_id, scraped_at, data_quality_score,
			title, price, area, locality, property_type, bedrooms, data, synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (url_hash) DO UPDATE SET
			property_url = EXCLUDED.property_url,
			scraping_session_id = EXCLUDED.scraping_session_id,
			scraped_at = EXCLUDED.scraped_at,
			data_quality_score = EXCLUDED.data_quality_score,
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			area = EXCLUDED.area,
			locality = EXCLUDED.locality,
			property_type = EXCLUDED.property_type,
			bedrooms = EXCLUDED.bedrooms,
			data = EXCLUDED.data,
			synced_at = NOW()
		WHERE EXCLUDED.scraped_at > property_snapshots.scraped_at`

	batch := &pgx.Batch{}
	for i := range snaps {
		s := &snaps[i]
		data := s.Data
		data.RawHTML = ""
		payload, err := json.Marshal(data)
		if err != nil {
			return 0, fmt.Errorf("marshal snapshot %s: %w", s.PropertyURL, err)
		}
		batch.Queue(query,
			s.URLHash, s.PropertyURL, s.ScrapingSessionID, s.ScrapedAt, s.DataQualityScore,
			s.Data.Title, s.Data.Price, s.Data.Area, s.Data.Locality, s.Data.PropertyType,
			s.Data.Bedrooms, payload,
		)
	}

	results := m.pool.SendBatch(ctx, batch)
	defer results.Close()

	synced := 0
	for i := range snaps {
		tag, err := results.Exec()
		if err != nil {
			return synced, fmt.Errorf("sync snapshot %s: %w", snaps[i].PropertyURL, err)
		}
		synced += int(tag.RowsAffected())
	}
	return synced, nil
}

// MirroredCount returns the number of rows in the mirror.
func (m *PostgresMirror) MirroredCount(ctx context.Context) (int, error) {
	var n int
	err := m.pool.QueryRow(ctx, `SELECT COUNT(*) FROM property_snapshots`).Scan(&n)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}
