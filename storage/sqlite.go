package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"mb_scrooper/models"
)

// ErrConnect is wrapped by every failure to open the tracking database.
var ErrConnect = errors.New("database connection failed")

// Manager owns the location of the tracking database. It hands out
// short-lived connections; nothing is held open between operations.
type Manager struct {
	path string
}

func NewManager(dbPath string) *Manager {
	return &Manager{path: dbPath}
}

func (m *Manager) Path() string {
	return m.path
}

// Conn is one unit of work against the tracking database.
type Conn struct {
	db *sql.DB
}

// Connect opens the database file, creating it when absent.
func (m *Manager) Connect(ctx context.Context) (*Conn, error) {
	if dir := filepath.Dir(m.path); dir != "." && dir != "" {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: directory %s not accessible", ErrConnect, dir)
		}
	}

	db, err := sql.Open("sqlite3", m.path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	return &Conn{db: db}, nil
}

func (c *Conn) Close() error {
	return c.db.Close()
}

// SetupSchema creates the tracking tables and indexes. Safe to run on every start.
func (c *Conn) SetupSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tracked_urls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		property_url TEXT NOT NULL UNIQUE,
		url_hash TEXT NOT NULL UNIQUE,
		scraped_at DATETIME,
		scraping_session_id TEXT,
		data_quality_score REAL DEFAULT 0,
		extraction_success BOOLEAN DEFAULT TRUE,
		retry_count INTEGER DEFAULT 0,
		last_retry_at DATETIME,
		force_rescrape_after DATETIME,
		is_active BOOLEAN DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS property_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		property_url TEXT NOT NULL UNIQUE,
		url_hash TEXT NOT NULL,
		scraping_session_id TEXT,
		title TEXT,
		price TEXT,
		area TEXT,
		locality TEXT,
		society TEXT,
		property_type TEXT,
		bedrooms TEXT,
		bathrooms TEXT,
		furnishing TEXT,
		floor TEXT,
		age TEXT,
		facing TEXT,
		parking TEXT,
		amenities JSON,
		description TEXT,
		builder_info JSON,
		location_details JSON,
		specifications JSON,
		contact_info JSON,
		images JSON,
		raw_html TEXT,
		scraped_at DATETIME,
		data_quality_score REAL
	);

	CREATE TABLE IF NOT EXISTS scraping_sessions (
		session_id TEXT PRIMARY KEY,
		session_name TEXT,
		start_timestamp DATETIME,
		end_timestamp DATETIME,
		total_urls_requested INTEGER DEFAULT 0,
		new_properties_scraped INTEGER DEFAULT 0,
		duplicates_skipped INTEGER DEFAULT 0,
		failed_scraping INTEGER DEFAULT 0,
		average_quality_score REAL DEFAULT 0,
		session_config JSON
	);

	CREATE TABLE IF NOT EXISTS property_change_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		property_url TEXT NOT NULL,
		url_hash TEXT NOT NULL,
		field_name TEXT NOT NULL,
		old_value TEXT,
		new_value TEXT,
		change_detected_at DATETIME,
		scraping_session_id TEXT,
		FOREIGN KEY (property_url) REFERENCES tracked_urls(property_url)
	);

	CREATE INDEX IF NOT EXISTS idx_tracked_url ON tracked_urls(property_url);
	CREATE INDEX IF NOT EXISTS idx_tracked_hash ON tracked_urls(url_hash);
	CREATE INDEX IF NOT EXISTS idx_tracked_scraped_at ON tracked_urls(scraped_at);
	CREATE INDEX IF NOT EXISTS idx_tracked_quality ON tracked_urls(data_quality_score);
	CREATE INDEX IF NOT EXISTS idx_snapshots_url ON property_snapshots(property_url);
	CREATE INDEX IF NOT EXISTS idx_sessions_start ON scraping_sessions(start_timestamp);
	CREATE INDEX IF NOT EXISTS idx_changes_date ON property_change_history(change_detected_at);
	`
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("setup schema: %w", err)
	}
	return nil
}

const trackedColumns = `id, property_url, url_hash, scraped_at, COALESCE(scraping_session_id, ''),
	COALESCE(data_quality_score, 0), COALESCE(extraction_success, TRUE), COALESCE(retry_count, 0),
	last_retry_at, force_rescrape_after, COALESCE(is_active, TRUE)`

// FindTrackedURL looks a property up by hash or normalized URL.
func (c *Conn) FindTrackedURL(ctx context.Context, urlHash, normalizedURL string) (*models.TrackedURL, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT `+trackedColumns+`
		FROM tracked_urls WHERE url_hash = ? OR property_url = ? LIMIT 1`, urlHash, normalizedURL)

	var t models.TrackedURL
	var scrapedAt, lastRetryAt, forceAfter sql.NullTime
	err := row.Scan(&t.ID, &t.PropertyURL, &t.URLHash, &scrapedAt, &t.ScrapingSessionID,
		&t.DataQualityScore, &t.ExtractionSuccess, &t.RetryCount, &lastRetryAt, &forceAfter, &t.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find tracked url: %w", err)
	}
	t.ScrapedAt = timePtr(scrapedAt)
	t.LastRetryAt = timePtr(lastRetryAt)
	t.ForceRescrapeAfter = timePtr(forceAfter)
	return &t, nil
}

// SaveScrapeResult writes the tracking row and the snapshot for one URL in a
// single transaction, recording field changes against the previous snapshot.
// It returns the number of change-history rows written.
func (c *Conn) SaveScrapeResult(ctx context.Context, snap *models.PropertySnapshot) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	prev, err := findSnapshot(ctx, tx, snap.PropertyURL)
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tracked_urls (property_url, url_hash, scraped_at, scraping_session_id,
			data_quality_score, extraction_success, retry_count, last_retry_at, force_rescrape_after, is_active)
		VALUES (?, ?, ?, ?, ?, TRUE, 0, NULL, NULL, TRUE)
		ON CONFLICT(property_url) DO UPDATE SET
			url_hash = excluded.url_hash,
			scraped_at = excluded.scraped_at,
			scraping_session_id = excluded.scraping_session_id,
			data_quality_score = excluded.data_quality_score,
			extraction_success = TRUE,
			retry_count = 0,
			force_rescrape_after = NULL,
			is_active = TRUE`,
		snap.PropertyURL, snap.URLHash, snap.ScrapedAt, snap.ScrapingSessionID, snap.DataQualityScore)
	if err != nil {
		return 0, fmt.Errorf("upsert tracked url: %w", err)
	}

	d := &snap.Data
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO property_snapshots (property_url, url_hash, scraping_session_id,
			title, price, area, locality, society, property_type, bedrooms, bathrooms, furnishing,
			floor, age, facing, parking, amenities, description, builder_info, location_details,
			specifications, contact_info, images, raw_html, scraped_at, data_quality_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.PropertyURL, snap.URLHash, snap.ScrapingSessionID,
		d.Title, d.Price, d.Area, d.Locality, d.Society, d.PropertyType, d.Bedrooms, d.Bathrooms, d.Furnishing,
		d.Floor, d.Age, d.Facing, d.Parking, models.JSONText(d.Amenities), d.Description,
		models.JSONText(d.BuilderInfo), models.JSONText(d.LocationDetails), models.JSONText(d.Specifications),
		models.JSONText(d.ContactInfo), models.JSONText(d.Images), d.RawHTML,
		snap.ScrapedAt, snap.DataQualityScore)
	if err != nil {
		return 0, fmt.Errorf("upsert snapshot: %w", err)
	}

	changes := 0
	if prev != nil {
		for _, ch := range d.Diff(&prev.Data) {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO property_change_history (property_url, url_hash, field_name, old_value,
					new_value, change_detected_at, scraping_session_id)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				snap.PropertyURL, snap.URLHash, ch.Field, ch.OldValue, ch.NewValue, snap.ScrapedAt, snap.ScrapingSessionID)
			if err != nil {
				return 0, fmt.Errorf("insert change %s: %w", ch.Field, err)
			}
			changes++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return changes, nil
}

// RecordFailure marks the last attempt on a URL as failed, creating the
// tracking row when the URL has never been scraped successfully.
func (c *Conn) RecordFailure(ctx context.Context, normalizedURL, urlHash, sessionID string, at time.Time) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO tracked_urls (property_url, url_hash, scraping_session_id, data_quality_score,
			extraction_success, retry_count, last_retry_at, is_active)
		VALUES (?, ?, ?, 0, FALSE, 1, ?, TRUE)
		ON CONFLICT(property_url) DO UPDATE SET
			scraping_session_id = excluded.scraping_session_id,
			extraction_success = FALSE,
			retry_count = COALESCE(tracked_urls.retry_count, 0) + 1,
			last_retry_at = excluded.last_retry_at`,
		normalizedURL, urlHash, sessionID, at)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// SetForceRescrapeAfter schedules a mandatory re-scrape. It reports whether
// the URL is tracked.
func (c *Conn) SetForceRescrapeAfter(ctx context.Context, urlHash, normalizedURL string, after time.Time) (bool, error) {
	result, err := c.db.ExecContext(ctx, `
		UPDATE tracked_urls SET force_rescrape_after = ?
		WHERE url_hash = ? OR property_url = ?`, after, urlHash, normalizedURL)
	if err != nil {
		return false, fmt.Errorf("set force rescrape: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// SetActive flips the soft-delete flag on a tracked URL.
func (c *Conn) SetActive(ctx context.Context, urlHash, normalizedURL string, active bool) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE tracked_urls SET is_active = ? WHERE url_hash = ? OR property_url = ?`,
		active, urlHash, normalizedURL)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return nil
}

func (c *Conn) CreateSession(ctx context.Context, s *models.ScrapingSession) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO scraping_sessions (session_id, session_name, start_timestamp, total_urls_requested,
			new_properties_scraped, duplicates_skipped, failed_scraping, average_quality_score, session_config)
		VALUES (?, ?, ?, ?, 0, 0, 0, 0, ?)`,
		s.SessionID, s.SessionName, s.StartTimestamp, s.TotalURLsRequested, string(s.SessionConfig))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (c *Conn) UpdateSession(ctx context.Context, s *models.ScrapingSession) error {
	result, err := c.db.ExecContext(ctx, `
		UPDATE scraping_sessions SET end_timestamp = ?, total_urls_requested = ?,
			new_properties_scraped = ?, duplicates_skipped = ?, failed_scraping = ?, average_quality_score = ?
		WHERE session_id = ?`,
		s.EndTimestamp, s.TotalURLsRequested, s.NewPropertiesScraped, s.DuplicatesSkipped,
		s.FailedScraping, s.AverageQualityScore, s.SessionID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("update session: %s not found", s.SessionID)
	}
	return nil
}

func (c *Conn) GetSession(ctx context.Context, sessionID string) (*models.ScrapingSession, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT session_id, COALESCE(session_name, ''), start_timestamp, end_timestamp, total_urls_requested,
			new_properties_scraped, duplicates_skipped, failed_scraping, average_quality_score, session_config
		FROM scraping_sessions WHERE session_id = ?`, sessionID)

	var s models.ScrapingSession
	var end sql.NullTime
	var cfg sql.NullString
	err := row.Scan(&s.SessionID, &s.SessionName, &s.StartTimestamp, &end, &s.TotalURLsRequested,
		&s.NewPropertiesScraped, &s.DuplicatesSkipped, &s.FailedScraping, &s.AverageQualityScore, &cfg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.EndTimestamp = timePtr(end)
	if cfg.Valid {
		s.SessionConfig = json.RawMessage(cfg.String)
	}
	return &s, nil
}

// GetSnapshot returns the snapshot for a normalized URL, or nil.
func (c *Conn) GetSnapshot(ctx context.Context, normalizedURL string) (*models.PropertySnapshot, error) {
	return findSnapshot(ctx, c.db, normalizedURL)
}

// ListSnapshots returns snapshots scraped at or after since, oldest first.
func (c *Conn) ListSnapshots(ctx context.Context, since time.Time) ([]models.PropertySnapshot, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM property_snapshots WHERE scraped_at >= ? ORDER BY scraped_at, id`, since)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []models.PropertySnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

func (c *Conn) ListChanges(ctx context.Context, normalizedURL string) ([]models.PropertyChange, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, property_url, url_hash, field_name, COALESCE(old_value, ''), COALESCE(new_value, ''),
			change_detected_at, COALESCE(scraping_session_id, '')
		FROM property_change_history WHERE property_url = ? ORDER BY change_detected_at, id`, normalizedURL)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	var changes []models.PropertyChange
	for rows.Next() {
		var ch models.PropertyChange
		if err := rows.Scan(&ch.ID, &ch.PropertyURL, &ch.URLHash, &ch.FieldName, &ch.OldValue,
			&ch.NewValue, &ch.ChangeDetectedAt, &ch.ScrapingSessionID); err != nil {
			return nil, err
		}
		changes = append(changes, ch)
	}
	return changes, rows.Err()
}

func (c *Conn) Stats(ctx context.Context) (*models.TrackingStats, error) {
	var st models.TrackingStats
	var avg sql.NullFloat64
	err := c.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM tracked_urls),
			(SELECT COUNT(*) FROM tracked_urls WHERE extraction_success = TRUE),
			(SELECT COUNT(*) FROM tracked_urls WHERE extraction_success = FALSE),
			(SELECT AVG(data_quality_score) FROM tracked_urls WHERE extraction_success = TRUE),
			(SELECT COUNT(*) FROM scraping_sessions),
			(SELECT COUNT(*) FROM property_change_history)`).
		Scan(&st.TrackedURLs, &st.SuccessfulURLs, &st.FailedURLs, &avg, &st.Sessions, &st.Changes)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	st.AverageQualityScore = avg.Float64
	return &st, nil
}

const snapshotColumns = `id, property_url, url_hash, COALESCE(scraping_session_id, ''),
	COALESCE(title, ''), COALESCE(price, ''), COALESCE(area, ''), COALESCE(locality, ''), COALESCE(society, ''),
	COALESCE(property_type, ''), COALESCE(bedrooms, ''), COALESCE(bathrooms, ''), COALESCE(furnishing, ''),
	COALESCE(floor, ''), COALESCE(age, ''), COALESCE(facing, ''), COALESCE(parking, ''), COALESCE(amenities, ''),
	COALESCE(description, ''), COALESCE(builder_info, ''), COALESCE(location_details, ''),
	COALESCE(specifications, ''), COALESCE(contact_info, ''), COALESCE(images, ''), COALESCE(raw_html, ''),
	scraped_at, COALESCE(data_quality_score, 0)`

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func findSnapshot(ctx context.Context, q queryer, normalizedURL string) (*models.PropertySnapshot, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM property_snapshots WHERE property_url = ?`, normalizedURL)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return snap, err
}

func scanSnapshot(s scanner) (*models.PropertySnapshot, error) {
	var snap models.PropertySnapshot
	var amenities, builder, location, specs, contact, images string
	d := &snap.Data
	err := s.Scan(&snap.ID, &snap.PropertyURL, &snap.URLHash, &snap.ScrapingSessionID,
		&d.Title, &d.Price, &d.Area, &d.Locality, &d.Society, &d.PropertyType, &d.Bedrooms, &d.Bathrooms,
		&d.Furnishing, &d.Floor, &d.Age, &d.Facing, &d.Parking, &amenities, &d.Description,
		&builder, &location, &specs, &contact, &images, &d.RawHTML, &snap.ScrapedAt, &snap.DataQualityScore)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}

	for _, col := range []struct {
		raw  string
		dest any
	}{
		{amenities, &d.Amenities},
		{builder, &d.BuilderInfo},
		{location, &d.LocationDetails},
		{specs, &d.Specifications},
		{contact, &d.ContactInfo},
		{images, &d.Images},
	} {
		if col.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(col.raw), col.dest); err != nil {
			return nil, fmt.Errorf("decode snapshot json for %s: %w", snap.PropertyURL, err)
		}
	}
	return &snap, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
