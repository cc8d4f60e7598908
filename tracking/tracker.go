// Package tracking decides which property URLs need scraping and records the
// outcome of each scrape.
package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"mb_scrooper/config"
	"mb_scrooper/models"
	"mb_scrooper/quality"
	"mb_scrooper/storage"
)

const defaultQualityThreshold = 0.7

// Tracker runs tracking operations against the database. Every operation
// opens its own connection and closes it before returning.
type Tracker struct {
	db  *storage.Manager
	cfg config.TrackingConfig
	now func() time.Time

	schemaMu   sync.Mutex
	schemaDone bool
}

func New(db *storage.Manager, cfg config.TrackingConfig) *Tracker {
	if cfg.QualityThreshold < 0 || cfg.QualityThreshold > 1 {
		log.Printf("Tracking: quality threshold %.2f out of range, using %.2f", cfg.QualityThreshold, defaultQualityThreshold)
		cfg.QualityThreshold = defaultQualityThreshold
	}
	return &Tracker{db: db, cfg: cfg, now: time.Now}
}

func (t *Tracker) QualityThreshold() float64 {
	return t.cfg.QualityThreshold
}

// open connects and makes sure the schema exists.
func (t *Tracker) open(ctx context.Context) (*storage.Conn, error) {
	conn, err := t.db.Connect(ctx)
	if err != nil {
		return nil, err
	}

	t.schemaMu.Lock()
	defer t.schemaMu.Unlock()
	if !t.schemaDone {
		if err := conn.SetupSchema(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		t.schemaDone = true
	}
	return conn, nil
}

// CreateScrapingSession starts a session and returns its id. The id is empty
// when the session could not be stored.
func (t *Tracker) CreateScrapingSession(ctx context.Context, name string, totalURLs int, sessionConfig any) (string, error) {
	cfgJSON, err := json.Marshal(sessionConfig)
	if err != nil {
		return "", fmt.Errorf("marshal session config: %w", err)
	}

	conn, err := t.open(ctx)
	if err != nil {
		log.Printf("Tracking: could not create session %q: %v", name, err)
		return "", err
	}
	defer conn.Close()

	session := &models.ScrapingSession{
		SessionID:          uuid.New().String(),
		SessionName:        name,
		StartTimestamp:     t.now(),
		TotalURLsRequested: totalURLs,
		SessionConfig:      cfgJSON,
	}
	if err := conn.CreateSession(ctx, session); err != nil {
		log.Printf("Tracking: could not create session %q: %v", name, err)
		return "", err
	}

	log.Printf("Tracking: session %s started (%s, %d urls)", session.SessionID, name, totalURLs)
	return session.SessionID, nil
}

// TrackResult describes what TrackScrapedProperty stored.
type TrackResult struct {
	NormalizedURL string
	URLHash       string
	QualityScore  float64
	Changes       int
}

// TrackScrapedProperty stores a successful scrape. When score is nil it is
// computed from data. Failures are logged and returned so the caller can
// carry on with the rest of its batch.
func (t *Tracker) TrackScrapedProperty(ctx context.Context, rawURL string, data *models.PropertyData, sessionID string, score *float64) (*TrackResult, error) {
	if data == nil {
		return nil, fmt.Errorf("track %s: no data", rawURL)
	}

	normalized, hash := Identity(rawURL)
	result := &TrackResult{NormalizedURL: normalized, URLHash: hash}
	if score != nil {
		result.QualityScore = *score
	} else {
		result.QualityScore = quality.ScoreData(data)
	}

	conn, err := t.open(ctx)
	if err != nil {
		log.Printf("Tracking: could not track %s: %v", normalized, err)
		return nil, err
	}
	defer conn.Close()

	snap := &models.PropertySnapshot{
		PropertyURL:       normalized,
		URLHash:           hash,
		ScrapingSessionID: sessionID,
		Data:              *data,
		ScrapedAt:         t.now(),
		DataQualityScore:  result.QualityScore,
	}
	changes, err := conn.SaveScrapeResult(ctx, snap)
	if err != nil {
		log.Printf("Tracking: could not track %s: %v", normalized, err)
		return nil, fmt.Errorf("track %s: %w", normalized, err)
	}
	result.Changes = changes

	if changes > 0 {
		log.Printf("Tracking: %s changed in %d fields", normalized, changes)
	}
	return result, nil
}

// MarkScrapeFailed records a failed scrape attempt: extraction_success is
// cleared, retry_count incremented and last_retry_at set. The URL is then
// picked up again by the next filtering pass.
func (t *Tracker) MarkScrapeFailed(ctx context.Context, rawURL, sessionID string, cause error) error {
	normalized, hash := Identity(rawURL)

	conn, err := t.open(ctx)
	if err != nil {
		log.Printf("Tracking: could not mark %s failed: %v", normalized, err)
		return err
	}
	defer conn.Close()

	if err := conn.RecordFailure(ctx, normalized, hash, sessionID, t.now()); err != nil {
		log.Printf("Tracking: could not mark %s failed: %v", normalized, err)
		return err
	}
	log.Printf("Tracking: %s failed: %v", normalized, cause)
	return nil
}

// ScheduleRescrape forces a re-scrape of a tracked URL once after has passed.
func (t *Tracker) ScheduleRescrape(ctx context.Context, rawURL string, after time.Time) error {
	normalized, hash := Identity(rawURL)

	conn, err := t.open(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	found, err := conn.SetForceRescrapeAfter(ctx, hash, normalized, after)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("schedule rescrape: %s is not tracked", normalized)
	}
	return nil
}

// Deactivate soft-deletes a tracked URL.
func (t *Tracker) Deactivate(ctx context.Context, rawURL string) error {
	normalized, hash := Identity(rawURL)

	conn, err := t.open(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.SetActive(ctx, hash, normalized, false)
}

// CompleteScrapingSession stores the final counters for a session.
func (t *Tracker) CompleteScrapingSession(ctx context.Context, sessionID string, stats *SessionStats) error {
	conn, err := t.open(ctx)
	if err != nil {
		log.Printf("Tracking: could not complete session %s: %v", sessionID, err)
		return err
	}
	defer conn.Close()

	session, err := conn.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("complete session: %s not found", sessionID)
	}

	end := t.now()
	session.EndTimestamp = &end
	if stats.TotalURLs > 0 {
		session.TotalURLsRequested = stats.TotalURLs
	}
	session.NewPropertiesScraped = stats.NewScraped
	session.DuplicatesSkipped = stats.Skipped
	session.FailedScraping = stats.Failed
	session.AverageQualityScore = stats.AverageQuality()

	if err := conn.UpdateSession(ctx, session); err != nil {
		log.Printf("Tracking: could not complete session %s: %v", sessionID, err)
		return err
	}

	log.Printf("Tracking: session %s done: %d scraped (%d new), %d skipped, %d failed, avg quality %.2f",
		sessionID, stats.Scraped, stats.NewScraped, stats.Skipped, stats.Failed, session.AverageQualityScore)
	return nil
}

func (t *Tracker) Session(ctx context.Context, sessionID string) (*models.ScrapingSession, error) {
	conn, err := t.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.GetSession(ctx, sessionID)
}

// TrackedURL returns the tracking row for a URL, or nil when it was never seen.
func (t *Tracker) TrackedURL(ctx context.Context, rawURL string) (*models.TrackedURL, error) {
	normalized, hash := Identity(rawURL)

	conn, err := t.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.FindTrackedURL(ctx, hash, normalized)
}

// Snapshot returns the stored snapshot for a URL, or nil.
func (t *Tracker) Snapshot(ctx context.Context, rawURL string) (*models.PropertySnapshot, error) {
	conn, err := t.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.GetSnapshot(ctx, NormalizeURL(rawURL))
}

// Snapshots returns snapshots scraped since the given time.
func (t *Tracker) Snapshots(ctx context.Context, since time.Time) ([]models.PropertySnapshot, error) {
	conn, err := t.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.ListSnapshots(ctx, since)
}

func (t *Tracker) Changes(ctx context.Context, rawURL string) ([]models.PropertyChange, error) {
	conn, err := t.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.ListChanges(ctx, NormalizeURL(rawURL))
}

func (t *Tracker) Stats(ctx context.Context) (*models.TrackingStats, error) {
	conn, err := t.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.Stats(ctx)
}
