package models

import (
	"time"
)

// TrackedURL is the lightweight per-URL tracking row.
type TrackedURL struct {
	ID                 int64      `json:"id" db:"id"`
	PropertyURL        string     `json:"property_url" db:"property_url"`
	URLHash            string     `json:"url_hash" db:"url_hash"`
	ScrapedAt          *time.Time `json:"scraped_at" db:"scraped_at"`
	ScrapingSessionID  string     `json:"scraping_session_id" db:"scraping_session_id"`
	DataQualityScore   float64    `json:"data_quality_score" db:"data_quality_score"`
	ExtractionSuccess  bool       `json:"extraction_success" db:"extraction_success"`
	RetryCount         int        `json:"retry_count" db:"retry_count"`
	LastRetryAt        *time.Time `json:"last_retry_at" db:"last_retry_at"`
	ForceRescrapeAfter *time.Time `json:"force_rescrape_after" db:"force_rescrape_after"`
	IsActive           bool       `json:"is_active" db:"is_active"`
}

// PropertySnapshot is the detailed copy of the latest scrape of one URL.
// It is overwritten on every re-scrape.
type PropertySnapshot struct {
	ID                int64        `json:"id" db:"id"`
	PropertyURL       string       `json:"property_url" db:"property_url"`
	URLHash           string       `json:"url_hash" db:"url_hash"`
	ScrapingSessionID string       `json:"scraping_session_id" db:"scraping_session_id"`
	Data              PropertyData `json:"data"`
	ScrapedAt         time.Time    `json:"scraped_at" db:"scraped_at"`
	DataQualityScore  float64      `json:"data_quality_score" db:"data_quality_score"`
}

// PropertyChange is one field-level difference detected on re-scrape.
type PropertyChange struct {
	ID                int64     `json:"id" db:"id"`
	PropertyURL       string    `json:"property_url" db:"property_url"`
	URLHash           string    `json:"url_hash" db:"url_hash"`
	FieldName         string    `json:"field_name" db:"field_name"`
	OldValue          string    `json:"old_value" db:"old_value"`
	NewValue          string    `json:"new_value" db:"new_value"`
	ChangeDetectedAt  time.Time `json:"change_detected_at" db:"change_detected_at"`
	ScrapingSessionID string    `json:"scraping_session_id" db:"scraping_session_id"`
}
