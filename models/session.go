package models

import (
	"encoding/json"
	"time"
)

type ScrapingSession struct {
	SessionID            string          `json:"session_id" db:"session_id"`
	SessionName          string          `json:"session_name" db:"session_name"`
	StartTimestamp       time.Time       `json:"start_timestamp" db:"start_timestamp"`
	EndTimestamp         *time.Time      `json:"end_timestamp" db:"end_timestamp"`
	TotalURLsRequested   int             `json:"total_urls_requested" db:"total_urls_requested"`
	NewPropertiesScraped int             `json:"new_properties_scraped" db:"new_properties_scraped"`
	DuplicatesSkipped    int             `json:"duplicates_skipped" db:"duplicates_skipped"`
	FailedScraping       int             `json:"failed_scraping" db:"failed_scraping"`
	AverageQualityScore  float64         `json:"average_quality_score" db:"average_quality_score"`
	SessionConfig        json.RawMessage `json:"session_config" db:"session_config"`
}

// TrackingStats summarises the tracking database for reports.
type TrackingStats struct {
	TrackedURLs         int     `json:"tracked_urls"`
	SuccessfulURLs      int     `json:"successful_urls"`
	FailedURLs          int     `json:"failed_urls"`
	AverageQualityScore float64 `json:"average_quality_score"`
	Sessions            int     `json:"sessions"`
	Changes             int     `json:"changes"`
}
