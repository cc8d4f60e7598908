package tracking

import (
	"time"

	"mb_scrooper/models"
)

// Reason explains why a candidate URL was placed in the scrape or skip set.
type Reason string

const (
	ReasonNew                      Reason = "new"
	ReasonForced                   Reason = "force_rescrape"
	ReasonPreviousExtractionFailed Reason = "previous_extraction_failed"
	ReasonLowQualityScore          Reason = "low_quality_score"
	ReasonForceRescrapeDatePassed  Reason = "force_rescrape_date_passed"
	ReasonAdequatelyScraped        Reason = "already_scraped"
	ReasonDuplicateInBatch         Reason = "duplicate_in_batch"
)

// rescrapeTriggers are evaluated in priority order; the first that holds is
// the recorded reason.
var rescrapeTriggers = []struct {
	reason Reason
	holds  func(row *models.TrackedURL, threshold float64, now time.Time) bool
}{
	{ReasonPreviousExtractionFailed, func(row *models.TrackedURL, _ float64, _ time.Time) bool {
		return !row.ExtractionSuccess
	}},
	{ReasonLowQualityScore, func(row *models.TrackedURL, threshold float64, _ time.Time) bool {
		return row.DataQualityScore < threshold
	}},
	{ReasonForceRescrapeDatePassed, func(row *models.TrackedURL, _ float64, now time.Time) bool {
		return row.ForceRescrapeAfter != nil && !row.ForceRescrapeAfter.After(now)
	}},
}

// evaluateRescrape returns every trigger that holds for row, highest priority
// first. An empty result means the stored scrape is adequate.
func evaluateRescrape(row *models.TrackedURL, threshold float64, now time.Time) []Reason {
	var matched []Reason
	for _, trig := range rescrapeTriggers {
		if trig.holds(row, threshold, now) {
			matched = append(matched, trig.reason)
		}
	}
	return matched
}
