package tracking

import (
	"context"
	"fmt"
	"log"
)

// FilterOptions controls a filtering pass. A nil QualityThreshold uses the
// tracker's configured threshold; 0 disables quality re-scrapes.
type FilterOptions struct {
	ForceRescrape    bool
	QualityThreshold *float64
}

// Decision is the outcome for one candidate URL.
type Decision struct {
	URL           string
	NormalizedURL string
	URLHash       string
	Scrape        bool
	Reason        Reason
	// Matched lists every re-scrape trigger that held, in priority order.
	// Reason is always the first of them for re-scraped existing URLs.
	Matched []Reason
}

// FilterResult partitions the candidate list into URLs to scrape and to skip.
type FilterResult struct {
	URLsToScrape        []string
	URLsToSkip          []string
	NewURLs             []string
	DuplicateURLs       []string
	QualityRescrapeURLs []string
	ExpiredURLs         []string
	FailedURLs          []string
	BatchDuplicateURLs  []string
	Decisions           []Decision
}

func (r *FilterResult) TotalCount() int           { return len(r.Decisions) }
func (r *FilterResult) ScrapeCount() int          { return len(r.URLsToScrape) }
func (r *FilterResult) SkipCount() int            { return len(r.URLsToSkip) }
func (r *FilterResult) NewCount() int             { return len(r.NewURLs) }
func (r *FilterResult) DuplicateCount() int       { return len(r.DuplicateURLs) }
func (r *FilterResult) QualityRescrapeCount() int { return len(r.QualityRescrapeURLs) }
func (r *FilterResult) ExpiredCount() int         { return len(r.ExpiredURLs) }

func (r *FilterResult) add(d Decision) {
	r.Decisions = append(r.Decisions, d)
	if d.Scrape {
		r.URLsToScrape = append(r.URLsToScrape, d.URL)
	} else {
		r.URLsToSkip = append(r.URLsToSkip, d.URL)
	}

	switch d.Reason {
	case ReasonNew:
		r.NewURLs = append(r.NewURLs, d.URL)
		return
	case ReasonDuplicateInBatch:
		r.BatchDuplicateURLs = append(r.BatchDuplicateURLs, d.URL)
		return
	case ReasonLowQualityScore:
		r.QualityRescrapeURLs = append(r.QualityRescrapeURLs, d.URL)
	case ReasonForceRescrapeDatePassed:
		r.ExpiredURLs = append(r.ExpiredURLs, d.URL)
	case ReasonPreviousExtractionFailed:
		r.FailedURLs = append(r.FailedURLs, d.URL)
	}
	// everything else was already tracked
	r.DuplicateURLs = append(r.DuplicateURLs, d.URL)
}

// FilterURLsForScraping decides which candidate URLs need (re-)scraping.
// Repeated occurrences of the same property within urls are skipped after the
// first one.
func (t *Tracker) FilterURLsForScraping(ctx context.Context, urls []string, opts FilterOptions) (*FilterResult, error) {
	threshold := t.cfg.QualityThreshold
	if opts.QualityThreshold != nil {
		threshold = *opts.QualityThreshold
	}

	conn, err := t.open(ctx)
	if err != nil {
		log.Printf("Tracking: filter aborted: %v", err)
		return nil, err
	}
	defer conn.Close()

	now := t.now()
	result := &FilterResult{}
	seen := make(map[string]bool, len(urls))

	for _, raw := range urls {
		normalized, hash := Identity(raw)
		d := Decision{URL: raw, NormalizedURL: normalized, URLHash: hash}

		if seen[hash] {
			d.Reason = ReasonDuplicateInBatch
			result.add(d)
			continue
		}
		seen[hash] = true

		row, err := conn.FindTrackedURL(ctx, hash, normalized)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", raw, err)
		}

		switch {
		case row == nil:
			d.Scrape = true
			d.Reason = ReasonNew
		case opts.ForceRescrape:
			d.Scrape = true
			d.Reason = ReasonForced
		default:
			d.Matched = evaluateRescrape(row, threshold, now)
			if len(d.Matched) > 0 {
				d.Scrape = true
				d.Reason = d.Matched[0]
			} else {
				d.Reason = ReasonAdequatelyScraped
			}
		}
		result.add(d)
	}

	log.Printf("Tracking: %d candidates, %d to scrape (%d new, %d low quality, %d expired), %d skipped",
		result.TotalCount(), result.ScrapeCount(), result.NewCount(),
		result.QualityRescrapeCount(), result.ExpiredCount(), result.SkipCount())

	return result, nil
}
