package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"mb_scrooper/config"
	"mb_scrooper/tracking"
)

type logLevel string

const (
	levelInfo  logLevel = "info"
	levelWarn  logLevel = "warn"
	levelError logLevel = "error"
)

// RunOptions tunes a single incremental run.
type RunOptions struct {
	ForceRescrape bool
	// QualityThreshold overrides the configured threshold when set.
	QualityThreshold *float64
	MaxPages         int
	// URLs, when set, replaces listing-page collection.
	URLs []string
}

// RunSummary reports what a run did.
type RunSummary struct {
	SiteID    string
	SessionID string
	Filter    *tracking.FilterResult
	Stats     tracking.SessionStats
	Duration  time.Duration
}

type Orchestrator struct {
	cfg       *config.Config
	tracker   *tracking.Tracker
	fetcher   Fetcher
	collector *ListingCollector
	paused    bool
}

func NewOrchestrator(cfg *config.Config, tracker *tracking.Tracker, fetcher Fetcher) *Orchestrator {
	delay := time.Duration(cfg.Scraper.DelayMS) * time.Millisecond
	return &Orchestrator{
		cfg:       cfg,
		tracker:   tracker,
		fetcher:   fetcher,
		collector: NewListingCollector(fetcher, delay),
	}
}

func (o *Orchestrator) RunAll(ctx context.Context, opts RunOptions) error {
	if o.paused {
		log.Println("Scraper is paused, skipping run")
		return nil
	}

	for _, siteID := range o.GetSiteIDs() {
		if _, err := o.RunSite(ctx, siteID, opts); err != nil {
			log.Printf("Error running site %s: %v", siteID, err)
		}
	}
	return nil
}

// RunSite performs one incremental pass over a site: collect candidate URLs,
// open a session, filter out adequately scraped properties, scrape the rest
// and record each result.
func (o *Orchestrator) RunSite(ctx context.Context, siteID string, opts RunOptions) (*RunSummary, error) {
	site, ok := o.cfg.Sites[siteID]
	if !ok {
		return nil, fmt.Errorf("unknown site: %s", siteID)
	}

	started := time.Now()
	summary := &RunSummary{SiteID: siteID}

	candidates := opts.URLs
	if len(candidates) == 0 {
		var err error
		candidates, err = o.collector.Collect(ctx, site, opts.MaxPages)
		if err != nil {
			o.log(levelError, siteID, "Listing collection failed: %v", err)
			return nil, err
		}
	}
	o.log(levelInfo, siteID, "Collected %d candidate urls", len(candidates))

	threshold := o.tracker.QualityThreshold()
	if opts.QualityThreshold != nil {
		threshold = *opts.QualityThreshold
	}
	sessionCfg := map[string]any{
		"site_id":           siteID,
		"force_rescrape":    opts.ForceRescrape,
		"quality_threshold": threshold,
		"max_pages":         opts.MaxPages,
		"delay_ms":          o.cfg.Scraper.DelayMS,
	}
	sessionID, err := o.tracker.CreateScrapingSession(ctx,
		fmt.Sprintf("%s %s", site.Name, started.Format("2006-01-02 15:04")), len(candidates), sessionCfg)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	summary.SessionID = sessionID

	defer func() {
		summary.Duration = time.Since(started)
		if err := o.tracker.CompleteScrapingSession(context.WithoutCancel(ctx), sessionID, &summary.Stats); err != nil {
			o.log(levelWarn, siteID, "Could not complete session %s: %v", sessionID, err)
		}
	}()

	filtered, err := o.tracker.FilterURLsForScraping(ctx, candidates, tracking.FilterOptions{
		ForceRescrape:    opts.ForceRescrape,
		QualityThreshold: &threshold,
	})
	if err != nil {
		return summary, fmt.Errorf("filter urls: %w", err)
	}
	summary.Filter = filtered
	summary.Stats.AddFilter(filtered)

	delay := time.Duration(site.RateLimitMS) * time.Millisecond
	if delay <= 0 {
		delay = time.Duration(o.cfg.Scraper.DelayMS) * time.Millisecond
	}

	scraped := 0
	for _, d := range filtered.Decisions {
		if !d.Scrape {
			continue
		}
		if scraped > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				return summary, err
			}
		}
		scraped++

		if err := o.scrapeOne(ctx, site, sessionID, d, &summary.Stats); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return summary, err
			}
			o.log(levelWarn, siteID, "Scrape error for %s: %v", d.URL, err)
		}
	}

	o.log(levelInfo, siteID, "Completed: %d candidates, %d scraped (%d new), %d skipped, %d failed",
		summary.Stats.TotalURLs, summary.Stats.Scraped, summary.Stats.NewScraped,
		summary.Stats.Skipped, summary.Stats.Failed)

	return summary, nil
}

func (o *Orchestrator) scrapeOne(ctx context.Context, site *config.SiteConfig, sessionID string, d tracking.Decision, stats *tracking.SessionStats) error {
	body, err := o.fetcher.Fetch(ctx, d.URL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stats.AddFailure()
		o.markFailed(ctx, site.ID, sessionID, d.URL, err)
		if errors.Is(err, ErrListingGone) {
			if derr := o.tracker.Deactivate(ctx, d.URL); derr != nil {
				o.log(levelWarn, site.ID, "Could not deactivate %s: %v", d.URL, derr)
			}
		}
		return err
	}

	data, err := ExtractDetail(bytes.NewReader(body), site.Detail)
	if err == nil && !HasUsableData(data) {
		err = errors.New("no usable data on page")
	}
	if err != nil {
		stats.AddFailure()
		o.markFailed(ctx, site.ID, sessionID, d.URL, err)
		return err
	}
	data.RawHTML = string(body)

	result, err := o.tracker.TrackScrapedProperty(ctx, d.URL, data, sessionID, nil)
	if err != nil {
		stats.AddFailure()
		return err
	}
	stats.AddTracked(d, result.QualityScore)
	return nil
}

func (o *Orchestrator) markFailed(ctx context.Context, siteID, sessionID, rawURL string, cause error) {
	if err := o.tracker.MarkScrapeFailed(ctx, rawURL, sessionID, cause); err != nil {
		o.log(levelWarn, siteID, "Could not record failure for %s: %v", rawURL, err)
	}
}

func (o *Orchestrator) Pause() {
	o.paused = true
	log.Println("Scraper paused")
}

func (o *Orchestrator) Resume() {
	o.paused = false
	log.Println("Scraper resumed")
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused
}

func (o *Orchestrator) log(level logLevel, siteID, format string, args ...any) {
	log.Printf("[%s] %s: %s", level, siteID, fmt.Sprintf(format, args...))
}

// GetSiteIDs returns the configured site ids in a stable order.
func (o *Orchestrator) GetSiteIDs() []string {
	var ids []string
	for id := range o.cfg.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
