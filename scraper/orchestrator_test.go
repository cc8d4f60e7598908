package scraper

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"mb_scrooper/config"
	"mb_scrooper/httputil"
	"mb_scrooper/storage"
	"mb_scrooper/tracking"
)

func newTestSite(t *testing.T) (*httptest.Server, *config.Config) {
	t.Helper()
	basic := loadFixture(t, "detail_basic.html")
	sparse := loadFixture(t, "detail_sparse.html")

	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, listingHTML("/p/1", "/p/2/?utm_source=srp"))
		default:
			fmt.Fprint(w, listingHTML("/p/gone", "/p/1"))
		}
	})
	mux.HandleFunc("/p/1", func(w http.ResponseWriter, r *http.Request) { w.Write(basic) })
	mux.HandleFunc("/p/2/", func(w http.ResponseWriter, r *http.Request) { w.Write(sparse) })
	mux.HandleFunc("/p/gone", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	site := loadTestSite(t)
	site.BaseURL = srv.URL
	site.ListingURL = srv.URL + "/list?page={page}"
	site.MaxPages = 3

	cfg := &config.Config{
		Tracking: config.TrackingConfig{QualityThreshold: 0.7},
		Scraper:  config.ScraperConfig{UserAgent: "test-agent"},
		DBPath:   filepath.Join(t.TempDir(), "run.db"),
		Sites:    map[string]*config.SiteConfig{site.ID: site},
	}
	return srv, cfg
}

func newTestOrchestrator(cfg *config.Config) (*Orchestrator, *tracking.Tracker) {
	tracker := tracking.New(storage.NewManager(cfg.DBPath), cfg.Tracking)
	clients := httputil.NewClients(&cfg.Scraper)
	return NewOrchestrator(cfg, tracker, NewHTTPFetcher(clients.Scraping)), tracker
}

func TestRunSite_IncrementalPasses(t *testing.T) {
	srv, cfg := newTestSite(t)
	orch, tracker := newTestOrchestrator(cfg)
	ctx := context.Background()

	first, err := orch.RunSite(ctx, "magicbricks", RunOptions{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Stats.TotalURLs != 3 || first.Filter.NewCount() != 3 {
		t.Fatalf("expected 3 new candidates, got total=%d new=%d", first.Stats.TotalURLs, first.Filter.NewCount())
	}
	if first.Stats.Scraped != 2 || first.Stats.NewScraped != 2 || first.Stats.Failed != 1 {
		t.Fatalf("unexpected first run stats %+v", first.Stats)
	}

	session, err := tracker.Session(ctx, first.SessionID)
	if err != nil || session == nil {
		t.Fatalf("session: %v %v", session, err)
	}
	if session.EndTimestamp == nil || session.NewPropertiesScraped != 2 || session.FailedScraping != 1 {
		t.Fatalf("unexpected session row %+v", session)
	}

	gone, err := tracker.TrackedURL(ctx, srv.URL+"/p/gone")
	if err != nil || gone == nil {
		t.Fatalf("expected tracking row for missing listing: %v %v", gone, err)
	}
	if gone.IsActive || gone.ExtractionSuccess || gone.RetryCount != 1 {
		t.Fatalf("expected missing listing to be failed and inactive, got %+v", gone)
	}

	second, err := orch.RunSite(ctx, "magicbricks", RunOptions{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Filter.SkipCount() != 1 {
		t.Fatalf("expected complete listing to be skipped, got %v", second.Filter.URLsToSkip)
	}
	if second.Filter.QualityRescrapeCount() != 1 {
		t.Fatalf("expected sparse listing to be re-scraped for quality, got %v", second.Filter.QualityRescrapeURLs)
	}
	if len(second.Filter.FailedURLs) != 1 {
		t.Fatalf("expected failed listing to be retried, got %v", second.Filter.FailedURLs)
	}
	if second.Stats.NewScraped != 0 || second.Stats.Rescraped != 1 {
		t.Fatalf("unexpected second run stats %+v", second.Stats)
	}

	stats, err := tracker.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TrackedURLs != 3 || stats.Sessions != 2 {
		t.Fatalf("unexpected tracking stats %+v", stats)
	}
}

func TestRunSite_ForceRescrape(t *testing.T) {
	srv, cfg := newTestSite(t)
	orch, _ := newTestOrchestrator(cfg)
	ctx := context.Background()
	urls := []string{srv.URL + "/p/1"}

	if _, err := orch.RunSite(ctx, "magicbricks", RunOptions{URLs: urls}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	forced, err := orch.RunSite(ctx, "magicbricks", RunOptions{URLs: urls, ForceRescrape: true})
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if forced.Filter.ScrapeCount() != 1 || forced.Filter.DuplicateCount() != 1 {
		t.Fatalf("expected forced duplicate scrape, got %+v", forced.Filter.Decisions)
	}
	if forced.Stats.Scraped != 1 {
		t.Fatalf("expected one scrape, got %+v", forced.Stats)
	}
}

func TestRunSite_UnknownSite(t *testing.T) {
	_, cfg := newTestSite(t)
	orch, _ := newTestOrchestrator(cfg)
	if _, err := orch.RunSite(context.Background(), "nope", RunOptions{}); err == nil {
		t.Fatalf("expected error for unknown site")
	}
}

func TestRunAll_Paused(t *testing.T) {
	_, cfg := newTestSite(t)
	orch, tracker := newTestOrchestrator(cfg)
	orch.Pause()
	if err := orch.RunAll(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("run all: %v", err)
	}
	stats, err := tracker.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Sessions != 0 {
		t.Fatalf("expected no sessions while paused, got %d", stats.Sessions)
	}
	orch.Resume()
	if orch.IsPaused() {
		t.Fatalf("expected resumed orchestrator")
	}
}

func TestRunSite_FilterFailureCompletesSession(t *testing.T) {
	srv, cfg := newTestSite(t)

	// a tracked_urls table missing columns makes every lookup fail after the
	// session row has been written
	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE tracked_urls (
		id INTEGER PRIMARY KEY, property_url TEXT, url_hash TEXT,
		scraped_at DATETIME, data_quality_score REAL)`)
	db.Close()
	if err != nil {
		t.Fatalf("seed table: %v", err)
	}

	orch, tracker := newTestOrchestrator(cfg)
	ctx := context.Background()
	summary, err := orch.RunSite(ctx, "magicbricks", RunOptions{URLs: []string{srv.URL + "/p/1"}})
	if err == nil {
		t.Fatalf("expected filter error")
	}
	if summary == nil || summary.SessionID == "" {
		t.Fatalf("expected summary with session id, got %+v", summary)
	}

	session, err := tracker.Session(ctx, summary.SessionID)
	if err != nil || session == nil {
		t.Fatalf("session: %v %v", session, err)
	}
	if session.EndTimestamp == nil {
		t.Fatalf("expected session to be completed after filter failure")
	}
}

func TestRunSite_ZeroThresholdOverride(t *testing.T) {
	srv, cfg := newTestSite(t)
	orch, _ := newTestOrchestrator(cfg)
	ctx := context.Background()
	urls := []string{srv.URL + "/p/2/"}

	if _, err := orch.RunSite(ctx, "magicbricks", RunOptions{URLs: urls}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	zero := 0.0
	again, err := orch.RunSite(ctx, "magicbricks", RunOptions{URLs: urls, QualityThreshold: &zero})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Filter.SkipCount() != 1 || again.Stats.Scraped != 0 {
		t.Fatalf("expected sparse listing to be skipped with threshold 0, got %+v", again.Filter.Decisions)
	}
}
