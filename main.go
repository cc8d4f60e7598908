package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mb_scrooper/config"
	"mb_scrooper/export"
	"mb_scrooper/httputil"
	"mb_scrooper/logging"
	"mb_scrooper/scheduler"
	"mb_scrooper/scraper"
	"mb_scrooper/storage"
	"mb_scrooper/tracking"
)

var (
	scrapeNow   = flag.Bool("scrape", false, "Run one incremental scrape and exit")
	force       = flag.Bool("force", false, "Re-scrape every URL regardless of tracking state")
	siteID      = flag.String("site", "", "Only scrape this site id")
	maxPages    = flag.Int("max-pages", 0, "Listing pages to walk (0 uses the site config)")
	threshold   = flag.Float64("threshold", -1, "Quality threshold override in [0,1] (negative uses QUALITY_THRESHOLD)")
	urlsFile    = flag.String("urls", "", "Scrape the URLs in this file instead of walking listing pages")
	exportPath  = flag.String("export", "", "Write snapshots to this CSV file and exit")
	since       = flag.Duration("since", 0, "With -export or -sync-pg, only snapshots scraped within this window")
	showStats   = flag.Bool("stats", false, "Print tracking statistics and exit")
	syncPG      = flag.Bool("sync-pg", false, "Mirror snapshots into DATABASE_URL and exit")
	rescrapeURL = flag.String("rescrape", "", "Force a re-scrape of this URL once -after has passed")
	after       = flag.Duration("after", 0, "Delay for -rescrape")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting mb_scrooper...")
	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		log.Printf("  - %s (%s)", site.Name, id)
	}

	db := storage.NewManager(cfg.DBPath)
	tracker := tracking.New(db, cfg.Tracking)
	log.Printf("Tracking database: %s (quality threshold %.2f)", db.Path(), tracker.QualityThreshold())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *showStats:
		if err := printStats(ctx, tracker); err != nil {
			log.Fatalf("Stats failed: %v", err)
		}
		return
	case *rescrapeURL != "":
		when := time.Now().Add(*after)
		if err := tracker.ScheduleRescrape(ctx, *rescrapeURL, when); err != nil {
			log.Fatalf("Schedule rescrape failed: %v", err)
		}
		log.Printf("Re-scrape of %s scheduled after %s", *rescrapeURL, when.Format(time.RFC3339))
		return
	case *exportPath != "":
		if err := runExport(ctx, cfg, tracker, *exportPath); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		return
	case *syncPG:
		if err := runSync(ctx, cfg, tracker); err != nil {
			log.Fatalf("Postgres sync failed: %v", err)
		}
		return
	}

	fetcher, closeFetcher := newFetcher(cfg)
	defer closeFetcher()
	orchestrator := scraper.NewOrchestrator(cfg, tracker, fetcher)

	opts := scraper.RunOptions{
		ForceRescrape:    *force,
		MaxPages:         *maxPages,
	}
	if *threshold >= 0 {
		opts.QualityThreshold = threshold
	}
	if *urlsFile != "" {
		urls, err := readURLs(*urlsFile)
		if err != nil {
			log.Fatalf("Failed to read urls: %v", err)
		}
		opts.URLs = urls
	}

	runAll := func(ctx context.Context) error {
		if *siteID != "" {
			_, err := orchestrator.RunSite(ctx, *siteID, opts)
			return err
		}
		return orchestrator.RunAll(ctx, opts)
	}

	if *scrapeNow {
		log.Println("Running scrape...")
		if err := runAll(ctx); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Println("Scrape complete!")
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg.Scheduler, scheduler.RunnerFunc(runAll))
	if cfg.Postgres.DBURL != "" {
		sched.AfterRun(func(ctx context.Context) {
			if err := runSync(ctx, cfg, tracker); err != nil {
				log.Printf("Postgres sync error: %v", err)
			}
		})
	}
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")
	<-ctx.Done()

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

func newFetcher(cfg *config.Config) (scraper.Fetcher, func()) {
	if cfg.Scraper.Browser {
		bf := scraper.NewBrowserFetcher(cfg.Scraper.UserAgent)
		log.Println("Using headless browser fetcher")
		return bf, bf.Close
	}
	clients := httputil.NewClients(&cfg.Scraper)
	return scraper.NewHTTPFetcher(clients.Scraping), func() {}
}

func sinceTime() time.Time {
	if *since <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-*since)
}

func runExport(ctx context.Context, cfg *config.Config, tracker *tracking.Tracker, path string) error {
	snaps, err := tracker.Snapshots(ctx, sinceTime())
	if err != nil {
		return err
	}

	var uploader export.Uploader
	if cfg.S3.Enabled() {
		up, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			return err
		}
		uploader = up
	}

	_, err = export.ToFile(ctx, path, snaps, uploader)
	return err
}

func runSync(ctx context.Context, cfg *config.Config, tracker *tracking.Tracker) error {
	if cfg.Postgres.DBURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}

	mirror, err := storage.NewPostgresMirror(ctx, cfg.Postgres.DBURL)
	if err != nil {
		return err
	}
	defer mirror.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Postgres.DBURL))

	if err := mirror.SetupSchema(ctx); err != nil {
		return err
	}

	snaps, err := tracker.Snapshots(ctx, sinceTime())
	if err != nil {
		return err
	}
	n, err := mirror.SyncSnapshots(ctx, snaps)
	if err != nil {
		return err
	}
	total, err := mirror.MirroredCount(ctx)
	if err != nil {
		return err
	}
	log.Printf("Mirrored %d of %d snapshots (%d rows in mirror)", n, len(snaps), total)
	return nil
}

func printStats(ctx context.Context, tracker *tracking.Tracker) error {
	stats, err := tracker.Stats(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

// readURLs reads one URL per line, ignoring blanks and # comments.
func readURLs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, nil
}

// maskConnectionString hides the password of a connection URL for logging.
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	return u.Redacted()
}
