package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadSiteConfig_MagicBricks(t *testing.T) {
	site, err := LoadSiteConfig(filepath.Join("sites", "magicbricks.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if site.ID != "magicbricks" {
		t.Fatalf("unexpected id %q", site.ID)
	}
	if !strings.Contains(site.ListingURL, "{page}") {
		t.Fatalf("listing url has no page placeholder: %s", site.ListingURL)
	}
	if site.LinkSelector == "" || site.Detail.Title == "" || site.Detail.Price == "" {
		t.Fatalf("missing selectors: %+v", site)
	}
}

func TestLoadSiteConfig_DefaultsMaxPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	os.WriteFile(path, []byte("id: s\nname: S\nlisting_url: https://x/{page}\n"), 0644)

	site, err := LoadSiteConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if site.MaxPages != 1 {
		t.Fatalf("expected max pages default 1, got %d", site.MaxPages)
	}
}

func TestLoad_Env(t *testing.T) {
	sites := t.TempDir()
	os.WriteFile(filepath.Join(sites, "a.yaml"), []byte("id: a\nname: A\n"), 0644)
	os.WriteFile(filepath.Join(sites, "notes.txt"), []byte("ignored"), 0644)

	t.Setenv("SITES_DIR", sites)
	t.Setenv("DB_PATH", "/tmp/mb.db")
	t.Setenv("QUALITY_THRESHOLD", "0.55")
	t.Setenv("SCRAPE_DELAY_MS", "250")
	t.Setenv("SCRAPE_INTERVAL", "6h")
	t.Setenv("S3_BUCKET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DBPath != "/tmp/mb.db" {
		t.Fatalf("unexpected db path %s", cfg.DBPath)
	}
	if cfg.Tracking.QualityThreshold != 0.55 {
		t.Fatalf("unexpected threshold %v", cfg.Tracking.QualityThreshold)
	}
	if cfg.Scraper.DelayMS != 250 {
		t.Fatalf("unexpected delay %d", cfg.Scraper.DelayMS)
	}
	if cfg.Scheduler.Interval != 6*time.Hour {
		t.Fatalf("unexpected interval %s", cfg.Scheduler.Interval)
	}
	if len(cfg.Sites) != 1 || cfg.Sites["a"] == nil {
		t.Fatalf("unexpected sites %v", cfg.Sites)
	}
	if cfg.S3.Enabled() {
		t.Fatalf("s3 should be disabled without a bucket")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SITES_DIR", filepath.Join(t.TempDir(), "missing"))
	t.Setenv("DB_PATH", "")
	t.Setenv("QUALITY_THRESHOLD", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DBPath != DefaultDBPath {
		t.Fatalf("unexpected db path %s", cfg.DBPath)
	}
	if cfg.Tracking.QualityThreshold != 0.7 {
		t.Fatalf("unexpected threshold %v", cfg.Tracking.QualityThreshold)
	}
}
