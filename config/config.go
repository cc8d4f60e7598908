package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultDBPath = "magicbricks_enhanced.db"

type Config struct {
	Tracking  TrackingConfig
	Scheduler SchedulerConfig
	Scraper   ScraperConfig
	Postgres  PostgresConfig
	S3        S3Config
	DBPath    string
	LogPath   string
	SitesDir  string
	Sites     map[string]*SiteConfig
}

type TrackingConfig struct {
	QualityThreshold float64 `json:"quality_threshold"`
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ScraperConfig struct {
	DelayMS   int
	UserAgent string
	Browser   bool
}

type PostgresConfig struct {
	DBURL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// SiteConfig describes how to walk a site's listing pages and read its
// property detail pages.
type SiteConfig struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	BaseURL      string            `yaml:"base_url"`
	ListingURL   string            `yaml:"listing_url"` // contains {page}
	MaxPages     int               `yaml:"max_pages"`
	LinkSelector string            `yaml:"link_selector"`
	RateLimitMS  int               `yaml:"rate_limit_ms"`
	Detail       DetailSelectors   `yaml:"detail"`
	Extra        map[string]string `yaml:"extra"`
}

// DetailSelectors maps property fields to CSS selectors on a detail page.
type DetailSelectors struct {
	Title           string `yaml:"title"`
	Price           string `yaml:"price"`
	Area            string `yaml:"area"`
	Locality        string `yaml:"locality"`
	Society         string `yaml:"society"`
	PropertyType    string `yaml:"property_type"`
	Bedrooms        string `yaml:"bedrooms"`
	Bathrooms       string `yaml:"bathrooms"`
	Furnishing      string `yaml:"furnishing"`
	Floor           string `yaml:"floor"`
	Age             string `yaml:"age"`
	Facing          string `yaml:"facing"`
	Parking         string `yaml:"parking"`
	Amenities       string `yaml:"amenities"`
	Description     string `yaml:"description"`
	Images          string `yaml:"images"`
	Specifications  string `yaml:"specifications"` // rows with label + value children
	BuilderInfo     string `yaml:"builder_info"`
	LocationDetails string `yaml:"location_details"`
	ContactName     string `yaml:"contact_name"`
	ContactPhone    string `yaml:"contact_phone"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Tracking: TrackingConfig{
			QualityThreshold: getEnvFloat("QUALITY_THRESHOLD", 0.7),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Scraper: ScraperConfig{
			DelayMS:   getEnvInt("SCRAPE_DELAY_MS", 1500),
			UserAgent: getEnv("SCRAPE_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
			Browser:   os.Getenv("BROWSER_FETCH") == "true",
		},
		Postgres: PostgresConfig{
			DBURL: os.Getenv("DATABASE_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		DBPath:   getEnv("DB_PATH", DefaultDBPath),
		LogPath:  getEnv("LOG_PATH", "scraper.log"),
		SitesDir: getEnv("SITES_DIR", "config/sites"),
		Sites:    make(map[string]*SiteConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	entries, err := os.ReadDir(c.SitesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		site, err := LoadSiteConfig(filepath.Join(c.SitesDir, entry.Name()))
		if err != nil {
			return err
		}
		c.Sites[site.ID] = site
	}

	return nil
}

// LoadSiteConfig reads a single site definition.
func LoadSiteConfig(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var site SiteConfig
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, err
	}
	if site.MaxPages <= 0 {
		site.MaxPages = 1
	}
	return &site, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
