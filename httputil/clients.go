package httputil

import (
	"net/http"
	"time"

	"mb_scrooper/config"
)

type Clients struct {
	Scraping *http.Client // target site pages, browser-like headers
	API      *http.Client // direct, for object storage and other services
}

func NewClients(cfg *config.ScraperConfig) *Clients {
	scraping := &http.Client{
		Timeout: 20 * time.Second,
		Transport: &headerTransport{
			base:      http.DefaultTransport,
			userAgent: cfg.UserAgent,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// a moved detail page means the listing is gone
			return http.ErrUseLastResponse
		},
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 30 * time.Second},
	}
}

type headerTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9")
	return t.base.RoundTrip(req)
}
