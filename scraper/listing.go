package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"mb_scrooper/config"
)

// ListingCollector walks a site's paginated listing pages and gathers the
// property detail URLs they link to.
type ListingCollector struct {
	fetcher Fetcher
	delay   time.Duration
}

func NewListingCollector(fetcher Fetcher, delay time.Duration) *ListingCollector {
	return &ListingCollector{fetcher: fetcher, delay: delay}
}

// Collect returns the property URLs found on pages 1..maxPages, in page
// order without repeats. It stops early at the first page yielding no new
// links. maxPages <= 0 uses the site's configured limit.
func (c *ListingCollector) Collect(ctx context.Context, site *config.SiteConfig, maxPages int) ([]string, error) {
	if maxPages <= 0 {
		maxPages = site.MaxPages
	}

	base, err := url.Parse(site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	seen := make(map[string]bool)
	var all []string

	for page := 1; page <= maxPages; page++ {
		pageURL := ListingPageURL(site.ListingURL, page)
		body, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("listing page %d: %w", page, err)
			}
			log.Printf("Error on listing page %d: %v", page, err)
			break
		}

		links, err := ExtractPropertyLinks(bytes.NewReader(body), base, site.LinkSelector)
		if err != nil {
			return all, fmt.Errorf("listing page %d: %w", page, err)
		}

		added := 0
		for _, link := range links {
			if seen[link] {
				continue
			}
			seen[link] = true
			all = append(all, link)
			added++
		}

		log.Printf("Listing page %d: %d links (%d new, total: %d)", page, len(links), added, len(all))
		if added == 0 {
			break
		}

		if page < maxPages {
			if err := sleepCtx(ctx, c.delay); err != nil {
				return all, err
			}
		}
	}

	return all, nil
}

// ListingPageURL fills the {page} placeholder of a listing URL template.
func ListingPageURL(template string, page int) string {
	return strings.ReplaceAll(template, "{page}", strconv.Itoa(page))
}

// ExtractPropertyLinks returns the absolute hrefs matched by selector.
func ExtractPropertyLinks(r io.Reader, base *url.URL, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var links []string
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		links = append(links, ref.String())
	})
	return links, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
