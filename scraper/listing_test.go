package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"testing"
)

func TestExtractPropertyLinks(t *testing.T) {
	base, _ := url.Parse("https://www.magicbricks.com")
	links, err := ExtractPropertyLinks(bytes.NewReader(loadFixture(t, "listing_page.html")), base, "a.mb-srp__card--title")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %v", len(links), links)
	}
	if links[0] != "https://www.magicbricks.com/propertyDetails/3-BHK-1650-Sq-ft-Multistorey-Apartment-FOR-Sale-Sector-45-in-Gurgaon&id=4d423634" {
		t.Fatalf("unexpected first link %s", links[0])
	}
	if links[1] != "https://www.magicbricks.com/propertyDetails/2-BHK-1100-Sq-ft-FOR-Sale-Sohna-Road-in-Gurgaon&id=4d423635?utm_source=srp" {
		t.Fatalf("unexpected second link %s", links[1])
	}
}

func TestListingPageURL(t *testing.T) {
	got := ListingPageURL("https://x.com/list?page={page}&city=gurgaon", 3)
	if got != "https://x.com/list?page=3&city=gurgaon" {
		t.Fatalf("unexpected page url %s", got)
	}
}

type mapFetcher struct {
	pages map[string]string
	calls []string
}

func (f *mapFetcher) Fetch(ctx context.Context, u string) ([]byte, error) {
	f.calls = append(f.calls, u)
	page, ok := f.pages[u]
	if !ok {
		return nil, fmt.Errorf("%w: 404", ErrListingGone)
	}
	return []byte(page), nil
}

func listingHTML(hrefs ...string) string {
	html := "<html><body>"
	for _, h := range hrefs {
		html += fmt.Sprintf(`<a class="mb-srp__card--title" href="%s">card</a>`, h)
	}
	return html + "</body></html>"
}

func TestListingCollector_StopsWhenNoNewLinks(t *testing.T) {
	site := loadTestSite(t)
	site.MaxPages = 5
	fetcher := &mapFetcher{pages: map[string]string{
		ListingPageURL(site.ListingURL, 1): listingHTML("/p/1", "/p/2"),
		ListingPageURL(site.ListingURL, 2): listingHTML("/p/2", "/p/3"),
		ListingPageURL(site.ListingURL, 3): listingHTML("/p/1", "/p/3"),
		ListingPageURL(site.ListingURL, 4): listingHTML("/p/4"),
	}}

	urls, err := NewListingCollector(fetcher, 0).Collect(context.Background(), site, 0)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(urls) != 3 {
		t.Fatalf("expected 3 urls, got %v", urls)
	}
	if len(fetcher.calls) != 3 {
		t.Fatalf("expected to stop after page 3, fetched %v", fetcher.calls)
	}
}

func TestListingCollector_MaxPagesOverride(t *testing.T) {
	site := loadTestSite(t)
	fetcher := &mapFetcher{pages: map[string]string{
		ListingPageURL(site.ListingURL, 1): listingHTML("/p/1"),
		ListingPageURL(site.ListingURL, 2): listingHTML("/p/2"),
	}}

	urls, err := NewListingCollector(fetcher, 0).Collect(context.Background(), site, 1)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(urls) != 1 || len(fetcher.calls) != 1 {
		t.Fatalf("expected a single page, got urls=%v calls=%v", urls, fetcher.calls)
	}
}

func TestListingCollector_FirstPageError(t *testing.T) {
	site := loadTestSite(t)
	fetcher := &mapFetcher{pages: map[string]string{}}

	if _, err := NewListingCollector(fetcher, 0).Collect(context.Background(), site, 0); err == nil {
		t.Fatalf("expected error when the first listing page fails")
	}
}
