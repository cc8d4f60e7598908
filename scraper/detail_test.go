package scraper

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"mb_scrooper/config"
	"mb_scrooper/quality"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func loadTestSite(t *testing.T) *config.SiteConfig {
	t.Helper()
	site, err := config.LoadSiteConfig(filepath.Join("testdata", "magicbricks_test.yaml"))
	if err != nil {
		t.Fatalf("failed to load site config: %v", err)
	}
	return site
}

func TestExtractDetail_Basic(t *testing.T) {
	site := loadTestSite(t)
	data, err := ExtractDetail(bytes.NewReader(loadFixture(t, "detail_basic.html")), site.Detail)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if data.Title != "3 BHK 1650 Sq-ft Flat For Sale in Sector 45" {
		t.Fatalf("unexpected title %q", data.Title)
	}
	if data.Price != "₹1.25 Cr" {
		t.Fatalf("unexpected price %q", data.Price)
	}
	if data.Area != "1650 sqft" {
		t.Fatalf("unexpected area %q", data.Area)
	}
	if data.Locality != "Sector 45, Gurgaon" {
		t.Fatalf("unexpected locality %q", data.Locality)
	}
	if data.Society != "Palm Grove Heights" {
		t.Fatalf("unexpected society %q", data.Society)
	}
	if data.PropertyType != "Apartment" || data.Furnishing != "Semi-Furnished" {
		t.Fatalf("unexpected type/furnishing %q/%q", data.PropertyType, data.Furnishing)
	}
	if data.Bedrooms != "3" || data.Bathrooms != "3" {
		t.Fatalf("unexpected rooms %q/%q", data.Bedrooms, data.Bathrooms)
	}
	if data.Floor != "7 out of 14" || data.Facing != "East" || data.Age != "5 to 10 years" {
		t.Fatalf("unexpected floor/facing/age %q/%q/%q", data.Floor, data.Facing, data.Age)
	}
	if len(data.Amenities) != 4 || data.Amenities[2] != "Swimming Pool" {
		t.Fatalf("unexpected amenities %v", data.Amenities)
	}
	if len(data.Images) != 3 || data.Images[1] != "https://img.example.com/2.jpg" {
		t.Fatalf("unexpected images %v", data.Images)
	}
	if data.Specifications["Age of Construction"] != "5 to 10 years" {
		t.Fatalf("unexpected specifications %v", data.Specifications)
	}
	if data.BuilderInfo["Builder"] != "Palm Developers" {
		t.Fatalf("unexpected builder info %v", data.BuilderInfo)
	}
	if data.LocationDetails["Nearest Metro"] != "HUDA City Centre" {
		t.Fatalf("unexpected location details %v", data.LocationDetails)
	}
	if data.ContactInfo["name"] != "Rohit Sharma" || data.ContactInfo["phone"] == "" {
		t.Fatalf("unexpected contact info %v", data.ContactInfo)
	}

	if score := quality.ScoreData(data); score != 1.0 {
		t.Fatalf("expected full score for complete page, got %f", score)
	}
}

func TestExtractDetail_Sparse(t *testing.T) {
	site := loadTestSite(t)
	data, err := ExtractDetail(bytes.NewReader(loadFixture(t, "detail_sparse.html")), site.Detail)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if !HasUsableData(data) {
		t.Fatalf("expected title to make the page usable")
	}
	if data.Amenities != nil || data.Images != nil || data.ContactInfo != nil {
		t.Fatalf("expected empty collections, got %+v", data)
	}
	if score := quality.ScoreData(data); score < 0.149 || score > 0.151 {
		t.Fatalf("expected title-only score 0.15, got %f", score)
	}
}

func TestExtractDetail_EmptySelectors(t *testing.T) {
	data, err := ExtractDetail(bytes.NewReader(loadFixture(t, "detail_basic.html")), config.DetailSelectors{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if HasUsableData(data) {
		t.Fatalf("expected no usable data without selectors")
	}
}
