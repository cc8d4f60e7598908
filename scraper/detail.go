package scraper

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"mb_scrooper/config"
	"mb_scrooper/models"
)

// ExtractDetail reads a property detail page using the site's selectors.
// Empty selectors leave their field blank.
func ExtractDetail(r io.Reader, sel config.DetailSelectors) (*models.PropertyData, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	data := &models.PropertyData{
		Title:        extractText(doc, sel.Title),
		Price:        extractText(doc, sel.Price),
		Area:         extractText(doc, sel.Area),
		Locality:     extractText(doc, sel.Locality),
		Society:      extractText(doc, sel.Society),
		PropertyType: extractText(doc, sel.PropertyType),
		Bedrooms:     extractText(doc, sel.Bedrooms),
		Bathrooms:    extractText(doc, sel.Bathrooms),
		Furnishing:   extractText(doc, sel.Furnishing),
		Floor:        extractText(doc, sel.Floor),
		Age:          extractText(doc, sel.Age),
		Facing:       extractText(doc, sel.Facing),
		Parking:      extractText(doc, sel.Parking),
		Description:  extractText(doc, sel.Description),
	}

	data.Amenities = extractList(doc, sel.Amenities)
	data.Images = extractImages(doc, sel.Images)
	data.Specifications = extractPairs(doc, sel.Specifications)
	data.BuilderInfo = extractPairs(doc, sel.BuilderInfo)
	data.LocationDetails = extractPairs(doc, sel.LocationDetails)

	contact := map[string]string{}
	if name := extractText(doc, sel.ContactName); name != "" {
		contact["name"] = name
	}
	if phone := extractText(doc, sel.ContactPhone); phone != "" {
		contact["phone"] = phone
	}
	if len(contact) > 0 {
		data.ContactInfo = contact
	}

	return data, nil
}

// HasUsableData reports whether a page produced anything worth tracking.
func HasUsableData(data *models.PropertyData) bool {
	return data != nil && (data.Title != "" || data.Price != "")
}

func extractText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return collapseSpace(doc.Find(selector).First().Text())
}

func extractList(doc *goquery.Document, selector string) []string {
	if selector == "" {
		return nil
	}
	var items []string
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		if text := collapseSpace(s.Text()); text != "" {
			items = append(items, text)
		}
	})
	return items
}

func extractImages(doc *goquery.Document, selector string) []string {
	if selector == "" {
		return nil
	}
	seen := map[string]bool{}
	var images []string
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		src, _ := s.Attr("data-src")
		if src == "" {
			src, _ = s.Attr("src")
		}
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") || seen[src] {
			return
		}
		seen[src] = true
		images = append(images, src)
	})
	return images
}

// extractPairs reads label/value rows. Labels come from a .label, dt or th
// child and values from a .value, dd or td child; rows without both children
// fall back to splitting their text on the first colon.
func extractPairs(doc *goquery.Document, selector string) map[string]string {
	if selector == "" {
		return nil
	}
	pairs := map[string]string{}
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		label := collapseSpace(s.Find("[class*='label'], dt, th").First().Text())
		value := collapseSpace(s.Find("[class*='value'], dd, td").First().Text())
		if label == "" || value == "" {
			text := collapseSpace(s.Text())
			idx := strings.Index(text, ":")
			if idx <= 0 {
				return
			}
			label = strings.TrimSpace(text[:idx])
			value = strings.TrimSpace(text[idx+1:])
		}
		if label != "" && value != "" {
			pairs[label] = value
		}
	})
	if len(pairs) == 0 {
		return nil
	}
	return pairs
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
