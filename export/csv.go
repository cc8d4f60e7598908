// Package export writes tracked property snapshots out as CSV.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"mb_scrooper/models"
)

// Uploader stores a finished export somewhere remote.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
	PublicURL(key string) string
}

var header = []string{
	"property_url", "url_hash", "scraping_session_id", "scraped_at", "data_quality_score",
	models.FieldTitle, models.FieldPrice, models.FieldArea, models.FieldLocality,
	models.FieldSociety, models.FieldPropertyType, models.FieldBedrooms,
	models.FieldBathrooms, models.FieldFurnishing, models.FieldFloor, models.FieldAge,
	models.FieldFacing, models.FieldParking, models.FieldAmenities, models.FieldDescription,
	models.FieldBuilderInfo, models.FieldLocationDetails, models.FieldSpecifications,
	models.FieldContactInfo, models.FieldImages,
}

// WriteCSV writes one row per snapshot. Collection fields are JSON encoded,
// raw HTML is never exported.
func WriteCSV(w io.Writer, snaps []models.PropertySnapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, s := range snaps {
		d := s.Data
		row := []string{
			s.PropertyURL,
			s.URLHash,
			s.ScrapingSessionID,
			s.ScrapedAt.UTC().Format(time.RFC3339),
			strconv.FormatFloat(s.DataQualityScore, 'f', 3, 64),
			d.Title, d.Price, d.Area, d.Locality, d.Society, d.PropertyType, d.Bedrooms,
			d.Bathrooms, d.Furnishing, d.Floor, d.Age, d.Facing, d.Parking,
			models.JSONText(d.Amenities),
			d.Description,
			models.JSONText(d.BuilderInfo),
			models.JSONText(d.LocationDetails),
			models.JSONText(d.Specifications),
			models.JSONText(d.ContactInfo),
			models.JSONText(d.Images),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", s.PropertyURL, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ToFile writes the export to path, creating parent directories. When
// uploader is non-nil the same bytes are uploaded under exports/<name>.
// It returns the public URL of the upload, or "".
func ToFile(ctx context.Context, path string, snaps []models.PropertySnapshot, uploader Uploader) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, snaps); err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	log.Printf("Exported %d snapshots to %s", len(snaps), path)

	if uploader == nil {
		return "", nil
	}

	key := "exports/" + filepath.Base(path)
	if err := uploader.Upload(ctx, key, bytes.NewReader(buf.Bytes()), "text/csv"); err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}
	url := uploader.PublicURL(key)
	log.Printf("Uploaded export to %s", url)
	return url, nil
}
