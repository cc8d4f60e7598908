// Package quality scores how complete a scraped property record is.
package quality

import (
	"reflect"
	"strings"
	"unicode/utf8"

	"mb_scrooper/models"
)

// Record is a scraped property keyed by field name.
type Record = map[string]any

const (
	richnessBonus        = 1.2
	richDescriptionChars = 100
	richAmenitiesCount   = 3
	richImagesCount      = 2
)

// Weights sum to 1.0.
var weights = []struct {
	field  string
	weight float64
}{
	{models.FieldTitle, 0.15},
	{models.FieldPrice, 0.20},
	{models.FieldArea, 0.15},
	{models.FieldLocality, 0.10},
	{models.FieldPropertyType, 0.10},
	{models.FieldBedrooms, 0.05},
	{models.FieldAmenities, 0.10},
	{models.FieldDescription, 0.05},
	{models.FieldImages, 0.05},
	{models.FieldContactInfo, 0.05},
}

// Score returns a completeness score in [0, 1].
func Score(rec Record) float64 {
	total := 0.0
	for _, w := range weights {
		v, ok := rec[w.field]
		if !ok || isEmpty(v) {
			continue
		}
		contribution := w.weight
		if isRich(w.field, v) {
			contribution *= richnessBonus
		}
		total += contribution
	}
	if total > 1.0 {
		return 1.0
	}
	return total
}

// ScoreData scores typed property data.
func ScoreData(data *models.PropertyData) float64 {
	if data == nil {
		return 0
	}
	return Score(data.Record())
}

func isRich(field string, v any) bool {
	switch field {
	case models.FieldDescription:
		s, ok := v.(string)
		return ok && utf8.RuneCountInString(s) > richDescriptionChars
	case models.FieldAmenities:
		n, ok := listLen(v)
		return ok && n > richAmenitiesCount
	case models.FieldImages:
		n, ok := listLen(v)
		return ok && n > richImagesCount
	}
	return false
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		return s == "" || strings.EqualFold(s, "N/A")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return rv.IsZero()
}

func listLen(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len(), true
	}
	return 0, false
}
