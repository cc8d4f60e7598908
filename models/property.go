package models

import (
	"encoding/json"
	"sort"
)

// PropertyData is the field set extracted from a single property detail page.
type PropertyData struct {
	Title           string            `json:"title" yaml:"title"`
	Price           string            `json:"price" yaml:"price"`
	Area            string            `json:"area" yaml:"area"`
	Locality        string            `json:"locality" yaml:"locality"`
	Society         string            `json:"society" yaml:"society"`
	PropertyType    string            `json:"property_type" yaml:"property_type"`
	Bedrooms        string            `json:"bedrooms" yaml:"bedrooms"`
	Bathrooms       string            `json:"bathrooms" yaml:"bathrooms"`
	Furnishing      string            `json:"furnishing" yaml:"furnishing"`
	Floor           string            `json:"floor" yaml:"floor"`
	Age             string            `json:"age" yaml:"age"`
	Facing          string            `json:"facing" yaml:"facing"`
	Parking         string            `json:"parking" yaml:"parking"`
	Amenities       []string          `json:"amenities" yaml:"amenities"`
	Description     string            `json:"description" yaml:"description"`
	BuilderInfo     map[string]string `json:"builder_info" yaml:"builder_info"`
	LocationDetails map[string]string `json:"location_details" yaml:"location_details"`
	Specifications  map[string]string `json:"specifications" yaml:"specifications"`
	ContactInfo     map[string]string `json:"contact_info" yaml:"contact_info"`
	Images          []string          `json:"images" yaml:"images"`
	RawHTML         string            `json:"raw_html" yaml:"raw_html"`
}

// Field names shared by the scorer, the snapshot table and change history.
const (
	FieldTitle           = "title"
	FieldPrice           = "price"
	FieldArea            = "area"
	FieldLocality        = "locality"
	FieldSociety         = "society"
	FieldPropertyType    = "property_type"
	FieldBedrooms        = "bedrooms"
	FieldBathrooms       = "bathrooms"
	FieldFurnishing      = "furnishing"
	FieldFloor           = "floor"
	FieldAge             = "age"
	FieldFacing          = "facing"
	FieldParking         = "parking"
	FieldAmenities       = "amenities"
	FieldDescription     = "description"
	FieldBuilderInfo     = "builder_info"
	FieldLocationDetails = "location_details"
	FieldSpecifications  = "specifications"
	FieldContactInfo     = "contact_info"
	FieldImages          = "images"
	FieldRawHTML         = "raw_html"
)

// Record returns the data as a field-name keyed map. Collections keep their
// native type so list lengths stay visible to the quality scorer.
func (p *PropertyData) Record() map[string]any {
	return map[string]any{
		FieldTitle:           p.Title,
		FieldPrice:           p.Price,
		FieldArea:            p.Area,
		FieldLocality:        p.Locality,
		FieldSociety:         p.Society,
		FieldPropertyType:    p.PropertyType,
		FieldBedrooms:        p.Bedrooms,
		FieldBathrooms:       p.Bathrooms,
		FieldFurnishing:      p.Furnishing,
		FieldFloor:           p.Floor,
		FieldAge:             p.Age,
		FieldFacing:          p.Facing,
		FieldParking:         p.Parking,
		FieldAmenities:       p.Amenities,
		FieldDescription:     p.Description,
		FieldBuilderInfo:     p.BuilderInfo,
		FieldLocationDetails: p.LocationDetails,
		FieldSpecifications:  p.Specifications,
		FieldContactInfo:     p.ContactInfo,
		FieldImages:          p.Images,
		FieldRawHTML:         p.RawHTML,
	}
}

// ComparableFields returns the fields tracked for change history as text.
// Collections are rendered as JSON; raw_html is excluded.
func (p *PropertyData) ComparableFields() map[string]string {
	return map[string]string{
		FieldTitle:           p.Title,
		FieldPrice:           p.Price,
		FieldArea:            p.Area,
		FieldLocality:        p.Locality,
		FieldSociety:         p.Society,
		FieldPropertyType:    p.PropertyType,
		FieldBedrooms:        p.Bedrooms,
		FieldBathrooms:       p.Bathrooms,
		FieldFurnishing:      p.Furnishing,
		FieldFloor:           p.Floor,
		FieldAge:             p.Age,
		FieldFacing:          p.Facing,
		FieldParking:         p.Parking,
		FieldAmenities:       JSONText(p.Amenities),
		FieldDescription:     p.Description,
		FieldBuilderInfo:     JSONText(p.BuilderInfo),
		FieldLocationDetails: JSONText(p.LocationDetails),
		FieldSpecifications:  JSONText(p.Specifications),
		FieldContactInfo:     JSONText(p.ContactInfo),
		FieldImages:          JSONText(p.Images),
	}
}

// FieldChange is a single old -> new transition of one field.
type FieldChange struct {
	Field    string
	OldValue string
	NewValue string
}

// Diff lists the fields whose value differs between prev and p, sorted by
// field name.
func (p *PropertyData) Diff(prev *PropertyData) []FieldChange {
	if prev == nil {
		return nil
	}
	oldFields := prev.ComparableFields()
	var changes []FieldChange
	for field, newVal := range p.ComparableFields() {
		if oldVal := oldFields[field]; oldVal != newVal {
			changes = append(changes, FieldChange{Field: field, OldValue: oldVal, NewValue: newVal})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	return changes
}

// JSONText encodes a list or map column. Empty collections encode as "".
func JSONText(v any) string {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return ""
		}
	case map[string]string:
		if len(t) == 0 {
			return ""
		}
	case nil:
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
