package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// SpeciesSummary is a single hit from the species search endpoint.
type SpeciesSummary struct {
	ID             SpeciesID       `json:"id"`
	CommonName     string          `json:"common_name"`
	ScientificName []string        `json:"scientific_name,omitempty"`
	OtherName      []string        `json:"other_name,omitempty"`
	Cycle          string          `json:"cycle,omitempty"`
	Watering       string          `json:"watering,omitempty"`
	DefaultImage   json.RawMessage `json:"default_image,omitempty"`
}

// SpeciesDetail is the species detail document. Only the watering fields are
// interpreted; everything else is passed through for display.
type SpeciesDetail struct {
	ID                       SpeciesID          `json:"id"`
	CommonName               string             `json:"common_name"`
	Description              string             `json:"description"`
	Watering                 string             `json:"watering"`
	WateringGeneralBenchmark *WateringBenchmark `json:"watering_general_benchmark,omitempty"`
	Sunlight                 json.RawMessage    `json:"sunlight,omitempty"`
	CareLevel                json.RawMessage    `json:"care_level,omitempty"`
	Cycle                    json.RawMessage    `json:"cycle,omitempty"`
	GrowthRate               json.RawMessage    `json:"growth_rate,omitempty"`
	Maintenance              json.RawMessage    `json:"maintenance,omitempty"`
	PoisonousToPets          json.RawMessage    `json:"poisonous_to_pets,omitempty"`
	PoisonousToHumans        json.RawMessage    `json:"poisonous_to_humans,omitempty"`
	DefaultImage             json.RawMessage    `json:"default_image,omitempty"`
	Indoor                   json.RawMessage    `json:"indoor,omitempty"`
	Hardiness                json.RawMessage    `json:"hardiness,omitempty"`
	HardinessLocation        json.RawMessage    `json:"hardiness_location,omitempty"`
}

// CareMetadata extracts the inputs of the interval resolver.
func (d *SpeciesDetail) CareMetadata() SpeciesCareMetadata {
	md := SpeciesCareMetadata{WateringDescription: d.Watering}
	if d.WateringGeneralBenchmark != nil && !d.WateringGeneralBenchmark.Value.IsZero() {
		v := d.WateringGeneralBenchmark.Value
		md.WateringBenchmark = &v
	}
	return md
}

// WateringBenchmark is the catalog's {value, unit} benchmark object.
type WateringBenchmark struct {
	Value BenchmarkValue `json:"value"`
	Unit  string         `json:"unit"`
}

// BenchmarkValue holds either a number or free text such as "5-7".
type BenchmarkValue struct {
	Number *float64
	Text   string
}

// NumericBenchmark returns a numeric benchmark value.
func NumericBenchmark(f float64) *BenchmarkValue {
	return &BenchmarkValue{Number: &f}
}

// TextBenchmark returns a textual benchmark value.
func TextBenchmark(s string) *BenchmarkValue {
	return &BenchmarkValue{Text: s}
}

// IsZero reports whether neither a number nor text is present.
func (v BenchmarkValue) IsZero() bool {
	return v.Number == nil && v.Text == ""
}

// UnmarshalJSON accepts a JSON number, string, or null.
func (v *BenchmarkValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*v = BenchmarkValue{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &v.Text)
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		// Objects, arrays and booleans carry no usable benchmark.
		return nil
	}
	v.Number = &f
	return nil
}

// MarshalJSON writes the value back in its original shape.
func (v BenchmarkValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Number != nil:
		return json.Marshal(*v.Number)
	case v.Text != "":
		return json.Marshal(v.Text)
	default:
		return []byte("null"), nil
	}
}

// SpeciesCareMetadata is the free-form care data the interval resolver reads.
type SpeciesCareMetadata struct {
	WateringBenchmark   *BenchmarkValue `json:"wateringBenchmark,omitempty"`
	WateringDescription string          `json:"wateringDescription,omitempty"`
}

// SpeciesInfo is the outcome of a species lookup by name.
type SpeciesInfo struct {
	SpeciesID            SpeciesID      `json:"speciesId"`
	WateringIntervalDays int            `json:"wateringInterval"`
	Description          string         `json:"description"`
	Detail               *SpeciesDetail `json:"detailData"`
}
