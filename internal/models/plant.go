// Package models defines the domain types for plantcare.
package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// DefaultWateringIntervalDays is used whenever a plant or species has no usable interval.
const DefaultWateringIntervalDays = 7

// PlantRecord is a plant as persisted by the remote plant store.
type PlantRecord struct {
	Name                 string    `json:"plantName"`
	Species              string    `json:"species"`
	LastWatered          string    `json:"lastWatered"` // YYYY-MM-DD
	WateringIntervalDays int       `json:"wateringIntervalDays"`
	Description          string    `json:"description"`
	SpeciesID            SpeciesID `json:"speciesId"`
}

// EffectiveInterval returns the watering interval, substituting the default
// for absent or non-positive values.
func (p PlantRecord) EffectiveInterval() int {
	if p.WateringIntervalDays > 0 {
		return p.WateringIntervalDays
	}
	return DefaultWateringIntervalDays
}

// plantWire accepts both the capitalised keys the store returns and the
// camelCase keys it is sent.
type plantWire struct {
	PlantName        string          `json:"PlantName"`
	PlantNameLower   string          `json:"plantName"`
	Species          *string         `json:"Species"`
	SpeciesLower     *string         `json:"species"`
	LastWatered      string          `json:"LastWatered"`
	LastWateredLower string          `json:"lastWatered"`
	IntervalUpper    json.RawMessage `json:"WateringIntervalDays"`
	IntervalLower    json.RawMessage `json:"wateringIntervalDays"`
	Description      string          `json:"Description"`
	DescriptionLower string          `json:"description"`
	SpeciesID        SpeciesID       `json:"SpeciesId"`
	SpeciesIDLower   SpeciesID       `json:"speciesId"`
}

// UnmarshalJSON decodes a plant record in either key casing.
func (p *PlantRecord) UnmarshalJSON(data []byte) error {
	var w plantWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = PlantRecord{
		Name:        firstNonEmpty(w.PlantName, w.PlantNameLower),
		LastWatered: firstNonEmpty(w.LastWatered, w.LastWateredLower),
		Description: firstNonEmpty(w.Description, w.DescriptionLower),
		SpeciesID:   SpeciesID(firstNonEmpty(string(w.SpeciesID), string(w.SpeciesIDLower))),
	}
	switch {
	case w.Species != nil:
		p.Species = *w.Species
	case w.SpeciesLower != nil:
		p.Species = *w.SpeciesLower
	}
	if n := decodeLooseInt(w.IntervalLower); n > 0 {
		p.WateringIntervalDays = n
	} else {
		p.WateringIntervalDays = decodeLooseInt(w.IntervalUpper)
	}
	return nil
}

// SpeciesID is an opaque identifier into the species catalog. The catalog
// uses integers; the store may hand them back as strings.
type SpeciesID string

// UnmarshalJSON accepts a number, a string, or null.
func (id *SpeciesID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = SpeciesID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = SpeciesID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as numbers and empty ids as null.
func (id SpeciesID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func decodeLooseInt(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, _ := strconv.Atoi(strings.TrimSpace(s))
		return n
	}
	return 0
}

// Photo is photo metadata as returned by the plant store.
type Photo struct {
	PhotoID      string `json:"photoId"`
	PlantName    string `json:"plantName,omitempty"`
	Caption      string `json:"caption"`
	UploadDate   string `json:"uploadDate"`
	ImageURL     string `json:"imageUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	FileName     string `json:"fileName,omitempty"`
	ContentType  string `json:"contentType,omitempty"`
}

// PhotoUpload is the body sent to the store when uploading a photo.
type PhotoUpload struct {
	PlantName   string `json:"plantName"`
	ImageData   string `json:"imageData"` // base64
	Caption     string `json:"caption"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

// InboxFile describes an image waiting in the photo inbox.
type InboxFile struct {
	Path     string    `json:"path"`
	Checksum string    `json:"checksum"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}
