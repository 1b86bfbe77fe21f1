package api

import (
	"github.com/starford/plantcare/internal/garden"
	"github.com/starford/plantcare/internal/journal"
	"github.com/starford/plantcare/internal/models"
	"github.com/starford/plantcare/internal/watering"
)

// PlantRequest is the request body for adding or updating a plant.
type PlantRequest = garden.PlantInput

// PlantView is one plant with its watering status.
type PlantView = garden.PlantView

// PlantListResponse wraps the plant snapshot.
type PlantListResponse struct {
	Plants []PlantView `json:"plants" validate:"required"`
	Total  int         `json:"total" example:"3" validate:"required"`
}

// WaterRequest is the optional body of POST /plants/{name}/water.
type WaterRequest struct {
	Date string `json:"date,omitempty" example:"2024-03-10"`
}

// PhotoUploadRequest is the JSON form of a photo upload.
type PhotoUploadRequest struct {
	ImageData   string `json:"imageData" validate:"required"`
	Caption     string `json:"caption,omitempty"`
	FileName    string `json:"fileName,omitempty" example:"photo.jpg"`
	ContentType string `json:"contentType,omitempty" example:"image/jpeg"`
}

// CaptionRequest is the request body for updating a photo caption.
type CaptionRequest struct {
	Caption string `json:"caption"`
}

// PhotoListResponse wraps a plant's photos, newest first.
type PhotoListResponse struct {
	Photos []models.Photo `json:"photos" validate:"required"`
}

// HistoryResponse wraps a plant's recorded waterings.
type HistoryResponse struct {
	Waterings []journal.Watering `json:"waterings" validate:"required"`
}

// RemindersResponse is the set of reminders due now.
type RemindersResponse struct {
	Message   string              `json:"message"`
	Reminders []watering.Reminder `json:"reminders" validate:"required"`
}

// ReminderLogResponse wraps emitted reminders, newest first.
type ReminderLogResponse struct {
	Reminders []journal.ReminderEntry `json:"reminders" validate:"required"`
}

// SpeciesSearchResponse wraps species search hits.
type SpeciesSearchResponse struct {
	Results []models.SpeciesSummary `json:"results" validate:"required"`
}
