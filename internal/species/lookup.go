package species

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/plantcare/internal/apperr"
	"github.com/starford/plantcare/internal/models"
	"github.com/starford/plantcare/internal/watering"
)

// CommonSpecies are offered as quick picks when adding a plant.
var CommonSpecies = []string{
	"Spider Plant",
	"Snake Plant",
	"Pothos",
	"Aloe Vera",
	"Tomato",
	"Cucumber",
	"Bell Pepper",
	"Orchid",
	"Lavender",
	"Dracaena",
}

var errNoMatch = errors.New("no matching species")

// Lookup resolves a species name to an id, a watering interval and a
// description. It never fails: an unknown species or an unreachable service
// yields the default interval and a description saying why.
func (c *Client) Lookup(ctx context.Context, name string) models.SpeciesInfo {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.SpeciesInfo{WateringIntervalDays: models.DefaultWateringIntervalDays}
	}

	info, err := c.lookup(ctx, name)
	switch {
	case err == nil:
		return info
	case errors.Is(err, errNoMatch):
		slog.Info("species not found", slog.String("species", name))
		return fallback(fmt.Sprintf("%s - Species not found in database", name))
	default:
		level := slog.LevelWarn
		if errors.Is(err, apperr.ErrNotConfigured) {
			level = slog.LevelDebug
		}
		slog.Log(ctx, level, "species lookup failed",
			slog.String("species", name),
			slog.String("error", err.Error()))
		return fallback(fmt.Sprintf("%s - Error fetching species info", name))
	}
}

func (c *Client) lookup(ctx context.Context, name string) (models.SpeciesInfo, error) {
	hits, err := c.Search(ctx, name)
	if err != nil {
		return models.SpeciesInfo{}, err
	}
	if len(hits) == 0 {
		return models.SpeciesInfo{}, errNoMatch
	}
	hit := hits[0]
	detail, err := c.Details(ctx, hit.ID)
	if err != nil {
		return models.SpeciesInfo{}, err
	}

	days, source := watering.Explain(detail.CareMetadata())
	slog.Debug("resolved watering interval",
		slog.String("species", name),
		slog.String("species_id", string(hit.ID)),
		slog.Int("days", days),
		slog.String("source", source))

	desc := detail.Description
	if desc == "" {
		desc = hit.CommonName
	}
	if desc == "" {
		desc = name
	}
	return models.SpeciesInfo{
		SpeciesID:            hit.ID,
		WateringIntervalDays: days,
		Description:          desc,
		Detail:               detail,
	}, nil
}

func fallback(desc string) models.SpeciesInfo {
	return models.SpeciesInfo{
		WateringIntervalDays: models.DefaultWateringIntervalDays,
		Description:          desc,
	}
}
