package garden

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/plantcare/internal/apperr"
	"github.com/starford/plantcare/internal/models"
	"github.com/starford/plantcare/internal/watering"
)

var apiDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// PlantInput is a plant as entered by a user. A zero interval or an empty
// description means "use what the species lookup says".
type PlantInput struct {
	Name                 string `json:"plantName"`
	Species              string `json:"species"`
	LastWatered          string `json:"lastWatered"`
	WateringIntervalDays int    `json:"wateringIntervalDays,omitempty"`
	Description          string `json:"description,omitempty"`
}

func (in *PlantInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Species = strings.TrimSpace(in.Species)
	in.LastWatered = strings.TrimSpace(in.LastWatered)
	in.Description = strings.TrimSpace(in.Description)
}

// Validate checks the required fields and the date format.
func (in PlantInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Species, validation.Required),
		validation.Field(&in.LastWatered,
			validation.Required,
			validation.Match(apiDatePattern).Error("must be a date in YYYY-MM-DD format"),
			validation.By(calendarDate),
		),
		validation.Field(&in.WateringIntervalDays, validation.Min(0), validation.Max(365)),
	)
}

func calendarDate(v any) error {
	s, _ := v.(string)
	if s != "" && !watering.IsAPIDate(s) {
		return validation.NewError("validation_calendar_date", "must be a real calendar date")
	}
	return nil
}

// Save adds a plant or replaces an existing one with the same name, then
// refetches the collection. Species care data is looked up only when the
// species is new for this plant; otherwise the stored interval, description
// and species id are kept. An explicit interval or description wins.
func (g *Garden) Save(ctx context.Context, in PlantInput) (models.PlantRecord, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return models.PlantRecord{}, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}

	// The store keys plants by exact name, so "fern" next to "Fern" is a new plant.
	existing, found := g.lookupExact(in.Name)
	verb := "add"
	if found {
		verb = "update"
	}

	rec := models.PlantRecord{
		Name:        in.Name,
		Species:     in.Species,
		LastWatered: in.LastWatered,
	}
	if !found || existing.Species != in.Species || existing.SpeciesID == "" {
		info := g.species.Lookup(ctx, in.Species)
		rec.WateringIntervalDays = info.WateringIntervalDays
		rec.Description = info.Description
		rec.SpeciesID = info.SpeciesID
	} else {
		rec.WateringIntervalDays = existing.WateringIntervalDays
		rec.Description = existing.Description
		rec.SpeciesID = existing.SpeciesID
	}
	if in.WateringIntervalDays > 0 {
		rec.WateringIntervalDays = in.WateringIntervalDays
	}
	if in.Description != "" {
		rec.Description = in.Description
	}
	rec.WateringIntervalDays = rec.EffectiveInterval()

	saved, err := g.store.Upsert(ctx, rec)
	if err != nil {
		g.notifier.Notify("error", fmt.Sprintf("Failed to %s plant: %s", verb, err))
		return models.PlantRecord{}, err
	}
	slog.Info("plant saved",
		slog.String("plant", saved.Name),
		slog.String("species", saved.Species),
		slog.Int("interval_days", saved.WateringIntervalDays))

	g.refreshAfterMutation(ctx)
	g.notifier.PlantChanged(KindSaved, saved.Name)
	return saved, nil
}

// Delete removes a plant from the store and refetches the collection.
func (g *Garden) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: plant name is required", apperr.ErrInvalidInput)
	}
	if err := g.store.Delete(ctx, name); err != nil {
		g.notifier.Notify("error", fmt.Sprintf("Failed to delete plant: %s", err))
		return err
	}
	slog.Info("plant deleted", slog.String("plant", name))
	g.refreshAfterMutation(ctx)
	g.notifier.PlantChanged(KindDeleted, name)
	return nil
}

// Water marks a plant as watered on date (today when empty). The whole
// record is re-sent with the new date.
func (g *Garden) Water(ctx context.Context, name, date string) (models.PlantRecord, error) {
	now := g.now()
	date = strings.TrimSpace(date)
	if date == "" {
		date = watering.FormatAPIDate(now)
	}
	if !apiDatePattern.MatchString(date) || !watering.IsAPIDate(date) {
		return models.PlantRecord{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", apperr.ErrInvalidInput, date)
	}

	p, found := g.lookupLocal(name)
	if !found {
		return models.PlantRecord{}, fmt.Errorf("plant %q: %w", name, apperr.ErrNotFound)
	}
	p.LastWatered = date

	saved, err := g.store.Upsert(ctx, p)
	if err != nil {
		g.notifier.Notify("error", fmt.Sprintf("Failed to update plant: %s", err))
		return models.PlantRecord{}, err
	}
	if g.log != nil {
		if _, err := g.log.RecordWatering(saved.Name, date, now); err != nil {
			slog.Warn("failed to record watering",
				slog.String("plant", saved.Name),
				slog.String("error", err.Error()))
		}
	}
	slog.Info("plant watered", slog.String("plant", saved.Name), slog.String("date", date))

	g.refreshAfterMutation(ctx)
	g.notifier.PlantChanged(KindWatered, saved.Name)
	return saved, nil
}

func (g *Garden) lookupLocal(name string) (models.PlantRecord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.findLocked(name)
}

func (g *Garden) lookupExact(name string) (models.PlantRecord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, p := range g.plants {
		if p.Name == name {
			return p, true
		}
	}
	return models.PlantRecord{}, false
}

// refreshAfterMutation refetches after a successful write. A failed refetch
// is already reported by Refresh and does not fail the mutation.
func (g *Garden) refreshAfterMutation(ctx context.Context) {
	if _, err := g.Refresh(ctx); err != nil {
		slog.Warn("refetch after mutation failed", slog.String("error", err.Error()))
	}
}
