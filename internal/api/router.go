package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/plantcare/internal/garden"
	"github.com/starford/plantcare/internal/journal"
	"github.com/starford/plantcare/internal/metrics"
	"github.com/starford/plantcare/internal/models"
)

// SpeciesCatalog is the species lookup used by the API.
type SpeciesCatalog interface {
	Search(ctx context.Context, query string) ([]models.SpeciesSummary, error)
	Details(ctx context.Context, id models.SpeciesID) (*models.SpeciesDetail, error)
	Lookup(ctx context.Context, name string) models.SpeciesInfo
}

// History is the read side of the journal.
type History interface {
	WateringHistory(plant string, limit int) ([]journal.Watering, error)
	RecentReminders(limit int) ([]journal.ReminderEntry, error)
}

// Deps are the collaborators the router serves.
type Deps struct {
	Garden  *garden.Garden
	Species SpeciesCatalog
	History History
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events      http.Handler
	Metrics     *metrics.Metrics
	AuthEnabled bool
	Token       string
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d.Garden, d.Species, d.History)

	r := chi.NewRouter()
	r.Use(MetricsMiddleware(d.Metrics))
	r.Use(AuthMiddleware(d.AuthEnabled, d.Token))

	r.Route("/plants", func(r chi.Router) {
		r.Get("/", h.ListPlants)
		r.Post("/", h.SavePlant)
		r.Post("/refresh", h.RefreshPlants)

		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", h.GetPlant)
			r.Delete("/", h.DeletePlant)
			r.Post("/water", h.WaterPlant)
			r.Get("/history", h.WateringHistory)

			r.Get("/photos", h.ListPhotos)
			r.Post("/photos", h.UploadPhoto)
			r.Put("/photos/{photoId}", h.UpdateCaption)
			r.Delete("/photos/{photoId}", h.DeletePhoto)
		})
	})

	r.Route("/species", func(r chi.Router) {
		r.Get("/search", h.SearchSpecies)
		r.Get("/lookup", h.LookupSpecies)
		r.Get("/common", h.CommonSpecies)
		r.Get("/{id}", h.SpeciesDetails)
	})

	r.Get("/reminders", h.Reminders)
	r.Get("/reminders/log", h.ReminderLog)

	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}
