package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/plantcare/internal/garden"
	"github.com/starford/plantcare/internal/models"
	"github.com/starford/plantcare/internal/species"
	"github.com/starford/plantcare/internal/watering"
)

const maxJSONBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	garden  *garden.Garden
	species SpeciesCatalog
	history History
}

// NewHandler creates a new Handler.
func NewHandler(g *garden.Garden, sp SpeciesCatalog, hist History) *Handler {
	return &Handler{garden: g, species: sp, history: hist}
}

// urlParam returns a decoded path parameter. chi routes on RawPath when the
// request carries one, so only then is the parameter still escaped.
func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return raw
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// ListPlants handles GET /api/plants.
//
//	@Summary		List plants with their watering status
//	@Tags			plants
//	@Produce		json
//	@Success		200	{object}	PlantListResponse
//	@Router			/plants [get]
func (h *Handler) ListPlants(w http.ResponseWriter, _ *http.Request) {
	views := h.garden.Views()
	writeJSON(w, http.StatusOK, PlantListResponse{Plants: views, Total: len(views)})
}

// RefreshPlants handles POST /api/plants/refresh.
func (h *Handler) RefreshPlants(w http.ResponseWriter, r *http.Request) {
	if _, err := h.garden.Refresh(r.Context()); err != nil {
		writeError(w, "refresh plants", err)
		return
	}
	views := h.garden.Views()
	writeJSON(w, http.StatusOK, PlantListResponse{Plants: views, Total: len(views)})
}

// SavePlant handles POST /api/plants.
//
//	@Summary		Add a plant or replace one with the same name
//	@Tags			plants
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PlantRequest	true	"Plant to save"
//	@Success		201		{object}	PlantListResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Router			/plants [post]
func (h *Handler) SavePlant(w http.ResponseWriter, r *http.Request) {
	var req PlantRequest
	if err := decodeBody(w, r, maxJSONBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if _, err := h.garden.Save(r.Context(), req); err != nil {
		writeError(w, "save plant", err)
		return
	}
	views := h.garden.Views()
	writeJSON(w, http.StatusCreated, PlantListResponse{Plants: views, Total: len(views)})
}

// GetPlant handles GET /api/plants/{name}.
func (h *Handler) GetPlant(w http.ResponseWriter, r *http.Request) {
	p, err := h.garden.Plant(urlParam(r, "name"))
	if err != nil {
		writeError(w, "get plant", err)
		return
	}
	writeJSON(w, http.StatusOK, garden.View(p, h.garden.Now()))
}

// DeletePlant handles DELETE /api/plants/{name}.
func (h *Handler) DeletePlant(w http.ResponseWriter, r *http.Request) {
	if err := h.garden.Delete(r.Context(), urlParam(r, "name")); err != nil {
		writeError(w, "delete plant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WaterPlant handles POST /api/plants/{name}/water.
//
//	@Summary		Mark a plant as watered
//	@Tags			plants
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string			true	"Plant name"
//	@Param			body	body		WaterRequest	false	"Watering date, default today"
//	@Success		200		{object}	PlantView
//	@Router			/plants/{name}/water [post]
func (h *Handler) WaterPlant(w http.ResponseWriter, r *http.Request) {
	var req WaterRequest
	if err := decodeBody(w, r, maxJSONBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	p, err := h.garden.Water(r.Context(), urlParam(r, "name"), req.Date)
	if err != nil {
		writeError(w, "water plant", err)
		return
	}
	writeJSON(w, http.StatusOK, garden.View(p, h.garden.Now()))
}

// WateringHistory handles GET /api/plants/{name}/history.
func (h *Handler) WateringHistory(w http.ResponseWriter, r *http.Request) {
	items, err := h.history.WateringHistory(urlParam(r, "name"), queryLimit(r))
	if err != nil {
		writeError(w, "watering history", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Waterings: items})
}

// SearchSpecies handles GET /api/species/search.
func (h *Handler) SearchSpecies(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	results, err := h.species.Search(r.Context(), q)
	if err != nil {
		writeError(w, "species search", err)
		return
	}
	writeJSON(w, http.StatusOK, SpeciesSearchResponse{Results: results})
}

// LookupSpecies handles GET /api/species/lookup. It always answers 200.
func (h *Handler) LookupSpecies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.species.Lookup(r.Context(), r.URL.Query().Get("name")))
}

// CommonSpecies handles GET /api/species/common.
func (h *Handler) CommonSpecies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"species": species.CommonSpecies})
}

// SpeciesDetails handles GET /api/species/{id}.
func (h *Handler) SpeciesDetails(w http.ResponseWriter, r *http.Request) {
	detail, err := h.species.Details(r.Context(), models.SpeciesID(urlParam(r, "id")))
	if err != nil {
		writeError(w, "species details", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Reminders handles GET /api/reminders.
func (h *Handler) Reminders(w http.ResponseWriter, _ *http.Request) {
	due := h.garden.DueReminders()
	lines := make([]string, len(due))
	for i, r := range due {
		lines[i] = r.Message
	}
	if due == nil {
		due = []watering.Reminder{}
	}
	writeJSON(w, http.StatusOK, RemindersResponse{Message: strings.Join(lines, "\n\n"), Reminders: due})
}

// ReminderLog handles GET /api/reminders/log.
func (h *Handler) ReminderLog(w http.ResponseWriter, r *http.Request) {
	items, err := h.history.RecentReminders(queryLimit(r))
	if err != nil {
		writeError(w, "reminder log", err)
		return
	}
	writeJSON(w, http.StatusOK, ReminderLogResponse{Reminders: items})
}
