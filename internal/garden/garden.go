// Package garden owns the plant and photo collections on behalf of the
// local surfaces. Every mutation is sent to the plant store and followed by
// a full refetch, so the snapshot is always one the store confirmed.
package garden

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/plantcare/internal/apperr"
	"github.com/starford/plantcare/internal/journal"
	"github.com/starford/plantcare/internal/metrics"
	"github.com/starford/plantcare/internal/models"
	"github.com/starford/plantcare/internal/watering"
)

// PlantStore is the remote plant and photo store.
type PlantStore interface {
	List(ctx context.Context) ([]models.PlantRecord, error)
	Upsert(ctx context.Context, p models.PlantRecord) (models.PlantRecord, error)
	Delete(ctx context.Context, name string) error
	ListPhotos(ctx context.Context, name string) ([]models.Photo, error)
	UploadPhoto(ctx context.Context, name string, up models.PhotoUpload) (models.Photo, error)
	UpdateCaption(ctx context.Context, name, photoID, caption string) error
	DeletePhoto(ctx context.Context, name, photoID string) error
}

// SpeciesResolver turns a species name into care data. It must not fail.
type SpeciesResolver interface {
	Lookup(ctx context.Context, name string) models.SpeciesInfo
}

// WateringLog records waterings.
type WateringLog interface {
	RecordWatering(plant, wateredOn string, at time.Time) (journal.Watering, error)
}

// Notifier receives change events and user-facing notifications.
type Notifier interface {
	PlantChanged(kind, name string)
	PhotosChanged(name string)
	Notify(level, message string)
}

// Plant event kinds passed to Notifier.PlantChanged.
const (
	KindSaved   = "plant.saved"
	KindDeleted = "plant.deleted"
	KindWatered = "plant.watered"
)

// PlantView is a plant with its evaluated watering status.
type PlantView struct {
	Plant   models.PlantRecord `json:"plant"`
	Status  watering.Status    `json:"status"`
	Summary string             `json:"summary"`
	Alert   string             `json:"alert,omitempty"`
}

// Option configures a Garden.
type Option func(*Garden)

// WithNotifier sets the change notifier.
func WithNotifier(n Notifier) Option {
	return func(g *Garden) { g.notifier = n }
}

// WithWateringLog sets where waterings are recorded.
func WithWateringLog(l WateringLog) Option {
	return func(g *Garden) { g.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Garden) { g.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Garden) { g.now = now }
}

// Garden holds the current plant snapshot.
type Garden struct {
	store    PlantStore
	species  SpeciesResolver
	log      WateringLog
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time

	mu       sync.RWMutex
	plants   []models.PlantRecord
	gen      uint64
	watchers map[chan int]struct{}
}

// New creates a Garden with an empty snapshot. Call Refresh to load it.
func New(store PlantStore, species SpeciesResolver, opts ...Option) *Garden {
	g := &Garden{
		store:    store,
		species:  species,
		notifier: nopNotifier{},
		now:      time.Now,
		plants:   []models.PlantRecord{},
		watchers: make(map[chan int]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Now returns the garden's current time.
func (g *Garden) Now() time.Time {
	return g.now()
}

// Refresh refetches the collection from the store. On failure the snapshot
// is emptied rather than left stale. A refresh overtaken by a newer one does
// not publish its result.
func (g *Garden) Refresh(ctx context.Context) ([]models.PlantRecord, error) {
	g.mu.Lock()
	g.gen++
	gen := g.gen
	g.mu.Unlock()

	plants, err := g.store.List(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen {
		slog.Debug("discarding stale plant refresh", slog.Uint64("generation", gen))
		return clonePlants(g.plants), err
	}
	if err != nil {
		g.setPlantsLocked([]models.PlantRecord{})
		g.notifier.Notify("error", fmt.Sprintf("Failed to fetch plants: %s", err))
		return nil, err
	}
	g.setPlantsLocked(plants)
	return clonePlants(plants), nil
}

// Plants returns a copy of the current snapshot.
func (g *Garden) Plants() []models.PlantRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return clonePlants(g.plants)
}

// Plant returns one plant from the snapshot, or apperr.ErrNotFound.
func (g *Garden) Plant(name string) (models.PlantRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if p, ok := g.findLocked(name); ok {
		return p, nil
	}
	return models.PlantRecord{}, fmt.Errorf("plant %q: %w", name, apperr.ErrNotFound)
}

// Views evaluates every plant in the snapshot at the garden's current time.
func (g *Garden) Views() []PlantView {
	now := g.now()
	plants := g.Plants()
	out := make([]PlantView, len(plants))
	for i, p := range plants {
		out[i] = View(p, now)
	}
	return out
}

// View evaluates one plant at now.
func View(p models.PlantRecord, now time.Time) PlantView {
	st := watering.Describe(p, now)
	return PlantView{Plant: p, Status: st, Summary: st.Summary(), Alert: st.Alert()}
}

// DueReminders evaluates the snapshot and returns the reminders due now.
func (g *Garden) DueReminders() []watering.Reminder {
	return watering.DueReminders(g.Plants(), g.now())
}

// Watch subscribes to the plant count. The current count is delivered
// immediately; later updates overwrite any value the reader has not taken
// yet. Call the returned function to unsubscribe.
func (g *Garden) Watch() (<-chan int, func()) {
	ch := make(chan int, 1)
	g.mu.Lock()
	g.watchers[ch] = struct{}{}
	ch <- len(g.plants)
	g.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.watchers, ch)
			g.mu.Unlock()
		})
	}
}

func (g *Garden) setPlantsLocked(plants []models.PlantRecord) {
	g.plants = plants
	g.metrics.SetPlantsTracked(len(plants))
	n := len(plants)
	for ch := range g.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- n
	}
}

func (g *Garden) findLocked(name string) (models.PlantRecord, bool) {
	for _, p := range g.plants {
		if p.Name == name {
			return p, true
		}
	}
	for _, p := range g.plants {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return models.PlantRecord{}, false
}

func clonePlants(in []models.PlantRecord) []models.PlantRecord {
	out := make([]models.PlantRecord, len(in))
	copy(out, in)
	return out
}

type nopNotifier struct{}

func (nopNotifier) PlantChanged(string, string) {}
func (nopNotifier) PhotosChanged(string)        {}
func (nopNotifier) Notify(string, string)       {}
