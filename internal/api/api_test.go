package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/plantcare/internal/apperr"
	"github.com/starford/plantcare/internal/garden"
	"github.com/starford/plantcare/internal/journal"
	"github.com/starford/plantcare/internal/metrics"
	"github.com/starford/plantcare/internal/models"
)

// memStore is an in-memory plant store.
type memStore struct {
	mu      sync.Mutex
	plants  []models.PlantRecord
	photos  map[string][]models.Photo
	uploads []models.PhotoUpload
	failPut int
}

func (s *memStore) List(context.Context) ([]models.PlantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PlantRecord{}, s.plants...), nil
}

func (s *memStore) Upsert(_ context.Context, p models.PlantRecord) (models.PlantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut != 0 {
		return models.PlantRecord{}, &apperr.StatusError{Op: "Add plant", Status: s.failPut, Message: "store said no"}
	}
	for i := range s.plants {
		if s.plants[i].Name == p.Name {
			s.plants[i] = p
			return p, nil
		}
	}
	s.plants = append(s.plants, p)
	return p, nil
}

func (s *memStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.plants {
		if s.plants[i].Name == name {
			s.plants = append(s.plants[:i], s.plants[i+1:]...)
			return nil
		}
	}
	return &apperr.StatusError{Op: "Delete plant", Status: http.StatusNotFound}
}

func (s *memStore) ListPhotos(_ context.Context, name string) ([]models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Photo{}, s.photos[name]...), nil
}

func (s *memStore) UploadPhoto(_ context.Context, name string, up models.PhotoUpload) (models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, up)
	ph := models.Photo{PhotoID: "ph1", PlantName: name, Caption: up.Caption, FileName: up.FileName}
	s.photos[name] = append([]models.Photo{ph}, s.photos[name]...)
	return ph, nil
}

func (s *memStore) UpdateCaption(_ context.Context, name, id, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.photos[name] {
		if s.photos[name][i].PhotoID == id {
			s.photos[name][i].Caption = caption
		}
	}
	return nil
}

func (s *memStore) DeletePhoto(_ context.Context, name, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos[name] = nil
	return nil
}

type stubSpecies struct{}

func (stubSpecies) Search(_ context.Context, q string) ([]models.SpeciesSummary, error) {
	return []models.SpeciesSummary{{ID: "1", CommonName: q}}, nil
}

func (stubSpecies) Details(_ context.Context, id models.SpeciesID) (*models.SpeciesDetail, error) {
	if id != "1" {
		return nil, &apperr.StatusError{Op: "Species details", Status: http.StatusNotFound}
	}
	return &models.SpeciesDetail{ID: "1", CommonName: "Pothos", Watering: "Average"}, nil
}

func (stubSpecies) Lookup(_ context.Context, name string) models.SpeciesInfo {
	return models.SpeciesInfo{SpeciesID: "1", WateringIntervalDays: 7, Description: name}
}

type stubHistory struct {
	waterings []journal.Watering
}

func (h *stubHistory) WateringHistory(plant string, _ int) ([]journal.Watering, error) {
	out := []journal.Watering{}
	for _, w := range h.waterings {
		if w.Plant == plant {
			out = append(out, w)
		}
	}
	return out, nil
}

func (h *stubHistory) RecentReminders(int) ([]journal.ReminderEntry, error) {
	return []journal.ReminderEntry{{Plant: "Fern", Message: "Fern needs watering!"}}, nil
}

func (h *stubHistory) RecordWatering(plant, on string, at time.Time) (journal.Watering, error) {
	w := journal.Watering{Plant: plant, WateredOn: on, RecordedAt: at}
	h.waterings = append(h.waterings, w)
	return w, nil
}

var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)

type testEnv struct {
	store  *memStore
	router http.Handler
}

func newTestEnv(t *testing.T, authToken string, plants ...models.PlantRecord) *testEnv {
	t.Helper()
	store := &memStore{plants: plants, photos: map[string][]models.Photo{}}
	hist := &stubHistory{}
	g := garden.New(store, stubSpecies{},
		garden.WithWateringLog(hist),
		garden.WithClock(func() time.Time { return testNow }))
	if _, err := g.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	m, err := metrics.New()
	if err != nil {
		t.Fatal(err)
	}
	events := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	router := NewRouter(Deps{
		Garden:      g,
		Species:     stubSpecies{},
		History:     hist,
		Events:      events,
		Metrics:     m,
		AuthEnabled: authToken != "",
		Token:       authToken,
	})
	return &testEnv{store: store, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func fern() models.PlantRecord {
	return models.PlantRecord{Name: "Fern", Species: "Boston Fern", LastWatered: "2024-03-01", WateringIntervalDays: 7}
}

func TestListPlantsWithStatus(t *testing.T) {
	env := newTestEnv(t, "", fern())

	w := env.do(t, http.MethodGet, "/plants", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp PlantListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Plants) != 1 {
		t.Fatalf("plants = %+v", resp)
	}
	v := resp.Plants[0]
	if !v.Status.Overdue || v.Status.DaysSince != 9 {
		t.Errorf("status = %+v", v.Status)
	}
	if v.Alert != "Needs water! (2 days overdue)" {
		t.Errorf("alert = %q", v.Alert)
	}
}

func TestSavePlant(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/plants", map[string]any{
		"plantName":   "Pothos",
		"species":     "Golden Pothos",
		"lastWatered": "2024-03-09",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp PlantListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Plants[0].Plant.Description != "Golden Pothos" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSavePlantValidation(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/plants", map[string]any{"plantName": "Pothos", "lastWatered": "2024-3-9"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/plants", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}
}

func TestSavePlantUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, "")
	env.store.failPut = http.StatusInternalServerError

	w := env.do(t, http.MethodPost, "/plants", map[string]any{
		"plantName":   "Pothos",
		"species":     "Golden Pothos",
		"lastWatered": "2024-03-09",
	})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	var body errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Status != http.StatusInternalServerError {
		t.Errorf("upstream status = %d, want 500", body.Status)
	}
	if !strings.Contains(body.Error, "store said no") {
		t.Errorf("error = %q", body.Error)
	}
}

func TestGetPlant(t *testing.T) {
	env := newTestEnv(t, "", models.PlantRecord{Name: "Snake Plant", Species: "Sansevieria", LastWatered: "2024-03-10"})

	w := env.do(t, http.MethodGet, "/plants/Snake%20Plant", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var v PlantView
	_ = json.Unmarshal(w.Body.Bytes(), &v)
	if v.Summary != "Last watered: today • Every 7 days" {
		t.Errorf("summary = %q", v.Summary)
	}

	w = env.do(t, http.MethodGet, "/plants/Ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing plant = %d, want 404", w.Code)
	}
}

func TestGetPlantEscapedNames(t *testing.T) {
	env := newTestEnv(t, "",
		models.PlantRecord{Name: "50%41", Species: "Pothos", LastWatered: "2024-03-10"},
		models.PlantRecord{Name: "Shelf/Left", Species: "Ivy", LastWatered: "2024-03-10"},
	)

	tests := []struct {
		path string
		want string
	}{
		{"/plants/50%2541", "50%41"},
		{"/plants/Shelf%2FLeft", "Shelf/Left"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			var v PlantView
			_ = json.Unmarshal(w.Body.Bytes(), &v)
			if v.Plant.Name != tt.want {
				t.Errorf("name = %q, want %q", v.Plant.Name, tt.want)
			}
		})
	}
}

func TestWaterPlant(t *testing.T) {
	env := newTestEnv(t, "", fern())

	w := env.do(t, http.MethodPost, "/plants/Fern/water", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var v PlantView
	_ = json.Unmarshal(w.Body.Bytes(), &v)
	if v.Plant.LastWatered != "2024-03-10" || v.Status.Overdue {
		t.Errorf("view = %+v", v)
	}

	w = env.do(t, http.MethodPost, "/plants/Fern/water", WaterRequest{Date: "2024-03-08"})
	if w.Code != http.StatusOK {
		t.Fatalf("dated water = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/plants/Fern/history", nil)
	var hist HistoryResponse
	_ = json.Unmarshal(w.Body.Bytes(), &hist)
	if len(hist.Waterings) != 2 {
		t.Errorf("history = %+v", hist)
	}
}

func TestDeletePlant(t *testing.T) {
	env := newTestEnv(t, "", fern())

	w := env.do(t, http.MethodDelete, "/plants/Fern", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	w = env.do(t, http.MethodDelete, "/plants/Fern", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("second delete = %d, want 502", w.Code)
	}
}

func TestPhotoUploadJSON(t *testing.T) {
	env := newTestEnv(t, "", fern())

	w := env.do(t, http.MethodPost, "/plants/Fern/photos", PhotoUploadRequest{
		ImageData: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png")),
		Caption:   " frond ",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	if len(env.store.uploads) != 1 {
		t.Fatalf("uploads = %d", len(env.store.uploads))
	}
	up := env.store.uploads[0]
	if up.ContentType != "image/png" || up.Caption != "frond" {
		t.Errorf("upload = %+v", up)
	}

	w = env.do(t, http.MethodPut, "/plants/Fern/photos/ph1", CaptionRequest{Caption: "renamed"})
	var resp PhotoListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || len(resp.Photos) != 1 || resp.Photos[0].Caption != "renamed" {
		t.Errorf("caption update = %d %+v", w.Code, resp)
	}

	w = env.do(t, http.MethodDelete, "/plants/Fern/photos/ph1", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete photo = %d", w.Code)
	}
}

func TestPhotoUploadMultipart(t *testing.T) {
	env := newTestEnv(t, "", fern())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "leaf.webp")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("webp-data"))
	_ = mw.WriteField("caption", "new leaf")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/plants/Fern/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	up := env.store.uploads[0]
	if up.FileName != "leaf.webp" || up.ContentType != "image/webp" || up.Caption != "new leaf" {
		t.Errorf("upload = %+v", up)
	}
}

func TestPhotoUploadInvalid(t *testing.T) {
	env := newTestEnv(t, "", fern())

	w := env.do(t, http.MethodPost, "/plants/Fern/photos", PhotoUploadRequest{ImageData: "!!!"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad base64 = %d, want 400", w.Code)
	}
	w = env.do(t, http.MethodPost, "/plants/Fern/photos", PhotoUploadRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty image = %d, want 400", w.Code)
	}
}

func TestSpeciesEndpoints(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/species/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search without q = %d, want 400", w.Code)
	}
	w = env.do(t, http.MethodGet, "/species/search?q=pothos", nil)
	if w.Code != http.StatusOK {
		t.Errorf("search = %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/species/lookup?name=Aloe", nil)
	var info models.SpeciesInfo
	_ = json.Unmarshal(w.Body.Bytes(), &info)
	if w.Code != http.StatusOK || info.WateringIntervalDays != 7 {
		t.Errorf("lookup = %d %+v", w.Code, info)
	}
	w = env.do(t, http.MethodGet, "/species/common", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Spider Plant") {
		t.Errorf("common = %d %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodGet, "/species/1", nil)
	if w.Code != http.StatusOK {
		t.Errorf("details = %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/species/99", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("missing details = %d, want 502", w.Code)
	}
}

func TestReminders(t *testing.T) {
	env := newTestEnv(t, "", fern(), models.PlantRecord{Name: "Cactus", Species: "Cactus", LastWatered: "2024-03-09", WateringIntervalDays: 30})

	w := env.do(t, http.MethodGet, "/reminders", nil)
	var resp RemindersResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || len(resp.Reminders) != 1 {
		t.Fatalf("reminders = %d %+v", w.Code, resp)
	}
	if resp.Message != "Fern needs watering! (9 days since last watered, interval: 7 days)" {
		t.Errorf("message = %q", resp.Message)
	}

	w = env.do(t, http.MethodGet, "/reminders/log", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Fern needs watering!") {
		t.Errorf("log = %d %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, "secret123")

	w := env.do(t, http.MethodGet, "/plants", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/plants", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/plants", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", rec.Code)
	}
}

func TestEventsAuthProtected(t *testing.T) {
	env := newTestEnv(t, "tok")

	w := env.do(t, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
