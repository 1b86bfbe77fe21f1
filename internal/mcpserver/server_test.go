package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/plantcare/internal/garden"
	"github.com/starford/plantcare/internal/models"
)

type memStore struct {
	mu      sync.Mutex
	plants  []models.PlantRecord
	uploads []models.PhotoUpload
}

func (s *memStore) List(context.Context) ([]models.PlantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PlantRecord{}, s.plants...), nil
}

func (s *memStore) Upsert(_ context.Context, p models.PlantRecord) (models.PlantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.plants {
		if s.plants[i].Name == p.Name {
			s.plants[i] = p
			return p, nil
		}
	}
	s.plants = append(s.plants, p)
	return p, nil
}

func (s *memStore) Delete(context.Context, string) error { return nil }

func (s *memStore) ListPhotos(_ context.Context, name string) ([]models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Photo
	for i, up := range s.uploads {
		if up.PlantName == name {
			out = append(out, models.Photo{PhotoID: string(rune('a' + i)), FileName: up.FileName})
		}
	}
	return out, nil
}

func (s *memStore) UploadPhoto(_ context.Context, _ string, up models.PhotoUpload) (models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, up)
	return models.Photo{}, nil
}

func (s *memStore) UpdateCaption(context.Context, string, string, string) error { return nil }
func (s *memStore) DeletePhoto(context.Context, string, string) error          { return nil }

type stubSpecies struct{}

func (stubSpecies) Lookup(_ context.Context, name string) models.SpeciesInfo {
	if name == "Pothos" {
		return models.SpeciesInfo{SpeciesID: "12", WateringIntervalDays: 7, Description: "Easy vine", Detail: &models.SpeciesDetail{ID: "12"}}
	}
	return models.SpeciesInfo{WateringIntervalDays: 7, Description: name + " - Species not found in database"}
}

var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)

func testServer(t *testing.T) (*Server, *memStore) {
	t.Helper()
	store := &memStore{plants: []models.PlantRecord{
		{Name: "Fern", Species: "Boston Fern", LastWatered: "2024-03-01", WateringIntervalDays: 7},
		{Name: "Cactus", Species: "Cactus", LastWatered: "2024-03-09", WateringIntervalDays: 30},
	}}
	g := garden.New(store, stubSpecies{}, garden.WithClock(func() time.Time { return testNow }))
	return New(g, stubSpecies{}, "test"), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_plants":
		result, err = srv.listPlants(ctx, req)
	case "plant_status":
		result, err = srv.plantStatus(ctx, req)
	case "due_reminders":
		result, err = srv.dueReminders(ctx, req)
	case "resolve_watering_interval":
		result, err = srv.resolveInterval(ctx, req)
	case "lookup_species":
		result, err = srv.lookupSpecies(ctx, req)
	case "water_plant":
		result, err = srv.waterPlant(ctx, req)
	case "upload_photo":
		result, err = srv.uploadPhoto(ctx, req)
	case "get_watering_rules":
		result, err = srv.getWateringRules(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListPlants(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_plants", nil)

	var views []garden.PlantView
	if err := json.Unmarshal([]byte(resultText(r)), &views); err != nil {
		t.Fatalf("decode: %v (%s)", err, resultText(r))
	}
	if len(views) != 2 {
		t.Fatalf("plants = %d, want 2", len(views))
	}
}

func TestPlantStatus(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "plant_status", map[string]interface{}{"name": "Fern"})
	var v garden.PlantView
	if err := json.Unmarshal([]byte(resultText(r)), &v); err != nil {
		t.Fatal(err)
	}
	if !v.Status.Overdue || v.Status.DaysOverdue != 2 {
		t.Errorf("status = %+v", v.Status)
	}

	r = callTool(t, srv, "plant_status", map[string]interface{}{"name": "Ghost"})
	if !r.IsError {
		t.Error("expected error for missing plant")
	}
}

func TestDueReminders(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "due_reminders", nil)
	want := "Fern needs watering! (9 days since last watered, interval: 7 days)"
	if resultText(r) != want {
		t.Errorf("reminders = %q, want %q", resultText(r), want)
	}

	_ = callTool(t, srv, "water_plant", map[string]interface{}{"name": "Fern"})
	r = callTool(t, srv, "due_reminders", nil)
	if resultText(r) != "no plants need watering" {
		t.Errorf("after watering = %q", resultText(r))
	}
}

func TestResolveWateringInterval(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		args       map[string]interface{}
		wantDays   int
		wantSource string
	}{
		{map[string]interface{}{"benchmark": "5-7"}, 6, "benchmark"},
		{map[string]interface{}{"benchmark": "2.5"}, 3, "benchmark"},
		{map[string]interface{}{"benchmark": "0", "description": "Frequent"}, 2, "frequent"},
		{map[string]interface{}{"description": "Twice a week"}, 3, "twice-weekly"},
		{map[string]interface{}{}, 7, "default"},
	}
	for _, tt := range tests {
		r := callTool(t, srv, "resolve_watering_interval", tt.args)
		var got intervalResult
		if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
			t.Fatal(err)
		}
		if got.Days != tt.wantDays || got.Source != tt.wantSource {
			t.Errorf("%v = %+v, want %d/%s", tt.args, got, tt.wantDays, tt.wantSource)
		}
	}
}

func TestLookupSpecies(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "lookup_species", map[string]interface{}{"name": "Pothos"})
	text := resultText(r)
	if !strings.Contains(text, `"speciesId": 12`) || strings.Contains(text, "detailData\": {") {
		t.Errorf("lookup = %s", text)
	}
}

func TestWaterPlant(t *testing.T) {
	srv, store := testServer(t)

	r := callTool(t, srv, "water_plant", map[string]interface{}{"name": "Cactus", "date": "2024-03-10"})
	if r.IsError {
		t.Fatalf("water: %s", resultText(r))
	}
	if store.plants[1].LastWatered != "2024-03-10" {
		t.Errorf("stored = %+v", store.plants[1])
	}

	r = callTool(t, srv, "water_plant", map[string]interface{}{"name": "Cactus", "date": "10/03/2024"})
	if !r.IsError {
		t.Error("expected error for bad date")
	}
}

func TestUploadPhotoDataURI(t *testing.T) {
	srv, store := testServer(t)
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)

	r := callTool(t, srv, "upload_photo", map[string]interface{}{
		"plant":    "Fern",
		"data_uri": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		"caption":  "new frond",
	})
	if r.IsError {
		t.Fatalf("upload: %s", resultText(r))
	}
	if len(store.uploads) != 1 {
		t.Fatalf("uploads = %d", len(store.uploads))
	}
	up := store.uploads[0]
	if up.ContentType != "image/png" || !strings.HasSuffix(up.FileName, ".png") || up.Caption != "new frond" {
		t.Errorf("upload = %+v", up)
	}
}

func TestUploadPhotoRejectsMismatch(t *testing.T) {
	srv, store := testServer(t)

	r := callTool(t, srv, "upload_photo", map[string]interface{}{
		"plant":    "Fern",
		"data_uri": "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not a png")),
	})
	if !r.IsError {
		t.Error("expected magic byte mismatch")
	}
	r = callTool(t, srv, "upload_photo", map[string]interface{}{
		"plant":    "Fern",
		"data_uri": "ftp://example.com/a.png",
	})
	if !r.IsError {
		t.Error("expected unsupported scheme")
	}
	if len(store.uploads) != 0 {
		t.Errorf("uploads = %d, want 0", len(store.uploads))
	}
}

func TestCheckBlockedHost(t *testing.T) {
	for _, h := range []string{"127.0.0.1", "169.254.169.254", "metadata.google.internal"} {
		if checkBlockedHost(h) == nil {
			t.Errorf("%s should be blocked", h)
		}
	}
}

func TestWateringRules(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_watering_rules", nil)
	if !strings.Contains(resultText(r), "twice a week") {
		t.Error("rules missing description table")
	}

	contents, err := srv.readRulesResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != RulesURI {
		t.Errorf("resource contents = %+v", contents[0])
	}
}
