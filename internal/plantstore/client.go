// Package plantstore is the HTTP client for the remote plant and photo store.
package plantstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/starford/plantcare/internal/apperr"
	"github.com/starford/plantcare/internal/metrics"
	"github.com/starford/plantcare/internal/models"
	"github.com/starford/plantcare/internal/watering"
)

const defaultTimeout = 15 * time.Second

// Config configures the store client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Metrics *metrics.Metrics
}

// Client talks to the plant store. It is safe for concurrent use.
type Client struct {
	plantsURL  string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// New creates a store client. BaseURL is the API root; plant resources live
// under BaseURL + "/plants".
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		plantsURL:  strings.TrimRight(cfg.BaseURL, "/") + "/plants",
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    cfg.Metrics,
	}
}

// List fetches every plant, oldest watering first. Records whose date cannot
// be read sort last. A body that is not a JSON array yields no plants.
func (c *Client) List(ctx context.Context) ([]models.PlantRecord, error) {
	body, err := c.do(ctx, "list plants", http.MethodGet, c.plantsURL, nil)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		slog.Warn("plant list is not an array", slog.String("error", err.Error()))
		return []models.PlantRecord{}, nil
	}
	plants := make([]models.PlantRecord, 0, len(raw))
	for _, r := range raw {
		var p models.PlantRecord
		if err := json.Unmarshal(r, &p); err != nil {
			slog.Warn("skipping malformed plant record", slog.String("error", err.Error()))
			continue
		}
		plants = append(plants, p)
	}
	sortByLastWatered(plants)
	return plants, nil
}

// Upsert creates or fully replaces a plant keyed by its name. The saved
// record is returned; a success body that is not a record echoes p.
func (c *Client) Upsert(ctx context.Context, p models.PlantRecord) (models.PlantRecord, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return models.PlantRecord{}, fmt.Errorf("plantstore: encode plant: %w", err)
	}
	body, err := c.do(ctx, "save plant", http.MethodPost, c.plantsURL, payload)
	if err != nil {
		return models.PlantRecord{}, err
	}
	var saved models.PlantRecord
	if err := json.Unmarshal(body, &saved); err != nil || saved.Name == "" {
		return p, nil
	}
	return saved, nil
}

// Delete removes a plant by name.
func (c *Client) Delete(ctx context.Context, name string) error {
	_, err := c.do(ctx, "delete plant", http.MethodDelete, c.plantURL(name), nil)
	return err
}

// ListPhotos fetches a plant's photos, newest first. A 404 means the plant
// has no photos.
func (c *Client) ListPhotos(ctx context.Context, name string) ([]models.Photo, error) {
	body, err := c.do(ctx, "fetch photos", http.MethodGet, c.plantURL(name)+"/photos", nil)
	if err != nil {
		if apperr.Status(err) == http.StatusNotFound {
			return []models.Photo{}, nil
		}
		return nil, err
	}
	var resp struct {
		Photos []models.Photo `json:"photos"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("plantstore: decode photos: %w", err)
	}
	if resp.Photos == nil {
		resp.Photos = []models.Photo{}
	}
	sortNewestFirst(resp.Photos)
	return resp.Photos, nil
}

// UploadPhoto uploads base64 image data for a plant. A success body that is
// not JSON yields empty metadata.
func (c *Client) UploadPhoto(ctx context.Context, name string, up models.PhotoUpload) (models.Photo, error) {
	payload, err := json.Marshal(up)
	if err != nil {
		return models.Photo{}, fmt.Errorf("plantstore: encode upload: %w", err)
	}
	body, err := c.do(ctx, "upload photo", http.MethodPost, c.plantURL(name)+"/photos", payload)
	if err != nil {
		return models.Photo{}, err
	}
	var photo models.Photo
	if err := json.Unmarshal(body, &photo); err != nil {
		slog.Debug("upload response is not JSON", slog.String("plant", name))
		return models.Photo{}, nil
	}
	return photo, nil
}

// UpdateCaption replaces a photo's caption.
func (c *Client) UpdateCaption(ctx context.Context, name, photoID, caption string) error {
	payload, err := json.Marshal(map[string]string{"caption": caption})
	if err != nil {
		return fmt.Errorf("plantstore: encode caption: %w", err)
	}
	_, err = c.do(ctx, "update caption", http.MethodPut, c.photoURL(name, photoID), payload)
	return err
}

// DeletePhoto removes a photo.
func (c *Client) DeletePhoto(ctx context.Context, name, photoID string) error {
	_, err := c.do(ctx, "delete photo", http.MethodDelete, c.photoURL(name, photoID), nil)
	return err
}

func (c *Client) plantURL(name string) string {
	return c.plantsURL + "/" + url.PathEscape(name)
}

func (c *Client) photoURL(name, photoID string) string {
	return c.plantURL(name) + "/photos/" + url.PathEscape(photoID)
}

// do performs one request and returns the body of a 2xx response. Non-2xx
// answers become *apperr.StatusError; transport failures wrap
// apperr.ErrUnavailable.
func (c *Client) do(ctx context.Context, op, method, target string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("plantstore: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(metrics.ServiceStore, op, 0, time.Since(start))
		slog.Error("plant store request failed",
			slog.String("op", op),
			slog.String("url", target),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("plantstore: %s: %w: %w", op, apperr.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.ObserveUpstream(metrics.ServiceStore, op, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("plantstore: %s: read body: %w: %w", op, apperr.ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := decodeError(op, resp.StatusCode, body)
		slog.Warn("plant store error response",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
			slog.String("url", target),
			slog.String("message", serr.Message))
		return nil, serr
	}
	return body, nil
}

func sortByLastWatered(plants []models.PlantRecord) {
	sort.SliceStable(plants, func(i, j int) bool {
		a, aok := watering.CalendarDate(plants[i].LastWatered)
		b, bok := watering.CalendarDate(plants[j].LastWatered)
		if aok != bok {
			return aok
		}
		return aok && a.Before(b)
	})
}

func sortNewestFirst(photos []models.Photo) {
	sort.SliceStable(photos, func(i, j int) bool {
		a, aok := parseUploadDate(photos[i].UploadDate)
		b, bok := parseUploadDate(photos[j].UploadDate)
		if aok != bok {
			return aok
		}
		return aok && a.After(b)
	})
}

func parseUploadDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	return watering.CalendarDate(s)
}
