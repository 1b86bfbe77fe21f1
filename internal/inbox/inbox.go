// Package inbox uploads photos dropped into a local folder. Images are
// expected at <inbox>/<plantName>/<file>; an optional <file>.yaml sidecar
// carries the caption.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/starford/plantcare/internal/apperr"
	"github.com/starford/plantcare/internal/garden"
	"github.com/starford/plantcare/internal/journal"
	"github.com/starford/plantcare/internal/metrics"
	"github.com/starford/plantcare/internal/models"
	"github.com/starford/plantcare/internal/storage"
)

// ArchiveDir holds uploaded files, one subdirectory per plant.
const ArchiveDir = ".uploaded"

// DefaultSettle is how long a file must stay quiet before it is processed.
const DefaultSettle = 500 * time.Millisecond

// Uploader sends a photo to the plant store.
type Uploader interface {
	UploadPhoto(ctx context.Context, plant string, in garden.PhotoInput) ([]models.Photo, error)
}

// Ledger remembers which files were already uploaded.
type Ledger interface {
	UploadByChecksum(checksum string) (*journal.Upload, error)
	RecordUpload(u journal.Upload) error
}

// Sidecar is the optional metadata file next to an image.
type Sidecar struct {
	Caption string `yaml:"caption"`
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithSettle sets the quiet period before a changed file is processed.
func WithSettle(d time.Duration) Option {
	return func(in *Inbox) {
		if d > 0 {
			in.settle = d
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(in *Inbox) { in.metrics = m }
}

// Inbox processes image files under a storage root.
type Inbox struct {
	store    storage.Provider
	uploader Uploader
	ledger   Ledger
	metrics  *metrics.Metrics
	settle   time.Duration
}

// New creates an inbox over store.
func New(store storage.Provider, uploader Uploader, ledger Ledger, opts ...Option) *Inbox {
	in := &Inbox{store: store, uploader: uploader, ledger: ledger, settle: DefaultSettle}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Sweep processes every image already present in the inbox.
func (in *Inbox) Sweep(ctx context.Context) error {
	files, err := in.store.List("")
	if err != nil {
		return err
	}
	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		in.Process(ctx, f)
	}
	slog.Info("inbox: sweep done", slog.Int("files", len(files)))
	return nil
}

// Process handles one inbox file and returns its outcome, one of
// metrics.InboxUploaded, metrics.InboxDuplicate or metrics.InboxFailed.
// Files outside a plant directory are left alone and reported as "".
func (in *Inbox) Process(ctx context.Context, f models.InboxFile) string {
	plant, name := splitPlantPath(f.Path)
	if plant == "" {
		slog.Debug("inbox: ignoring file outside a plant folder", slog.String("path", f.Path))
		return ""
	}

	result, err := in.process(ctx, f, plant, name)
	if err != nil {
		slog.Warn("inbox: upload failed",
			slog.String("path", f.Path),
			slog.String("error", err.Error()))
		msg := fmt.Sprintf("%s\n%s\n", time.Now().Format(time.RFC3339), err)
		if werr := in.store.Write(f.Path+".error.txt", []byte(msg)); werr != nil {
			slog.Warn("inbox: write error file", slog.String("path", f.Path), slog.String("error", werr.Error()))
		}
	}
	if result != "" {
		in.metrics.InboxFile(result)
	}
	return result
}

func (in *Inbox) process(ctx context.Context, f models.InboxFile, plant, name string) (string, error) {
	prev, err := in.ledger.UploadByChecksum(f.Checksum)
	switch {
	case err == nil:
		slog.Info("inbox: duplicate removed",
			slog.String("path", f.Path),
			slog.String("first_upload", prev.FileName))
		in.removeWithSidecar(f.Path)
		return metrics.InboxDuplicate, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return metrics.InboxFailed, err
	}

	data, err := in.store.Read(f.Path)
	if err != nil {
		return metrics.InboxFailed, err
	}
	sc, err := in.readSidecar(f.Path)
	if err != nil {
		return metrics.InboxFailed, err
	}

	photos, err := in.uploader.UploadPhoto(ctx, plant, garden.PhotoInput{
		Data:        data,
		Caption:     sc.Caption,
		FileName:    name,
		ContentType: storage.ContentType(name),
	})
	if err != nil {
		return metrics.InboxFailed, err
	}

	rec := journal.Upload{Checksum: f.Checksum, Plant: plant, FileName: name, PhotoID: photoIDFor(photos, name)}
	if err := in.ledger.RecordUpload(rec); err != nil {
		slog.Warn("inbox: record upload", slog.String("path", f.Path), slog.String("error", err.Error()))
	}
	in.archive(plant, f.Path)
	slog.Info("inbox: uploaded", slog.String("plant", plant), slog.String("file", name))
	return metrics.InboxUploaded, nil
}

func (in *Inbox) readSidecar(p string) (Sidecar, error) {
	var sc Sidecar
	raw, err := in.store.Read(p + ".yaml")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sc, nil
		}
		return sc, err
	}
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return sc, fmt.Errorf("parse %s.yaml: %w", path.Base(p), err)
	}
	sc.Caption = strings.TrimSpace(sc.Caption)
	return sc, nil
}

// archive moves an uploaded file and its sidecar under ArchiveDir. A name
// already taken in the archive gets a unique prefix.
func (in *Inbox) archive(plant, p string) {
	target := path.Join(ArchiveDir, plant, path.Base(p))
	if _, err := os.Stat(in.abs(target)); err == nil {
		target = path.Join(ArchiveDir, plant, uuid.NewString()[:8]+"-"+path.Base(p))
	}
	if err := in.store.Move(p, target); err != nil {
		slog.Warn("inbox: archive", slog.String("path", p), slog.String("error", err.Error()))
		return
	}
	if _, err := os.Stat(in.abs(p + ".yaml")); err == nil {
		_ = in.store.Move(p+".yaml", target+".yaml")
	}
	_ = in.store.Delete(p + ".error.txt")
}

func (in *Inbox) removeWithSidecar(p string) {
	if err := in.store.Delete(p); err != nil {
		slog.Warn("inbox: remove duplicate", slog.String("path", p), slog.String("error", err.Error()))
	}
	_ = in.store.Delete(p + ".yaml")
	_ = in.store.Delete(p + ".error.txt")
}

func (in *Inbox) abs(rel string) string {
	return filepath.Join(in.store.Root(), filepath.FromSlash(rel))
}

// splitPlantPath returns the plant folder and file name of an inbox path.
// Files deeper than one folder use the top folder as the plant.
func splitPlantPath(p string) (plant, name string) {
	i := strings.IndexByte(p, '/')
	if i <= 0 {
		return "", p
	}
	return p[:i], path.Base(p)
}

func photoIDFor(photos []models.Photo, fileName string) string {
	for _, ph := range photos {
		if ph.FileName == fileName {
			return ph.PhotoID
		}
	}
	return ""
}
