package garden

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/plantcare/internal/apperr"
	"github.com/starford/plantcare/internal/models"
)

// MaxCaptionLength bounds photo captions.
const MaxCaptionLength = 200

const defaultPhotoContentType = "image/jpeg"

// PhotoInput is a photo to upload. FileName and ContentType are optional.
type PhotoInput struct {
	Data        []byte
	Caption     string
	FileName    string
	ContentType string
}

// Validate checks the photo has data and a caption of acceptable length.
func (in PhotoInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Data, validation.Required),
		validation.Field(&in.Caption, validation.RuneLength(0, MaxCaptionLength)),
	)
}

// DecodeImageData decodes raw base64 or a base64 data URI. For a data URI
// the declared media type is returned as well.
func DecodeImageData(s string) (data []byte, contentType string, err error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, "", fmt.Errorf("%w: data URI must be base64 encoded", apperr.ErrInvalidInput)
		}
		contentType = strings.TrimSuffix(meta, ";base64")
		s = payload
	}
	data, err = base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("%w: image data: %w", apperr.ErrInvalidInput, err)
	}
	return data, contentType, nil
}

// Photos fetches the photos of a plant, newest first.
func (g *Garden) Photos(ctx context.Context, plant string) ([]models.Photo, error) {
	photos, err := g.store.ListPhotos(ctx, plant)
	if err != nil {
		g.notifier.Notify("error", fmt.Sprintf("Failed to fetch photos: %s", err))
		return nil, err
	}
	return photos, nil
}

// UploadPhoto uploads a photo for a plant and returns the refetched list.
func (g *Garden) UploadPhoto(ctx context.Context, plant string, in PhotoInput) ([]models.Photo, error) {
	in.Caption = strings.TrimSpace(in.Caption)
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	if in.FileName == "" {
		in.FileName = fmt.Sprintf("photo_%d.jpg", g.now().UnixMilli())
	}
	if in.ContentType == "" {
		in.ContentType = defaultPhotoContentType
	}

	_, err := g.store.UploadPhoto(ctx, plant, models.PhotoUpload{
		PlantName:   plant,
		ImageData:   base64.StdEncoding.EncodeToString(in.Data),
		Caption:     in.Caption,
		FileName:    in.FileName,
		ContentType: in.ContentType,
	})
	if err != nil {
		g.notifier.Notify("error", fmt.Sprintf("Failed to upload photo: %s", err))
		return nil, err
	}
	slog.Info("photo uploaded",
		slog.String("plant", plant),
		slog.String("file", in.FileName),
		slog.Int("bytes", len(in.Data)))
	return g.photosAfterMutation(ctx, plant)
}

// UpdateCaption replaces a photo caption and returns the refetched list.
func (g *Garden) UpdateCaption(ctx context.Context, plant, photoID, caption string) ([]models.Photo, error) {
	caption = strings.TrimSpace(caption)
	if err := validation.Validate(caption, validation.RuneLength(0, MaxCaptionLength)); err != nil {
		return nil, fmt.Errorf("%w: caption %w", apperr.ErrInvalidInput, err)
	}
	if err := g.store.UpdateCaption(ctx, plant, photoID, caption); err != nil {
		g.notifier.Notify("error", fmt.Sprintf("Failed to update caption: %s", err))
		return nil, err
	}
	return g.photosAfterMutation(ctx, plant)
}

// DeletePhoto removes a photo and returns the refetched list.
func (g *Garden) DeletePhoto(ctx context.Context, plant, photoID string) ([]models.Photo, error) {
	if err := g.store.DeletePhoto(ctx, plant, photoID); err != nil {
		g.notifier.Notify("error", fmt.Sprintf("Failed to delete photo: %s", err))
		return nil, err
	}
	slog.Info("photo deleted", slog.String("plant", plant), slog.String("photo_id", photoID))
	return g.photosAfterMutation(ctx, plant)
}

// photosAfterMutation refetches after a write. A failed refetch yields an
// empty list; the write itself already succeeded.
func (g *Garden) photosAfterMutation(ctx context.Context, plant string) ([]models.Photo, error) {
	g.notifier.PhotosChanged(plant)
	photos, err := g.store.ListPhotos(ctx, plant)
	if err != nil {
		slog.Warn("refetch photos failed", slog.String("plant", plant), slog.String("error", err.Error()))
		return []models.Photo{}, nil
	}
	return photos, nil
}
