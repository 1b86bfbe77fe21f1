package api

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/starford/plantcare/internal/garden"
	"github.com/starford/plantcare/internal/storage"
)

const maxPhotoBytes = 20 << 20 // 20 MB

// ListPhotos handles GET /api/plants/{name}/photos.
func (h *Handler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := h.garden.Photos(r.Context(), urlParam(r, "name"))
	if err != nil {
		writeError(w, "list photos", err)
		return
	}
	writeJSON(w, http.StatusOK, PhotoListResponse{Photos: photos})
}

// UploadPhoto handles POST /api/plants/{name}/photos. It accepts either
// multipart/form-data (field "file", optional "caption") or a JSON
// PhotoUploadRequest with base64 image data.
//
//	@Summary		Upload a plant photo
//	@Tags			photos
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			name	path		string				true	"Plant name"
//	@Param			body	body		PhotoUploadRequest	false	"Photo as base64 JSON"
//	@Success		201		{object}	PhotoListResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Router			/plants/{name}/photos [post]
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)

	var (
		in  garden.PhotoInput
		msg string
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		in, msg = photoFromMultipart(r)
	} else {
		in, msg = photoFromJSON(w, r)
	}
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, errorBody(msg))
		return
	}

	photos, err := h.garden.UploadPhoto(r.Context(), urlParam(r, "name"), in)
	if err != nil {
		writeError(w, "upload photo", err)
		return
	}
	writeJSON(w, http.StatusCreated, PhotoListResponse{Photos: photos})
}

func photoFromMultipart(r *http.Request) (garden.PhotoInput, string) {
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		return garden.PhotoInput{}, "file too large or invalid multipart"
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return garden.PhotoInput{}, "missing 'file' field in multipart form"
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return garden.PhotoInput{}, "failed to read file"
	}
	name := filepath.Base(filepath.Clean(header.Filename))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}
	ct := header.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = storage.ContentType(name)
	}
	return garden.PhotoInput{
		Data:        data,
		Caption:     r.FormValue("caption"),
		FileName:    name,
		ContentType: ct,
	}, ""
}

func photoFromJSON(w http.ResponseWriter, r *http.Request) (garden.PhotoInput, string) {
	var req PhotoUploadRequest
	if err := decodeBody(w, r, maxPhotoBytes, &req); err != nil {
		return garden.PhotoInput{}, "invalid JSON body"
	}
	data, ct, err := garden.DecodeImageData(req.ImageData)
	if err != nil {
		return garden.PhotoInput{}, "imageData must be base64 or a data URI"
	}
	if req.ContentType != "" {
		ct = req.ContentType
	}
	return garden.PhotoInput{
		Data:        data,
		Caption:     req.Caption,
		FileName:    req.FileName,
		ContentType: ct,
	}, ""
}

// UpdateCaption handles PUT /api/plants/{name}/photos/{photoId}.
func (h *Handler) UpdateCaption(w http.ResponseWriter, r *http.Request) {
	var req CaptionRequest
	if err := decodeBody(w, r, maxJSONBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	photos, err := h.garden.UpdateCaption(r.Context(), urlParam(r, "name"), urlParam(r, "photoId"), req.Caption)
	if err != nil {
		writeError(w, "update caption", err)
		return
	}
	writeJSON(w, http.StatusOK, PhotoListResponse{Photos: photos})
}

// DeletePhoto handles DELETE /api/plants/{name}/photos/{photoId}.
func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	if _, err := h.garden.DeletePhoto(r.Context(), urlParam(r, "name"), urlParam(r, "photoId")); err != nil {
		writeError(w, "delete photo", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
