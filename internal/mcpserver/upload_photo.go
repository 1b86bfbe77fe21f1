package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/plantcare/internal/garden"
	"github.com/starford/plantcare/internal/storage"
)

const maxPhotoSize = 10 << 20 // 10 MB

var (
	mimeToExt = map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"image/webp": ".webp",
		"image/heic": ".heic",
	}

	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

type uploadResult struct {
	Plant    string `json:"plantName"`
	FileName string `json:"fileName"`
	PhotoID  string `json:"photoId,omitempty"`
	Photos   int    `json:"photos"`
}

func (s *Server) uploadPhoto(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	plant, err := req.RequireString("plant")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := req.RequireString("data_uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var (
		data        []byte
		contentType string
	)
	if strings.HasPrefix(source, "data:") {
		data, contentType, err = garden.DecodeImageData(source)
	} else {
		data, contentType, err = fetchHTTP(ctx, source)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxPhotoSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), maxPhotoSize)), nil
	}

	filename := optionalString(req, "filename")
	if filename == "" {
		filename = filenameFromURL(source, mimeToExt[contentType])
	}
	filename = sanitizeFilename(filename)
	if !storage.IsImage(filename) {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported file extension: %s (allowed: jpg, jpeg, png, webp, heic)", filepath.Ext(filename))), nil
	}
	if err := validateMagicBytes(data, filename); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if contentType == "" {
		contentType = storage.ContentType(filename)
	}

	photos, err := s.garden.UploadPhoto(ctx, plant, garden.PhotoInput{
		Data:        data,
		Caption:     optionalString(req, "caption"),
		FileName:    filename,
		ContentType: contentType,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := uploadResult{Plant: plant, FileName: filename, Photos: len(photos)}
	for _, ph := range photos {
		if ph.FileName == filename {
			res.PhotoID = ph.PhotoID
			break
		}
	}
	out, _ := json.Marshal(res)
	return mcp.NewToolResultText(string(out)), nil
}

// fetchHTTP downloads an image from an HTTP/HTTPS URL with security checks.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only data, http, https)", parsed.Scheme)
	}
	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxPhotoSize {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", maxPhotoSize)
	}
	ct := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if _, ok := mimeToExt[ct]; !ok {
		ct = ""
	}
	return data, ct, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// filenameFromURL takes the last path segment of a URL, falling back to a
// generated name.
func filenameFromURL(rawURL string, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	if !strings.HasPrefix(rawURL, "data:") {
		if parsed, err := url.Parse(rawURL); err == nil {
			base := path.Base(parsed.Path)
			if base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
				return base
			}
		}
	}
	return "photo_" + uuid.NewString() + ext
}

// sanitizeFilename strips path separators and unsafe characters.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = safeFilenameRe.ReplaceAllString(name, "_")
	if name == "" || name == "." {
		name = "photo_" + uuid.NewString() + ".jpg"
	}
	return name
}

// validateMagicBytes verifies the content matches the file extension.
// HEIC is not sniffable and is accepted as is.
func validateMagicBytes(data []byte, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".heic" {
		return nil
	}
	detected := strings.Split(http.DetectContentType(data), ";")[0]
	got := mimeToExt[detected]
	switch ext {
	case ".jpg", ".jpeg":
		if got != ".jpg" {
			return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
		}
	default:
		if got != ext {
			return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
		}
	}
	return nil
}
