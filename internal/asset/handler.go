package asset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"

	"github.com/haxtrace/haxtrace/backend-go/internal/typeid"
)

// DefaultMaxUploadBytes bounds an upload when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20 // 10MB

// UploadResponse is returned from the upload endpoint. DataURL is ready to
// be stored as a map's background image.
type UploadResponse struct {
	ID      string `json:"id"`
	DataURL string `json:"dataURL"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Type    string `json:"type"`
	Name    string `json:"name"`
}

// Handler serves the background image upload endpoint.
type Handler struct {
	maxBytes int64
}

// NewHandler creates an upload handler accepting at most maxBytes per file.
func NewHandler(maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Handler{maxBytes: maxBytes}
}

// Upload handles POST /assets/upload (multipart form with "file" field).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("file too large (max %d bytes)", h.maxBytes)})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file field"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error("read upload", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read file"})
		return
	}

	resp, err := Describe(data, header.Filename)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("background uploaded", "id", resp.ID, "type", resp.Type, "width", resp.Width, "height", resp.Height)
	writeJSON(w, http.StatusOK, resp)
}

// Describe validates an uploaded image and wraps it as a data URL.
func Describe(data []byte, name string) (*UploadResponse, error) {
	mime := http.DetectContentType(data)
	if _, ok := Supported[mime]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedImage, mime)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return &UploadResponse{
		ID:      typeid.NewAssetID(),
		DataURL: EncodeDataURL(mime, data),
		Width:   cfg.Width,
		Height:  cfg.Height,
		Type:    format,
		Name:    name,
	}, nil
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnsupportedImage):
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "only PNG, JPEG, GIF and WebP images are supported"})
	case errors.Is(err, ErrInvalidDataURL):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid data URL"})
	default:
		slog.Error("asset error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
