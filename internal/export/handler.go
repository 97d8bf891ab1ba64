// Package export serves the current map over HTTP: the exchange file for
// download and upload, and a server-side PNG render.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/haxtrace/haxtrace/backend-go/internal/document"
	"github.com/haxtrace/haxtrace/backend-go/internal/engine"
	"github.com/haxtrace/haxtrace/backend-go/internal/store"
)

const (
	maxUploadSize = 8 << 20
	maxRenderSize = 4096
)

// Session gives exclusive access to the live store.
type Session interface {
	Do(ctx context.Context, fn func(*store.Store)) error
}

type Handler struct {
	session       Session
	width, height float64
	decode        engine.Decoder
}

// NewHandler serves session. width and height are the default render size;
// decode loads background images for renders and may be nil.
func NewHandler(session Session, width, height float64, decode engine.Decoder) *Handler {
	return &Handler{session: session, width: width, height: height, decode: decode}
}

// GetMap downloads the current map as an exchange file.
func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	var (
		data []byte
		name string
		err  error
	)
	if doErr := h.session.Do(r.Context(), func(s *store.Store) {
		name = s.Map().Name
		data, err = s.Export()
	}); doErr != nil {
		handleServiceError(w, doErr)
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, document.ExportFileName(name)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// PutMap replaces the current map with an uploaded exchange file. A file
// that does not parse leaves the map untouched.
func (h *Handler) PutMap(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request too large"})
		return
	}

	var importErr error
	var m *document.Map
	if err := h.session.Do(r.Context(), func(s *store.Store) {
		if importErr = s.Import(data); importErr == nil {
			m = s.Map()
		}
	}); err != nil {
		handleServiceError(w, err)
		return
	}
	if importErr != nil {
		handleServiceError(w, importErr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":       m.ID,
		"name":     m.Name,
		"vertexes": len(m.Vertexes),
		"segments": len(m.Segments),
	})
}

// RenderPNG rasterizes the current map. Query parameters width, height and
// zoom override the default viewport.
func (h *Handler) RenderPNG(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	width := queryFloat(q.Get("width"), h.width, 1, maxRenderSize)
	height := queryFloat(q.Get("height"), h.height, 1, maxRenderSize)
	zoom := queryFloat(q.Get("zoom"), 1, engine.MinZoom, engine.MaxZoom)

	var state store.State
	if err := h.session.Do(r.Context(), func(s *store.Store) {
		state = s.Snapshot()
	}); err != nil {
		handleServiceError(w, err)
		return
	}

	var images *engine.ImageCache
	if h.decode != nil {
		images = engine.NewImageCache(h.decode, nil)
		if img := state.Map.Bg.Image; img != nil {
			images.Request(img.DataURL)
			images.Wait()
		}
	}

	renderer := engine.NewRenderer(width, height, images)
	renderer.Camera.SetZoom(zoom)

	var buf bytes.Buffer
	if err := renderer.RenderPNG(&buf, engine.FrameOf(state)); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func queryFloat(s string, def, lo, hi float64) float64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != v {
		return def
	}
	return max(lo, min(hi, v))
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, document.ErrInvalidDocument):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "request cancelled"})
	default:
		slog.Error("export error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
