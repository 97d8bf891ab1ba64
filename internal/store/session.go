package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/haxtrace/haxtrace/backend-go/internal/document"
	"github.com/haxtrace/haxtrace/backend-go/internal/storage"
)

const sessionTimeout = 5 * time.Second

// Grid size bounds in world units.
const (
	DefaultGridSize = 50.0
	MinGridSize     = 5.0
	MaxGridSize     = 1000.0
)

// Prefs are the UI preferences mirrored with the session.
type Prefs struct {
	ShowGrid bool    `json:"showGrid"`
	GridSize float64 `json:"gridSize"`
}

// DefaultPrefs returns the preferences of a fresh session.
func DefaultPrefs() Prefs {
	return Prefs{ShowGrid: true, GridSize: DefaultGridSize}
}

func (s *Store) mapKey() string   { return s.key + "-map" }
func (s *Store) prefsKey() string { return s.key + "-prefs" }

// loadSession reads the mirrored map and preferences. Anything missing or
// unreadable falls back to the defaults.
func (s *Store) loadSession() (*document.Map, Prefs) {
	m, prefs := document.NewDefaultMap(), DefaultPrefs()
	if s.slot == nil {
		return m, prefs
	}
	ctx, cancel := context.WithTimeout(context.Background(), sessionTimeout)
	defer cancel()

	if data, err := s.slot.Load(ctx, s.mapKey()); err == nil {
		var stored document.Map
		if err := json.Unmarshal(data, &stored); err != nil {
			s.log.Warn("stored map unreadable, using default", "error", err)
		} else if err := stored.Validate(); err != nil || stored.Vertexes == nil || stored.Segments == nil {
			s.log.Warn("stored map invalid, using default", "error", err)
		} else {
			if stored.Bg.Image != nil {
				stored.Bg.Image.Clamp()
			}
			m = &stored
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("load session map", "error", err)
	}

	if data, err := s.slot.Load(ctx, s.prefsKey()); err == nil {
		var stored Prefs
		if err := json.Unmarshal(data, &stored); err != nil {
			s.log.Warn("stored preferences unreadable, using defaults", "error", err)
		} else {
			prefs = stored
			prefs.GridSize = clampGrid(prefs.GridSize)
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("load session preferences", "error", err)
	}
	return m, prefs
}

// saveSession mirrors the current map and preferences. Failures are logged;
// the in-memory session carries on.
func (s *Store) saveSession() {
	if s.slot == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sessionTimeout)
	defer cancel()

	if data, err := json.Marshal(s.Map()); err != nil {
		s.log.Warn("encode session map", "error", err)
	} else if err := s.slot.Save(ctx, s.mapKey(), data); err != nil {
		s.log.Warn("save session map", "error", err)
	}
	s.savePrefs(ctx)
}

func (s *Store) savePrefs(ctx context.Context) {
	if s.slot == nil {
		return
	}
	data, err := json.Marshal(s.prefs)
	if err != nil {
		s.log.Warn("encode preferences", "error", err)
		return
	}
	if err := s.slot.Save(ctx, s.prefsKey(), data); err != nil {
		s.log.Warn("save preferences", "error", err)
	}
}

func (s *Store) Prefs() Prefs { return s.prefs }

// SetGridVisible toggles the grid.
func (s *Store) SetGridVisible(v bool) {
	if s.prefs.ShowGrid == v {
		return
	}
	s.prefs.ShowGrid = v
	s.prefsChanged()
}

// SetGridSize sets the grid spacing, clamped to [MinGridSize, MaxGridSize].
func (s *Store) SetGridSize(size float64) {
	size = clampGrid(size)
	if s.prefs.GridSize == size {
		return
	}
	s.prefs.GridSize = size
	s.prefsChanged()
}

func (s *Store) prefsChanged() {
	ctx, cancel := context.WithTimeout(context.Background(), sessionTimeout)
	defer cancel()
	s.savePrefs(ctx)
	s.notify(ChangePrefs)
}

func clampGrid(size float64) float64 {
	if !(size > 0) {
		return DefaultGridSize
	}
	return max(MinGridSize, min(MaxGridSize, size))
}
