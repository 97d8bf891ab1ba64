// Package store owns the editable map, its undo history, the selection and
// the active tool. Every mutation produces a fresh map snapshot; snapshots
// already in history are never modified.
//
// A Store is not safe for concurrent use. Callers serialize access, as the
// collab hub does by running every operation on its own goroutine.
package store

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/haxtrace/haxtrace/backend-go/internal/arc"
	"github.com/haxtrace/haxtrace/backend-go/internal/document"
	"github.com/haxtrace/haxtrace/backend-go/internal/storage"
	"github.com/haxtrace/haxtrace/backend-go/internal/typeid"
)

// Tool is the active interaction mode.
type Tool string

const (
	ToolVertex  Tool = "vertex"
	ToolSegment Tool = "segment"
	ToolPan     Tool = "pan"
)

// Valid reports whether t is a known tool.
func (t Tool) Valid() bool {
	switch t {
	case ToolVertex, ToolSegment, ToolPan:
		return true
	}
	return false
}

// Change flags describe what a notification is about.
type Change uint8

const (
	ChangeDocument Change = 1 << iota
	ChangeSelection
	ChangeTool
	ChangePrefs
)

// DuplicateOffset is how far a duplicated vertex is nudged on each axis.
const DuplicateOffset = 20.0

// Options configures a Store.
type Options struct {
	// Slot mirrors the session. Nil disables mirroring.
	Slot storage.Slot
	// Key prefixes the slot keys. Defaults to "haxtrace".
	Key string
	// CoalesceDrag folds every commit inside a gesture into one history entry.
	CoalesceDrag bool
	Logger       *slog.Logger
}

// Store is the single source of truth for the editor.
type Store struct {
	slot     storage.Slot
	key      string
	coalesce bool
	log      *slog.Logger

	history []*document.Map
	cursor  int

	selectedVertices []int
	selectedSegments []int
	hovered          int

	tool         Tool
	segmentColor string
	curveType    arc.CurveType
	curveValue   float64
	prefs        Prefs

	gesture gestureState

	subscribers map[int]func(Change)
	nextSubID   int
}

type gestureState uint8

const (
	gestureNone gestureState = iota
	gestureOpen
	gestureCommitted
)

// New creates a store, resuming the session mirrored in opts.Slot when it
// can be read, and starting from the default map otherwise.
func New(opts Options) *Store {
	if opts.Key == "" {
		opts.Key = "haxtrace"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Store{
		slot:         opts.Slot,
		key:          opts.Key,
		coalesce:     opts.CoalesceDrag,
		log:          opts.Logger,
		hovered:      -1,
		tool:         ToolVertex,
		segmentColor: document.DefaultColor,
		curveType:    arc.CurveAngle,
		subscribers:  make(map[int]func(Change)),
	}
	m, prefs := s.loadSession()
	s.history = []*document.Map{m}
	s.prefs = prefs
	return s
}

// Map returns the current map. Callers must treat it as read-only.
func (s *Store) Map() *document.Map {
	return s.history[s.cursor]
}

// Subscribe registers fn to be called after every change. The returned
// function removes it.
func (s *Store) Subscribe(fn func(Change)) func() {
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() { delete(s.subscribers, id) }
}

func (s *Store) notify(c Change) {
	for _, fn := range s.subscribers {
		fn(c)
	}
}

// commit makes m the current document. Inside a coalesced gesture only the
// first commit grows history; later ones overwrite that entry.
func (s *Store) commit(m *document.Map) {
	switch {
	case s.gesture == gestureCommitted && s.coalesce:
		s.history[s.cursor] = m
	default:
		s.history = append(s.history[:s.cursor+1:s.cursor+1], m)
		s.cursor++
		if s.gesture == gestureOpen {
			s.gesture = gestureCommitted
		}
	}
	if s.gesture == gestureNone {
		s.saveSession()
	}
	s.notify(ChangeDocument)
}

// edit clones the current map, applies fn and commits the result. Returning
// false from fn abandons the edit.
func (s *Store) edit(fn func(m *document.Map) bool) bool {
	m := s.Map().Clone()
	if !fn(m) {
		return false
	}
	s.commit(m)
	return true
}

// BeginGesture marks the start of a continuous edit such as a vertex drag.
func (s *Store) BeginGesture() {
	s.gesture = gestureOpen
}

// EndGesture closes the current gesture and mirrors the result.
func (s *Store) EndGesture() {
	if s.gesture == gestureNone {
		return
	}
	committed := s.gesture == gestureCommitted
	s.gesture = gestureNone
	if committed {
		s.saveSession()
	}
}

// InGesture reports whether a gesture is open.
func (s *Store) InGesture() bool {
	return s.gesture != gestureNone
}

// AddVertex appends a vertex and returns its index, or -1 when x or y is
// not finite.
func (s *Store) AddVertex(x, y float64) int {
	if !finite(x, y) {
		return -1
	}
	s.edit(func(m *document.Map) bool {
		m.Vertexes = append(m.Vertexes, document.Vertex{X: x, Y: y})
		return true
	})
	return len(s.Map().Vertexes) - 1
}

func finite(x, y float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && !math.IsNaN(y) && !math.IsInf(y, 0)
}

// AddSegment connects v0 and v1 using the configured curve defaults, then
// clears the vertex selection. An empty color leaves the segment uncolored.
func (s *Store) AddSegment(v0, v1 int, color string) {
	ok := s.edit(func(m *document.Map) bool {
		if _, ok := m.Vertex(v0); !ok || v0 == v1 {
			return false
		}
		if _, ok := m.Vertex(v1); !ok {
			return false
		}
		seg := document.Segment{V0: v0, V1: v1}
		if c, ok := document.NormalizeColor(color); ok {
			seg.Color = c
		}
		if s.curveValue != 0 {
			seg.CurveData = &document.CurveData{Type: s.curveType, Value: s.curveValue}
		}
		m.Segments = append(m.Segments, seg)
		return true
	})
	if ok {
		s.selectedVertices = nil
		s.notify(ChangeSelection)
	}
}

// UpdateVertex moves vertex i. Non-finite coordinates are ignored.
func (s *Store) UpdateVertex(i int, x, y float64) {
	s.edit(func(m *document.Map) bool {
		if _, ok := m.Vertex(i); !ok || !finite(x, y) {
			return false
		}
		m.Vertexes[i] = document.Vertex{X: x, Y: y}
		return true
	})
}

// UpdateSegmentCurve replaces the curve of segment i.
func (s *Store) UpdateSegmentCurve(i int, t arc.CurveType, value float64) {
	s.edit(func(m *document.Map) bool {
		if i < 0 || i >= len(m.Segments) {
			return false
		}
		m.Segments[i].CurveData = &document.CurveData{Type: t, Value: value}
		m.Segments[i].Curve = 0
		return true
	})
}

// SetSegmentCurveType re-expresses segment i's curve in another
// parameterization without moving the arc.
func (s *Store) SetSegmentCurveType(i int, t arc.CurveType) {
	s.edit(func(m *document.Map) bool {
		a, b, ok := m.Endpoints(i)
		if !ok {
			return false
		}
		seg := &m.Segments[i]
		if seg.CurveData == nil {
			seg.CurveData = &document.CurveData{Type: t, Value: 0}
			return true
		}
		if seg.CurveData.Type == t {
			return false
		}
		chord := arc.ChordLength(a, b)
		seg.CurveData.Value = arc.Convert(seg.CurveData.Type, seg.CurveData.Value, chord, t)
		seg.CurveData.Type = t
		return true
	})
}

// SetSegmentColorAt recolors segment i. Invalid colors are ignored.
func (s *Store) SetSegmentColorAt(i int, color string) {
	c, ok := document.NormalizeColor(color)
	if !ok {
		return
	}
	s.edit(func(m *document.Map) bool {
		if i < 0 || i >= len(m.Segments) {
			return false
		}
		m.Segments[i].Color = c
		return true
	})
}

// DuplicateVertex appends a copy of vertex i nudged by DuplicateOffset.
func (s *Store) DuplicateVertex(i int) {
	s.edit(func(m *document.Map) bool {
		v, ok := m.Vertex(i)
		if !ok {
			return false
		}
		m.Vertexes = append(m.Vertexes, document.Vertex{X: v.X + DuplicateOffset, Y: v.Y + DuplicateOffset})
		return true
	})
}

// DuplicateSegment appends a copy of segment i. The copy references the
// same two vertices; endpoints are not duplicated.
func (s *Store) DuplicateSegment(i int) {
	s.edit(func(m *document.Map) bool {
		if i < 0 || i >= len(m.Segments) {
			return false
		}
		seg := m.Segments[i]
		if seg.CurveData != nil {
			cd := *seg.CurveData
			seg.CurveData = &cd
		}
		m.Segments = append(m.Segments, seg)
		return true
	})
}

// DeleteSelectedSegments removes every selected segment.
func (s *Store) DeleteSelectedSegments() {
	if len(s.selectedSegments) == 0 {
		return
	}
	drop := make(map[int]bool, len(s.selectedSegments))
	for _, i := range s.selectedSegments {
		drop[i] = true
	}
	s.commit(s.Map().RemoveSegments(drop))
	s.selectedSegments = nil
	s.notify(ChangeSelection)
}

// DeleteSelectedVertices removes every selected vertex and the segments
// touching them, as a single history entry.
func (s *Store) DeleteSelectedVertices() {
	if len(s.selectedVertices) == 0 {
		return
	}
	s.deleteVertices(s.selectedVertices)
}

// DeleteVertex removes vertex i and the segments touching it.
func (s *Store) DeleteVertex(i int) {
	s.deleteVertices([]int{i})
}

func (s *Store) deleteVertices(indices []int) {
	cur := s.Map()
	order := descendingUnique(indices, len(cur.Vertexes))
	if len(order) == 0 {
		return
	}

	m := cur
	// segMap tracks where each original segment ended up.
	segMap := make([]int, len(cur.Segments))
	for k := range segMap {
		segMap[k] = k
	}
	for _, v := range order {
		var remap []int
		m, remap = m.RemoveVertex(v)
		for k, idx := range segMap {
			if idx >= 0 {
				segMap[k] = remap[idx]
			}
		}
	}
	s.commit(m)

	s.selectedVertices = renumberVertices(s.selectedVertices, order)
	s.selectedSegments = remapIndices(s.selectedSegments, segMap)
	if s.hovered >= 0 {
		s.hovered = renumberVertex(s.hovered, order)
	}
	s.notify(ChangeSelection)
}

// SetBackgroundImage attaches a new image with default layout.
func (s *Store) SetBackgroundImage(dataURL string) {
	if dataURL == "" {
		return
	}
	s.edit(func(m *document.Map) bool {
		m.Bg.Image = document.NewBackgroundImage(dataURL)
		return true
	})
}

// BackgroundImagePatch holds the image properties to change; nil fields are
// left as they are.
type BackgroundImagePatch struct {
	DataURL *string           `json:"dataURL,omitempty"`
	Opacity *float64          `json:"opacity,omitempty"`
	Scale   *float64          `json:"scale,omitempty"`
	OffsetX *float64          `json:"offsetX,omitempty"`
	OffsetY *float64          `json:"offsetY,omitempty"`
	FitMode *document.FitMode `json:"fitMode,omitempty"`
	Locked  *bool             `json:"locked,omitempty"`
}

// UpdateBackgroundImage merges p into the current image. A locked image
// only accepts opacity and lock changes.
func (s *Store) UpdateBackgroundImage(p BackgroundImagePatch) {
	s.edit(func(m *document.Map) bool {
		img := m.Bg.Image
		if img == nil {
			return false
		}
		if p.Locked != nil {
			img.Locked = *p.Locked
		}
		if p.Opacity != nil {
			img.Opacity = *p.Opacity
		}
		if !img.Locked {
			if p.DataURL != nil && *p.DataURL != "" {
				img.DataURL = *p.DataURL
			}
			if p.Scale != nil {
				img.Scale = *p.Scale
			}
			if p.OffsetX != nil {
				img.OffsetX = *p.OffsetX
			}
			if p.OffsetY != nil {
				img.OffsetY = *p.OffsetY
			}
			if p.FitMode != nil {
				img.FitMode = *p.FitMode
			}
		}
		img.Clamp()
		return true
	})
}

// RemoveBackgroundImage drops the image and keeps the background color.
func (s *Store) RemoveBackgroundImage() {
	s.edit(func(m *document.Map) bool {
		if m.Bg.Image == nil {
			return false
		}
		m.Bg.Image = nil
		return true
	})
}

// SetBackgroundColor changes the canvas fill color.
func (s *Store) SetBackgroundColor(color string) {
	c, ok := document.NormalizeColor(color)
	if !ok {
		return
	}
	s.edit(func(m *document.Map) bool {
		m.Bg.Color = c
		return true
	})
}

// Undo steps back one history entry.
func (s *Store) Undo() {
	if !s.CanUndo() {
		return
	}
	s.EndGesture()
	s.cursor--
	s.afterTravel()
}

// Redo steps forward one history entry.
func (s *Store) Redo() {
	if !s.CanRedo() {
		return
	}
	s.EndGesture()
	s.cursor++
	s.afterTravel()
}

func (s *Store) afterTravel() {
	s.pruneSelection()
	s.saveSession()
	s.notify(ChangeDocument | ChangeSelection)
}

func (s *Store) CanUndo() bool { return s.cursor > 0 }
func (s *Store) CanRedo() bool { return s.cursor < len(s.history)-1 }

// ImportMap replaces the whole history with m.
func (s *Store) ImportMap(m *document.Map) {
	m = m.Clone()
	if m.ID == "" {
		m.ID = typeid.NewMapID()
	}
	s.gesture = gestureNone
	s.history = []*document.Map{m}
	s.cursor = 0
	s.selectedVertices = nil
	s.selectedSegments = nil
	s.hovered = -1
	s.saveSession()
	s.notify(ChangeDocument | ChangeSelection)
}

// Import parses an exchange file and loads it. On error the store is left
// untouched.
func (s *Store) Import(data []byte) error {
	m, err := document.Import(data)
	if err != nil {
		return err
	}
	s.ImportMap(m)
	s.log.Info("map imported", "id", m.ID, "vertexes", len(m.Vertexes), "segments", len(m.Segments))
	return nil
}

// ExportMap returns a copy of the current map.
func (s *Store) ExportMap() *document.Map {
	return s.Map().Clone()
}

// Export renders the current map in the exchange format.
func (s *Store) Export() ([]byte, error) {
	data, err := document.Export(s.Map())
	if err != nil {
		return nil, fmt.Errorf("export map: %w", err)
	}
	return data, nil
}

// NewMap starts an empty map with fresh history.
func (s *Store) NewMap(name string, width, height float64) {
	if !(width > 0) || !(height > 0) {
		return
	}
	s.ImportMap(document.NewMap(typeid.NewMapID(), name, width, height))
}

// SetTool switches the interaction mode and drops any pending vertex
// selection so the segment tool never starts with a stale first endpoint.
func (s *Store) SetTool(t Tool) {
	if !t.Valid() || t == s.tool {
		return
	}
	s.tool = t
	s.selectedVertices = nil
	s.notify(ChangeTool | ChangeSelection)
}

func (s *Store) Tool() Tool { return s.tool }

// SetSegmentColor sets the color given to new segments.
func (s *Store) SetSegmentColor(color string) {
	if c, ok := document.NormalizeColor(color); ok {
		s.segmentColor = c
		s.notify(ChangeTool)
	}
}

// SetCurveType sets the parameterization of new segments.
func (s *Store) SetCurveType(t arc.CurveType) {
	s.curveType = t
	s.notify(ChangeTool)
}

// SetCurveValue sets the curve value of new segments.
func (s *Store) SetCurveValue(v float64) {
	s.curveValue = v
	s.notify(ChangeTool)
}

func (s *Store) SegmentColor() string { return s.segmentColor }

func (s *Store) CurveDefaults() (arc.CurveType, float64) { return s.curveType, s.curveValue }
