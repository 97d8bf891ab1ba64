package document

import (
	"encoding/json"
	"math"

	"github.com/haxtrace/haxtrace/backend-go/internal/arc"
)

// Map is the editable document: a vertex/segment graph plus background.
// The extension fields belong to the game format and are carried through
// untouched.
type Map struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`
	Bg       Background `json:"bg"`
	Vertexes []Vertex   `json:"vertexes"`
	Segments []Segment  `json:"segments"`

	Discs       json.RawMessage `json:"discs"`
	Goals       json.RawMessage `json:"goals"`
	Planes      json.RawMessage `json:"planes"`
	Joints      json.RawMessage `json:"joints"`
	Traits      json.RawMessage `json:"traits"`
	CanBeStored bool            `json:"canBeStored"`
}

// Vertex is a point in world space, identified only by its index.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point converts the vertex for the geometry functions.
func (v Vertex) Point() arc.Point {
	return arc.Pt(v.X, v.Y)
}

// Segment connects two vertices by index. A nil CurveData or a zero value
// means straight, unless the segment only carries a legacy Curve offset.
type Segment struct {
	V0        int        `json:"v0"`
	V1        int        `json:"v1"`
	Color     string     `json:"color,omitempty"`
	Curve     float64    `json:"curve,omitempty"`
	CurveData *CurveData `json:"curveData,omitempty"`
}

// CurveData is a curve in one of the three parameterizations.
type CurveData struct {
	Type  arc.CurveType `json:"type"`
	Value float64       `json:"value"`
}

// Straight reports whether the curve describes no bend at all.
func (c *CurveData) Straight() bool {
	return c == nil || c.Value == 0
}

// Background is the canvas fill and optional reference image.
type Background struct {
	Color string           `json:"color"`
	Image *BackgroundImage `json:"image,omitempty"`
}

// FitMode controls how a background image is laid out in the viewport.
type FitMode string

const (
	FitModeFit    FitMode = "fit"
	FitModeCover  FitMode = "cover"
	FitModeCenter FitMode = "center"
)

// Valid reports whether m is one of the known fit modes.
func (m FitMode) Valid() bool {
	switch m {
	case FitModeFit, FitModeCover, FitModeCenter:
		return true
	}
	return false
}

// Limits on background image properties.
const (
	MinImageScale = 0.1
	MaxImageScale = 5.0
)

// BackgroundImage is a reference image laid under the map.
type BackgroundImage struct {
	DataURL string  `json:"dataURL"`
	Opacity float64 `json:"opacity"`
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	FitMode FitMode `json:"fitMode"`
	Locked  bool    `json:"locked"`
}

// NewBackgroundImage returns an image with the default layout.
func NewBackgroundImage(dataURL string) *BackgroundImage {
	return &BackgroundImage{
		DataURL: dataURL,
		Opacity: 0.5,
		Scale:   1,
		FitMode: FitModeCenter,
	}
}

// Clamp forces every property into its allowed range.
func (b *BackgroundImage) Clamp() {
	b.Opacity = clamp(b.Opacity, 0, 1)
	b.Scale = clamp(b.Scale, MinImageScale, MaxImageScale)
	if math.IsNaN(b.OffsetX) || math.IsInf(b.OffsetX, 0) {
		b.OffsetX = 0
	}
	if math.IsNaN(b.OffsetY) || math.IsInf(b.OffsetY, 0) {
		b.OffsetY = 0
	}
	if !b.FitMode.Valid() {
		b.FitMode = FitModeCenter
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Vertex returns the vertex at i, or false when i is out of range.
func (m *Map) Vertex(i int) (Vertex, bool) {
	if i < 0 || i >= len(m.Vertexes) {
		return Vertex{}, false
	}
	return m.Vertexes[i], true
}

// Endpoints returns the endpoints of segment i. It reports false for an
// out-of-range segment or one whose vertex indices do not resolve.
func (m *Map) Endpoints(i int) (arc.Point, arc.Point, bool) {
	if i < 0 || i >= len(m.Segments) {
		return arc.Point{}, arc.Point{}, false
	}
	s := m.Segments[i]
	a, ok := m.Vertex(s.V0)
	if !ok {
		return arc.Point{}, arc.Point{}, false
	}
	b, ok := m.Vertex(s.V1)
	if !ok {
		return arc.Point{}, arc.Point{}, false
	}
	return a.Point(), b.Point(), true
}

// Clone returns a deep copy that shares no mutable state with m.
func (m *Map) Clone() *Map {
	c := *m
	c.Vertexes = append([]Vertex(nil), m.Vertexes...)
	c.Segments = make([]Segment, len(m.Segments))
	for i, s := range m.Segments {
		if s.CurveData != nil {
			cd := *s.CurveData
			s.CurveData = &cd
		}
		c.Segments[i] = s
	}
	if m.Bg.Image != nil {
		img := *m.Bg.Image
		c.Bg.Image = &img
	}
	c.Discs = cloneRaw(m.Discs)
	c.Goals = cloneRaw(m.Goals)
	c.Planes = cloneRaw(m.Planes)
	c.Joints = cloneRaw(m.Joints)
	c.Traits = cloneRaw(m.Traits)
	return &c
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage(nil), r...)
}

// RemoveVertex returns a copy of m without vertex i. Segments touching i are
// dropped and the rest have their indices above i shifted down. The second
// result maps each old segment index to its new index, or -1 when removed.
// An out-of-range i returns an unchanged copy.
func (m *Map) RemoveVertex(i int) (*Map, []int) {
	c := m.Clone()
	remap := make([]int, len(m.Segments))
	if i < 0 || i >= len(m.Vertexes) {
		for k := range remap {
			remap[k] = k
		}
		return c, remap
	}

	c.Vertexes = append(c.Vertexes[:i:i], c.Vertexes[i+1:]...)
	kept := c.Segments[:0]
	for k, s := range c.Segments {
		if s.V0 == i || s.V1 == i {
			remap[k] = -1
			continue
		}
		if s.V0 > i {
			s.V0--
		}
		if s.V1 > i {
			s.V1--
		}
		remap[k] = len(kept)
		kept = append(kept, s)
	}
	c.Segments = kept
	return c, remap
}

// RemoveSegments returns a copy of m without the segments in drop.
func (m *Map) RemoveSegments(drop map[int]bool) *Map {
	c := m.Clone()
	kept := c.Segments[:0]
	for k, s := range c.Segments {
		if !drop[k] {
			kept = append(kept, s)
		}
	}
	c.Segments = kept
	return c
}
