package document

import (
	"encoding/json"

	"github.com/haxtrace/haxtrace/backend-go/internal/arc"
)

// DefaultColor is the color of segments created without one.
const DefaultColor = "FFFFFF"

// NewDefaultMap returns the built-in starting map: a small triangle with two
// curved edges, shown on first launch and whenever a stored session cannot
// be read.
func NewDefaultMap() *Map {
	curve := &CurveData{Type: arc.CurveAngle, Value: 90.56402280711765}
	curve2 := *curve
	return &Map{
		ID:     "1",
		Name:   "HaxTrace",
		Width:  420,
		Height: 200,
		Bg:     Background{Color: "718C5A"},
		Vertexes: []Vertex{
			{X: -115, Y: -87.9921875},
			{X: 74, Y: -89.9921875},
			{X: 74, Y: 108.0078125},
		},
		Segments: []Segment{
			{V0: 0, V1: 1},
			{V0: 1, V1: 2},
			{V0: 0, V1: 2, CurveData: curve},
			{V0: 2, V1: 0, CurveData: &curve2},
		},
		Discs:       json.RawMessage(`[]`),
		Goals:       json.RawMessage(`[]`),
		Planes:      json.RawMessage(`[]`),
		Joints:      json.RawMessage(`[]`),
		Traits:      json.RawMessage(`{}`),
		CanBeStored: true,
	}
}

// NewMap returns an empty map of the given size.
func NewMap(id, name string, width, height float64) *Map {
	m := NewDefaultMap()
	m.ID = id
	m.Name = name
	m.Width = width
	m.Height = height
	m.Vertexes = []Vertex{}
	m.Segments = []Segment{}
	return m
}
