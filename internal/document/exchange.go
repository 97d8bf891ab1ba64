package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/haxtrace/haxtrace/backend-go/internal/arc"
)

// ErrInvalidDocument is returned when an exchange file cannot be imported.
var ErrInvalidDocument = errors.New("invalid map document")

// FileExtension is the extension of exported map files.
const FileExtension = ".hbs"

// exchangeMap is the on-disk shape of a map. Segments carry only the
// resolved angle; the parameterization a user edited in is not persisted.
type exchangeMap struct {
	ID       json.RawMessage   `json:"id,omitempty"`
	Name     string            `json:"name"`
	Width    *float64          `json:"width"`
	Height   *float64          `json:"height"`
	Bg       *exchangeBg       `json:"bg,omitempty"`
	Vertexes []Vertex          `json:"vertexes"`
	Segments []exchangeSegment `json:"segments"`

	Discs       json.RawMessage `json:"discs"`
	Goals       json.RawMessage `json:"goals"`
	Planes      json.RawMessage `json:"planes"`
	Joints      json.RawMessage `json:"joints"`
	Traits      json.RawMessage `json:"traits"`
	CanBeStored *bool           `json:"canBeStored"`
}

type exchangeBg struct {
	Color json.RawMessage  `json:"color,omitempty"`
	Image *BackgroundImage `json:"image,omitempty"`
}

type exchangeSegment struct {
	V0    int             `json:"v0"`
	V1    int             `json:"v1"`
	Color json.RawMessage `json:"color,omitempty"`
	Curve float64         `json:"curve,omitempty"`
}

// Import parses an exchange file. Missing extension fields are filled with
// empty defaults. Segment indices are not checked against the vertex list;
// every consumer guards them instead.
func Import(data []byte) (*Map, error) {
	var in exchangeMap
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	switch {
	case in.Vertexes == nil:
		return nil, fmt.Errorf("%w: missing vertexes", ErrInvalidDocument)
	case in.Segments == nil:
		return nil, fmt.Errorf("%w: missing segments", ErrInvalidDocument)
	case in.Width == nil || in.Height == nil:
		return nil, fmt.Errorf("%w: missing width or height", ErrInvalidDocument)
	}

	m := &Map{
		ID:          rawID(in.ID),
		Name:        in.Name,
		Width:       *in.Width,
		Height:      *in.Height,
		Vertexes:    in.Vertexes,
		Segments:    make([]Segment, len(in.Segments)),
		Discs:       orDefault(in.Discs, "[]"),
		Goals:       orDefault(in.Goals, "[]"),
		Planes:      orDefault(in.Planes, "[]"),
		Joints:      orDefault(in.Joints, "[]"),
		Traits:      orDefault(in.Traits, "{}"),
		CanBeStored: in.CanBeStored == nil || *in.CanBeStored,
	}
	if in.Bg != nil {
		m.Bg.Color = rawColor(in.Bg.Color)
		if in.Bg.Image != nil && in.Bg.Image.DataURL != "" {
			img := *in.Bg.Image
			img.Clamp()
			m.Bg.Image = &img
		}
	}
	for i, s := range in.Segments {
		seg := Segment{V0: s.V0, V1: s.V1, Color: rawColor(s.Color)}
		if s.Curve != 0 {
			seg.CurveData = &CurveData{Type: arc.CurveAngle, Value: arc.ClampAngle(s.Curve)}
		}
		m.Segments[i] = seg
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Export writes m in the exchange format. Each segment's curve is the angle
// resolved from its curve data, clamped to ±MaxAngle and omitted when zero.
func Export(m *Map) ([]byte, error) {
	out := exchangeMap{
		ID:          json.RawMessage(strconv.Quote(m.ID)),
		Name:        m.Name,
		Width:       &m.Width,
		Height:      &m.Height,
		Bg:          &exchangeBg{Image: m.Bg.Image},
		Vertexes:    m.Vertexes,
		Segments:    make([]exchangeSegment, len(m.Segments)),
		Discs:       orDefault(m.Discs, "[]"),
		Goals:       orDefault(m.Goals, "[]"),
		Planes:      orDefault(m.Planes, "[]"),
		Joints:      orDefault(m.Joints, "[]"),
		Traits:      orDefault(m.Traits, "{}"),
		CanBeStored: &m.CanBeStored,
	}
	if m.Bg.Color != "" {
		out.Bg.Color = json.RawMessage(strconv.Quote(m.Bg.Color))
	}
	if out.Vertexes == nil {
		out.Vertexes = []Vertex{}
	}
	for i, s := range m.Segments {
		es := exchangeSegment{V0: s.V0, V1: s.V1, Curve: m.SegmentAngle(i)}
		if s.Color != "" {
			es.Color = json.RawMessage(strconv.Quote(s.Color))
		}
		out.Segments[i] = es
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode map: %w", err)
	}
	return buf.Bytes(), nil
}

// SegmentAngle returns the signed angle in degrees that segment i exports
// as. Segments without curve data fall back to their legacy curve value.
func (m *Map) SegmentAngle(i int) float64 {
	if i < 0 || i >= len(m.Segments) {
		return 0
	}
	s := m.Segments[i]
	if s.CurveData == nil {
		return arc.ClampAngle(s.Curve)
	}
	var chord float64
	if a, b, ok := m.Endpoints(i); ok {
		chord = arc.ChordLength(a, b)
	}
	return arc.ClampAngle(arc.ResolveAngle(s.CurveData.Type, s.CurveData.Value, chord))
}

// Validate checks the document-level invariants.
func (m *Map) Validate() error {
	if !(m.Width > 0) || !(m.Height > 0) || math.IsInf(m.Width, 0) || math.IsInf(m.Height, 0) {
		return fmt.Errorf("%w: size %vx%v must be positive", ErrInvalidDocument, m.Width, m.Height)
	}
	for i, v := range m.Vertexes {
		if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
			return fmt.Errorf("%w: vertex %d is not finite", ErrInvalidDocument, i)
		}
	}
	return nil
}

// ExportFileName derives a download name from the map name.
func ExportFileName(name string) string {
	name = strings.Join(strings.Fields(name), "_")
	if name == "" {
		name = "map"
	}
	return name + FileExtension
}

var hexColor = regexp.MustCompile(`^[0-9a-fA-F]{6}$`)

// NormalizeColor strips a leading '#' and upper-cases a 6-digit hex color.
// It reports false for anything else.
func NormalizeColor(s string) (string, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if !hexColor.MatchString(s) {
		return "", false
	}
	return strings.ToUpper(s), true
}

// rawColor accepts a JSON string color and drops any other form.
func rawColor(r json.RawMessage) string {
	var s string
	if len(r) == 0 || json.Unmarshal(r, &s) != nil {
		return ""
	}
	c, _ := NormalizeColor(s)
	return c
}

// rawID accepts a string or numeric id.
func rawID(r json.RawMessage) string {
	var s string
	if json.Unmarshal(r, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(r, &n) == nil {
		return n.String()
	}
	return ""
}

func orDefault(r json.RawMessage, def string) json.RawMessage {
	if len(r) == 0 || string(r) == "null" {
		return json.RawMessage(def)
	}
	return r
}
