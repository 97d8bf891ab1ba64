package engine

import (
	"math"
	"slices"

	"github.com/haxtrace/haxtrace/backend-go/internal/arc"
	"github.com/haxtrace/haxtrace/backend-go/internal/document"
	"github.com/haxtrace/haxtrace/backend-go/internal/store"
)

// Styling of the editor canvas.
const (
	DefaultBackground = "#1a1a1a"
	DefaultSegment    = "#ffffff"

	GridColor    = "#333333"
	GridWidth    = 1.0
	MaxGridLines = 2000

	SegmentWidth         = 2.0
	SelectedSegmentWidth = 3.0

	VertexRadius        = 6.0
	VertexFill          = "#ef4444"
	VertexStroke        = "#f87171"
	SelectedVertexFill  = "#3b82f6"
	SelectedVertexLine  = "#60a5fa"
	HoveredVertexFill   = "#6b7280"
	HoveredVertexStroke = "#9ca3af"

	OverlayStroke = "#3b82f6"
	OverlayFill   = "#3b82f61a"
	OverlayWidth  = 2.0

	BackgroundImageID = "background"
)

var gridDash = []float64{5, 5}

// Frame is everything the renderer needs to draw one picture.
type Frame struct {
	Map              *document.Map
	SelectedVertices []int
	SelectedSegments []int
	HoveredVertex    int
	ShowGrid         bool
	GridSize         float64
}

// FrameOf builds a frame from a store snapshot.
func FrameOf(st store.State) Frame {
	return Frame{
		Map:              st.Map,
		SelectedVertices: st.SelectedVertices,
		SelectedSegments: st.SelectedSegments,
		HoveredVertex:    st.HoveredVertex,
		ShowGrid:         st.Prefs.ShowGrid,
		GridSize:         st.Prefs.GridSize,
	}
}

// Renderer owns the camera and the decoded background, and turns frames
// into draw commands. It never modifies the map.
type Renderer struct {
	Camera *Camera

	images  *ImageCache
	overlay *Rect
}

// NewRenderer creates a renderer for a viewport of the given CSS size.
// images may be nil, in which case background images are never drawn.
func NewRenderer(width, height float64, images *ImageCache) *Renderer {
	return &Renderer{Camera: NewCamera(width, height), images: images}
}

// OverlayRect shows a selection rectangle between two screen corners on
// top of the next frames.
func (r *Renderer) OverlayRect(x0, y0, x1, y1 float64) {
	rect := RectFromCorners(x0, y0, x1, y1)
	r.overlay = &rect
}

// ClearOverlay hides the selection rectangle.
func (r *Renderer) ClearOverlay() {
	r.overlay = nil
}

// Compile produces the draw commands for f in painting order: clear,
// background image, grid, segments, vertices, overlay.
func (r *Renderer) Compile(f Frame) []DrawCommand {
	if f.Map == nil {
		return nil
	}
	cmds := []DrawCommand{r.clearCommand(f.Map)}
	if cmd, ok := r.backgroundImageCommand(f.Map); ok {
		cmds = append(cmds, cmd)
	}
	if f.ShowGrid {
		if cmd, ok := r.gridCommand(f.Map, f.GridSize); ok {
			cmds = append(cmds, cmd)
		}
	}
	for i := range f.Map.Segments {
		if cmd, ok := r.segmentCommand(f.Map, i, slices.Contains(f.SelectedSegments, i)); ok {
			cmds = append(cmds, cmd)
		}
	}
	for i, v := range f.Map.Vertexes {
		cmds = append(cmds, r.vertexCommand(i, v, slices.Contains(f.SelectedVertices, i), f.HoveredVertex == i))
	}
	if r.overlay != nil {
		cmds = append(cmds, r.overlayCommand(*r.overlay))
	}
	return cmds
}

func (r *Renderer) clearCommand(m *document.Map) DrawCommand {
	fill := DefaultBackground
	if c, ok := document.NormalizeColor(m.Bg.Color); ok {
		fill = "#" + c
	}
	return DrawCommand{
		Op:     "clear",
		Layer:  LayerBackground,
		Fill:   fill,
		Width:  r.Camera.Width,
		Height: r.Camera.Height,
	}
}

func (r *Renderer) backgroundImageCommand(m *document.Map) (DrawCommand, bool) {
	if r.images == nil {
		return DrawCommand{}, false
	}
	bg := m.Bg.Image
	if bg == nil {
		r.images.Request("")
		return DrawCommand{}, false
	}
	r.images.Request(bg.DataURL)
	if bg.Opacity <= 0 {
		return DrawCommand{}, false
	}
	img, ok := r.images.Get(bg.DataURL)
	if !ok {
		return DrawCommand{}, false
	}
	b := img.Bounds()
	rect, ok := BackgroundRect(bg, float64(b.Dx()), float64(b.Dy()), r.Camera)
	if !ok {
		return DrawCommand{}, false
	}
	return DrawCommand{
		Op:      "image",
		Layer:   LayerImage,
		ImageID: BackgroundImageID,
		Opacity: math.Min(bg.Opacity, 1),
		X:       rect.X,
		Y:       rect.Y,
		Width:   rect.Width,
		Height:  rect.Height,
	}, true
}

// BackgroundRect lays out an image of natural size iw×ih in screen space.
// fit and cover are viewport-relative: the image is scaled to fit inside
// (or cover) the viewport, then by its own scale, centered on the viewport
// center plus its offset in pixels. center keeps the natural size times
// scale and sits on the world point (offsetX, offsetY), so it follows pan
// and zoom like the map does.
func BackgroundRect(img *document.BackgroundImage, iw, ih float64, cam *Camera) (Rect, bool) {
	if iw <= 0 || ih <= 0 {
		return Rect{}, false
	}
	scale := img.Scale
	if scale <= 0 {
		scale = 1
	}

	var w, h, cx, cy float64
	switch img.FitMode {
	case document.FitModeFit, document.FitModeCover:
		k := math.Min(cam.Width/iw, cam.Height/ih)
		if img.FitMode == document.FitModeCover {
			k = math.Max(cam.Width/iw, cam.Height/ih)
		}
		w, h = iw*k*scale, ih*k*scale
		cx, cy = cam.Width/2+img.OffsetX, cam.Height/2+img.OffsetY
	default:
		w, h = iw*scale*cam.Zoom, ih*scale*cam.Zoom
		cx, cy = cam.WorldToScreen(img.OffsetX, img.OffsetY)
	}
	return Rect{X: cx - w/2, Y: cy - h/2, Width: w, Height: h}, true
}

// gridCommand draws dashed lines every size world units, limited to the
// map's bounds, which are centered on the world origin.
func (r *Renderer) gridCommand(m *document.Map, size float64) (DrawCommand, bool) {
	if !(size > 0) {
		return DrawCommand{}, false
	}
	hw, hh := m.Width/2, m.Height/2
	x0, x1 := math.Ceil(-hw/size), math.Floor(hw/size)
	y0, y1 := math.Ceil(-hh/size), math.Floor(hh/size)
	if (x1-x0+1)+(y1-y0+1) > MaxGridLines {
		return DrawCommand{}, false
	}

	cam := r.Camera
	var path []PathCommand
	for k := x0; k <= x1; k++ {
		sx, sy := cam.WorldToScreen(k*size, -hh)
		ex, ey := cam.WorldToScreen(k*size, hh)
		path = append(path, moveTo(sx, sy), lineTo(ex, ey))
	}
	for k := y0; k <= y1; k++ {
		sx, sy := cam.WorldToScreen(-hw, k*size)
		ex, ey := cam.WorldToScreen(hw, k*size)
		path = append(path, moveTo(sx, sy), lineTo(ex, ey))
	}
	if len(path) == 0 {
		return DrawCommand{}, false
	}
	return DrawCommand{
		Op:          "path",
		Layer:       LayerGrid,
		Path:        path,
		Stroke:      GridColor,
		StrokeWidth: GridWidth,
		Dash:        gridDash,
	}, true
}

func (r *Renderer) segmentCommand(m *document.Map, i int, selected bool) (DrawCommand, bool) {
	shape, ok := resolveSegment(m, i)
	if !ok {
		return DrawCommand{}, false
	}
	cam := r.Camera
	a, b := cam.ScreenPoint(shape.a), cam.ScreenPoint(shape.b)

	var path []PathCommand
	switch shape.kind {
	case shapeArc:
		c := cam.ScreenPoint(shape.arc.Center)
		path = []PathCommand{
			moveTo(a.X, a.Y),
			arcTo(c.X, c.Y, shape.arc.Radius*cam.Zoom, shape.arc.StartAngle, shape.arc.EndAngle, shape.arc.Anticlockwise),
		}
	case shapeQuadratic:
		c := cam.ScreenPoint(shape.control)
		path = []PathCommand{moveTo(a.X, a.Y), quadTo(c.X, c.Y, b.X, b.Y)}
	default:
		path = []PathCommand{moveTo(a.X, a.Y), lineTo(b.X, b.Y)}
	}

	stroke := DefaultSegment
	if c, ok := document.NormalizeColor(m.Segments[i].Color); ok {
		stroke = "#" + c
	}
	width := SegmentWidth
	if selected {
		width = SelectedSegmentWidth
	}
	return DrawCommand{
		Op:          "path",
		Layer:       LayerSegments,
		ObjectID:    segmentObjectID(i),
		Path:        path,
		Stroke:      stroke,
		StrokeWidth: width,
	}, true
}

func (r *Renderer) vertexCommand(i int, v document.Vertex, selected, hovered bool) DrawCommand {
	x, y := r.Camera.WorldToScreen(v.X, v.Y)
	cmd := DrawCommand{
		Op:       "path",
		Layer:    LayerVertices,
		ObjectID: vertexObjectID(i),
		Path:     []PathCommand{arcTo(x, y, VertexRadius, 0, 2*math.Pi, false)},
	}
	switch {
	case selected:
		cmd.Fill, cmd.Stroke, cmd.StrokeWidth = SelectedVertexFill, SelectedVertexLine, 2
	case hovered:
		cmd.Fill, cmd.Stroke, cmd.StrokeWidth = HoveredVertexFill, HoveredVertexStroke, 2
	default:
		cmd.Fill, cmd.Stroke, cmd.StrokeWidth = VertexFill, VertexStroke, 1
	}
	return cmd
}

func (r *Renderer) overlayCommand(rect Rect) DrawCommand {
	return DrawCommand{
		Op:    "path",
		Layer: LayerOverlay,
		Path: []PathCommand{
			moveTo(rect.X, rect.Y),
			lineTo(rect.X+rect.Width, rect.Y),
			lineTo(rect.X+rect.Width, rect.Y+rect.Height),
			lineTo(rect.X, rect.Y+rect.Height),
			closePath(),
		},
		Fill:        OverlayFill,
		Stroke:      OverlayStroke,
		StrokeWidth: OverlayWidth,
	}
}

type shapeKind uint8

const (
	shapeLine shapeKind = iota
	shapeArc
	shapeQuadratic
)

// segmentShape is a segment resolved to drawable world geometry. Drawing
// and hit testing share it so they always agree.
type segmentShape struct {
	kind    shapeKind
	a, b    arc.Point
	arc     *arc.Arc
	control arc.Point
}

// resolveSegment picks the geometry for segment i: a circular arc when its
// curve data is realizable, the legacy quadratic when it only has a raw
// curve offset, and a straight line otherwise. Segments whose vertex
// indices do not resolve are skipped.
func resolveSegment(m *document.Map, i int) (segmentShape, bool) {
	a, b, ok := m.Endpoints(i)
	if !ok {
		return segmentShape{}, false
	}
	s := m.Segments[i]
	shape := segmentShape{kind: shapeLine, a: a, b: b}
	switch {
	case s.CurveData != nil:
		if s.CurveData.Straight() {
			break
		}
		if ac := arc.CalculateCircularArc(a, b, s.CurveData.Type, s.CurveData.Value); ac != nil {
			shape.kind, shape.arc = shapeArc, ac
		}
	case s.Curve != 0 && arc.ChordLength(a, b) >= arc.Epsilon:
		shape.kind, shape.control = shapeQuadratic, arc.QuadraticControl(a, b, s.Curve)
	}
	return shape, true
}
