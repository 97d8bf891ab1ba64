package engine

import "github.com/haxtrace/haxtrace/backend-go/internal/arc"

// Zoom limits and step.
const (
	MinZoom  = 0.1
	MaxZoom  = 5.0
	ZoomStep = 1.2
)

// Camera maps world coordinates to viewport CSS pixels. World (0,0) sits at
// the viewport center before panning; offsets are in screen pixels and are
// applied after scaling, so panning is 1:1 with pointer motion at any zoom.
type Camera struct {
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Zoom    float64 `json:"zoom"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`

	pan *panState
}

type panState struct {
	startX, startY   float64
	originX, originY float64
}

// NewCamera returns a camera for a viewport of the given CSS size.
func NewCamera(width, height float64) *Camera {
	return &Camera{Zoom: 1, Width: width, Height: height}
}

// Matrix returns the world→screen transform.
func (c *Camera) Matrix() Matrix2D {
	return Translate(c.Width/2+c.OffsetX, c.Height/2+c.OffsetY).Multiply(Scale(c.Zoom, c.Zoom))
}

func (c *Camera) WorldToScreen(x, y float64) (float64, float64) {
	return c.Matrix().TransformPoint(x, y)
}

func (c *Camera) ScreenToWorld(x, y float64) (float64, float64) {
	return c.Matrix().Invert().TransformPoint(x, y)
}

// ScreenPoint converts a world point to screen space.
func (c *Camera) ScreenPoint(p arc.Point) arc.Point {
	x, y := c.WorldToScreen(p.X, p.Y)
	return arc.Pt(x, y)
}

// SetZoom sets the zoom level, clamped to [MinZoom, MaxZoom].
func (c *Camera) SetZoom(z float64) {
	if !(z > 0) {
		return
	}
	c.Zoom = max(MinZoom, min(MaxZoom, z))
}

// ZoomIn and ZoomOut scale about the camera origin, not the pointer.
func (c *Camera) ZoomIn()  { c.SetZoom(c.Zoom * ZoomStep) }
func (c *Camera) ZoomOut() { c.SetZoom(c.Zoom / ZoomStep) }

// ResetView restores zoom 1 and no pan.
func (c *Camera) ResetView() {
	c.Zoom = 1
	c.OffsetX, c.OffsetY = 0, 0
	c.pan = nil
}

// Resize updates the viewport size. Non-positive sizes are ignored.
func (c *Camera) Resize(width, height float64) {
	if width > 0 && height > 0 {
		c.Width, c.Height = width, height
	}
}

func (c *Camera) StartPan(x, y float64) {
	c.pan = &panState{startX: x, startY: y, originX: c.OffsetX, originY: c.OffsetY}
}

// UpdatePan moves the offset by the pointer delta since StartPan.
func (c *Camera) UpdatePan(x, y float64) {
	if c.pan == nil {
		return
	}
	c.OffsetX = c.pan.originX + (x - c.pan.startX)
	c.OffsetY = c.pan.originY + (y - c.pan.startY)
}

func (c *Camera) EndPan()         { c.pan = nil }
func (c *Camera) IsPanning() bool { return c.pan != nil }

// PickThreshold is the hit-test tolerance in world units for a fixed
// screen-pixel tolerance.
func (c *Camera) PickThreshold(pixels float64) float64 {
	return pixels / c.Zoom
}
