package engine

import (
	"github.com/haxtrace/haxtrace/backend-go/internal/arc"
	"github.com/haxtrace/haxtrace/backend-go/internal/document"
)

// HitTolerance is the pick radius in screen pixels.
const HitTolerance = 10.0

// VertexAt returns the topmost vertex within HitTolerance of the screen
// point. Later vertices are drawn on top, so they are tested first.
func (r *Renderer) VertexAt(m *document.Map, sx, sy float64) (int, bool) {
	if m == nil {
		return -1, false
	}
	wx, wy := r.Camera.ScreenToWorld(sx, sy)
	p := arc.Pt(wx, wy)
	threshold := r.Camera.PickThreshold(HitTolerance)
	for i := len(m.Vertexes) - 1; i >= 0; i-- {
		if m.Vertexes[i].Point().Distance(p) <= threshold {
			return i, true
		}
	}
	return -1, false
}

// SegmentAt returns the topmost segment within HitTolerance of the screen
// point, measured against the same geometry the renderer draws.
func (r *Renderer) SegmentAt(m *document.Map, sx, sy float64) (int, bool) {
	if m == nil {
		return -1, false
	}
	wx, wy := r.Camera.ScreenToWorld(sx, sy)
	p := arc.Pt(wx, wy)
	threshold := r.Camera.PickThreshold(HitTolerance)
	for i := len(m.Segments) - 1; i >= 0; i-- {
		shape, ok := resolveSegment(m, i)
		if !ok {
			continue
		}
		if shapeDistance(p, shape) <= threshold {
			return i, true
		}
	}
	return -1, false
}

func shapeDistance(p arc.Point, s segmentShape) float64 {
	switch s.kind {
	case shapeArc:
		return arc.DistanceToCircularArc(p, s.arc)
	case shapeQuadratic:
		return arc.DistanceToQuadratic(p, s.a, s.control, s.b)
	default:
		return arc.DistanceToSegment(p, s.a, s.b)
	}
}

// Hit is the result of a hit test, topmost first: a vertex wins over a
// segment under it.
type Hit struct {
	Kind  string `json:"kind"` // "vertex", "segment" or ""
	Index int    `json:"index"`
}

// HitTest resolves the screen point to the object a click would act on.
func (r *Renderer) HitTest(m *document.Map, sx, sy float64) Hit {
	if i, ok := r.VertexAt(m, sx, sy); ok {
		return Hit{Kind: "vertex", Index: i}
	}
	if i, ok := r.SegmentAt(m, sx, sy); ok {
		return Hit{Kind: "segment", Index: i}
	}
	return Hit{Index: -1}
}
