package arc

import (
	"math"
)

const (
	// MaxAngle is the largest central angle, in degrees, a segment may sweep.
	// A full circle has no chord-based radius, so the domain stops short of 360.
	MaxAngle = 340.0

	// Epsilon is the magnitude below which a curve value means "straight".
	Epsilon = 0.001
)

// Point is a position in world space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance returns the Euclidean distance between two points.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Arc is a drawable circular arc. Angles are radians in canvas orientation
// (y grows downward), matching the arc primitive of a 2D canvas.
type Arc struct {
	Center        Point   `json:"center"`
	Radius        float64 `json:"radius"`
	StartAngle    float64 `json:"startAngle"`
	EndAngle      float64 `json:"endAngle"`
	Anticlockwise bool    `json:"anticlockwise"`
}

// ChordLength returns the straight-line distance between v0 and v1.
func ChordLength(v0, v1 Point) float64 {
	return v0.Distance(v1)
}

// ClampAngle limits a signed angle in degrees to [-MaxAngle, MaxAngle].
func ClampAngle(deg float64) float64 {
	return math.Max(-MaxAngle, math.Min(MaxAngle, deg))
}

// AngleToRadius converts a signed central angle to a signed radius.
// It returns +Inf when the angle is too small to describe a curve.
func AngleToRadius(angleDeg, chord float64) float64 {
	angleDeg = ClampAngle(angleDeg)
	rad := math.Abs(angleDeg) * math.Pi / 180
	if rad < Epsilon {
		return math.Inf(1)
	}
	r := chord / (2 * math.Sin(rad/2))
	if angleDeg < 0 {
		return -r
	}
	return r
}

// RadiusToAngle converts a signed radius to a signed central angle in degrees.
// Radii that cannot span the chord yield 0. The result is always the minor
// arc, since a radius alone does not distinguish the two arcs of a circle.
func RadiusToAngle(radius, chord float64) float64 {
	abs := math.Abs(radius)
	if radius == 0 || math.IsInf(abs, 0) || math.IsNaN(abs) || abs < chord/2 {
		return 0
	}
	deg := 2 * math.Asin(math.Min(1, chord/(2*abs))) * 180 / math.Pi
	if radius < 0 {
		return -deg
	}
	return deg
}

// SagittaToRadius converts a signed sagitta to a signed radius.
// It returns +Inf for a near-zero sagitta.
func SagittaToRadius(sagitta, chord float64) float64 {
	abs := math.Abs(sagitta)
	if abs < Epsilon {
		return math.Inf(1)
	}
	r := chord*chord/(8*abs) + abs/2
	if sagitta < 0 {
		return -r
	}
	return r
}

// RadiusToSagitta converts a signed radius to the signed sagitta of the
// minor arc it describes.
func RadiusToSagitta(radius, chord float64) float64 {
	abs := math.Abs(radius)
	if radius == 0 || math.IsInf(abs, 0) || math.IsNaN(abs) || abs < chord/2 {
		return 0
	}
	s := abs - math.Sqrt(math.Max(0, abs*abs-chord*chord/4))
	if radius < 0 {
		return -s
	}
	return s
}

// AngleToSagitta converts a signed angle to a signed sagitta. It uses
// s = (chord/2)·tan(θ/4), which agrees with the radius route for minor arcs
// and stays correct past 180° where the radius route folds back.
func AngleToSagitta(angleDeg, chord float64) float64 {
	angleDeg = ClampAngle(angleDeg)
	rad := angleDeg * math.Pi / 180
	if math.Abs(rad) < Epsilon {
		return 0
	}
	return chord / 2 * math.Tan(rad/4)
}

// SagittaToAngle is the inverse of AngleToSagitta, clamped to MaxAngle.
func SagittaToAngle(sagitta, chord float64) float64 {
	if math.Abs(sagitta) < Epsilon || chord < Epsilon {
		return 0
	}
	return ClampAngle(4 * math.Atan(2*sagitta/chord) * 180 / math.Pi)
}

// CalculateCircularArc resolves a curve on the chord v0→v1 into arc geometry.
// It returns nil whenever the segment should be treated as straight:
// coincident endpoints, a near-zero angle, or a near-full circle.
func CalculateCircularArc(v0, v1 Point, curveType CurveType, value float64) *Arc {
	chord := ChordLength(v0, v1)
	if chord < Epsilon {
		return nil
	}

	angleDeg := ClampAngle(ResolveAngle(curveType, value, chord))
	angleRad := angleDeg * math.Pi / 180
	absRad := math.Abs(angleRad)
	if absRad < Epsilon || absRad >= 2*math.Pi-Epsilon {
		return nil
	}

	radius := AngleToRadius(angleDeg, chord)
	if math.IsInf(radius, 0) {
		return nil
	}
	absRadius := math.Abs(radius)
	half := absRad / 2

	mid := Pt((v0.X+v1.X)/2, (v0.Y+v1.Y)/2)
	nx := -(v1.Y - v0.Y) / chord
	ny := (v1.X - v0.X) / chord

	// Past 180° cos(half) turns negative and the center crosses the chord.
	h := absRadius * math.Cos(half)
	if radius < 0 {
		h = -h
	}
	center := Pt(mid.X+nx*h, mid.Y+ny*h)

	return &Arc{
		Center:        center,
		Radius:        absRadius,
		StartAngle:    math.Atan2(v0.Y-center.Y, v0.X-center.X),
		EndAngle:      math.Atan2(v1.Y-center.Y, v1.X-center.X),
		Anticlockwise: angleDeg < 0,
	}
}

// Sweep returns the angular extent of the arc in radians, in [0, 2π),
// walked in the direction given by Anticlockwise.
func (a *Arc) Sweep() float64 {
	if a.Anticlockwise {
		return wrap(a.StartAngle - a.EndAngle)
	}
	return wrap(a.EndAngle - a.StartAngle)
}

// Contains reports whether the direction angle (radians, relative to the
// center) lies within the swept range.
func (a *Arc) Contains(angle float64) bool {
	var d float64
	if a.Anticlockwise {
		d = wrap(a.StartAngle - angle)
	} else {
		d = wrap(angle - a.StartAngle)
	}
	return d <= a.Sweep()
}

// Midpoint returns the point halfway along the arc.
func (a *Arc) Midpoint() Point {
	return PointOnCircularArc(a, 0.5)
}

// PointOnCircularArc returns the point at parameter t∈[0,1] along the arc,
// walking from StartAngle in the flagged direction.
func PointOnCircularArc(a *Arc, t float64) Point {
	sweep := a.Sweep()
	angle := a.StartAngle + t*sweep
	if a.Anticlockwise {
		angle = a.StartAngle - t*sweep
	}
	return Pt(a.Center.X+a.Radius*math.Cos(angle), a.Center.Y+a.Radius*math.Sin(angle))
}

// DistanceToCircularArc returns the distance from p to the arc. Points whose
// direction falls outside the swept range measure to the nearer endpoint.
func DistanceToCircularArc(p Point, a *Arc) float64 {
	toCenter := p.Distance(a.Center)
	angle := math.Atan2(p.Y-a.Center.Y, p.X-a.Center.X)
	if a.Contains(angle) {
		return math.Abs(toCenter - a.Radius)
	}
	start := PointOnCircularArc(a, 0)
	end := PointOnCircularArc(a, 1)
	return math.Min(p.Distance(start), p.Distance(end))
}

// wrap maps an angle difference into [0, 2π).
func wrap(d float64) float64 {
	d = math.Mod(d, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	return d
}
