package arc

import "math"

// QuadraticSamples is the number of steps used to approximate distance to a
// legacy quadratic curve.
const QuadraticSamples = 20

// DistanceToSegment returns the distance from p to the line segment a→b.
func DistanceToSegment(p, a, b Point) float64 {
	cx, cy := b.X-a.X, b.Y-a.Y
	lenSq := cx*cx + cy*cy
	if lenSq == 0 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*cx + (p.Y-a.Y)*cy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return p.Distance(Pt(a.X+t*cx, a.Y+t*cy))
}

// QuadraticControl returns the control point of a legacy curved segment:
// the chord midpoint pushed along the chord normal by offset.
func QuadraticControl(v0, v1 Point, offset float64) Point {
	chord := ChordLength(v0, v1)
	mid := Pt((v0.X+v1.X)/2, (v0.Y+v1.Y)/2)
	if chord < Epsilon {
		return mid
	}
	nx := -(v1.Y - v0.Y) / chord
	ny := (v1.X - v0.X) / chord
	return Pt(mid.X+nx*offset, mid.Y+ny*offset)
}

// PointOnQuadratic evaluates the quadratic Bezier p0, c, p1 at t.
func PointOnQuadratic(p0, c, p1 Point, t float64) Point {
	u := 1 - t
	return Pt(
		u*u*p0.X+2*u*t*c.X+t*t*p1.X,
		u*u*p0.Y+2*u*t*c.Y+t*t*p1.Y,
	)
}

// DistanceToQuadratic approximates the distance from p to the quadratic
// Bezier by sampling it at QuadraticSamples steps.
func DistanceToQuadratic(p, p0, c, p1 Point) float64 {
	best := math.Inf(1)
	for i := 0; i <= QuadraticSamples; i++ {
		q := PointOnQuadratic(p0, c, p1, float64(i)/QuadraticSamples)
		best = math.Min(best, p.Distance(q))
	}
	return best
}
