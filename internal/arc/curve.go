package arc

import (
	"fmt"
	"math"
)

// CurveType selects how a segment's curve value is interpreted.
type CurveType uint8

const (
	// CurveAngle is the signed central angle in degrees.
	CurveAngle CurveType = iota
	// CurveRadius is the signed circle radius in world units.
	CurveRadius
	// CurveSagitta is the signed height of the arc above the chord midpoint.
	CurveSagitta
)

// CurveTypes lists every parameterization in display order.
var CurveTypes = []CurveType{CurveAngle, CurveRadius, CurveSagitta}

func (t CurveType) String() string {
	switch t {
	case CurveAngle:
		return "angle"
	case CurveRadius:
		return "radius"
	case CurveSagitta:
		return "sagitta"
	}
	return fmt.Sprintf("CurveType(%d)", uint8(t))
}

// ParseCurveType parses the wire name of a curve type.
func ParseCurveType(s string) (CurveType, error) {
	for _, t := range CurveTypes {
		if t.String() == s {
			return t, nil
		}
	}
	return CurveAngle, fmt.Errorf("unknown curve type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t CurveType) MarshalText() ([]byte, error) {
	switch t {
	case CurveAngle, CurveRadius, CurveSagitta:
		return []byte(t.String()), nil
	}
	return nil, fmt.Errorf("unknown curve type %d", uint8(t))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *CurveType) UnmarshalText(b []byte) error {
	parsed, err := ParseCurveType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ResolveAngle converts a curve value of any type into signed degrees.
// This and FromAngle are the only places that switch over CurveType.
func ResolveAngle(t CurveType, value, chord float64) float64 {
	if math.Abs(value) < Epsilon {
		return 0
	}
	switch t {
	case CurveAngle:
		return ClampAngle(value)
	case CurveRadius:
		return RadiusToAngle(value, chord)
	case CurveSagitta:
		return SagittaToAngle(value, chord)
	}
	panic(fmt.Sprintf("arc: unhandled curve type %v", t))
}

// FromAngle expresses a signed angle in degrees as a value of type t.
// Degenerate angles map to 0, never to an infinite radius.
func FromAngle(t CurveType, angleDeg, chord float64) float64 {
	angleDeg = ClampAngle(angleDeg)
	if math.Abs(angleDeg*math.Pi/180) < Epsilon {
		return 0
	}
	switch t {
	case CurveAngle:
		return angleDeg
	case CurveRadius:
		r := AngleToRadius(angleDeg, chord)
		if math.IsInf(r, 0) {
			return 0
		}
		return r
	case CurveSagitta:
		return AngleToSagitta(angleDeg, chord)
	}
	panic(fmt.Sprintf("arc: unhandled curve type %v", t))
}

// Convert re-expresses a curve value in another parameterization so the
// resulting arc stays on the same circle.
func Convert(from CurveType, value, chord float64, to CurveType) float64 {
	if from == to {
		return value
	}
	return FromAngle(to, ResolveAngle(from, value, chord), chord)
}
