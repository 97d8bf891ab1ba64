// Package arc converts between the three ways a curved segment can be
// described (central angle, radius, sagitta) and turns a curve on a chord
// into circular-arc geometry for drawing and picking.
//
// Every degenerate input (coincident endpoints, near-zero curve, near-full
// circle) resolves to "straight" rather than an error, so callers can always
// draw something.
package arc
