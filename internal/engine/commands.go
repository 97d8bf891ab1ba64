package engine

import (
	"encoding/json"
	"fmt"
)

// DrawCommand represents a single drawing operation for the frontend to execute.
// The frontend receives a list of these and executes them on a Canvas2D context.
// All coordinates are viewport CSS pixels.
type DrawCommand struct {
	Op          string        `json:"op"`                    // Operation: "clear", "image", "path"
	Layer       string        `json:"layer"`                 // Which pass emitted it
	ObjectID    string        `json:"objectId,omitempty"`    // For hit correlation: "vertex:3", "segment:0"
	Path        []PathCommand `json:"path,omitempty"`        // Path data for "path" ops
	Fill        string        `json:"fill,omitempty"`        // Fill color
	Stroke      string        `json:"stroke,omitempty"`      // Stroke color
	StrokeWidth float64       `json:"strokeWidth,omitempty"` // Stroke width
	Dash        []float64     `json:"dash,omitempty"`        // Line dash pattern
	Opacity     float64       `json:"opacity,omitempty"`     // Global alpha; absent means 1
	X           float64       `json:"x,omitempty"`           // Rect for "clear" and "image"
	Y           float64       `json:"y,omitempty"`
	Width       float64       `json:"width,omitempty"`
	Height      float64       `json:"height,omitempty"`
	ImageID     string        `json:"imageId,omitempty"` // Image lookup key
}

// Draw layers in painting order.
const (
	LayerBackground = "background"
	LayerImage      = "image"
	LayerGrid       = "grid"
	LayerSegments   = "segments"
	LayerVertices   = "vertices"
	LayerOverlay    = "overlay"
)

// PathCommand represents a single path segment for rendering.
// Format matches Canvas2D: ["M", x, y], ["L", x, y], ["Q", cx, cy, x, y],
// ["A", cx, cy, r, startAngle, endAngle, anticlockwise], ["Z"].
type PathCommand []interface{}

func moveTo(x, y float64) PathCommand { return PathCommand{"M", x, y} }
func lineTo(x, y float64) PathCommand { return PathCommand{"L", x, y} }
func closePath() PathCommand          { return PathCommand{"Z"} }

func quadTo(cx, cy, x, y float64) PathCommand {
	return PathCommand{"Q", cx, cy, x, y}
}

func arcTo(cx, cy, r, start, end float64, anticlockwise bool) PathCommand {
	return PathCommand{"A", cx, cy, r, start, end, anticlockwise}
}

func vertexObjectID(i int) string  { return fmt.Sprintf("vertex:%d", i) }
func segmentObjectID(i int) string { return fmt.Sprintf("segment:%d", i) }

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	if commands == nil {
		return "[]", nil
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}
