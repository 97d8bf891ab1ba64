package collab

import (
	"encoding/json"

	"github.com/haxtrace/haxtrace/backend-go/internal/arc"
	"github.com/haxtrace/haxtrace/backend-go/internal/engine"
)

type Message struct {
	Type     string          `json:"type"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Server pushes
	TypeFrame = "frame"
	TypeState = "state"

	// Input from the canvas
	TypePointer = "input.pointer"
	TypeWheel   = "input.wheel"
	TypeKey     = "input.key"

	// Viewport
	TypeViewResize = "view.resize"
	TypeViewZoom   = "view.zoom"

	// Editing commands
	TypeToolSet          = "tool.set"
	TypeContextAction    = "context.action"
	TypeCurveDefaults    = "curve.defaults"
	TypeSegmentCurve     = "segment.curve"
	TypeSegmentCurveType = "segment.curveType"
	TypeSegmentColor     = "segment.color"
	TypeBackgroundSet    = "background.set"
	TypeBackgroundUpdate = "background.update"
	TypeBackgroundRemove = "background.remove"
	TypeBackgroundColor  = "background.color"
	TypePrefsUpdate      = "prefs.update"
	TypeHistoryUndo      = "history.undo"
	TypeHistoryRedo      = "history.redo"
	TypeMapNew           = "map.new"
)

// --- Presence ---

// PresencePayload is what peers see of a connection. Selection is not part
// of it: the selection lives in the shared store.
type PresencePayload struct {
	Cursor      *CursorPos `json:"cursor,omitempty"`
	Tool        string     `json:"tool,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
}

// CursorPos is a pointer position in world units.
type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PresenceStatePayload maps client ids to their presence.
type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	ClientID    string `json:"clientId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
}

// --- Connection ---

type WelcomePayload struct {
	ClientID    string `json:"clientId"`
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// --- Input ---

// PointerPayload carries one pointer event. Phase is "down", "move", "up"
// or "leave".
type PointerPayload struct {
	Phase string `json:"phase"`
	engine.PointerEvent
}

type WheelPayload struct {
	DeltaY float64 `json:"deltaY"`
}

type ResizePayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ZoomPayload is "in", "out" or "reset".
type ZoomPayload struct {
	Action string `json:"action"`
}

// --- Editing ---

type ToolPayload struct {
	Tool string `json:"tool"`
}

type ContextActionPayload struct {
	Action string `json:"action"`
}

// CurveDefaultsPayload sets what new segments look like. Nil fields are
// left unchanged.
type CurveDefaultsPayload struct {
	Type  *arc.CurveType `json:"type,omitempty"`
	Value *float64       `json:"value,omitempty"`
	Color *string        `json:"color,omitempty"`
}

type SegmentCurvePayload struct {
	Index int           `json:"index"`
	Type  arc.CurveType `json:"type"`
	Value float64       `json:"value"`
}

type SegmentCurveTypePayload struct {
	Index int           `json:"index"`
	Type  arc.CurveType `json:"type"`
}

type SegmentColorPayload struct {
	Index int    `json:"index"`
	Color string `json:"color"`
}

type BackgroundSetPayload struct {
	DataURL string `json:"dataURL"`
}

type ColorPayload struct {
	Color string `json:"color"`
}

type PrefsPayload struct {
	ShowGrid *bool    `json:"showGrid,omitempty"`
	GridSize *float64 `json:"gridSize,omitempty"`
}

type MapNewPayload struct {
	Name   string  `json:"name"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
