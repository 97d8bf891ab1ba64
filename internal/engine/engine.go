package engine

import (
	"encoding/json"
	"log/slog"
	"math"
	"strings"

	"github.com/haxtrace/haxtrace/backend-go/internal/store"
)

// Pointer buttons, numbered as in DOM mouse events.
const (
	ButtonPrimary   = 0
	ButtonMiddle    = 1
	ButtonSecondary = 2
)

// Modifiers are the keyboard modifiers held during an input event.
type Modifiers struct {
	Shift bool `json:"shift,omitempty"`
	Ctrl  bool `json:"ctrl,omitempty"`
	Meta  bool `json:"meta,omitempty"`
	Alt   bool `json:"alt,omitempty"`
}

// multi reports whether the event asks for additive selection.
func (m Modifiers) multi() bool { return m.Shift || m.Ctrl }

// command reports whether the platform command key is held.
func (m Modifiers) command() bool { return m.Ctrl || m.Meta }

// PointerEvent is a pointer press in viewport CSS pixels.
type PointerEvent struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button"`
	Modifiers
}

// KeyEvent is a key press. InTextInput is set when focus is inside an
// editable field; editing shortcuts are ignored then.
type KeyEvent struct {
	Key         string `json:"key"`
	InTextInput bool   `json:"inTextInput,omitempty"`
	Modifiers
}

// ContextTarget is the object a context menu was opened on.
type ContextTarget struct {
	Kind  string `json:"kind"` // "vertex" or "segment"
	Index int    `json:"index"`
}

// Context menu actions.
const (
	ActionDuplicate = "duplicate"
	ActionDelete    = "delete"
)

type marquee struct {
	startX, startY float64
	curX, curY     float64
}

// Engine is the interaction controller. It turns pointer, wheel and
// keyboard input into store mutations and camera changes, and answers the
// render and hit-test queries of its viewport.
//
// An Engine is not safe for concurrent use; several engines may share one
// store as long as all of them run on the same goroutine.
type Engine struct {
	store    *store.Store
	renderer *Renderer

	dragging int
	marquee  *marquee
	target   *ContextTarget
}

// New creates a controller for s drawing through r.
func New(s *store.Store, r *Renderer) *Engine {
	return &Engine{store: s, renderer: r, dragging: -1}
}

func (e *Engine) Store() *store.Store { return e.store }
func (e *Engine) Renderer() *Renderer { return e.renderer }
func (e *Engine) Camera() *Camera     { return e.renderer.Camera }
func (e *Engine) DraggingVertex() int { return e.dragging }
func (e *Engine) MarqueeActive() bool { return e.marquee != nil }

func (e *Engine) ContextTarget() *ContextTarget {
	if e.target == nil {
		return nil
	}
	t := *e.target
	return &t
}

// --- Input ---

// PointerDown handles a button press.
func (e *Engine) PointerDown(ev PointerEvent) {
	m := e.store.Map()
	vertex, onVertex := e.renderer.VertexAt(m, ev.X, ev.Y)

	switch ev.Button {
	case ButtonSecondary:
		e.target = nil
		if onVertex {
			e.target = &ContextTarget{Kind: "vertex", Index: vertex}
			e.startDrag(vertex)
			return
		}
		if seg, ok := e.renderer.SegmentAt(m, ev.X, ev.Y); ok {
			e.target = &ContextTarget{Kind: "segment", Index: seg}
		}
		return
	case ButtonPrimary:
	default:
		return
	}

	switch e.store.Tool() {
	case store.ToolPan:
		e.renderer.Camera.StartPan(ev.X, ev.Y)

	case store.ToolVertex:
		if onVertex {
			e.store.SelectVertex(vertex, ev.multi())
			if !ev.multi() {
				e.startDrag(vertex)
			}
			return
		}
		if ev.multi() {
			e.marquee = &marquee{startX: ev.X, startY: ev.Y, curX: ev.X, curY: ev.Y}
			e.renderer.OverlayRect(ev.X, ev.Y, ev.X, ev.Y)
			return
		}
		wx, wy := e.renderer.Camera.ScreenToWorld(ev.X, ev.Y)
		e.store.AddVertex(math.Round(wx), math.Round(wy))
		e.store.ClearVertexSelection()

	case store.ToolSegment:
		if onVertex {
			e.store.SelectVertex(vertex, false)
			return
		}
		if seg, ok := e.renderer.SegmentAt(m, ev.X, ev.Y); ok {
			e.store.SelectSegment(seg, ev.multi())
		} else if !ev.multi() {
			e.store.ClearSegmentSelection()
		}
	}
}

// PointerMove handles pointer motion. Exactly one of marquee, drag, pan or
// hover is updated, in that priority.
func (e *Engine) PointerMove(x, y float64) {
	// Undo, redo or an import elsewhere may have closed the drag's gesture.
	if e.dragging >= 0 && !e.store.InGesture() {
		e.dragging = -1
	}
	switch {
	case e.marquee != nil:
		e.marquee.curX, e.marquee.curY = x, y
		e.renderer.OverlayRect(e.marquee.startX, e.marquee.startY, x, y)
	case e.dragging >= 0:
		wx, wy := e.renderer.Camera.ScreenToWorld(x, y)
		e.store.UpdateVertex(e.dragging, math.Round(wx), math.Round(wy))
	case e.renderer.Camera.IsPanning():
		e.renderer.Camera.UpdatePan(x, y)
	default:
		i, ok := e.renderer.VertexAt(e.store.Map(), x, y)
		if !ok {
			i = -1
		}
		e.store.SetHoveredVertex(i)
	}
}

// PointerUp finishes whatever gesture is in progress.
func (e *Engine) PointerUp() {
	if mq := e.marquee; mq != nil {
		e.marquee = nil
		e.renderer.ClearOverlay()
		r := RectFromCorners(mq.startX, mq.startY, mq.curX, mq.curY)
		cam := e.renderer.Camera
		x0, y0 := cam.ScreenToWorld(r.X, r.Y)
		x1, y1 := cam.ScreenToWorld(r.X+r.Width, r.Y+r.Height)
		e.store.SelectVerticesInRect(x0, y0, x1, y1, true)
		return
	}
	e.endDrag()
	e.renderer.Camera.EndPan()
}

// PointerLeave is treated as a release so no gesture outlives the pointer.
func (e *Engine) PointerLeave() {
	e.PointerUp()
}

// Wheel zooms in for upward scrolls and out otherwise.
func (e *Engine) Wheel(deltaY float64) {
	if deltaY < 0 {
		e.renderer.Camera.ZoomIn()
	} else {
		e.renderer.Camera.ZoomOut()
	}
}

// KeyDown applies editing shortcuts and reports whether the key was used.
func (e *Engine) KeyDown(ev KeyEvent) bool {
	if ev.InTextInput {
		return false
	}
	key := strings.ToLower(ev.Key)

	if ev.command() {
		switch {
		case key == "z" && !ev.Shift:
			e.Undo()
		case key == "y" || key == "z":
			e.Redo()
		default:
			return false
		}
		return true
	}

	switch key {
	case "delete", "backspace":
		e.endDrag()
		if len(e.store.SelectedVertices()) > 0 {
			e.store.DeleteSelectedVertices()
		} else {
			e.store.DeleteSelectedSegments()
		}
	case "v":
		e.store.SetTool(store.ToolVertex)
	case "s":
		e.store.SetTool(store.ToolSegment)
	case "h":
		e.store.SetTool(store.ToolPan)
	default:
		return false
	}
	return true
}

// ContextAction applies a context menu action to the current target and
// clears it. It reports whether anything was done.
func (e *Engine) ContextAction(action string) bool {
	t := e.target
	e.target = nil
	if t == nil {
		return false
	}
	e.endDrag()

	switch {
	case t.Kind == "vertex" && action == ActionDuplicate:
		e.store.DuplicateVertex(t.Index)
	case t.Kind == "vertex" && action == ActionDelete:
		e.store.DeleteVertex(t.Index)
	case t.Kind == "segment" && action == ActionDuplicate:
		e.store.DuplicateSegment(t.Index)
	case t.Kind == "segment" && action == ActionDelete:
		e.store.SelectSegment(t.Index, false)
		e.store.DeleteSelectedSegments()
	default:
		slog.Debug("ignoring context action", "action", action, "kind", t.Kind)
		return false
	}
	return true
}

// Undo ends any drag and steps the store back.
func (e *Engine) Undo() {
	e.endDrag()
	e.store.Undo()
}

func (e *Engine) Redo() {
	e.endDrag()
	e.store.Redo()
}

// NewMap ends any drag and starts an empty map.
func (e *Engine) NewMap(name string, width, height float64) {
	e.endDrag()
	e.store.NewMap(name, width, height)
}

// Import ends any drag and loads an exchange file.
func (e *Engine) Import(data []byte) error {
	e.endDrag()
	return e.store.Import(data)
}

// SetTool switches tools, abandoning any gesture of the previous tool.
func (e *Engine) SetTool(t store.Tool) {
	e.cancelGestures()
	e.store.SetTool(t)
}

// Resize updates the viewport size.
func (e *Engine) Resize(width, height float64) {
	e.renderer.Camera.Resize(width, height)
}

func (e *Engine) startDrag(i int) {
	e.endDrag()
	e.dragging = i
	e.store.BeginGesture()
}

func (e *Engine) endDrag() {
	if e.dragging < 0 {
		return
	}
	e.dragging = -1
	e.store.EndGesture()
}

func (e *Engine) cancelGestures() {
	e.endDrag()
	e.marquee = nil
	e.renderer.ClearOverlay()
	e.renderer.Camera.EndPan()
}

// --- Queries ---

// Frame returns the frame for the current store state.
func (e *Engine) Frame() Frame {
	return FrameOf(e.store.Snapshot())
}

// Commands compiles the current frame.
func (e *Engine) Commands() []DrawCommand {
	return e.renderer.Compile(e.Frame())
}

// Render returns the current frame's draw commands as JSON.
func (e *Engine) Render() string {
	result, err := DrawCommandsToJSON(e.Commands())
	if err != nil {
		slog.Warn("failed to encode draw commands", "error", err)
	}
	return result
}

// HitTest returns the object under the screen point as JSON.
func (e *Engine) HitTest(x, y float64) string {
	data, _ := json.Marshal(e.renderer.HitTest(e.store.Map(), x, y))
	return string(data)
}

// View is the store state plus this controller's viewport.
type View struct {
	store.State
	Camera         *Camera        `json:"camera"`
	ContextTarget  *ContextTarget `json:"contextTarget"`
	DraggingVertex int            `json:"draggingVertex"`
}

// View captures the state a client needs to draw its chrome.
func (e *Engine) View() View {
	return View{
		State:          e.store.Snapshot(),
		Camera:         e.renderer.Camera,
		ContextTarget:  e.ContextTarget(),
		DraggingVertex: e.dragging,
	}
}

// State returns View as JSON.
func (e *Engine) State() string {
	data, err := json.Marshal(e.View())
	if err != nil {
		slog.Warn("failed to encode state", "error", err)
		return "{}"
	}
	return string(data)
}
