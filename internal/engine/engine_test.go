package engine

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/haxtrace/haxtrace/backend-go/internal/document"
	"github.com/haxtrace/haxtrace/backend-go/internal/store"
)

// newTestEngine returns an engine over an empty 400x400 map in a 400x400
// viewport, so world (0,0) is at screen (200,200) and one world unit is one
// pixel.
func newTestEngine(t *testing.T, coalesce bool, verts ...document.Vertex) *Engine {
	t.Helper()
	s := store.New(store.Options{
		CoalesceDrag: coalesce,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	s.NewMap("test", 400, 400)
	for _, v := range verts {
		s.AddVertex(v.X, v.Y)
	}
	return New(s, NewRenderer(400, 400, nil))
}

func click(e *Engine, x, y float64, mods Modifiers) {
	e.PointerDown(PointerEvent{X: x, Y: y, Button: ButtonPrimary, Modifiers: mods})
	e.PointerUp()
}

func TestClickEmptyAddsRoundedVertex(t *testing.T) {
	e := newTestEngine(t, true, document.Vertex{X: 100, Y: 100})
	e.Store().SelectVertex(0, false)

	click(e, 210.4, 190.6, Modifiers{})

	m := e.Store().Map()
	if len(m.Vertexes) != 2 {
		t.Fatalf("vertexes = %d, want 2", len(m.Vertexes))
	}
	if diff := cmp.Diff(document.Vertex{X: 10, Y: -9}, m.Vertexes[1]); diff != "" {
		t.Errorf("new vertex mismatch (-want +got):\n%s", diff)
	}
	if len(e.Store().SelectedVertices()) != 0 {
		t.Error("vertex selection not cleared")
	}
}

func TestClickEmptyRespectsZoomAndPan(t *testing.T) {
	e := newTestEngine(t, true)
	e.Camera().SetZoom(2)
	e.Camera().OffsetX = 40

	click(e, 340, 100, Modifiers{})

	if got := e.Store().Map().Vertexes[0]; got != (document.Vertex{X: 50, Y: -50}) {
		t.Errorf("vertex = %+v, want (50, -50)", got)
	}
}

func TestClickVertexSelects(t *testing.T) {
	e := newTestEngine(t, true, document.Vertex{X: 0, Y: 0}, document.Vertex{X: 100, Y: 0})

	click(e, 200, 200, Modifiers{})
	click(e, 300, 200, Modifiers{Shift: true})
	if diff := cmp.Diff([]int{0, 1}, e.Store().SelectedVertices()); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}

	click(e, 300, 200, Modifiers{Ctrl: true})
	if diff := cmp.Diff([]int{0}, e.Store().SelectedVertices()); diff != "" {
		t.Errorf("toggle mismatch (-want +got):\n%s", diff)
	}
	if n := len(e.Store().Map().Vertexes); n != 2 {
		t.Errorf("clicking vertices added vertexes: %d", n)
	}
}

func TestDragHistory(t *testing.T) {
	tests := []struct {
		name     string
		coalesce bool
		want     int
	}{
		{name: "coalesced", coalesce: true, want: 3},
		{name: "per move", coalesce: false, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.coalesce, document.Vertex{X: 0, Y: 0})

			e.PointerDown(PointerEvent{X: 200, Y: 200})
			if e.DraggingVertex() != 0 {
				t.Fatalf("dragging = %d, want 0", e.DraggingVertex())
			}
			e.PointerMove(250, 200)
			e.PointerMove(260, 210.2)
			e.PointerMove(270.7, 230)
			e.PointerUp()

			st := e.Store().Snapshot()
			if got := st.Map.Vertexes[0]; got != (document.Vertex{X: 71, Y: 30}) {
				t.Errorf("vertex = %+v, want (71, 30)", got)
			}
			if st.HistoryLength != tt.want {
				t.Errorf("history length = %d, want %d", st.HistoryLength, tt.want)
			}
			if e.Store().InGesture() {
				t.Error("gesture still open after pointer up")
			}

			e.Store().Undo()
			if tt.coalesce && e.Store().Map().Vertexes[0] != (document.Vertex{}) {
				t.Error("one undo should revert the whole drag")
			}
		})
	}
}

func TestModifiedClickDoesNotDrag(t *testing.T) {
	e := newTestEngine(t, true, document.Vertex{X: 0, Y: 0})
	e.PointerDown(PointerEvent{X: 200, Y: 200, Modifiers: Modifiers{Shift: true}})
	e.PointerMove(260, 260)
	e.PointerUp()
	if got := e.Store().Map().Vertexes[0]; got != (document.Vertex{}) {
		t.Errorf("vertex moved to %+v", got)
	}
}

func TestMarqueeSelection(t *testing.T) {
	e := newTestEngine(t, true,
		document.Vertex{X: 0, Y: 0},
		document.Vertex{X: 50, Y: 50},
		document.Vertex{X: 150, Y: 150},
	)
	e.Store().SelectVertex(2, false)

	e.PointerDown(PointerEvent{X: 260, Y: 260, Modifiers: Modifiers{Shift: true}})
	e.PointerMove(190, 190)
	if !e.MarqueeActive() {
		t.Fatal("marquee not started")
	}
	cmds := e.Commands()
	if last := cmds[len(cmds)-1]; last.Layer != LayerOverlay {
		t.Errorf("last layer = %q, want overlay", last.Layer)
	}
	e.PointerUp()

	if diff := cmp.Diff([]int{2, 0, 1}, e.Store().SelectedVertices()); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}
	if n := len(e.Store().Map().Vertexes); n != 3 {
		t.Errorf("marquee added vertexes: %d", n)
	}
	cmds = e.Commands()
	if last := cmds[len(cmds)-1]; last.Layer == LayerOverlay {
		t.Error("overlay left behind after marquee")
	}
}

func TestSegmentToolCreatesSegment(t *testing.T) {
	e := newTestEngine(t, true, document.Vertex{X: 0, Y: 0}, document.Vertex{X: 100, Y: 0})
	e.SetTool(store.ToolSegment)
	e.Store().SetSegmentColor("00ff00")

	click(e, 200, 200, Modifiers{})
	if diff := cmp.Diff([]int{0}, e.Store().SelectedVertices()); diff != "" {
		t.Errorf("buffer mismatch (-want +got):\n%s", diff)
	}
	click(e, 200, 200, Modifiers{})
	click(e, 300, 200, Modifiers{})

	m := e.Store().Map()
	if len(m.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(m.Segments))
	}
	want := document.Segment{V0: 0, V1: 1, Color: "00FF00"}
	if diff := cmp.Diff(want, m.Segments[0]); diff != "" {
		t.Errorf("segment mismatch (-want +got):\n%s", diff)
	}
	if len(e.Store().SelectedVertices()) != 0 {
		t.Error("buffer not cleared after segment creation")
	}
}

func TestSegmentToolSelectsSegments(t *testing.T) {
	e := newTestEngine(t, true, document.Vertex{X: 0, Y: 0}, document.Vertex{X: 100, Y: 0}, document.Vertex{X: 0, Y: 100})
	e.Store().AddSegment(0, 1, "")
	e.Store().AddSegment(0, 2, "")
	e.SetTool(store.ToolSegment)

	click(e, 250, 203, Modifiers{})
	click(e, 203, 250, Modifiers{Shift: true})
	if diff := cmp.Diff([]int{0, 1}, e.Store().SelectedSegments()); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}

	click(e, 350, 350, Modifiers{Ctrl: true})
	if len(e.Store().SelectedSegments()) != 2 {
		t.Error("modified click on empty space cleared the selection")
	}
	click(e, 350, 350, Modifiers{})
	if len(e.Store().SelectedSegments()) != 0 {
		t.Error("plain click on empty space kept the selection")
	}
}

func TestPanTool(t *testing.T) {
	e := newTestEngine(t, true, document.Vertex{X: 0, Y: 0})
	e.SetTool(store.ToolPan)
	e.Camera().SetZoom(2)

	e.PointerDown(PointerEvent{X: 200, Y: 200})
	e.PointerMove(230, 240)
	e.PointerUp()
	e.PointerMove(300, 300)

	if e.Camera().OffsetX != 30 || e.Camera().OffsetY != 40 {
		t.Errorf("offset = (%v, %v), want (30, 40)", e.Camera().OffsetX, e.Camera().OffsetY)
	}
	if len(e.Store().Map().Vertexes) != 1 || e.Store().Map().Vertexes[0] != (document.Vertex{}) {
		t.Error("pan edited the map")
	}
}

func TestRightClickVertex(t *testing.T) {
	e := newTestEngine(t, true, document.Vertex{X: 0, Y: 0})
	e.SetTool(store.ToolPan)

	e.PointerDown(PointerEvent{X: 200, Y: 200, Button: ButtonSecondary})
	if diff := cmp.Diff(&ContextTarget{Kind: "vertex", Index: 0}, e.ContextTarget()); diff != "" {
		t.Errorf("target mismatch (-want +got):\n%s", diff)
	}
	e.PointerMove(220, 180)
	e.PointerUp()
	if got := e.Store().Map().Vertexes[0]; got != (document.Vertex{X: 20, Y: -20}) {
		t.Errorf("right drag moved vertex to %+v", got)
	}
	if e.Camera().OffsetX != 0 {
		t.Error("right drag panned the camera")
	}

	if !e.ContextAction(ActionDuplicate) {
		t.Fatal("duplicate not applied")
	}
	if got := e.Store().Map().Vertexes[1]; got != (document.Vertex{X: 40, Y: 0}) {
		t.Errorf("duplicate = %+v, want (40, 0)", got)
	}
	if e.ContextTarget() != nil {
		t.Error("target not cleared after action")
	}
	if e.ContextAction(ActionDelete) {
		t.Error("action applied without a target")
	}
}

func TestRightClickSegment(t *testing.T) {
	e := newTestEngine(t, true, document.Vertex{X: 0, Y: 0}, document.Vertex{X: 100, Y: 0})
	e.Store().AddSegment(0, 1, "")
	e.Store().AddSegment(0, 1, "")

	e.PointerDown(PointerEvent{X: 250, Y: 200, Button: ButtonSecondary})
	e.PointerUp()
	if diff := cmp.Diff(&ContextTarget{Kind: "segment", Index: 1}, e.ContextTarget()); diff != "" {
		t.Fatalf("target mismatch (-want +got):\n%s", diff)
	}
	e.ContextAction(ActionDelete)
	if n := len(e.Store().Map().Segments); n != 1 {
		t.Errorf("segments = %d, want 1", n)
	}

	e.PointerDown(PointerEvent{X: 250, Y: 350, Button: ButtonSecondary})
	if e.ContextTarget() != nil {
		t.Error("right click on empty space kept a target")
	}
}

func TestHover(t *testing.T) {
	e := newTestEngine(t, true, document.Vertex{X: 0, Y: 0})
	e.PointerMove(205, 200)
	if e.Store().HoveredVertex() != 0 {
		t.Errorf("hovered = %d, want 0", e.Store().HoveredVertex())
	}
	e.PointerMove(300, 300)
	if e.Store().HoveredVertex() != -1 {
		t.Errorf("hovered = %d, want -1", e.Store().HoveredVertex())
	}
}

func TestWheel(t *testing.T) {
	e := newTestEngine(t, true)
	e.Wheel(-100)
	if !approxEqual(e.Camera().Zoom, 1.2, 1e-12) {
		t.Errorf("zoom = %v, want 1.2", e.Camera().Zoom)
	}
	e.Wheel(100)
	e.Wheel(100)
	if !approxEqual(e.Camera().Zoom, 1/1.2, 1e-12) {
		t.Errorf("zoom = %v, want %v", e.Camera().Zoom, 1/1.2)
	}
}

func TestKeyboard(t *testing.T) {
	e := newTestEngine(t, true, document.Vertex{X: 0, Y: 0}, document.Vertex{X: 100, Y: 0}, document.Vertex{X: 0, Y: 100})
	s := e.Store()
	s.AddSegment(0, 1, "")
	s.AddSegment(1, 2, "")
	s.SelectSegment(0, false)
	s.SelectVertex(2, false)

	if e.KeyDown(KeyEvent{Key: "Delete", InTextInput: true}) {
		t.Error("delete handled inside a text input")
	}
	if n := len(s.Map().Vertexes); n != 3 {
		t.Fatalf("vertexes = %d after suppressed delete", n)
	}

	if !e.KeyDown(KeyEvent{Key: "Backspace"}) {
		t.Fatal("backspace not handled")
	}
	m := s.Map()
	if len(m.Vertexes) != 2 || len(m.Segments) != 1 {
		t.Fatalf("after delete: %d vertexes, %d segments", len(m.Vertexes), len(m.Segments))
	}
	if diff := cmp.Diff([]int{0}, s.SelectedSegments()); diff != "" {
		t.Errorf("segment selection mismatch (-want +got):\n%s", diff)
	}

	e.KeyDown(KeyEvent{Key: "Delete"})
	if n := len(s.Map().Segments); n != 0 {
		t.Errorf("segments = %d after second delete", n)
	}

	if !e.KeyDown(KeyEvent{Key: "z", Modifiers: Modifiers{Meta: true}}) {
		t.Fatal("undo not handled")
	}
	if n := len(s.Map().Segments); n != 1 {
		t.Errorf("undo: segments = %d, want 1", n)
	}
	e.KeyDown(KeyEvent{Key: "Z", Modifiers: Modifiers{Ctrl: true, Shift: true}})
	if n := len(s.Map().Segments); n != 0 {
		t.Errorf("redo: segments = %d, want 0", n)
	}
	e.KeyDown(KeyEvent{Key: "z", Modifiers: Modifiers{Ctrl: true}})
	e.KeyDown(KeyEvent{Key: "y", Modifiers: Modifiers{Ctrl: true}})
	if n := len(s.Map().Segments); n != 0 {
		t.Errorf("ctrl+y: segments = %d, want 0", n)
	}
	if e.KeyDown(KeyEvent{Key: "z", InTextInput: true, Modifiers: Modifiers{Ctrl: true}}) {
		t.Error("undo handled inside a text input")
	}

	for key, want := range map[string]store.Tool{"s": store.ToolSegment, "H": store.ToolPan, "v": store.ToolVertex} {
		e.KeyDown(KeyEvent{Key: key})
		if s.Tool() != want {
			t.Errorf("key %q: tool = %q, want %q", key, s.Tool(), want)
		}
	}
	if e.KeyDown(KeyEvent{Key: "q"}) {
		t.Error("unbound key reported as handled")
	}
}

func TestDeleteDuringDrag(t *testing.T) {
	e := newTestEngine(t, true, document.Vertex{X: 0, Y: 0})
	e.PointerDown(PointerEvent{X: 200, Y: 200})
	e.KeyDown(KeyEvent{Key: "Delete"})
	e.PointerMove(250, 250)
	e.PointerUp()
	if n := len(e.Store().Map().Vertexes); n != 0 {
		t.Errorf("vertexes = %d, want 0", n)
	}
}

func TestHistoryTravelDuringDrag(t *testing.T) {
	tests := []struct {
		name   string
		travel func(e *Engine)
		want   int
	}{
		{name: "engine undo", travel: (*Engine).Undo, want: 3},
		{name: "store undo", travel: func(e *Engine) { e.Store().Undo() }, want: 3},
		{name: "engine new map", travel: func(e *Engine) { e.NewMap("fresh", 400, 400) }, want: 1},
		{name: "store import", travel: func(e *Engine) {
			if err := e.Store().Import([]byte(`{"name":"x","width":400,"height":400,"vertexes":[{"x":0,"y":0}],"segments":[]}`)); err != nil {
				t.Fatal(err)
			}
		}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, true, document.Vertex{X: 0, Y: 0})
			e.PointerDown(PointerEvent{X: 200, Y: 200})
			e.PointerMove(250, 200)
			tt.travel(e)

			e.PointerMove(260, 200)
			e.PointerMove(270, 200)
			e.PointerUp()

			if e.DraggingVertex() != -1 {
				t.Errorf("dragging = %d, want -1", e.DraggingVertex())
			}
			if n := e.Store().Snapshot().HistoryLength; n != tt.want {
				t.Errorf("history length = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestStateJSON(t *testing.T) {
	e := newTestEngine(t, true, document.Vertex{X: 0, Y: 0})
	e.Wheel(-1)

	var got struct {
		Tool   string `json:"tool"`
		Camera struct {
			Zoom float64 `json:"zoom"`
		} `json:"camera"`
		Map struct {
			Vertexes []document.Vertex `json:"vertexes"`
		} `json:"map"`
		DraggingVertex int `json:"draggingVertex"`
	}
	if err := json.Unmarshal([]byte(e.State()), &got); err != nil {
		t.Fatalf("State is not JSON: %v", err)
	}
	if got.Tool != "vertex" || !approxEqual(got.Camera.Zoom, 1.2, 1e-12) || len(got.Map.Vertexes) != 1 || got.DraggingVertex != -1 {
		t.Errorf("state = %+v", got)
	}

	var hit Hit
	if err := json.Unmarshal([]byte(e.HitTest(200, 200)), &hit); err != nil {
		t.Fatalf("HitTest is not JSON: %v", err)
	}
	if hit != (Hit{Kind: "vertex", Index: 0}) {
		t.Errorf("hit = %+v", hit)
	}

	var cmds []DrawCommand
	if err := json.Unmarshal([]byte(e.Render()), &cmds); err != nil {
		t.Fatalf("Render is not JSON: %v", err)
	}
	if len(cmds) == 0 || cmds[0].Op != "clear" {
		t.Errorf("render = %v", layers(cmds))
	}
}
