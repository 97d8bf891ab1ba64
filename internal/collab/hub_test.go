package collab

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/haxtrace/haxtrace/backend-go/internal/engine"
	"github.com/haxtrace/haxtrace/backend-go/internal/store"
)

// newTestHub runs a hub over an empty 400x400 map with 400x400 viewports,
// so world (0,0) sits at screen (200,200).
func newTestHub(t *testing.T, decode engine.Decoder) *Hub {
	t.Helper()
	s := store.New(store.Options{
		CoalesceDrag: true,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	s.NewMap("test", 400, 400)
	h := NewHub(s, Options{Width: 400, Height: 400, Decode: decode})
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatalf("%s: send channel closed", c.ClientID)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("%s: bad message %s: %v", c.ClientID, data, err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: no message", c.ClientID)
	}
	return Message{}
}

func expect(t *testing.T, c *Client, types ...string) []Message {
	t.Helper()
	msgs := make([]Message, 0, len(types))
	for _, want := range types {
		msg := recv(t, c)
		if msg.Type != want {
			t.Fatalf("%s: got %q, want %q", c.ClientID, msg.Type, want)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func expectNone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("%s: unexpected message %s", c.ClientID, data)
	default:
	}
}

func join(t *testing.T, h *Hub, userID, name, clientID string) *Client {
	t.Helper()
	c := NewClient(h, nil, userID, name, clientID)
	h.Register(c)
	expect(t, c, TypeWelcome, TypePresenceState, TypeFrame, TypeState)
	return c
}

func send(t *testing.T, h *Hub, c *Client, typ string, payload any) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		raw = data
	}
	if !h.Deliver(c, &Message{Type: typ, ClientID: c.ClientID, UserID: c.UserID, Payload: raw}) {
		t.Fatal("hub stopped")
	}
}

func viewOf(t *testing.T, msg Message) engine.View {
	t.Helper()
	if msg.Type != TypeState {
		t.Fatalf("got %q, want state", msg.Type)
	}
	var v engine.View
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestJoinSendsWelcomeAndPresence(t *testing.T) {
	h := newTestHub(t, nil)

	c1 := NewClient(h, nil, "u1", "", "c1")
	h.Register(c1)
	msgs := expect(t, c1, TypeWelcome, TypePresenceState, TypeFrame, TypeState)

	var welcome WelcomePayload
	if err := json.Unmarshal(msgs[0].Payload, &welcome); err != nil {
		t.Fatal(err)
	}
	want := WelcomePayload{ClientID: "c1", SessionID: h.SessionID(), DisplayName: "Anonymous"}
	if diff := cmp.Diff(want, welcome); diff != "" {
		t.Errorf("welcome mismatch (-want +got):\n%s", diff)
	}

	c2 := NewClient(h, nil, "u2", "Ada", "c2")
	h.Register(c2)
	msgs = expect(t, c2, TypeWelcome, TypePresenceState, TypeFrame, TypeState)
	var state PresenceStatePayload
	if err := json.Unmarshal(msgs[1].Payload, &state); err != nil {
		t.Fatal(err)
	}
	if p, ok := state.Presences["c1"]; !ok || p.DisplayName != "Anonymous" {
		t.Errorf("presences = %v", state.Presences)
	}

	joined := expect(t, c1, TypePresenceJoin)[0]
	var jp PresenceJoinPayload
	if err := json.Unmarshal(joined.Payload, &jp); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(PresenceJoinPayload{ClientID: "c2", UserID: "u2", DisplayName: "Ada"}, jp); diff != "" {
		t.Errorf("join mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreChangeRefreshesEveryone(t *testing.T) {
	h := newTestHub(t, nil)
	c1 := join(t, h, "u1", "A", "c1")
	c2 := join(t, h, "u2", "B", "c2")
	expect(t, c1, TypePresenceJoin)

	send(t, h, c1, TypeToolSet, ToolPayload{Tool: "segment"})
	for _, c := range []*Client{c1, c2} {
		msgs := expect(t, c, TypeFrame, TypeState)
		if v := viewOf(t, msgs[1]); v.Tool != store.ToolSegment {
			t.Errorf("%s: tool = %q", c.ClientID, v.Tool)
		}
	}
}

func TestViewOnlyChangeRefreshesSender(t *testing.T) {
	h := newTestHub(t, nil)
	c1 := join(t, h, "u1", "A", "c1")
	c2 := join(t, h, "u2", "B", "c2")
	expect(t, c1, TypePresenceJoin)

	send(t, h, c1, TypeViewZoom, ZoomPayload{Action: "in"})
	msgs := expect(t, c1, TypeFrame, TypeState)
	if v := viewOf(t, msgs[1]); v.Camera.Zoom != engine.ZoomStep {
		t.Errorf("zoom = %v", v.Camera.Zoom)
	}
	expectNone(t, c2)

	// Other viewports are unaffected.
	send(t, h, c2, TypeHistoryUndo, nil)
	msgs = expect(t, c2, TypeFrame, TypeState)
	if v := viewOf(t, msgs[1]); v.Camera.Zoom != 1 {
		t.Errorf("c2 zoom = %v", v.Camera.Zoom)
	}
	expectNone(t, c1)
}

func TestPointerInputEditsSharedMap(t *testing.T) {
	h := newTestHub(t, nil)
	c1 := join(t, h, "u1", "A", "c1")
	c2 := join(t, h, "u2", "B", "c2")
	expect(t, c1, TypePresenceJoin)

	send(t, h, c1, TypePointer, PointerPayload{Phase: "down", PointerEvent: engine.PointerEvent{X: 210, Y: 190}})
	expect(t, c1, TypeFrame, TypeState)
	send(t, h, c1, TypePointer, PointerPayload{Phase: "up"})
	expect(t, c1, TypeFrame, TypeState)

	msgs := expect(t, c2, TypeFrame, TypeState)
	v := viewOf(t, msgs[1])
	if len(v.Map.Vertexes) != 1 || v.Map.Vertexes[0].X != 10 || v.Map.Vertexes[0].Y != -10 {
		t.Errorf("vertexes = %v", v.Map.Vertexes)
	}
	if !v.CanUndo {
		t.Error("vertex add not undoable")
	}

	send(t, h, c2, TypeHistoryUndo, nil)
	expect(t, c2, TypeFrame, TypeState)
	var n int
	if err := h.Do(context.Background(), func(s *store.Store) { n = len(s.Map().Vertexes) }); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("vertexes after undo = %d", n)
	}
}

func TestDisconnectEndsDrag(t *testing.T) {
	h := newTestHub(t, nil)
	if err := h.Do(context.Background(), func(s *store.Store) { s.AddVertex(0, 0) }); err != nil {
		t.Fatal(err)
	}
	c1 := join(t, h, "u1", "A", "c1")

	send(t, h, c1, TypePointer, PointerPayload{Phase: "down", PointerEvent: engine.PointerEvent{X: 200, Y: 200}})
	expect(t, c1, TypeFrame, TypeState)
	send(t, h, c1, TypePointer, PointerPayload{Phase: "move", PointerEvent: engine.PointerEvent{X: 250, Y: 200}})
	expect(t, c1, TypeFrame, TypeState)

	h.Unregister(c1)
	var inGesture bool
	var x float64
	if err := h.Do(context.Background(), func(st *store.Store) {
		inGesture = st.InGesture()
		x = st.Map().Vertexes[0].X
	}); err != nil {
		t.Fatal(err)
	}
	if inGesture {
		t.Error("gesture still open after disconnect")
	}
	if x != 50 {
		t.Errorf("x = %v, want 50", x)
	}
}

func TestUndoDuringDragEndsIt(t *testing.T) {
	tests := []struct {
		name string
		peer bool
	}{
		{name: "own undo"},
		{name: "peer undo", peer: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHub(t, nil)
			if err := h.Do(context.Background(), func(s *store.Store) { s.AddVertex(0, 0) }); err != nil {
				t.Fatal(err)
			}
			c1 := join(t, h, "u1", "A", "c1")
			undoer := c1
			if tt.peer {
				undoer = join(t, h, "u2", "B", "c2")
				expect(t, c1, TypePresenceJoin)
			}

			pointer := func(phase string, x, y float64) {
				t.Helper()
				send(t, h, c1, TypePointer, PointerPayload{Phase: phase, PointerEvent: engine.PointerEvent{X: x, Y: y}})
				expect(t, c1, TypeFrame, TypeState)
			}
			pointer("down", 200, 200)
			pointer("move", 220, 200)
			pointer("move", 240, 200)

			send(t, h, undoer, TypeHistoryUndo, nil)
			expect(t, undoer, TypeFrame, TypeState)
			if tt.peer {
				expect(t, c1, TypeFrame, TypeState)
			}

			pointer("move", 260, 200)
			pointer("move", 280, 200)
			pointer("move", 300, 200)
			pointer("up", 300, 200)

			var st store.State
			if err := h.Do(context.Background(), func(s *store.Store) { st = s.Snapshot() }); err != nil {
				t.Fatal(err)
			}
			if st.HistoryLength != 3 || st.HistoryIndex != 1 {
				t.Errorf("history = %d of %d, want 1 of 3", st.HistoryIndex, st.HistoryLength)
			}
			if x := st.Map.Vertexes[0].X; x != 0 {
				t.Errorf("x = %v, want 0", x)
			}
		})
	}
}

func TestRejectedMessages(t *testing.T) {
	h := newTestHub(t, nil)
	c1 := join(t, h, "u1", "A", "c1")

	tests := []struct {
		name    string
		typ     string
		payload any
	}{
		{name: "unknown type", typ: "bogus"},
		{name: "missing payload", typ: TypeToolSet},
		{name: "unknown tool", typ: TypeToolSet, payload: ToolPayload{Tool: "lasso"}},
		{name: "segment out of range", typ: TypeSegmentColor, payload: SegmentColorPayload{Index: 3, Color: "FF0000"}},
		{name: "bad pointer phase", typ: TypePointer, payload: PointerPayload{Phase: "hover"}},
		{name: "bad map size", typ: TypeMapNew, payload: MapNewPayload{Name: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, h, c1, tt.typ, tt.payload)
			msg := expect(t, c1, TypeError)[0]
			var ep ErrorPayload
			if err := json.Unmarshal(msg.Payload, &ep); err != nil {
				t.Fatal(err)
			}
			if ep.Message == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestEditingMessages(t *testing.T) {
	h := newTestHub(t, nil)
	c1 := join(t, h, "u1", "A", "c1")

	steps := []struct {
		typ     string
		payload any
	}{
		{TypeMapNew, MapNewPayload{Name: "arena", Width: 300, Height: 200}},
		{TypeBackgroundColor, ColorPayload{Color: "#abcdef"}},
		{TypePrefsUpdate, map[string]any{"showGrid": false, "gridSize": 25}},
		{TypeCurveDefaults, map[string]any{"color": "00ff00"}},
	}
	var v engine.View
	for _, st := range steps {
		send(t, h, c1, st.typ, st.payload)
		v = viewOf(t, expect(t, c1, TypeFrame, TypeState)[1])
	}

	if v.Map.Name != "arena" || v.Map.Width != 300 || v.Map.Height != 200 {
		t.Errorf("map = %s %vx%v", v.Map.Name, v.Map.Width, v.Map.Height)
	}
	if v.Map.Bg.Color != "ABCDEF" {
		t.Errorf("bg = %q", v.Map.Bg.Color)
	}
	if diff := cmp.Diff(store.Prefs{ShowGrid: false, GridSize: 25}, v.Prefs); diff != "" {
		t.Errorf("prefs mismatch (-want +got):\n%s", diff)
	}
	if v.SegmentColor != "00FF00" {
		t.Errorf("segment color = %q", v.SegmentColor)
	}
}

func TestPresenceUpdateBroadcast(t *testing.T) {
	h := newTestHub(t, nil)
	c1 := join(t, h, "u1", "A", "c1")
	c2 := join(t, h, "u2", "B", "c2")
	expect(t, c1, TypePresenceJoin)

	send(t, h, c1, TypePresenceUpdate, PresencePayload{Cursor: &CursorPos{X: 3, Y: 4}, DisplayName: "spoofed"})
	msg := expect(t, c2, TypePresenceUpdate)[0]
	if msg.UserID != "u1" || msg.ClientID != "c1" {
		t.Errorf("from %s/%s", msg.UserID, msg.ClientID)
	}
	var p PresencePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatal(err)
	}
	want := PresencePayload{Cursor: &CursorPos{X: 3, Y: 4}, Tool: "vertex", DisplayName: "A"}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("presence mismatch (-want +got):\n%s", diff)
	}

	h.Unregister(c1)
	left := expect(t, c2, TypePresenceLeave)[0]
	if left.ClientID != "c1" {
		t.Errorf("leave clientId = %q", left.ClientID)
	}
}

func TestPresenceManagerUpdate(t *testing.T) {
	pm := NewPresenceManager()
	pm.Update("c1", PresencePayload{DisplayName: "Ada", Tool: "vertex"})
	pm.Update("c1", PresencePayload{Cursor: &CursorPos{X: 1, Y: 2}, DisplayName: "Eve"})
	got := pm.Update("c1", PresencePayload{Tool: "pan"})

	want := PresencePayload{Cursor: &CursorPos{X: 1, Y: 2}, Tool: "pan", DisplayName: "Ada"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("presence mismatch (-want +got):\n%s", diff)
	}

	all := pm.GetAll()
	all["c1"].Tool = "segment"
	if pm.GetAll()["c1"].Tool != "pan" {
		t.Error("GetAll exposes internal state")
	}

	pm.Remove("c1")
	if pm.Len() != 0 {
		t.Errorf("Len = %d after Remove", pm.Len())
	}
}

func TestBackgroundDecodeRedraws(t *testing.T) {
	decode := func(string) (image.Image, error) {
		return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
	}
	h := newTestHub(t, decode)
	c1 := join(t, h, "u1", "A", "c1")

	send(t, h, c1, TypeBackgroundSet, BackgroundSetPayload{DataURL: "data:image/png;base64,AAAA"})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("no frame with the background image")
		default:
		}
		msg := recv(t, c1)
		if msg.Type != TypeFrame {
			continue
		}
		var cmds []engine.DrawCommand
		if err := json.Unmarshal(msg.Payload, &cmds); err != nil {
			t.Fatal(err)
		}
		for _, cmd := range cmds {
			if cmd.Op == "image" && cmd.ImageID == engine.BackgroundImageID {
				return
			}
		}
	}
}

func TestStop(t *testing.T) {
	h := newTestHub(t, nil)
	c1 := join(t, h, "u1", "A", "c1")

	h.Stop()

	if _, ok := <-c1.send; ok {
		t.Error("send channel still open")
	}
	if err := h.Do(context.Background(), func(*store.Store) {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Do after stop = %v", err)
	}
	if h.Deliver(c1, &Message{Type: TypeHistoryUndo}) {
		t.Error("Deliver accepted after stop")
	}
}
