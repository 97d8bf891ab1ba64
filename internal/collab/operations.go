package collab

import (
	"encoding/json"
	"fmt"

	"github.com/haxtrace/haxtrace/backend-go/internal/engine"
	"github.com/haxtrace/haxtrace/backend-go/internal/store"
)

// apply runs one client message against the sender's engine and the shared
// store. It is only called from the hub goroutine.
func (h *Hub) apply(sender *Client, msg *Message) error {
	e := sender.engine
	switch msg.Type {
	case TypePointer:
		var p PointerPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		switch p.Phase {
		case "down":
			e.PointerDown(p.PointerEvent)
		case "move":
			e.PointerMove(p.X, p.Y)
		case "up":
			e.PointerUp()
		case "leave":
			e.PointerLeave()
		default:
			return fmt.Errorf("unknown pointer phase: %s", p.Phase)
		}

	case TypeWheel:
		var p WheelPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		e.Wheel(p.DeltaY)

	case TypeKey:
		var p engine.KeyEvent
		if err := decode(msg, &p); err != nil {
			return err
		}
		e.KeyDown(p)

	case TypeViewResize:
		var p ResizePayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("invalid viewport: %gx%g", p.Width, p.Height)
		}
		e.Resize(p.Width, p.Height)

	case TypeViewZoom:
		var p ZoomPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		switch p.Action {
		case "in":
			e.Camera().ZoomIn()
		case "out":
			e.Camera().ZoomOut()
		case "reset":
			e.Camera().ResetView()
		default:
			return fmt.Errorf("unknown zoom action: %s", p.Action)
		}

	case TypeToolSet:
		var p ToolPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		t := store.Tool(p.Tool)
		if !t.Valid() {
			return fmt.Errorf("unknown tool: %s", p.Tool)
		}
		e.SetTool(t)

	case TypeContextAction:
		var p ContextActionPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if p.Action != "" && !e.ContextAction(p.Action) {
			return fmt.Errorf("nothing to %s", p.Action)
		}

	case TypeCurveDefaults:
		var p CurveDefaultsPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if p.Type != nil {
			h.store.SetCurveType(*p.Type)
		}
		if p.Value != nil {
			h.store.SetCurveValue(*p.Value)
		}
		if p.Color != nil {
			h.store.SetSegmentColor(*p.Color)
		}

	case TypeSegmentCurve:
		var p SegmentCurvePayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if err := h.checkSegment(p.Index); err != nil {
			return err
		}
		h.store.UpdateSegmentCurve(p.Index, p.Type, p.Value)

	case TypeSegmentCurveType:
		var p SegmentCurveTypePayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if err := h.checkSegment(p.Index); err != nil {
			return err
		}
		h.store.SetSegmentCurveType(p.Index, p.Type)

	case TypeSegmentColor:
		var p SegmentColorPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if err := h.checkSegment(p.Index); err != nil {
			return err
		}
		h.store.SetSegmentColorAt(p.Index, p.Color)

	case TypeBackgroundSet:
		var p BackgroundSetPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if p.DataURL == "" {
			return fmt.Errorf("missing dataURL")
		}
		h.store.SetBackgroundImage(p.DataURL)

	case TypeBackgroundUpdate:
		var p store.BackgroundImagePatch
		if err := decode(msg, &p); err != nil {
			return err
		}
		h.store.UpdateBackgroundImage(p)

	case TypeBackgroundRemove:
		h.store.RemoveBackgroundImage()

	case TypeBackgroundColor:
		var p ColorPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		h.store.SetBackgroundColor(p.Color)

	case TypePrefsUpdate:
		var p PrefsPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if p.ShowGrid != nil {
			h.store.SetGridVisible(*p.ShowGrid)
		}
		if p.GridSize != nil {
			h.store.SetGridSize(*p.GridSize)
		}

	case TypeHistoryUndo:
		e.Undo()

	case TypeHistoryRedo:
		e.Redo()

	case TypeMapNew:
		var p MapNewPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("invalid map size: %gx%g", p.Width, p.Height)
		}
		e.NewMap(p.Name, p.Width, p.Height)

	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
	return nil
}

func (h *Hub) checkSegment(i int) error {
	if i < 0 || i >= len(h.store.Map().Segments) {
		return fmt.Errorf("segment not found: %d", i)
	}
	return nil
}

func decode(msg *Message, v any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("missing payload for %s", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", msg.Type, err)
	}
	return nil
}
