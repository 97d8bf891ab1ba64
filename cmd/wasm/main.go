//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"github.com/haxtrace/haxtrace/backend-go/internal/arc"
	"github.com/haxtrace/haxtrace/backend-go/internal/asset"
	"github.com/haxtrace/haxtrace/backend-go/internal/document"
	"github.com/haxtrace/haxtrace/backend-go/internal/engine"
	"github.com/haxtrace/haxtrace/backend-go/internal/storage"
	"github.com/haxtrace/haxtrace/backend-go/internal/store"
)

var eng *engine.Engine

func main() {
	st := store.New(store.Options{Slot: localStorageSlot{}, CoalesceDrag: true})
	images := engine.NewImageCache(asset.Decode, requestRedraw)
	eng = engine.New(st, engine.NewRenderer(1280, 720, images))

	// Create the engine API object
	haxtraceEngine := js.Global().Get("Object").New()

	// --- Input (frontend → engine) ---
	haxtraceEngine.Set("pointerDown", js.FuncOf(pointerDown))
	haxtraceEngine.Set("pointerMove", js.FuncOf(pointerMove))
	haxtraceEngine.Set("pointerUp", js.FuncOf(pointerUp))
	haxtraceEngine.Set("pointerLeave", js.FuncOf(pointerLeave))
	haxtraceEngine.Set("wheel", js.FuncOf(wheel))
	haxtraceEngine.Set("keyDown", js.FuncOf(keyDown))
	haxtraceEngine.Set("resize", js.FuncOf(resize))

	// --- Commands ---
	haxtraceEngine.Set("setTool", js.FuncOf(setTool))
	haxtraceEngine.Set("contextAction", js.FuncOf(contextAction))
	haxtraceEngine.Set("zoomIn", js.FuncOf(zoomIn))
	haxtraceEngine.Set("zoomOut", js.FuncOf(zoomOut))
	haxtraceEngine.Set("resetView", js.FuncOf(resetView))
	haxtraceEngine.Set("setCurveDefaults", js.FuncOf(setCurveDefaults))
	haxtraceEngine.Set("setSegmentColor", js.FuncOf(setSegmentColor))
	haxtraceEngine.Set("updateSegmentCurve", js.FuncOf(updateSegmentCurve))
	haxtraceEngine.Set("setSegmentCurveType", js.FuncOf(setSegmentCurveType))
	haxtraceEngine.Set("setSegmentColorAt", js.FuncOf(setSegmentColorAt))
	haxtraceEngine.Set("setBackgroundImage", js.FuncOf(setBackgroundImage))
	haxtraceEngine.Set("updateBackgroundImage", js.FuncOf(updateBackgroundImage))
	haxtraceEngine.Set("removeBackgroundImage", js.FuncOf(removeBackgroundImage))
	haxtraceEngine.Set("setBackgroundColor", js.FuncOf(setBackgroundColor))
	haxtraceEngine.Set("setGridVisible", js.FuncOf(setGridVisible))
	haxtraceEngine.Set("setGridSize", js.FuncOf(setGridSize))
	haxtraceEngine.Set("undo", js.FuncOf(undo))
	haxtraceEngine.Set("redo", js.FuncOf(redo))
	haxtraceEngine.Set("newMap", js.FuncOf(newMap))
	haxtraceEngine.Set("importMap", js.FuncOf(importMap))

	// --- Queries (frontend ← engine) ---
	haxtraceEngine.Set("render", js.FuncOf(render))
	haxtraceEngine.Set("hitTest", js.FuncOf(hitTest))
	haxtraceEngine.Set("getState", js.FuncOf(getState))
	haxtraceEngine.Set("exportMap", js.FuncOf(exportMap))
	haxtraceEngine.Set("exportFileName", js.FuncOf(exportFileName))

	// Register on global scope
	js.Global().Set("haxtraceEngine", haxtraceEngine)

	// Signal that WASM is ready
	js.Global().Set("haxtraceWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

// requestRedraw tells the page a background image finished decoding.
func requestRedraw() {
	if cb := js.Global().Get("haxtraceRequestRedraw"); cb.Type() == js.TypeFunction {
		cb.Invoke()
	}
}

// localStorageSlot mirrors the session in window.localStorage.
type localStorageSlot struct{}

func (localStorageSlot) Load(_ context.Context, key string) ([]byte, error) {
	v := js.Global().Get("localStorage").Call("getItem", key)
	if v.IsNull() || v.IsUndefined() {
		return nil, storage.ErrNotFound
	}
	return []byte(v.String()), nil
}

func (localStorageSlot) Save(_ context.Context, key string, data []byte) error {
	js.Global().Get("localStorage").Call("setItem", key, string(data))
	return nil
}

func modifiers(v js.Value) engine.Modifiers {
	if v.Type() != js.TypeObject {
		return engine.Modifiers{}
	}
	return engine.Modifiers{
		Shift: v.Get("shiftKey").Truthy(),
		Ctrl:  v.Get("ctrlKey").Truthy(),
		Meta:  v.Get("metaKey").Truthy(),
		Alt:   v.Get("altKey").Truthy(),
	}
}

func ok() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func fail(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": msg})
}

// --- Input Handlers ---

// pointerDown(x, y, button, event)
func pointerDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return nil
	}
	ev := engine.PointerEvent{X: args[0].Float(), Y: args[1].Float(), Button: args[2].Int()}
	if len(args) > 3 {
		ev.Modifiers = modifiers(args[3])
	}
	eng.PointerDown(ev)
	return nil
}

func pointerMove(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.PointerMove(args[0].Float(), args[1].Float())
	return nil
}

func pointerUp(this js.Value, args []js.Value) interface{} {
	eng.PointerUp()
	return nil
}

func pointerLeave(this js.Value, args []js.Value) interface{} {
	eng.PointerLeave()
	return nil
}

func wheel(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.Wheel(args[0].Float())
	return nil
}

// keyDown(event, inTextInput) reports whether the key was consumed, so the
// page can call preventDefault.
func keyDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeObject {
		return js.ValueOf(false)
	}
	ev := engine.KeyEvent{
		Key:       args[0].Get("key").String(),
		Modifiers: modifiers(args[0]),
	}
	if len(args) > 1 {
		ev.InTextInput = args[1].Truthy()
	}
	return js.ValueOf(eng.KeyDown(ev))
}

func resize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.Resize(args[0].Float(), args[1].Float())
	return nil
}

// --- Command Handlers ---

func setTool(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.SetTool(store.Tool(args[0].String()))
	return nil
}

func contextAction(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.ContextAction(args[0].String()))
}

func zoomIn(this js.Value, args []js.Value) interface{} {
	eng.Camera().ZoomIn()
	return nil
}

func zoomOut(this js.Value, args []js.Value) interface{} {
	eng.Camera().ZoomOut()
	return nil
}

func resetView(this js.Value, args []js.Value) interface{} {
	eng.Camera().ResetView()
	return nil
}

// setCurveDefaults(type, value)
func setCurveDefaults(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return fail("missing type or value")
	}
	t, err := arc.ParseCurveType(args[0].String())
	if err != nil {
		return fail(err.Error())
	}
	eng.Store().SetCurveType(t)
	eng.Store().SetCurveValue(args[1].Float())
	return ok()
}

func setSegmentColor(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.Store().SetSegmentColor(args[0].String())
	return nil
}

// updateSegmentCurve(index, type, value)
func updateSegmentCurve(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return fail("missing index, type or value")
	}
	t, err := arc.ParseCurveType(args[1].String())
	if err != nil {
		return fail(err.Error())
	}
	eng.Store().UpdateSegmentCurve(args[0].Int(), t, args[2].Float())
	return ok()
}

func setSegmentCurveType(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return fail("missing index or type")
	}
	t, err := arc.ParseCurveType(args[1].String())
	if err != nil {
		return fail(err.Error())
	}
	eng.Store().SetSegmentCurveType(args[0].Int(), t)
	return ok()
}

func setSegmentColorAt(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.Store().SetSegmentColorAt(args[0].Int(), args[1].String())
	return nil
}

func setBackgroundImage(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return fail("missing data URL")
	}
	eng.Store().SetBackgroundImage(args[0].String())
	return ok()
}

// updateBackgroundImage takes a JSON patch of the image properties.
func updateBackgroundImage(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return fail("missing patch JSON")
	}
	var patch store.BackgroundImagePatch
	if err := json.Unmarshal([]byte(args[0].String()), &patch); err != nil {
		return fail(err.Error())
	}
	eng.Store().UpdateBackgroundImage(patch)
	return ok()
}

func removeBackgroundImage(this js.Value, args []js.Value) interface{} {
	eng.Store().RemoveBackgroundImage()
	return nil
}

func setBackgroundColor(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.Store().SetBackgroundColor(args[0].String())
	return nil
}

func setGridVisible(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.Store().SetGridVisible(args[0].Truthy())
	return nil
}

func setGridSize(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.Store().SetGridSize(args[0].Float())
	return nil
}

func undo(this js.Value, args []js.Value) interface{} {
	eng.Undo()
	return nil
}

func redo(this js.Value, args []js.Value) interface{} {
	eng.Redo()
	return nil
}

// newMap(name, width, height)
func newMap(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return fail("missing name or size")
	}
	eng.NewMap(args[0].String(), args[1].Float(), args[2].Float())
	return ok()
}

func importMap(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return fail("missing map JSON")
	}
	if err := eng.Import([]byte(args[0].String())); err != nil {
		return fail(err.Error())
	}
	return ok()
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Render())
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	x := args[0].Float()
	y := args[1].Float()
	return js.ValueOf(eng.HitTest(x, y))
}

func getState(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.State())
}

func exportMap(this js.Value, args []js.Value) interface{} {
	data, err := eng.Store().Export()
	if err != nil {
		return fail(err.Error())
	}
	return js.ValueOf(string(data))
}

func exportFileName(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(document.ExportFileName(eng.Store().Map().Name))
}
