package engine

import (
	"fmt"
	"image"
	"io"
	"math"

	"github.com/gogpu/gg"
)

// Rasterize plays draw commands onto dc in order. images resolves the
// ImageID of "image" commands; unknown ids are skipped.
func Rasterize(dc *gg.Context, cmds []DrawCommand, images map[string]image.Image) error {
	for i, cmd := range cmds {
		var err error
		switch cmd.Op {
		case "clear":
			dc.ClearWithColor(gg.Hex(cmd.Fill))
		case "image":
			drawImage(dc, cmd, images[cmd.ImageID])
		case "path":
			err = drawPath(dc, cmd)
		default:
			err = fmt.Errorf("unknown op %q", cmd.Op)
		}
		if err != nil {
			return fmt.Errorf("command %d (%s): %w", i, cmd.Layer, err)
		}
	}
	return nil
}

func drawImage(dc *gg.Context, cmd DrawCommand, img image.Image) {
	if img == nil || cmd.Width <= 0 || cmd.Height <= 0 {
		return
	}
	opacity := cmd.Opacity
	if opacity == 0 {
		opacity = 1
	}
	dc.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
		X:         cmd.X,
		Y:         cmd.Y,
		DstWidth:  cmd.Width,
		DstHeight: cmd.Height,
		Opacity:   opacity,
	})
}

func drawPath(dc *gg.Context, cmd DrawCommand) error {
	dc.ClearPath()
	defer dc.ClearPath()

	for _, pc := range cmd.Path {
		if err := playPathCommand(dc, pc); err != nil {
			return err
		}
	}

	if cmd.Fill != "" {
		dc.SetHexColor(cmd.Fill)
		if err := dc.FillPreserve(); err != nil {
			return fmt.Errorf("fill: %w", err)
		}
	}
	if cmd.Stroke != "" && cmd.StrokeWidth > 0 {
		dc.SetHexColor(cmd.Stroke)
		dc.SetLineWidth(cmd.StrokeWidth)
		if len(cmd.Dash) > 0 {
			dc.SetDash(cmd.Dash...)
		} else {
			dc.ClearDash()
		}
		if err := dc.StrokePreserve(); err != nil {
			return fmt.Errorf("stroke: %w", err)
		}
		dc.ClearDash()
	}
	return nil
}

func playPathCommand(dc *gg.Context, pc PathCommand) error {
	if len(pc) == 0 {
		return nil
	}
	op, _ := pc[0].(string)
	arg := func(i int) float64 { return toFloat64(pc[i]) }

	switch op {
	case "M":
		if len(pc) < 3 {
			return fmt.Errorf("short M command")
		}
		dc.MoveTo(arg(1), arg(2))
	case "L":
		if len(pc) < 3 {
			return fmt.Errorf("short L command")
		}
		dc.LineTo(arg(1), arg(2))
	case "Q":
		if len(pc) < 5 {
			return fmt.Errorf("short Q command")
		}
		dc.QuadraticTo(arg(1), arg(2), arg(3), arg(4))
	case "A":
		if len(pc) < 6 {
			return fmt.Errorf("short A command")
		}
		ccw := false
		if len(pc) > 6 {
			ccw, _ = pc[6].(bool)
		}
		drawArc(dc, arg(1), arg(2), arg(3), arg(4), arg(5), ccw)
	case "Z":
		dc.ClosePath()
	default:
		return fmt.Errorf("unknown path op %q", op)
	}
	return nil
}

// drawArc follows Canvas2D arc semantics. gg only sweeps with increasing
// angle, so an anticlockwise arc is drawn from its end back to its start.
// The sub-path is restarted at the sweep's first point so no connecting
// line is drawn from the previous point.
func drawArc(dc *gg.Context, cx, cy, r, start, end float64, ccw bool) {
	if r <= 0 {
		return
	}
	if math.Abs(end-start) >= 2*math.Pi-1e-9 {
		dc.DrawCircle(cx, cy, r)
		return
	}
	if ccw {
		start, end = end, start
	}
	dc.MoveTo(cx+r*math.Cos(start), cy+r*math.Sin(start))
	dc.DrawArc(cx, cy, r, start, end)
}

// RenderPNG compiles f at the current viewport size and writes it as PNG.
func (r *Renderer) RenderPNG(w io.Writer, f Frame) error {
	width, height := int(math.Round(r.Camera.Width)), int(math.Round(r.Camera.Height))
	if width <= 0 || height <= 0 {
		return fmt.Errorf("render png: empty viewport %dx%d", width, height)
	}
	dc := gg.NewContext(width, height)
	defer dc.Close()

	images := map[string]image.Image{}
	if f.Map != nil && f.Map.Bg.Image != nil && r.images != nil {
		if img, ok := r.images.Get(f.Map.Bg.Image.DataURL); ok {
			images[BackgroundImageID] = img
		}
	}
	if err := Rasterize(dc, r.Compile(f), images); err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("render png: encode: %w", err)
	}
	return nil
}
