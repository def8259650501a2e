// Package geometry holds the pure transform math of a layer: rotate, flip,
// scale and the conversions between rendered size, source size and zoom.
// Nothing here touches persistence or the canvas.
package geometry

import "math"

type Axis string

const (
	AxisHorizontal Axis = "horizontal"
	AxisVertical   Axis = "vertical"
)

type Size struct {
	W float64
	H float64
}

type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Transform is the live transform state of a rendered layer.
// Left/Top is the top-left corner of the unrotated box, rotation is about
// the box centre.
type Transform struct {
	Left   float64
	Top    float64
	Angle  float64
	ScaleX float64
	ScaleY float64
	FlipX  bool
	FlipY  bool
}

// Rotate adds delta degrees to the current angle. The result is not
// normalized; renderers wrap it.
func Rotate(t Transform, delta float64) Transform {
	t.Angle += delta
	return t
}

// Flip toggles the flag for the given axis. Unknown axes are a no-op.
func Flip(t Transform, axis Axis) Transform {
	switch axis {
	case AxisHorizontal:
		t.FlipX = !t.FlipX
	case AxisVertical:
		t.FlipY = !t.FlipY
	}
	return t
}

// Scale multiplies the current scale factors by factor. A zero scale is
// treated as 1, matching how an unset zoom renders.
func Scale(t Transform, factor float64) Transform {
	sx, sy := t.ScaleX, t.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	t.ScaleX = sx * factor
	t.ScaleY = sy * factor
	return t
}

// EffectiveSize is the source size a layer's rendered box is mapped against:
// the crop window when cropped, otherwise the natural asset size, otherwise
// the rendered size itself.
func EffectiveSize(natural Size, crop *Rect, fallback Size) Size {
	eff := fallback
	if natural.W > 0 {
		eff.W = natural.W
	}
	if natural.H > 0 {
		eff.H = natural.H
	}
	if crop != nil {
		if crop.Width > 0 {
			eff.W = crop.Width
		}
		if crop.Height > 0 {
			eff.H = crop.Height
		}
	}
	return eff
}

// ScaleFor derives the zoom factors that map effective onto rendered.
func ScaleFor(rendered, effective Size) (float64, float64) {
	sx, sy := 1.0, 1.0
	if effective.W > 0 {
		sx = rendered.W / effective.W
	}
	if effective.H > 0 {
		sy = rendered.H / effective.H
	}
	return sx, sy
}

// RenderedSize is the inverse of ScaleFor.
func RenderedSize(effective Size, scaleX, scaleY float64) Size {
	return Size{W: effective.W * scaleX, H: effective.H * scaleY}
}

// NormalizeAngle folds an angle into the open interval (-360, 360) while
// keeping its orientation.
func NormalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	return math.Mod(a, 360)
}

// Finite reports whether every value is a real number.
func Finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
