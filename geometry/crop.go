package geometry

import "math"

const (
	minCropOrigin = 0
	minCropSize   = 1
)

// CropFromRect converts a crop overlay drawn in canvas space into a crop
// window in the asset's natural pixel space.
//
// before is the layer transform captured when crop mode was entered, prior is
// the crop window already applied to the layer (nil when uncropped) and
// natural is the asset size (zero when unknown). The overlay is measured from
// the layer's top-left corner; rotation and flip are not undone.
func CropFromRect(rect Rect, before Transform, prior *Rect, natural Size) Rect {
	sx, sy := before.ScaleX, before.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}

	var offX, offY float64
	if prior != nil {
		offX, offY = prior.Left, prior.Top
	}

	crop := Rect{
		Left:   math.Max(minCropOrigin, offX+(rect.Left-before.Left)/sx),
		Top:    math.Max(minCropOrigin, offY+(rect.Top-before.Top)/sy),
		Width:  math.Max(minCropSize, rect.Width/sx),
		Height: math.Max(minCropSize, rect.Height/sy),
	}

	return crop.ClampTo(natural)
}

// ClampTo keeps r inside a source of the given size. A zero dimension means
// the size is unknown and that axis is left alone.
func (r Rect) ClampTo(bounds Size) Rect {
	if bounds.W > 0 {
		r.Left = math.Min(r.Left, math.Max(0, bounds.W-minCropSize))
		r.Width = math.Max(minCropSize, math.Min(r.Width, bounds.W-r.Left))
	}
	if bounds.H > 0 {
		r.Top = math.Min(r.Top, math.Max(0, bounds.H-minCropSize))
		r.Height = math.Max(minCropSize, math.Min(r.Height, bounds.H-r.Top))
	}
	return r
}

func (r Rect) Size() Size {
	return Size{W: r.Width, H: r.Height}
}
