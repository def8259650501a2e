package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRotate_Unnormalized(t *testing.T) {
	tr := Transform{Angle: 350}
	tr = Rotate(tr, 45)
	assert.Equal(t, 395.0, tr.Angle)

	tr = Rotate(tr, -800)
	assert.Equal(t, -405.0, tr.Angle)
}

func TestFlip_AxesAreIndependent(t *testing.T) {
	tr := Transform{Angle: 90}

	tr = Flip(tr, AxisHorizontal)
	assert.True(t, tr.FlipX)
	assert.False(t, tr.FlipY)
	assert.Equal(t, 90.0, tr.Angle)

	tr = Flip(tr, AxisVertical)
	assert.True(t, tr.FlipX)
	assert.True(t, tr.FlipY)

	tr = Flip(tr, AxisHorizontal)
	assert.False(t, tr.FlipX)
	assert.True(t, tr.FlipY)

	// Unknown axis leaves everything alone
	same := Flip(tr, Axis("diagonal"))
	assert.Equal(t, tr, same)
}

func TestScale_IsRelativeToCurrent(t *testing.T) {
	tr := Transform{ScaleX: 0.5, ScaleY: 2}

	tr = Scale(tr, 0.7)
	assert.InDelta(t, 0.35, tr.ScaleX, 1e-9)
	assert.InDelta(t, 1.4, tr.ScaleY, 1e-9)

	tr = Scale(tr, 0.7)
	assert.InDelta(t, 0.245, tr.ScaleX, 1e-9)
	assert.InDelta(t, 0.98, tr.ScaleY, 1e-9)
}

func TestScale_ZeroTreatedAsIdentity(t *testing.T) {
	tr := Scale(Transform{}, 2)
	assert.Equal(t, 2.0, tr.ScaleX)
	assert.Equal(t, 2.0, tr.ScaleY)
}

func TestEffectiveSize(t *testing.T) {
	natural := Size{W: 1000, H: 500}
	fallback := Size{W: 300, H: 300}

	assert.Equal(t, natural, EffectiveSize(natural, nil, fallback))
	assert.Equal(t, Size{W: 400, H: 200}, EffectiveSize(natural, &Rect{Left: 10, Top: 10, Width: 400, Height: 200}, fallback))
	assert.Equal(t, fallback, EffectiveSize(Size{}, nil, fallback))
}

func TestScaleFor_RoundTripsRenderedSize(t *testing.T) {
	eff := Size{W: 1000, H: 500}
	rendered := Size{W: 500, H: 250}

	sx, sy := ScaleFor(rendered, eff)
	assert.Equal(t, 0.5, sx)
	assert.Equal(t, 0.5, sy)
	assert.Equal(t, rendered, RenderedSize(eff, sx, sy))
}

func TestNormalizeAngle(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeAngle(360))
	assert.Equal(t, 35.0, NormalizeAngle(395))
	assert.Equal(t, -45.0, NormalizeAngle(-405))
	assert.Equal(t, 0.0, NormalizeAngle(math.NaN()))
}

func TestCropFromRect_UncroppedLayer(t *testing.T) {
	// Asset 1000x500 rendered at 500x250 from (10, 20)
	before := Transform{Left: 10, Top: 20, ScaleX: 0.5, ScaleY: 0.5}
	rect := Rect{Left: 10 + 50, Top: 20 + 25, Width: 200, Height: 100}

	crop := CropFromRect(rect, before, nil, Size{W: 1000, H: 500})
	assert.Equal(t, Rect{Left: 100, Top: 50, Width: 400, Height: 200}, crop)
}

func TestCropFromRect_ClampsToMinimums(t *testing.T) {
	before := Transform{Left: 100, Top: 100, ScaleX: 1, ScaleY: 1}
	rect := Rect{Left: 50, Top: 80, Width: 0.2, Height: 0}

	crop := CropFromRect(rect, before, nil, Size{})
	assert.Equal(t, 0.0, crop.Left)
	assert.Equal(t, 0.0, crop.Top)
	assert.Equal(t, 1.0, crop.Width)
	assert.Equal(t, 1.0, crop.Height)
}

func TestCropFromRect_OffsetsByPriorCrop(t *testing.T) {
	before := Transform{Left: 0, Top: 0, ScaleX: 1, ScaleY: 1}
	prior := &Rect{Left: 100, Top: 50, Width: 400, Height: 200}
	rect := Rect{Left: 10, Top: 20, Width: 100, Height: 50}

	crop := CropFromRect(rect, before, prior, Size{W: 1000, H: 500})
	assert.Equal(t, Rect{Left: 110, Top: 70, Width: 100, Height: 50}, crop)
}

func TestCropFromRect_ClampsToAssetBounds(t *testing.T) {
	before := Transform{ScaleX: 1, ScaleY: 1}
	rect := Rect{Left: 900, Top: 0, Width: 500, Height: 900}

	crop := CropFromRect(rect, before, nil, Size{W: 1000, H: 500})
	assert.Equal(t, 900.0, crop.Left)
	assert.Equal(t, 100.0, crop.Width)
	assert.Equal(t, 500.0, crop.Height)
}
