package scene

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/layerdeck/geometry"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func TestRender_PaintOrder(t *testing.T) {
	c := NewCanvas(200, 200)
	under := NewNode("under", solid(100, 100, red), "")
	over := NewNode("over", solid(100, 100, blue), "")
	over.Left, over.Top = 50, 50
	c.Add(under)
	c.Add(over)

	frame := c.Render()
	assert.Equal(t, red, frame.RGBAAt(25, 25))
	assert.Equal(t, blue, frame.RGBAAt(75, 75))
	assert.Equal(t, white, frame.RGBAAt(175, 175))

	require.NoError(t, c.SetOrder([]*Node{over, under}))
	frame = c.Render()
	assert.Equal(t, red, frame.RGBAAt(75, 75))
}

func TestRender_SkipsHiddenNodes(t *testing.T) {
	c := NewCanvas(100, 100)
	n := NewNode("a", solid(100, 100, red), "")
	n.Visible = false
	c.Add(n)

	assert.Equal(t, white, c.Render().RGBAAt(50, 50))
}

func TestRender_FlipMirrorsInsideBox(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			if x < 50 {
				src.Set(x, y, red)
			} else {
				src.Set(x, y, green)
			}
		}
	}

	c := NewCanvas(100, 50)
	n := NewNode("a", src, "")
	c.Add(n)

	frame := c.Render()
	assert.Equal(t, red, frame.RGBAAt(10, 25))

	n.Transform = geometry.Flip(n.Transform, geometry.AxisHorizontal)
	frame = c.Render()
	assert.Equal(t, green, frame.RGBAAt(10, 25))
	assert.Equal(t, red, frame.RGBAAt(90, 25))
}

func TestRender_CropShowsWindowOnly(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x >= 50 {
				src.Set(x, y, blue)
			} else {
				src.Set(x, y, red)
			}
		}
	}

	c := NewCanvas(100, 100)
	n := NewNode("a", src, "")
	n.Crop = &geometry.Rect{Left: 50, Top: 0, Width: 50, Height: 100}
	n.ScaleX = 2
	c.Add(n)

	frame := c.Render()
	assert.Equal(t, blue, frame.RGBAAt(10, 50))
	assert.Equal(t, blue, frame.RGBAAt(90, 50))
}

func TestRender_OpacityBlendsOverBackground(t *testing.T) {
	c := NewCanvas(10, 10)
	n := NewNode("a", solid(10, 10, color.RGBA{A: 255}), "")
	n.Opacity = 0.5
	c.Add(n)

	px := c.Render().RGBAAt(5, 5)
	assert.InDelta(t, 128, int(px.R), 2)
	assert.Equal(t, uint8(255), px.A)
}

func TestRender_DrawsOverlayOutline(t *testing.T) {
	c := NewCanvas(100, 100)
	n := NewNode("a", solid(100, 100, red), "")
	c.Add(n)
	_, err := c.AddOverlay(geometry.Rect{Left: 10, Top: 10, Width: 50, Height: 50}, n)
	require.NoError(t, err)

	frame := c.Render()
	assert.Equal(t, overlayColor, frame.RGBAAt(10, 30))
	assert.Equal(t, red, frame.RGBAAt(30, 30))
}
