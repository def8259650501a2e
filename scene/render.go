package scene

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var overlayColor = color.RGBA{R: 0, G: 0, B: 255, A: 255}

const overlayStroke = 2

// sourceToCanvas maps source image coordinates of n onto canvas space.
func sourceToCanvas(n *Node) f64.Aff3 {
	var cropX, cropY float64
	if n.Source != nil {
		min := n.Source.Bounds().Min
		cropX, cropY = float64(min.X), float64(min.Y)
	}
	if n.Crop != nil {
		cropX += n.Crop.Left
		cropY += n.Crop.Top
	}
	return mul(localToCanvas(n), translate(-cropX, -cropY))
}

// localToCanvas maps coordinates inside the visible source region of n
// (origin at the crop corner) onto canvas space: flip inside the region,
// zoom, rotate about the box centre and translate to the node position.
func localToCanvas(n *Node) f64.Aff3 {
	size := n.SourceSize()

	fx, fy, tx, ty := 1.0, 1.0, 0.0, 0.0
	if n.FlipX {
		fx, tx = -1, size.W
	}
	if n.FlipY {
		fy, ty = -1, size.H
	}
	m := f64.Aff3{fx, 0, tx, 0, fy, ty}

	m = mul(f64.Aff3{n.ScaleX, 0, 0, 0, n.ScaleY, 0}, m)

	w, h := size.W*n.ScaleX, size.H*n.ScaleY
	sin, cos := math.Sincos(n.Angle * math.Pi / 180)
	m = mul(translate(-w/2, -h/2), m)
	m = mul(f64.Aff3{cos, -sin, 0, sin, cos, 0}, m)
	m = mul(translate(w/2, h/2), m)

	return mul(translate(n.Left, n.Top), m)
}

func translate(x, y float64) f64.Aff3 {
	return f64.Aff3{1, 0, x, 0, 1, y}
}

// mul returns a*b, i.e. b applied first.
func mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3],
		a[0]*b[1] + a[1]*b[4],
		a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3],
		a[3]*b[1] + a[4]*b[4],
		a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

// sourceRect is the integer source rectangle drawn for n.
func sourceRect(n *Node) image.Rectangle {
	b := n.Source.Bounds()
	if n.Crop == nil {
		return b
	}
	r := image.Rect(
		b.Min.X+int(math.Floor(n.Crop.Left)),
		b.Min.Y+int(math.Floor(n.Crop.Top)),
		b.Min.X+int(math.Ceil(n.Crop.Left+n.Crop.Width)),
		b.Min.Y+int(math.Ceil(n.Crop.Top+n.Crop.Height)),
	)
	return r.Intersect(b)
}

// Render composites every visible node into a new frame the size of the
// canvas, in paint order, with the crop overlay outlined on top.
func (c *Canvas) Render() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c.background), image.Point{}, draw.Src)

	for _, n := range c.nodes {
		if !n.Visible || n.Source == nil || n.Opacity <= 0 {
			continue
		}
		sr := sourceRect(n)
		if sr.Empty() {
			continue
		}

		var opts *draw.Options
		if n.Opacity < 1 {
			alpha := uint16(math.Round(n.Opacity * 0xffff))
			opts = &draw.Options{SrcMask: image.NewUniform(color.Alpha16{A: alpha})}
		}
		draw.BiLinear.Transform(dst, sourceToCanvas(n), n.Source, sr, draw.Over, opts)
	}

	if c.overlay != nil {
		outline(dst, c.overlay.Rect.Left, c.overlay.Rect.Top, c.overlay.Rect.Width, c.overlay.Rect.Height)
	}

	return dst
}

func outline(dst *image.RGBA, left, top, width, height float64) {
	x0, y0 := int(math.Round(left)), int(math.Round(top))
	x1, y1 := int(math.Round(left+width)), int(math.Round(top+height))
	src := image.NewUniform(overlayColor)

	edges := []image.Rectangle{
		image.Rect(x0, y0, x1, y0+overlayStroke),
		image.Rect(x0, y1-overlayStroke, x1, y1),
		image.Rect(x0, y0, x0+overlayStroke, y1),
		image.Rect(x1-overlayStroke, y0, x1, y1),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}
