package scene

import (
	"image"

	"github.com/zlnvch/layerdeck/geometry"
)

// Handle identifies a node within one canvas. Zero means not yet added.
type Handle uint64

// Node is one renderable image on the canvas.
type Node struct {
	geometry.Transform

	handle Handle

	// LayerId records which layer produced the node
	LayerId   string
	SourceURL string
	Source    image.Image

	// Crop is the visible source rectangle in the image's natural pixel
	// space. Nil renders the whole image.
	Crop *geometry.Rect

	Opacity    float64
	Visible    bool
	Selectable bool

	// Inert is set while a crop overlay owns the interaction
	Inert bool
}

func NewNode(layerId string, src image.Image, sourceURL string) *Node {
	return &Node{
		Transform: geometry.Transform{ScaleX: 1, ScaleY: 1},
		LayerId:   layerId,
		SourceURL: sourceURL,
		Source:    src,
		Opacity:   1,
		Visible:   true,
	}
}

func (n *Node) Handle() Handle {
	return n.handle
}

// NaturalSize is the size of the decoded source image.
func (n *Node) NaturalSize() geometry.Size {
	if n.Source == nil {
		return geometry.Size{}
	}
	b := n.Source.Bounds()
	return geometry.Size{W: float64(b.Dx()), H: float64(b.Dy())}
}

// SourceSize is the size of the visible source region.
func (n *Node) SourceSize() geometry.Size {
	if n.Crop != nil {
		return n.Crop.Size()
	}
	return n.NaturalSize()
}

func (n *Node) ScaledWidth() float64 {
	return n.SourceSize().W * n.ScaleX
}

func (n *Node) ScaledHeight() float64 {
	return n.SourceSize().H * n.ScaleY
}

// Bounds is the unrotated on-screen box of the node.
func (n *Node) Bounds() geometry.Rect {
	return geometry.Rect{
		Left:   n.Left,
		Top:    n.Top,
		Width:  n.ScaledWidth(),
		Height: n.ScaledHeight(),
	}
}

// Interactive reports whether the node accepts selection and drag gestures.
func (n *Node) Interactive() bool {
	return n.Visible && n.Selectable && !n.Inert
}
