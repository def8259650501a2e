package engine

import (
	"context"

	"github.com/zlnvch/layerdeck/geometry"
	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/scene"
)

// Binding is the bidirectional map between layer ids and live canvas nodes.
// Every bound layer has exactly one node on the canvas.
type Binding struct {
	canvas  *scene.Canvas
	loader  scene.ImageLoader
	baseURL string

	nodes  map[string]*scene.Node
	layers map[scene.Handle]string
}

func NewBinding(canvas *scene.Canvas, loader scene.ImageLoader, baseURL string) *Binding {
	return &Binding{
		canvas:  canvas,
		loader:  loader,
		baseURL: baseURL,
		nodes:   make(map[string]*scene.Node),
		layers:  make(map[scene.Handle]string),
	}
}

// SourceURL resolves the absolute image url of a layer's asset.
func (b *Binding) SourceURL(layer models.Layer) (string, error) {
	if layer.Asset == nil || layer.Asset.Url == "" {
		return "", ErrNoAsset
	}
	return scene.ResolveURL(b.baseURL, layer.Asset.Url)
}

// Build loads the layer's image and returns a node configured from the
// layer record. The node is not added to the canvas.
func (b *Binding) Build(ctx context.Context, layer models.Layer) (*scene.Node, error) {
	url, err := b.SourceURL(layer)
	if err != nil {
		return nil, &BindingError{Op: "bind", LayerId: layer.Id, Err: err}
	}

	img, err := b.loader.Load(ctx, url)
	if err != nil {
		return nil, &BindingError{Op: "bind", LayerId: layer.Id, Err: err}
	}

	n := scene.NewNode(layer.Id, img, url)
	if layer.Crop != nil {
		n.Crop = &geometry.Rect{
			Left:   layer.Crop.X,
			Top:    layer.Crop.Y,
			Width:  layer.Crop.W,
			Height: layer.Crop.H,
		}
	}

	rendered := geometry.Size{W: layer.Width, H: layer.Height}
	eff := geometry.EffectiveSize(n.NaturalSize(), n.Crop, rendered)
	n.ScaleX, n.ScaleY = geometry.ScaleFor(rendered, eff)

	n.Left = layer.X
	n.Top = layer.Y
	n.Angle = layer.Rotation
	n.FlipX = layer.FlipX
	n.FlipY = layer.FlipY
	n.Opacity = layer.Opacity
	n.Visible = layer.Visible
	n.Selectable = !layer.Locked

	return n, nil
}

// Bind builds the node for layer and attaches it. On error nothing is added.
func (b *Binding) Bind(ctx context.Context, layer models.Layer) (*scene.Node, error) {
	n, err := b.Build(ctx, layer)
	if err != nil {
		return nil, err
	}
	b.Attach(layer.Id, n)
	return n, nil
}

// Attach puts n on the canvas as the node of layerId. A previous node for
// the layer is removed from the canvas first.
func (b *Binding) Attach(layerId string, n *scene.Node) {
	b.Unbind(layerId)
	n.LayerId = layerId
	b.canvas.Add(n)
	b.nodes[layerId] = n
	b.layers[n.Handle()] = layerId
}

// Unbind removes the layer's node from the canvas.
func (b *Binding) Unbind(layerId string) {
	n, ok := b.nodes[layerId]
	if !ok {
		return
	}
	b.canvas.Remove(n)
	delete(b.nodes, layerId)
	delete(b.layers, n.Handle())
}

func (b *Binding) NodeFor(layerId string) (*scene.Node, bool) {
	n, ok := b.nodes[layerId]
	return n, ok
}

// LayerFor is the reverse lookup, by node handle.
func (b *Binding) LayerFor(n *scene.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	id, ok := b.layers[n.Handle()]
	return id, ok
}

func (b *Binding) Len() int {
	return len(b.nodes)
}

// Reset unbinds every layer.
func (b *Binding) Reset() {
	for id := range b.nodes {
		b.Unbind(id)
	}
}
