package engine

import (
	"context"

	"github.com/zlnvch/layerdeck/geometry"
	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/scene"
)

type CropState int

const (
	CropIdle CropState = iota
	CropPending
)

func (s CropState) String() string {
	if s == CropPending {
		return "pending"
	}
	return "idle"
}

type pendingCrop struct {
	layerId string
	node    *scene.Node
	overlay *scene.Overlay
	// transform captured when crop mode was entered
	before geometry.Transform
}

// CropEngine runs the interactive crop of one layer at a time. Entering crop
// on a second layer cancels the first.
type CropEngine struct {
	canvas  *scene.Canvas
	binding *Binding
	pending *pendingCrop
}

func NewCropEngine(canvas *scene.Canvas, binding *Binding) *CropEngine {
	return &CropEngine{canvas: canvas, binding: binding}
}

func (e *CropEngine) State(layerId string) CropState {
	if e.pending != nil && e.pending.layerId == layerId {
		return CropPending
	}
	return CropIdle
}

// Pending returns the id of the layer being cropped, or "".
func (e *CropEngine) Pending() string {
	if e.pending == nil {
		return ""
	}
	return e.pending.layerId
}

// Overlay returns the current crop rectangle in canvas space.
func (e *CropEngine) Overlay(layerId string) (geometry.Rect, bool) {
	if e.State(layerId) != CropPending {
		return geometry.Rect{}, false
	}
	return e.pending.overlay.Rect, true
}

// Enter overlays a crop rectangle on the layer's on-screen box and makes its
// node inert until the crop is applied or cancelled.
func (e *CropEngine) Enter(layer models.Layer) error {
	n, ok := e.binding.NodeFor(layer.Id)
	if !ok {
		return &PreconditionError{Op: "crop", LayerId: layer.Id, Err: ErrNotBound}
	}
	if layer.Locked {
		return &PreconditionError{Op: "crop", LayerId: layer.Id, Err: ErrLocked}
	}
	if _, err := e.binding.SourceURL(layer); err != nil {
		return &PreconditionError{Op: "crop", LayerId: layer.Id, Err: ErrNoAsset}
	}

	if e.pending != nil {
		if e.pending.layerId == layer.Id {
			return nil
		}
		e.restore()
	}

	overlay, err := e.canvas.AddOverlay(n.Bounds(), n)
	if err != nil {
		return &PreconditionError{Op: "crop", LayerId: layer.Id, Err: err}
	}

	n.Inert = true
	e.canvas.ClearActive()
	e.pending = &pendingCrop{
		layerId: layer.Id,
		node:    n,
		overlay: overlay,
		before:  n.Transform,
	}
	return nil
}

// Adjust moves or resizes the crop rectangle.
func (e *CropEngine) Adjust(layerId string, rect geometry.Rect) error {
	if e.State(layerId) != CropPending {
		return &PreconditionError{Op: "crop", LayerId: layerId, Err: ErrCropNotPending}
	}
	if !geometry.Finite(rect.Left, rect.Top, rect.Width, rect.Height) {
		return &ValidationError{Op: "crop", LayerId: layerId, Err: ErrNonFinite}
	}
	if rect.Width <= 0 || rect.Height <= 0 {
		return &ValidationError{Op: "crop", LayerId: layerId, Err: ErrNonPositiveSize}
	}
	e.pending.overlay.Rect = rect
	return nil
}

// Apply commits the crop. The layer's node is replaced by a fresh one showing
// only the new crop window; position, rotation, flip, opacity, visibility,
// lock and the rendered box size carry over unchanged. On a binding failure
// the original node is restored and crop mode ends.
func (e *CropEngine) Apply(ctx context.Context, layer models.Layer) (*scene.Node, geometry.Rect, error) {
	if e.State(layer.Id) != CropPending {
		return nil, geometry.Rect{}, &PreconditionError{Op: "crop", LayerId: layer.Id, Err: ErrCropNotPending}
	}
	p := e.pending
	old := p.node

	crop := geometry.CropFromRect(p.overlay.Rect, p.before, old.Crop, old.NaturalSize())

	cropped := layer
	cropped.Crop = &models.CropWindow{X: crop.Left, Y: crop.Top, W: crop.Width, H: crop.Height}
	n, err := e.binding.Build(ctx, cropped)
	if err != nil {
		e.restore()
		return nil, geometry.Rect{}, err
	}

	rendered := old.Bounds().Size()
	n.Transform = old.Transform
	n.ScaleX, n.ScaleY = geometry.ScaleFor(rendered, crop.Size())
	n.Opacity = old.Opacity
	n.Visible = old.Visible
	n.Selectable = old.Selectable

	e.canvas.RemoveOverlay()
	e.binding.Attach(layer.Id, n)
	e.pending = nil
	if n.Interactive() {
		e.canvas.SetActive(n)
	}
	return n, crop, nil
}

// Cancel discards the overlay and leaves the node as it was.
func (e *CropEngine) Cancel(layerId string) error {
	if e.State(layerId) != CropPending {
		return &PreconditionError{Op: "crop", LayerId: layerId, Err: ErrCropNotPending}
	}
	e.restore()
	return nil
}

// Abort ends any pending crop without an error.
func (e *CropEngine) Abort() {
	if e.pending != nil {
		e.restore()
	}
}

func (e *CropEngine) restore() {
	p := e.pending
	e.pending = nil
	e.canvas.RemoveOverlay()
	p.node.Inert = false
	if e.canvas.Contains(p.node) && p.node.Interactive() {
		e.canvas.SetActive(p.node)
	}
}
