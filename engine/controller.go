package engine

import (
	"cmp"
	"context"
	"log"
	"math"
	"slices"

	"github.com/zlnvch/layerdeck/geometry"
	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/scene"
)

type Options struct {
	// AssetBaseURL resolves relative asset urls
	AssetBaseURL  string
	DefaultX      float64
	DefaultY      float64
	DefaultWidth  float64
	DefaultHeight float64
}

func DefaultOptions() Options {
	return Options{
		DefaultX:      50,
		DefaultY:      50,
		DefaultWidth:  200,
		DefaultHeight: 200,
	}
}

// Controller owns the layer collection and canvas of one open design. It is
// not safe for concurrent use; a single session loop calls every method,
// including Complete for results read from Posted and Flush for keys the
// debouncer reports due.
type Controller struct {
	persister Persister
	uploader  AssetUploader
	loader    scene.ImageLoader
	opts      Options

	design   models.Design
	layers   []models.Layer
	selected string

	canvas   *scene.Canvas
	binding  *Binding
	resolver *Resolver
	crop     *CropEngine
	sync     *Synchronizer

	notices []error
}

// NewController returns a controller whose background requests live as long
// as ctx.
func NewController(ctx context.Context, persister Persister, uploader AssetUploader, loader scene.ImageLoader, debouncer Debouncer, opts Options) *Controller {
	return &Controller{
		persister: persister,
		uploader:  uploader,
		loader:    loader,
		opts:      opts,
		sync:      NewSynchronizer(ctx, persister, debouncer),
	}
}

// Load opens a design, binds every layer and resolves paint order. Layers
// that fail to bind stay in the collection unbound and produce a notice.
func (c *Controller) Load(ctx context.Context, designId string) error {
	design, err := c.persister.LoadDesign(ctx, designId)
	if err != nil {
		return &PersistenceError{Op: "load", Err: err}
	}

	c.close()

	layers := slices.Clone(design.Layers)
	design.Layers = nil
	slices.SortStableFunc(layers, func(a, b models.Layer) int {
		return cmp.Compare(a.ZIndex, b.ZIndex)
	})

	c.design = design
	c.layers = layers
	c.canvas = scene.NewCanvas(design.Width, design.Height)
	c.binding = NewBinding(c.canvas, c.loader, c.opts.AssetBaseURL)
	c.resolver = NewResolver(c.canvas, c.binding, c.zIndex)
	c.crop = NewCropEngine(c.canvas, c.binding)

	c.canvas.OnMoving(c.nodeMoving)
	c.canvas.OnModified(c.nodeModified)
	c.canvas.OnSelection(c.selectionChanged)

	for _, l := range c.layers {
		if l.Type != "" && l.Type != models.LayerImage {
			continue
		}
		if _, err := c.binding.Bind(ctx, l); err != nil {
			log.Printf("Failed to bind layer %s: %v", l.Id, err)
			c.notify(err)
		}
	}

	return c.resolve()
}

func (c *Controller) close() {
	if c.canvas == nil {
		return
	}
	c.crop.Abort()
	for _, l := range c.layers {
		c.sync.Forget(l.Id)
	}
	c.binding.Reset()
	c.selected = ""
}

func (c *Controller) Loaded() bool {
	return c.canvas != nil
}

func (c *Controller) Design() models.Design {
	return c.design
}

func (c *Controller) Canvas() *scene.Canvas {
	return c.canvas
}

// Layers returns a copy of the layer collection in collection order.
func (c *Controller) Layers() []models.Layer {
	return slices.Clone(c.layers)
}

func (c *Controller) Layer(id string) (models.Layer, bool) {
	i := c.indexOf(id)
	if i == -1 {
		return models.Layer{}, false
	}
	return c.layers[i], true
}

// Selected returns the selected layer id, or "".
func (c *Controller) Selected() string {
	return c.selected
}

// CropPending returns the id of the layer in crop mode, or "".
func (c *Controller) CropPending() string {
	if c.crop == nil {
		return ""
	}
	return c.crop.Pending()
}

func (c *Controller) CropOverlay() (geometry.Rect, bool) {
	if c.crop == nil {
		return geometry.Rect{}, false
	}
	return c.crop.Overlay(c.crop.Pending())
}

// Posted delivers completed persistence requests. Hand each to Complete.
func (c *Controller) Posted() <-chan Result {
	return c.sync.Results()
}

// TakeNotices returns and clears the errors recorded by background work.
func (c *Controller) TakeNotices() []error {
	n := c.notices
	c.notices = nil
	return n
}

// AddLayerFromFile uploads the file and adds it as a new top layer.
func (c *Controller) AddLayerFromFile(ctx context.Context, upload models.Upload) (models.Layer, error) {
	if !c.Loaded() {
		return models.Layer{}, &PreconditionError{Op: "add", Err: ErrNotLoaded}
	}
	asset, err := c.uploader.UploadAsset(ctx, upload)
	if err != nil {
		return models.Layer{}, &PersistenceError{Op: "upload", Err: err}
	}
	return c.AddLayerFromAsset(ctx, asset)
}

// AddLayerFromAsset creates a layer above every existing one. The image is
// loaded before the layer is created so a bad source leaves nothing behind.
func (c *Controller) AddLayerFromAsset(ctx context.Context, asset models.Asset) (models.Layer, error) {
	if !c.Loaded() {
		return models.Layer{}, &PreconditionError{Op: "add", Err: ErrNotLoaded}
	}

	width, height := c.opts.DefaultWidth, c.opts.DefaultHeight
	if asset.Width > 0 && asset.Height > 0 {
		width, height = float64(asset.Width), float64(asset.Height)
	}

	spec := models.LayerSpec{
		Type:     models.LayerImage,
		DesignId: c.design.Id,
		AssetId:  asset.Id,
		X:        c.opts.DefaultX,
		Y:        c.opts.DefaultY,
		Width:    width,
		Height:   height,
		Opacity:  1,
		ZIndex:   c.nextZIndex(),
		Visible:  true,
	}

	draft := models.Layer{
		Type:    spec.Type,
		AssetId: spec.AssetId,
		Asset:   &asset,
		X:       spec.X,
		Y:       spec.Y,
		Width:   spec.Width,
		Height:  spec.Height,
		Opacity: spec.Opacity,
		ZIndex:  spec.ZIndex,
		Visible: spec.Visible,
	}
	n, err := c.binding.Build(ctx, draft)
	if err != nil {
		return models.Layer{}, err
	}

	layer, err := c.persister.CreateLayer(ctx, spec)
	if err != nil {
		return models.Layer{}, &PersistenceError{Op: "add", Err: err}
	}
	if layer.Asset == nil {
		layer.Asset = &asset
	}

	c.layers = append(c.layers, layer)
	c.binding.Attach(layer.Id, n)
	c.canvas.SetActive(n)

	return layer, c.resolve()
}

func (c *Controller) nextZIndex() int {
	if len(c.layers) == 0 {
		return 0
	}
	top := c.layers[0].ZIndex
	for _, l := range c.layers[1:] {
		top = max(top, l.ZIndex)
	}
	return top + 1
}

// DeleteLayer removes an unlocked layer from the canvas and the collection,
// then deletes it remotely. A remote failure is reported but not reverted.
func (c *Controller) DeleteLayer(ctx context.Context, id string) error {
	layer, err := c.editable("delete", id)
	if err != nil {
		return err
	}

	if c.crop.State(id) == CropPending {
		c.crop.Abort()
	}
	c.sync.Forget(id)
	c.binding.Unbind(id)
	c.layers = slices.DeleteFunc(c.layers, func(l models.Layer) bool { return l.Id == layer.Id })
	if err := c.resolve(); err != nil {
		return err
	}

	if err := c.persister.DeleteLayer(ctx, id); err != nil {
		return &PersistenceError{Op: "delete", LayerId: id, Err: err}
	}
	return nil
}

// ToggleVisibility flips a layer's visible flag. Locked layers are allowed.
func (c *Controller) ToggleVisibility(id string) error {
	if !c.Loaded() {
		return &PreconditionError{Op: "visibility", LayerId: id, Err: ErrNotLoaded}
	}
	i := c.indexOf(id)
	if i == -1 {
		return &PreconditionError{Op: "visibility", LayerId: id, Err: ErrLayerNotFound}
	}

	c.layers[i].Visible = !c.layers[i].Visible
	n, ok := c.binding.NodeFor(id)
	if !ok {
		c.sync.Send(id, models.LayerPatch{Visible: ptr(c.layers[i].Visible)})
		return nil
	}

	n.Visible = c.layers[i].Visible
	if !n.Visible && c.canvas.Active() == n {
		c.canvas.ClearActive()
	}
	c.commit(id)
	return nil
}

// Select makes the layer the target of transform operations.
func (c *Controller) Select(id string) error {
	if _, err := c.editable("select", id); err != nil {
		return err
	}
	n, ok := c.binding.NodeFor(id)
	if !ok {
		return &PreconditionError{Op: "select", LayerId: id, Err: ErrNotBound}
	}
	if !n.Visible {
		return &PreconditionError{Op: "select", LayerId: id, Err: ErrHidden}
	}
	if err := c.canvas.SetActive(n); err != nil {
		return &PreconditionError{Op: "select", LayerId: id, Err: err}
	}
	return nil
}

func (c *Controller) ClearSelection() {
	if c.Loaded() {
		c.canvas.ClearActive()
	}
}

// Pick selects the topmost interactive layer under a canvas point and
// returns its id, or clears the selection when there is none.
func (c *Controller) Pick(x, y float64) (string, error) {
	if !c.Loaded() {
		return "", &PreconditionError{Op: "pick", Err: ErrNotLoaded}
	}
	if !geometry.Finite(x, y) {
		return "", &ValidationError{Op: "pick", Err: ErrNonFinite}
	}
	n := c.canvas.Pick(x, y)
	if n == nil {
		c.canvas.ClearActive()
		return "", nil
	}
	c.canvas.SetActive(n)
	return c.selected, nil
}

// MoveLayer swaps the layer's z-index with its neighbour and persists both.
// Nothing changes when the layer is already at the edge of the stack.
func (c *Controller) MoveLayer(id string, dir Direction) error {
	if !c.Loaded() {
		return &PreconditionError{Op: "move", LayerId: id, Err: ErrNotLoaded}
	}
	changed, err := MoveLayer(c.layers, id, dir)
	if err != nil || changed == nil {
		return err
	}

	for _, l := range changed {
		i := c.indexOf(l.Id)
		c.layers[i].ZIndex = l.ZIndex
		if _, ok := c.binding.NodeFor(l.Id); !ok {
			c.sync.Send(l.Id, models.LayerPatch{ZIndex: ptr(l.ZIndex)})
			continue
		}
		c.commit(l.Id)
	}
	return c.resolve()
}

// Rotate turns the selected layer by delta degrees.
func (c *Controller) Rotate(delta float64) error {
	if !geometry.Finite(delta) {
		return &ValidationError{Op: "rotate", Err: ErrNonFinite}
	}
	id, n, err := c.selectedNode("rotate")
	if err != nil {
		return err
	}
	n.Transform = geometry.Rotate(n.Transform, delta)
	c.commit(id)
	return nil
}

// Flip mirrors the selected layer along axis.
func (c *Controller) Flip(axis geometry.Axis) error {
	if axis != geometry.AxisHorizontal && axis != geometry.AxisVertical {
		return &ValidationError{Op: "flip", Err: ErrUnknownAxis}
	}
	id, n, err := c.selectedNode("flip")
	if err != nil {
		return err
	}
	n.Transform = geometry.Flip(n.Transform, axis)
	c.commit(id)
	return nil
}

// Scale multiplies the selected layer's zoom by factor. The rendered box may
// not drop below one pixel on either side.
func (c *Controller) Scale(factor float64) error {
	if !geometry.Finite(factor) || factor <= 0 {
		return &ValidationError{Op: "scale", Err: ErrNonPositiveSize}
	}
	id, n, err := c.selectedNode("scale")
	if err != nil {
		return err
	}

	next := geometry.Scale(n.Transform, factor)
	size := geometry.RenderedSize(n.SourceSize(), next.ScaleX, next.ScaleY)
	if size.W < 1 || size.H < 1 || math.IsInf(size.W, 0) || math.IsInf(size.H, 0) {
		return &ValidationError{Op: "scale", LayerId: id, Err: ErrBelowMinimum}
	}

	n.Transform = next
	c.commit(id)
	return nil
}

// Drag moves a layer as one step of a continuous gesture. The write is
// debounced.
func (c *Controller) Drag(id string, left, top float64) error {
	if !geometry.Finite(left, top) {
		return &ValidationError{Op: "drag", LayerId: id, Err: ErrNonFinite}
	}
	n, err := c.gestureNode("drag", id)
	if err != nil {
		return err
	}
	if err := c.canvas.Drag(n, left, top); err != nil {
		return &PreconditionError{Op: "drag", LayerId: id, Err: err}
	}
	return nil
}

// Drop ends a gesture and writes the final state immediately.
func (c *Controller) Drop(id string) error {
	n, err := c.gestureNode("drop", id)
	if err != nil {
		return err
	}
	if err := c.canvas.Drop(n); err != nil {
		return &PreconditionError{Op: "drop", LayerId: id, Err: err}
	}
	return nil
}

func (c *Controller) EnterCrop(id string) error {
	layer, err := c.editable("crop", id)
	if err != nil {
		return err
	}
	return c.crop.Enter(layer)
}

func (c *Controller) AdjustCrop(id string, rect geometry.Rect) error {
	if !c.Loaded() {
		return &PreconditionError{Op: "crop", LayerId: id, Err: ErrNotLoaded}
	}
	return c.crop.Adjust(id, rect)
}

// ApplyCrop commits the pending crop and persists the new crop window
// immediately.
func (c *Controller) ApplyCrop(ctx context.Context, id string) error {
	layer, err := c.editable("crop", id)
	if err != nil {
		return err
	}
	if _, _, err := c.crop.Apply(ctx, layer); err != nil {
		return err
	}
	c.commit(id)
	return c.resolve()
}

func (c *Controller) CancelCrop(id string) error {
	if !c.Loaded() {
		return &PreconditionError{Op: "crop", LayerId: id, Err: ErrNotLoaded}
	}
	return c.crop.Cancel(id)
}

// Flush sends the current state of a layer whose debounced write came due.
func (c *Controller) Flush(id string) {
	if !c.Loaded() {
		return
	}
	i := c.indexOf(id)
	if i == -1 {
		return
	}
	if n, ok := c.binding.NodeFor(id); ok {
		c.sync.Send(id, Patch(c.layers[i], n))
	}
}

// Complete merges a finished request into the collection when it answers
// the newest request for its layer. Failures become notices; local state is
// kept as is.
func (c *Controller) Complete(res Result) {
	if res.Err != nil {
		log.Printf("Failed to update layer %s: %v", res.LayerId, res.Err)
		c.notify(&PersistenceError{Op: "update", LayerId: res.LayerId, Err: res.Err})
		return
	}
	if !c.sync.Latest(res) {
		return
	}
	i := c.indexOf(res.LayerId)
	if i == -1 {
		return
	}

	merged := res.Layer
	if merged.Asset == nil {
		merged.Asset = c.layers[i].Asset
	}
	c.layers[i] = merged
}

// commit applies the node state to the in-memory layer and sends it.
func (c *Controller) commit(id string) {
	i := c.indexOf(id)
	n, ok := c.binding.NodeFor(id)
	if i == -1 || !ok {
		return
	}
	patch := Patch(c.layers[i], n)
	patch.Apply(&c.layers[i])
	c.sync.Send(id, patch)
}

func (c *Controller) nodeMoving(n *scene.Node) {
	id, ok := c.binding.LayerFor(n)
	if !ok {
		return
	}
	if i := c.indexOf(id); i != -1 {
		Patch(c.layers[i], n).Apply(&c.layers[i])
		c.sync.Schedule(id)
	}
}

func (c *Controller) nodeModified(n *scene.Node) {
	id, ok := c.binding.LayerFor(n)
	if !ok {
		return
	}
	c.commit(id)
	if err := c.resolve(); err != nil {
		c.notify(err)
	}
}

func (c *Controller) selectionChanged(n *scene.Node) {
	c.selected = ""
	if id, ok := c.binding.LayerFor(n); ok {
		c.selected = id
	}
}

func (c *Controller) selectedNode(op string) (string, *scene.Node, error) {
	if !c.Loaded() {
		return "", nil, &PreconditionError{Op: op, Err: ErrNotLoaded}
	}
	if c.selected == "" {
		return "", nil, &PreconditionError{Op: op, Err: ErrNoSelection}
	}
	n, err := c.gestureNode(op, c.selected)
	return c.selected, n, err
}

// gestureNode returns the node of an unlocked layer that is not being cropped.
func (c *Controller) gestureNode(op, id string) (*scene.Node, error) {
	if _, err := c.editable(op, id); err != nil {
		return nil, err
	}
	if c.crop.State(id) == CropPending {
		return nil, &PreconditionError{Op: op, LayerId: id, Err: ErrCropInProgress}
	}
	n, ok := c.binding.NodeFor(id)
	if !ok {
		return nil, &PreconditionError{Op: op, LayerId: id, Err: ErrNotBound}
	}
	return n, nil
}

// editable returns the layer if it exists and is not locked.
func (c *Controller) editable(op, id string) (models.Layer, error) {
	if !c.Loaded() {
		return models.Layer{}, &PreconditionError{Op: op, LayerId: id, Err: ErrNotLoaded}
	}
	i := c.indexOf(id)
	if i == -1 {
		return models.Layer{}, &PreconditionError{Op: op, LayerId: id, Err: ErrLayerNotFound}
	}
	if c.layers[i].Locked {
		return models.Layer{}, &PreconditionError{Op: op, LayerId: id, Err: ErrLocked}
	}
	return c.layers[i], nil
}

func (c *Controller) resolve() error {
	if err := c.resolver.Resolve(); err != nil {
		log.Printf("Failed to resolve paint order for design %s: %v", c.design.Id, err)
		return err
	}
	return nil
}

func (c *Controller) zIndex(id string) (int, bool) {
	i := c.indexOf(id)
	if i == -1 {
		return 0, false
	}
	return c.layers[i].ZIndex, true
}

func (c *Controller) indexOf(id string) int {
	return slices.IndexFunc(c.layers, func(l models.Layer) bool { return l.Id == id })
}

func (c *Controller) notify(err error) {
	c.notices = append(c.notices, err)
}
