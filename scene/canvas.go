// Package scene is the live rendering surface of an open design: an ordered
// list of image nodes, the active selection, an optional crop overlay and
// the gesture events the composition engine listens to.
//
// A Canvas is not safe for concurrent use. It is owned by one editing
// session goroutine.
package scene

import (
	"errors"
	"image/color"

	"github.com/zlnvch/layerdeck/geometry"
)

var (
	ErrNodeNotFound   = errors.New("node is not on the canvas")
	ErrNotInteractive = errors.New("node does not accept gestures")
	ErrOrderMismatch  = errors.New("new order is not a permutation of the canvas nodes")
)

type Listener func(n *Node)

// Overlay is the adjustable crop rectangle drawn above every node.
type Overlay struct {
	geometry.Rect
	Target Handle
}

type Canvas struct {
	width      int
	height     int
	background color.Color
	nodes      []*Node
	nextHandle Handle
	active     *Node
	overlay    *Overlay

	onMoving    []Listener
	onModified  []Listener
	onSelection []Listener
}

func NewCanvas(width, height int) *Canvas {
	return &Canvas{
		width:      width,
		height:     height,
		background: color.White,
	}
}

func (c *Canvas) Width() int {
	return c.width
}

func (c *Canvas) Height() int {
	return c.height
}

// OnMoving registers a listener fired for every in-progress drag step.
func (c *Canvas) OnMoving(fn Listener) {
	c.onMoving = append(c.onMoving, fn)
}

// OnModified registers a listener fired when a gesture completes.
func (c *Canvas) OnModified(fn Listener) {
	c.onModified = append(c.onModified, fn)
}

// OnSelection registers a listener fired when the active node changes.
// The listener receives nil when the selection is cleared.
func (c *Canvas) OnSelection(fn Listener) {
	c.onSelection = append(c.onSelection, fn)
}

// Add appends n on top of the stack and assigns its handle.
func (c *Canvas) Add(n *Node) {
	if c.Contains(n) {
		return
	}
	if n.handle == 0 {
		c.nextHandle++
		n.handle = c.nextHandle
	}
	c.nodes = append(c.nodes, n)
}

// Remove takes nodes off the canvas. The selection is cleared if it pointed
// at one of them.
func (c *Canvas) Remove(nodes ...*Node) {
	for _, n := range nodes {
		idx := c.indexOf(n)
		if idx == -1 {
			continue
		}
		c.nodes = append(c.nodes[:idx], c.nodes[idx+1:]...)
		if c.active == n {
			c.setActive(nil)
		}
		if c.overlay != nil && c.overlay.Target == n.handle {
			c.overlay = nil
		}
	}
}

// Objects returns the nodes in paint order (first is painted first).
func (c *Canvas) Objects() []*Node {
	out := make([]*Node, len(c.nodes))
	copy(out, c.nodes)
	return out
}

func (c *Canvas) Len() int {
	return len(c.nodes)
}

func (c *Canvas) Contains(n *Node) bool {
	return c.indexOf(n) != -1
}

func (c *Canvas) indexOf(n *Node) int {
	if n == nil {
		return -1
	}
	for i, existing := range c.nodes {
		if existing == n {
			return i
		}
	}
	return -1
}

// SetOrder atomically replaces the paint order. order must contain exactly
// the nodes currently on the canvas. The active node is kept.
func (c *Canvas) SetOrder(order []*Node) error {
	if len(order) != len(c.nodes) {
		return ErrOrderMismatch
	}
	seen := make(map[*Node]struct{}, len(order))
	for _, n := range order {
		if !c.Contains(n) {
			return ErrOrderMismatch
		}
		if _, dup := seen[n]; dup {
			return ErrOrderMismatch
		}
		seen[n] = struct{}{}
	}

	c.nodes = append(c.nodes[:0:0], order...)
	return nil
}

func (c *Canvas) Active() *Node {
	return c.active
}

func (c *Canvas) SetActive(n *Node) error {
	if !c.Contains(n) {
		return ErrNodeNotFound
	}
	c.setActive(n)
	return nil
}

func (c *Canvas) ClearActive() {
	c.setActive(nil)
}

func (c *Canvas) setActive(n *Node) {
	if c.active == n {
		return
	}
	c.active = n
	for _, fn := range c.onSelection {
		fn(n)
	}
}

// AddOverlay places the crop overlay over target. An existing overlay is
// replaced.
func (c *Canvas) AddOverlay(rect geometry.Rect, target *Node) (*Overlay, error) {
	if !c.Contains(target) {
		return nil, ErrNodeNotFound
	}
	c.overlay = &Overlay{Rect: rect, Target: target.handle}
	return c.overlay, nil
}

func (c *Canvas) Overlay() *Overlay {
	return c.overlay
}

func (c *Canvas) RemoveOverlay() {
	c.overlay = nil
}

// Drag moves n to (left, top) as one step of an in-progress gesture.
func (c *Canvas) Drag(n *Node, left, top float64) error {
	if !c.Contains(n) {
		return ErrNodeNotFound
	}
	if !n.Interactive() {
		return ErrNotInteractive
	}
	n.Left = left
	n.Top = top
	for _, fn := range c.onMoving {
		fn(n)
	}
	return nil
}

// Drop completes the gesture on n.
func (c *Canvas) Drop(n *Node) error {
	if !c.Contains(n) {
		return ErrNodeNotFound
	}
	if !n.Interactive() {
		return ErrNotInteractive
	}
	for _, fn := range c.onModified {
		fn(n)
	}
	return nil
}

// Pick returns the topmost interactive node under (x, y), or nil.
func (c *Canvas) Pick(x, y float64) *Node {
	for i := len(c.nodes) - 1; i >= 0; i-- {
		n := c.nodes[i]
		if !n.Interactive() {
			continue
		}
		if hit(n, x, y) {
			return n
		}
	}
	return nil
}
