package engine

import (
	"cmp"
	"slices"

	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/scene"
)

type Direction string

const (
	MoveUp   Direction = "up"
	MoveDown Direction = "down"
)

// Resolver derives canvas paint order from layer z-indexes.
type Resolver struct {
	canvas  *scene.Canvas
	binding *Binding
	zIndex  func(layerId string) (int, bool)
}

func NewResolver(canvas *scene.Canvas, binding *Binding, zIndex func(layerId string) (int, bool)) *Resolver {
	return &Resolver{canvas: canvas, binding: binding, zIndex: zIndex}
}

// Resolve stable-sorts the canvas nodes ascending by their layer's z-index
// and replaces the paint order. Nodes with no known layer sort as z 0. The
// active node is kept.
func (r *Resolver) Resolve() error {
	nodes := r.canvas.Objects()
	z := make(map[*scene.Node]int, len(nodes))
	for _, n := range nodes {
		if id, ok := r.binding.LayerFor(n); ok {
			if v, ok := r.zIndex(id); ok {
				z[n] = v
			}
		}
	}

	slices.SortStableFunc(nodes, func(a, b *scene.Node) int {
		return cmp.Compare(z[a], z[b])
	})
	return r.canvas.SetOrder(nodes)
}

// MoveLayer swaps the z-index of the target with its neighbour in the given
// direction, in the stack sorted top first. It returns the two changed
// layers, or nil when the target is already extremal.
func MoveLayer(layers []models.Layer, id string, dir Direction) ([]models.Layer, error) {
	var step int
	switch dir {
	case MoveUp:
		step = -1
	case MoveDown:
		step = 1
	default:
		return nil, &ValidationError{Op: "move", LayerId: id, Err: ErrUnknownMove}
	}

	stack := slices.Clone(layers)
	slices.SortStableFunc(stack, func(a, b models.Layer) int {
		return cmp.Compare(b.ZIndex, a.ZIndex)
	})

	idx := slices.IndexFunc(stack, func(l models.Layer) bool { return l.Id == id })
	if idx == -1 {
		return nil, &PreconditionError{Op: "move", LayerId: id, Err: ErrLayerNotFound}
	}

	next := idx + step
	if next < 0 || next >= len(stack) {
		return nil, nil
	}

	target, neighbour := stack[idx], stack[next]
	if target.Locked || neighbour.Locked {
		return nil, &PreconditionError{Op: "move", LayerId: id, Err: ErrLocked}
	}

	target.ZIndex, neighbour.ZIndex = neighbour.ZIndex, target.ZIndex
	return []models.Layer{target, neighbour}, nil
}
