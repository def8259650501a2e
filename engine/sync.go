package engine

import (
	"context"
	"time"

	"github.com/zlnvch/layerdeck/geometry"
	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/scene"
)

const requestTimeout = 10 * time.Second

// Result is a completed layer update, posted back to the session loop.
type Result struct {
	LayerId string
	Seq     uint64
	Layer   models.Layer
	Err     error
}

// Synchronizer sends layer state to the persister. Every request carries a
// per-layer sequence number and only the response to the latest one is
// merged.
type Synchronizer struct {
	ctx       context.Context
	persister Persister
	debouncer Debouncer
	seq       map[string]uint64
	results   chan Result
}

// NewSynchronizer issues requests under ctx, normally the session's lifetime.
func NewSynchronizer(ctx context.Context, persister Persister, debouncer Debouncer) *Synchronizer {
	return &Synchronizer{
		ctx:       ctx,
		persister: persister,
		debouncer: debouncer,
		seq:       make(map[string]uint64),
		results:   make(chan Result, 256),
	}
}

// Patch is the full outbound state of a layer read from its live node.
// Width and height are the effective source size times the node zoom.
func Patch(layer models.Layer, n *scene.Node) models.LayerPatch {
	eff := geometry.EffectiveSize(n.NaturalSize(), n.Crop, geometry.Size{W: layer.Width, H: layer.Height})
	size := geometry.RenderedSize(eff, n.ScaleX, n.ScaleY)
	rotation := geometry.NormalizeAngle(n.Angle)

	p := models.LayerPatch{
		X:        ptr(n.Left),
		Y:        ptr(n.Top),
		Width:    ptr(size.W),
		Height:   ptr(size.H),
		Rotation: ptr(rotation),
		FlipX:    ptr(n.FlipX),
		FlipY:    ptr(n.FlipY),
		Opacity:  ptr(n.Opacity),
		ZIndex:   ptr(layer.ZIndex),
		Visible:  ptr(layer.Visible),
		Locked:   ptr(layer.Locked),
	}
	if n.Crop != nil {
		p.Crop = &models.CropWindow{X: n.Crop.Left, Y: n.Crop.Top, W: n.Crop.Width, H: n.Crop.Height}
	} else {
		p.ClearCrop = true
	}
	return p
}

// Schedule queues a debounced write for the layer. Responses to requests
// issued before it are stale from now on.
func (s *Synchronizer) Schedule(layerId string) {
	s.seq[layerId]++
	s.debouncer.Schedule(layerId)
}

// Send issues patch immediately and cancels any pending debounced write.
func (s *Synchronizer) Send(layerId string, patch models.LayerPatch) uint64 {
	s.debouncer.Cancel(layerId)
	s.seq[layerId]++
	seq := s.seq[layerId]

	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, requestTimeout)
		defer cancel()

		layer, err := s.persister.UpdateLayer(ctx, layerId, patch)
		select {
		case s.results <- Result{LayerId: layerId, Seq: seq, Layer: layer, Err: err}:
		case <-s.ctx.Done():
		}
	}()

	return seq
}

func (s *Synchronizer) Results() <-chan Result {
	return s.results
}

// Latest reports whether res answers the newest request issued for its layer.
func (s *Synchronizer) Latest(res Result) bool {
	cur, ok := s.seq[res.LayerId]
	return ok && res.Seq == cur
}

// Forget drops the layer's pending write and sequence, so any response still
// in flight is stale.
func (s *Synchronizer) Forget(layerId string) {
	s.debouncer.Cancel(layerId)
	delete(s.seq, layerId)
}

func ptr[T any](v T) *T {
	return &v
}
