package engine_test

import (
	"context"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/layerdeck/engine"
	"github.com/zlnvch/layerdeck/engine/mocks"
	"github.com/zlnvch/layerdeck/models"
)

const baseURL = "http://assets.local"

func newImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func asset(id string, w, h int) models.Asset {
	return models.Asset{Id: id, Url: "/uploads/" + id + ".png", Width: w, Height: h}
}

func imageLayer(id string, z int, a models.Asset) models.Layer {
	return models.Layer{
		Id:       id,
		DesignId: "design-1",
		Type:     models.LayerImage,
		AssetId:  a.Id,
		Asset:    &a,
		ZIndex:   z,
		X:        50,
		Y:        50,
		Width:    float64(a.Width),
		Height:   float64(a.Height),
		Opacity:  1,
		Visible:  true,
	}
}

// fakeServer echoes layer writes the way the store would.
type fakeServer struct {
	mu     sync.Mutex
	layers map[string]models.Layer
	nextId int
}

func newFakeServer(layers ...models.Layer) *fakeServer {
	s := &fakeServer{layers: make(map[string]models.Layer)}
	for _, l := range layers {
		s.layers[l.Id] = l
	}
	return s
}

func (s *fakeServer) update(id string, patch models.LayerPatch) models.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.layers[id]
	patch.Apply(&l)
	s.layers[id] = l
	return l
}

func (s *fakeServer) create(spec models.LayerSpec) models.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId++
	l := models.Layer{
		Id:       fmt.Sprintf("L%d", s.nextId),
		DesignId: spec.DesignId,
		Type:     spec.Type,
		AssetId:  spec.AssetId,
		ZIndex:   spec.ZIndex,
		X:        spec.X,
		Y:        spec.Y,
		Width:    spec.Width,
		Height:   spec.Height,
		Opacity:  spec.Opacity,
		Visible:  spec.Visible,
		Locked:   spec.Locked,
	}
	s.layers[l.Id] = l
	return l
}

// recordingDebouncer keeps scheduled keys for the test to flush by hand.
type recordingDebouncer struct {
	scheduled []string
	cancelled []string
}

func (d *recordingDebouncer) Schedule(key string) { d.scheduled = append(d.scheduled, key) }
func (d *recordingDebouncer) Cancel(key string)   { d.cancelled = append(d.cancelled, key) }

type harness struct {
	ctrl      *engine.Controller
	persister *mocks.MockPersister
	uploader  *mocks.MockUploader
	loader    *mocks.MockLoader
	debouncer engine.Debouncer
	server    *fakeServer
}

func newHarness(t *testing.T, debouncer engine.Debouncer, design models.Design) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{
		persister: new(mocks.MockPersister),
		uploader:  new(mocks.MockUploader),
		loader:    new(mocks.MockLoader),
		debouncer: debouncer,
		server:    newFakeServer(design.Layers...),
	}
	if h.debouncer == nil {
		h.debouncer = &recordingDebouncer{}
	}

	h.persister.On("LoadDesign", mock.Anything, design.Id).Return(design, nil)
	h.persister.On("UpdateLayer", mock.Anything, mock.Anything, mock.Anything).
		Return(h.server.update, nil).Maybe()
	h.persister.On("CreateLayer", mock.Anything, mock.Anything).
		Return(h.server.create, nil).Maybe()

	opts := engine.DefaultOptions()
	opts.AssetBaseURL = baseURL
	h.ctrl = engine.NewController(ctx, h.persister, h.uploader, h.loader, h.debouncer, opts)
	return h
}

func (h *harness) serve(a models.Asset, img image.Image) {
	h.loader.On("Load", mock.Anything, baseURL+a.Url).Return(img, nil)
}

func (h *harness) open(t *testing.T, designId string) {
	t.Helper()
	require.NoError(t, h.ctrl.Load(context.Background(), designId))
}

// drain hands n completed requests back to the controller.
func (h *harness) drain(t *testing.T, n int) []engine.Result {
	t.Helper()
	var out []engine.Result
	for i := 0; i < n; i++ {
		select {
		case res := <-h.ctrl.Posted():
			h.ctrl.Complete(res)
			out = append(out, res)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for result %d of %d", i+1, n)
		}
	}
	return out
}

func (h *harness) layer(t *testing.T, id string) models.Layer {
	t.Helper()
	l, ok := h.ctrl.Layer(id)
	require.True(t, ok, "layer %s", id)
	return l
}

func paintOrder(h *harness) []string {
	var ids []string
	for _, n := range h.ctrl.Canvas().Objects() {
		ids = append(ids, n.LayerId)
	}
	return ids
}

func design(id string, w, h int, layers ...models.Layer) models.Design {
	return models.Design{Id: id, Title: "test", Width: w, Height: h, Layers: layers}
}
