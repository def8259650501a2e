package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/layerdeck/engine"
	"github.com/zlnvch/layerdeck/engine/mocks"
	"github.com/zlnvch/layerdeck/geometry"
	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/scene"
)

func TestBinding_BuildDerivesZoomFromRenderedBox(t *testing.T) {
	a := asset("a", 1000, 500)
	l := imageLayer("L1", 3, a)
	l.Crop = &models.CropWindow{X: 100, Y: 50, W: 400, H: 200}
	l.Width, l.Height = 200, 400
	l.Rotation = 90
	l.FlipY = true
	l.Opacity = 0.25
	l.Locked = true

	loader := new(mocks.MockLoader)
	loader.On("Load", mock.Anything, baseURL+a.Url).Return(newImage(1000, 500), nil)
	b := engine.NewBinding(scene.NewCanvas(800, 600), loader, baseURL)

	n, err := b.Build(context.Background(), l)
	require.NoError(t, err)

	assert.Equal(t, 0.5, n.ScaleX)
	assert.Equal(t, 2.0, n.ScaleY)
	assert.Equal(t, &geometry.Rect{Left: 100, Top: 50, Width: 400, Height: 200}, n.Crop)
	assert.Equal(t, 90.0, n.Angle)
	assert.True(t, n.FlipY)
	assert.Equal(t, 0.25, n.Opacity)
	assert.False(t, n.Selectable)
	assert.True(t, n.Visible)
	assert.Equal(t, baseURL+a.Url, n.SourceURL)
	assert.Equal(t, 0, b.Len(), "build does not attach")
}

func TestBinding_FailureInsertsNothing(t *testing.T) {
	a := asset("a", 10, 10)
	loader := new(mocks.MockLoader)
	loader.On("Load", mock.Anything, mock.Anything).Return(nil, errors.New("bad gif"))
	canvas := scene.NewCanvas(800, 600)
	b := engine.NewBinding(canvas, loader, baseURL)

	_, err := b.Bind(context.Background(), imageLayer("L1", 0, a))
	var be *engine.BindingError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "L1", be.LayerId)
	assert.Equal(t, 0, canvas.Len())

	noAsset := imageLayer("L2", 0, a)
	noAsset.Asset = nil
	_, err = b.Bind(context.Background(), noAsset)
	assert.ErrorIs(t, err, engine.ErrNoAsset)
}

func TestBinding_ReverseLookupByHandle(t *testing.T) {
	a := asset("a", 10, 10)
	loader := new(mocks.MockLoader)
	loader.On("Load", mock.Anything, baseURL+a.Url).Return(newImage(10, 10), nil)
	canvas := scene.NewCanvas(800, 600)
	b := engine.NewBinding(canvas, loader, baseURL)

	// Two layers on the same asset are told apart by node, not by asset
	n1, err := b.Bind(context.Background(), imageLayer("L1", 0, a))
	require.NoError(t, err)
	n2, err := b.Bind(context.Background(), imageLayer("L2", 1, a))
	require.NoError(t, err)

	id, ok := b.LayerFor(n1)
	assert.True(t, ok)
	assert.Equal(t, "L1", id)
	id, _ = b.LayerFor(n2)
	assert.Equal(t, "L2", id)

	_, ok = b.LayerFor(scene.NewNode("L1", nil, ""))
	assert.False(t, ok)
}

func TestBinding_AttachReplacesPreviousNode(t *testing.T) {
	a := asset("a", 10, 10)
	loader := new(mocks.MockLoader)
	loader.On("Load", mock.Anything, baseURL+a.Url).Return(newImage(10, 10), nil)
	canvas := scene.NewCanvas(800, 600)
	b := engine.NewBinding(canvas, loader, baseURL)

	old, err := b.Bind(context.Background(), imageLayer("L1", 0, a))
	require.NoError(t, err)
	fresh, err := b.Build(context.Background(), imageLayer("L1", 0, a))
	require.NoError(t, err)

	b.Attach("L1", fresh)

	assert.Equal(t, []*scene.Node{fresh}, canvas.Objects())
	n, _ := b.NodeFor("L1")
	assert.Same(t, fresh, n)
	_, ok := b.LayerFor(old)
	assert.False(t, ok)

	b.Unbind("L1")
	assert.Equal(t, 0, canvas.Len())
	assert.Equal(t, 0, b.Len())
}

func TestPatch_UsesEffectiveSizeAndNormalizesRotation(t *testing.T) {
	n := scene.NewNode("L1", newImage(1000, 500), "")
	n.Crop = &geometry.Rect{Left: 10, Top: 20, Width: 400, Height: 200}
	n.ScaleX, n.ScaleY = 0.5, 0.25
	n.Angle = 725
	n.Left, n.Top = 3, 4

	p := engine.Patch(models.Layer{Id: "L1", ZIndex: 7, Visible: true, Width: 999, Height: 999}, n)

	assert.Equal(t, 200.0, *p.Width)
	assert.Equal(t, 50.0, *p.Height)
	assert.Equal(t, 5.0, *p.Rotation)
	assert.Equal(t, 3.0, *p.X)
	assert.Equal(t, 7, *p.ZIndex)
	assert.Equal(t, &models.CropWindow{X: 10, Y: 20, W: 400, H: 200}, p.Crop)
	assert.False(t, p.ClearCrop)

	n.Crop = nil
	p = engine.Patch(models.Layer{Id: "L1"}, n)
	assert.True(t, p.ClearCrop)
	assert.Equal(t, 500.0, *p.Width)
}
