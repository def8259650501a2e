package engine_test

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/layerdeck/engine"
	"github.com/zlnvch/layerdeck/geometry"
	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/worker"
)

func TestLoad_BindsLayersInZOrder(t *testing.T) {
	a := asset("a", 1000, 500)
	top := imageLayer("top", 1, a)
	bottom := imageLayer("bottom", 0, a)
	bottom.Width, bottom.Height = 500, 250

	h := newHarness(t, nil, design("design-1", 800, 600, top, bottom))
	h.serve(a, newImage(1000, 500))
	h.open(t, "design-1")

	assert.Equal(t, []string{"bottom", "top"}, paintOrder(h))

	n := h.ctrl.Canvas().Objects()[0]
	assert.Equal(t, 0.5, n.ScaleX)
	assert.Equal(t, 0.5, n.ScaleY)
	assert.Equal(t, 50.0, n.Left)
	assert.True(t, n.Selectable)
}

func TestLoad_LockedLayerIsVisibleButNotSelectable(t *testing.T) {
	a := asset("a", 100, 100)
	base := imageLayer("base", 0, a)
	base.Locked = true

	h := newHarness(t, nil, design("design-1", 800, 600, base))
	h.serve(a, newImage(100, 100))
	h.open(t, "design-1")

	n := h.ctrl.Canvas().Objects()[0]
	assert.True(t, n.Visible)
	assert.False(t, n.Selectable)

	err := h.ctrl.Select("base")
	var pe *engine.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, engine.ErrLocked)
	assert.Empty(t, h.ctrl.Selected())
}

func TestLoad_UnreachableImageLeavesLayerUnbound(t *testing.T) {
	good := asset("good", 10, 10)
	bad := asset("bad", 10, 10)

	h := newHarness(t, nil, design("design-1", 800, 600, imageLayer("L1", 0, good), imageLayer("L2", 1, bad)))
	h.serve(good, newImage(10, 10))
	h.loader.On("Load", mock.Anything, baseURL+bad.Url).Return(nil, errors.New("connection refused"))
	h.open(t, "design-1")

	assert.Len(t, h.ctrl.Layers(), 2)
	assert.Equal(t, []string{"L1"}, paintOrder(h))

	notices := h.ctrl.TakeNotices()
	require.Len(t, notices, 1)
	var be *engine.BindingError
	assert.ErrorAs(t, notices[0], &be)
	assert.Empty(t, h.ctrl.TakeNotices())
}

func TestScenario_AddTwoLayersThenMoveBottomUp(t *testing.T) {
	a1 := asset("a1", 300, 200)
	a2 := asset("a2", 0, 0)

	h := newHarness(t, nil, design("design-1", 800, 600))
	h.serve(a1, newImage(300, 200))
	h.serve(a2, newImage(64, 64))
	h.open(t, "design-1")

	l1, err := h.ctrl.AddLayerFromAsset(context.Background(), a1)
	require.NoError(t, err)
	l2, err := h.ctrl.AddLayerFromAsset(context.Background(), a2)
	require.NoError(t, err)

	assert.Equal(t, 0, l1.ZIndex)
	assert.Equal(t, 1, l2.ZIndex)
	assert.Equal(t, 300.0, l1.Width)
	assert.Equal(t, 200.0, l2.Width, "unknown natural size falls back to the default box")
	assert.Equal(t, 50.0, l1.X)
	assert.Equal(t, []string{l1.Id, l2.Id}, paintOrder(h))
	assert.Equal(t, l2.Id, h.ctrl.Selected())

	require.NoError(t, h.ctrl.MoveLayer(l1.Id, engine.MoveUp))

	assert.Equal(t, 1, h.layer(t, l1.Id).ZIndex)
	assert.Equal(t, 0, h.layer(t, l2.Id).ZIndex)
	assert.Equal(t, []string{l2.Id, l1.Id}, paintOrder(h))

	results := h.drain(t, 2)
	for _, res := range results {
		assert.NoError(t, res.Err)
	}
	assert.Equal(t, 1, h.layer(t, l1.Id).ZIndex)
	assert.Equal(t, 0, h.layer(t, l2.Id).ZIndex)
}

func TestAddLayer_BindingFailureCreatesNothing(t *testing.T) {
	a := asset("a", 10, 10)
	h := newHarness(t, nil, design("design-1", 800, 600))
	h.loader.On("Load", mock.Anything, baseURL+a.Url).Return(nil, errors.New("not an image"))
	h.open(t, "design-1")

	_, err := h.ctrl.AddLayerFromAsset(context.Background(), a)
	var be *engine.BindingError
	require.ErrorAs(t, err, &be)

	h.persister.AssertNotCalled(t, "CreateLayer", mock.Anything, mock.Anything)
	assert.Empty(t, h.ctrl.Layers())
	assert.Equal(t, 0, h.ctrl.Canvas().Len())
}

func TestAddLayerFromFile_UploadsThenAdds(t *testing.T) {
	a := asset("a", 40, 30)
	h := newHarness(t, nil, design("design-1", 800, 600))
	h.serve(a, newImage(40, 30))
	upload := models.Upload{Filename: "a.png", MimeType: "image/png", Data: []byte{1}}
	h.uploader.On("UploadAsset", mock.Anything, upload).Return(a, nil)
	h.open(t, "design-1")

	l, err := h.ctrl.AddLayerFromFile(context.Background(), upload)
	require.NoError(t, err)
	assert.Equal(t, "a", l.AssetId)
	assert.Equal(t, 40.0, l.Width)
	assert.Equal(t, 30.0, l.Height)
	assert.Equal(t, 1, h.ctrl.Canvas().Len())
}

func TestDeleteLayer_LockedIsRejectedWithoutChange(t *testing.T) {
	a := asset("a", 10, 10)
	locked := imageLayer("locked", 0, a)
	locked.Locked = true
	other := imageLayer("other", 1, a)

	h := newHarness(t, nil, design("design-1", 800, 600, locked, other))
	h.serve(a, newImage(10, 10))
	h.open(t, "design-1")

	before := h.ctrl.Layers()
	order := paintOrder(h)

	err := h.ctrl.DeleteLayer(context.Background(), "locked")
	var pe *engine.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, engine.ErrLocked)

	assert.Equal(t, before, h.ctrl.Layers())
	assert.Equal(t, order, paintOrder(h))
	h.persister.AssertNotCalled(t, "DeleteLayer", mock.Anything, mock.Anything)
}

func TestDeleteLayer_RemovesNodeAndClearsSelection(t *testing.T) {
	a := asset("a", 10, 10)
	h := newHarness(t, nil, design("design-1", 800, 600, imageLayer("L1", 0, a), imageLayer("L2", 1, a)))
	h.serve(a, newImage(10, 10))
	h.persister.On("DeleteLayer", mock.Anything, "L2").Return(nil)
	h.open(t, "design-1")

	require.NoError(t, h.ctrl.Select("L2"))
	require.NoError(t, h.ctrl.DeleteLayer(context.Background(), "L2"))

	assert.Empty(t, h.ctrl.Selected())
	assert.Equal(t, []string{"L1"}, paintOrder(h))
	_, ok := h.ctrl.Layer("L2")
	assert.False(t, ok)
	h.persister.AssertCalled(t, "DeleteLayer", mock.Anything, "L2")
}

func TestDeleteLayer_RemoteFailureIsNotRolledBack(t *testing.T) {
	a := asset("a", 10, 10)
	h := newHarness(t, nil, design("design-1", 800, 600, imageLayer("L1", 0, a)))
	h.serve(a, newImage(10, 10))
	h.persister.On("DeleteLayer", mock.Anything, "L1").Return(errors.New("timeout"))
	h.open(t, "design-1")

	err := h.ctrl.DeleteLayer(context.Background(), "L1")
	var pe *engine.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Empty(t, h.ctrl.Layers())
	assert.Equal(t, 0, h.ctrl.Canvas().Len())
}

func TestTransforms_KeepScaleDerivedFromRenderedSize(t *testing.T) {
	a := asset("a", 1000, 500)
	plain := imageLayer("plain", 0, a)
	plain.Width, plain.Height = 500, 250
	cropped := imageLayer("cropped", 1, a)
	cropped.Crop = &models.CropWindow{X: 100, Y: 50, W: 400, H: 200}
	cropped.Width, cropped.Height = 300, 100

	h := newHarness(t, nil, design("design-1", 800, 600, plain, cropped))
	h.serve(a, newImage(1000, 500))
	h.open(t, "design-1")

	for _, id := range []string{"plain", "cropped"} {
		require.NoError(t, h.ctrl.Select(id))
		require.NoError(t, h.ctrl.Rotate(45))
		require.NoError(t, h.ctrl.Scale(0.7))
		require.NoError(t, h.ctrl.Flip(geometry.AxisHorizontal))
		require.NoError(t, h.ctrl.Scale(1.3))
		require.NoError(t, h.ctrl.Rotate(-400))
		require.NoError(t, h.ctrl.Flip(geometry.AxisVertical))
	}

	for _, n := range h.ctrl.Canvas().Objects() {
		l := h.layer(t, n.LayerId)
		eff := geometry.EffectiveSize(n.NaturalSize(), n.Crop, geometry.Size{W: l.Width, H: l.Height})
		assert.InDelta(t, l.Width/eff.W, n.ScaleX, 1e-9, n.LayerId)
		assert.InDelta(t, l.Height/eff.H, n.ScaleY, 1e-9, n.LayerId)
		assert.True(t, l.FlipX)
		assert.True(t, l.FlipY)
		assert.InDelta(t, -355.0, n.Angle, 1e-9)
		assert.True(t, l.Rotation > -360 && l.Rotation < 360)
	}

	plainNow := h.layer(t, "plain")
	assert.InDelta(t, 500*0.7*1.3, plainNow.Width, 1e-9)
	croppedNow := h.layer(t, "cropped")
	assert.InDelta(t, 300*0.7*1.3, croppedNow.Width, 1e-9, "compounds from the cropped box, not the asset")

	h.drain(t, 12)
}

func TestTransforms_RequireUnlockedSelection(t *testing.T) {
	a := asset("a", 10, 10)
	h := newHarness(t, nil, design("design-1", 800, 600, imageLayer("L1", 0, a)))
	h.serve(a, newImage(10, 10))
	h.open(t, "design-1")

	err := h.ctrl.Rotate(10)
	assert.ErrorIs(t, err, engine.ErrNoSelection)
}

func TestScale_RejectsInvalidFactors(t *testing.T) {
	a := asset("a", 100, 100)
	h := newHarness(t, nil, design("design-1", 800, 600, imageLayer("L1", 0, a)))
	h.serve(a, newImage(100, 100))
	h.open(t, "design-1")
	require.NoError(t, h.ctrl.Select("L1"))

	var ve *engine.ValidationError
	for _, factor := range []float64{0, -1, math.NaN(), math.Inf(1), 0.001} {
		err := h.ctrl.Scale(factor)
		assert.ErrorAs(t, err, &ve, "factor %v", factor)
	}

	n := h.ctrl.Canvas().Objects()[0]
	assert.Equal(t, 1.0, n.ScaleX)
	assert.Equal(t, 100.0, h.layer(t, "L1").Width)
	h.persister.AssertNotCalled(t, "UpdateLayer", mock.Anything, mock.Anything, mock.Anything)

	assert.ErrorIs(t, h.ctrl.Flip(geometry.Axis("diagonal")), engine.ErrUnknownAxis)
	assert.ErrorAs(t, h.ctrl.Rotate(math.NaN()), &ve)
}

func TestToggleVisibility_AllowedOnLockedLayer(t *testing.T) {
	a := asset("a", 10, 10)
	base := imageLayer("base", 0, a)
	base.Locked = true

	h := newHarness(t, nil, design("design-1", 800, 600, base))
	h.serve(a, newImage(10, 10))
	h.open(t, "design-1")

	require.NoError(t, h.ctrl.ToggleVisibility("base"))
	assert.False(t, h.layer(t, "base").Visible)
	assert.False(t, h.ctrl.Canvas().Objects()[0].Visible)

	res := h.drain(t, 1)
	assert.False(t, res[0].Layer.Visible)
	assert.True(t, res[0].Layer.Locked)
}

func TestSelect_HiddenLayerIsRejected(t *testing.T) {
	a := asset("a", 10, 10)
	base := imageLayer("base", 0, a)
	base.Visible = false

	h := newHarness(t, nil, design("design-1", 800, 600, base))
	h.serve(a, newImage(10, 10))
	h.open(t, "design-1")

	err := h.ctrl.Select("base")
	var pe *engine.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, engine.ErrHidden)
	assert.Empty(t, h.ctrl.Selected())
	assert.Error(t, h.ctrl.Rotate(90))
}

func TestMoveLayer_PersistsUnboundParticipant(t *testing.T) {
	good := asset("good", 10, 10)
	bad := asset("bad", 10, 10)

	h := newHarness(t, nil, design("design-1", 800, 600, imageLayer("L1", 0, bad), imageLayer("L2", 1, good)))
	h.serve(good, newImage(10, 10))
	h.loader.On("Load", mock.Anything, baseURL+bad.Url).Return(nil, errors.New("not found"))
	h.open(t, "design-1")
	h.ctrl.TakeNotices()

	require.NoError(t, h.ctrl.MoveLayer("L2", engine.MoveDown))
	assert.Equal(t, 1, h.layer(t, "L1").ZIndex)
	assert.Equal(t, 0, h.layer(t, "L2").ZIndex)

	results := h.drain(t, 2)
	var ids []string
	for _, res := range results {
		require.NoError(t, res.Err)
		ids = append(ids, res.LayerId)
	}
	assert.ElementsMatch(t, []string{"L1", "L2"}, ids)
	assert.Equal(t, 1, h.server.layers["L1"].ZIndex)
	assert.Equal(t, 0, h.server.layers["L2"].ZIndex)
	assert.Equal(t, 1, h.layer(t, "L1").ZIndex)
}

func TestPick_SelectsTopmostLayerUnderPoint(t *testing.T) {
	a := asset("a", 100, 100)
	l1 := imageLayer("L1", 0, a)
	l1.X, l1.Y = 0, 0
	l2 := imageLayer("L2", 1, a)
	l2.X, l2.Y = 50, 50

	h := newHarness(t, nil, design("design-1", 800, 600, l1, l2))
	h.serve(a, newImage(100, 100))
	h.open(t, "design-1")

	id, err := h.ctrl.Pick(75, 75)
	require.NoError(t, err)
	assert.Equal(t, "L2", id)
	assert.Equal(t, "L2", h.ctrl.Selected())

	id, err = h.ctrl.Pick(700, 500)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Empty(t, h.ctrl.Selected())
}

func TestDrag_DebouncesIntoOneWriteOfFinalState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := worker.NewDebouncer(50)
	go d.Run(ctx)

	a := asset("a", 100, 100)
	h := newHarness(t, d, design("design-1", 800, 600, imageLayer("L1", 0, a)))
	h.serve(a, newImage(100, 100))
	h.open(t, "design-1")

	for i := 1; i <= 10; i++ {
		require.NoError(t, h.ctrl.Drag("L1", float64(i*10), float64(i*5)))
	}
	assert.Equal(t, 100.0, h.layer(t, "L1").X, "applied locally right away")

	select {
	case key := <-d.Due():
		assert.Equal(t, "L1", key)
		h.ctrl.Flush(key)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced write never came due")
	}

	res := h.drain(t, 1)
	assert.Equal(t, 100.0, res[0].Layer.X)
	assert.Equal(t, 50.0, res[0].Layer.Y)
	h.persister.AssertNumberOfCalls(t, "UpdateLayer", 1)

	select {
	case key := <-d.Due():
		t.Fatalf("unexpected second flush for %s", key)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDrop_SendsImmediatelyAndCancelsDebounce(t *testing.T) {
	a := asset("a", 100, 100)
	rec := &recordingDebouncer{}
	h := newHarness(t, rec, design("design-1", 800, 600, imageLayer("L1", 0, a)))
	h.serve(a, newImage(100, 100))
	h.open(t, "design-1")

	require.NoError(t, h.ctrl.Drag("L1", 10, 10))
	require.NoError(t, h.ctrl.Drag("L1", 20, 30))
	require.NoError(t, h.ctrl.Drop("L1"))

	assert.Equal(t, []string{"L1", "L1"}, rec.scheduled)
	assert.Contains(t, rec.cancelled, "L1")

	res := h.drain(t, 1)
	assert.Equal(t, 20.0, res[0].Layer.X)
	assert.Equal(t, 30.0, res[0].Layer.Y)
}

func TestDrag_LockedLayerIsRejected(t *testing.T) {
	a := asset("a", 100, 100)
	l := imageLayer("L1", 0, a)
	l.Locked = true
	h := newHarness(t, nil, design("design-1", 800, 600, l))
	h.serve(a, newImage(100, 100))
	h.open(t, "design-1")

	assert.ErrorIs(t, h.ctrl.Drag("L1", 10, 10), engine.ErrLocked)
	assert.Equal(t, 50.0, h.ctrl.Canvas().Objects()[0].Left)
}

func TestComplete_DropsStaleResponses(t *testing.T) {
	a := asset("a", 100, 100)
	h := newHarness(t, nil, design("design-1", 800, 600, imageLayer("L1", 0, a)))
	h.serve(a, newImage(100, 100))
	h.open(t, "design-1")
	require.NoError(t, h.ctrl.Select("L1"))

	require.NoError(t, h.ctrl.Rotate(10))
	require.NoError(t, h.ctrl.Rotate(10))

	var results []engine.Result
	for len(results) < 2 {
		select {
		case res := <-h.ctrl.Posted():
			results = append(results, res)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out")
		}
	}
	// Deliver the newest first so the older echo arrives last
	sort.Slice(results, func(i, j int) bool { return results[i].Seq > results[j].Seq })

	newest := results[0]
	newest.Layer.Rotation = 20
	h.ctrl.Complete(newest)

	stale := results[1]
	stale.Layer.Rotation = 10
	h.ctrl.Complete(stale)

	assert.Equal(t, 20.0, h.layer(t, "L1").Rotation)
}

func TestComplete_FailureBecomesNoticeWithoutRollback(t *testing.T) {
	a := asset("a", 100, 100)
	h := newHarness(t, nil, design("design-1", 800, 600, imageLayer("L1", 0, a)))
	h.serve(a, newImage(100, 100))
	h.open(t, "design-1")
	require.NoError(t, h.ctrl.Select("L1"))

	h.ctrl.Complete(engine.Result{LayerId: "L1", Seq: 99, Err: errors.New("500")})

	notices := h.ctrl.TakeNotices()
	require.Len(t, notices, 1)
	var pe *engine.PersistenceError
	assert.ErrorAs(t, notices[0], &pe)
	assert.Equal(t, 50.0, h.layer(t, "L1").X)
}

func TestLoad_PersistenceFailure(t *testing.T) {
	h := newHarness(t, nil, design("design-1", 800, 600))
	h.persister.On("LoadDesign", mock.Anything, "missing").Return(models.Design{}, errors.New("not found"))

	err := h.ctrl.Load(context.Background(), "missing")
	var pe *engine.PersistenceError
	assert.ErrorAs(t, err, &pe)
	assert.False(t, h.ctrl.Loaded())

	_, err = h.ctrl.AddLayerFromAsset(context.Background(), asset("a", 1, 1))
	assert.ErrorIs(t, err, engine.ErrNotLoaded)
}
