package service_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/service"
	"github.com/zlnvch/layerdeck/store"
)

func pngBytes(t *testing.T, w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestUploadAsset_StoresFileAndRecord(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := service.WithOwner(context.Background(), owner)
	data := pngBytes(t, 40, 30)
	hash := hashOf(data)

	mockStore.On("FindAssetByHash", ctx, hash).Return(models.Asset{}, store.ErrItemNotFound)
	var stored models.Asset
	mockStore.On("CreateAsset", ctx, mock.MatchedBy(func(a models.Asset) bool {
		return a.OwnerId == owner.Id && a.Width == 40 && a.Height == 30 && a.Sha256 == hash &&
			a.MimeType == "image/png" && a.SizeBytes == int64(len(data)) &&
			strings.HasPrefix(a.Url, service.UploadsPath) && strings.HasSuffix(a.Url, "-my_photo.png")
	})).Run(func(args mock.Arguments) {
		stored = args.Get(1).(models.Asset)
	}).Return(models.Asset{Id: "asset-1"}, nil)

	asset, err := svc.UploadAsset(ctx, models.Upload{Filename: "my photo.png", MimeType: "image/png", Data: data})
	require.NoError(t, err)
	assert.Equal(t, "asset-1", asset.Id)

	written, err := os.ReadFile(filepath.Join(svc.UploadDir, strings.TrimPrefix(stored.Url, service.UploadsPath)))
	require.NoError(t, err)
	assert.Equal(t, data, written)
}

func TestUploadAsset_DuplicateReturnsExisting(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()
	data := pngBytes(t, 8, 8)
	existing := models.Asset{Id: "asset-0", Url: "/uploads/1-a.png", Sha256: hashOf(data)}

	mockStore.On("FindAssetByHash", ctx, hashOf(data)).Return(existing, nil)

	asset, err := svc.UploadAsset(ctx, models.Upload{Filename: "a.png", MimeType: "image/png", Data: data})
	require.NoError(t, err)
	assert.Equal(t, existing, asset)

	entries, _ := os.ReadDir(svc.UploadDir)
	assert.Empty(t, entries)
	mockStore.AssertNotCalled(t, "CreateAsset", mock.Anything, mock.Anything)
}

func TestUploadAsset_Rejections(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()
	data := pngBytes(t, 8, 8)

	_, err := svc.UploadAsset(ctx, models.Upload{Filename: "a.gif", MimeType: "image/gif", Data: data})
	assert.ErrorContains(t, err, "invalid file type")

	_, err = svc.UploadAsset(ctx, models.Upload{Filename: "a.png", MimeType: "image/png"})
	assert.ErrorContains(t, err, "no file provided")

	_, err = svc.UploadAsset(ctx, models.Upload{Filename: "a.png", MimeType: "image/png", Data: []byte("not an image")})
	assert.ErrorContains(t, err, "unreadable image")

	svc.Limits.MaxUploadBytes = int64(len(data) - 1)
	_, err = svc.UploadAsset(ctx, models.Upload{Filename: "a.png", MimeType: "image/png", Data: data})
	assert.ErrorContains(t, err, "file too large")

	mockStore.AssertNotCalled(t, "FindAssetByHash", mock.Anything, mock.Anything)
}

func TestUploadAsset_RecordFailureRemovesFile(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()
	data := pngBytes(t, 8, 8)

	mockStore.On("FindAssetByHash", ctx, hashOf(data)).Return(models.Asset{}, store.ErrItemNotFound)
	mockStore.On("CreateAsset", ctx, mock.Anything).Return(models.Asset{}, assert.AnError)

	_, err := svc.UploadAsset(ctx, models.Upload{Filename: "a.png", MimeType: "image/png", Data: data})
	assert.ErrorIs(t, err, assert.AnError)

	entries, err := os.ReadDir(svc.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
