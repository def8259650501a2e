package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/zlnvch/layerdeck/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateOwner(ctx context.Context, owner models.Owner) (models.Owner, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(models.Owner), args.Error(1)
}

func (m *MockStore) GetOwner(ctx context.Context, provider string, providerId string) (models.Owner, error) {
	args := m.Called(ctx, provider, providerId)
	return args.Get(0).(models.Owner), args.Error(1)
}

func (m *MockStore) CreateDesign(ctx context.Context, design models.Design) (models.Design, error) {
	args := m.Called(ctx, design)
	return args.Get(0).(models.Design), args.Error(1)
}

func (m *MockStore) GetDesign(ctx context.Context, designId string) (models.Design, error) {
	args := m.Called(ctx, designId)
	return args.Get(0).(models.Design), args.Error(1)
}

func (m *MockStore) ListDesigns(ctx context.Context, ownerId string) ([]models.Design, error) {
	args := m.Called(ctx, ownerId)
	return args.Get(0).([]models.Design), args.Error(1)
}

func (m *MockStore) DeleteDesign(ctx context.Context, designId string, ownerId string) error {
	args := m.Called(ctx, designId, ownerId)
	return args.Error(0)
}

func (m *MockStore) TouchDesign(ctx context.Context, designId string, edits int, updated int64) error {
	args := m.Called(ctx, designId, edits, updated)
	return args.Error(0)
}

func (m *MockStore) CreateLayer(ctx context.Context, layer models.Layer) (models.Layer, error) {
	args := m.Called(ctx, layer)
	return args.Get(0).(models.Layer), args.Error(1)
}

func (m *MockStore) GetLayer(ctx context.Context, layerId string) (models.Layer, error) {
	args := m.Called(ctx, layerId)
	return args.Get(0).(models.Layer), args.Error(1)
}

func (m *MockStore) UpdateLayer(ctx context.Context, layerId string, patch models.LayerPatch) (models.Layer, error) {
	args := m.Called(ctx, layerId, patch)
	return args.Get(0).(models.Layer), args.Error(1)
}

func (m *MockStore) DeleteLayer(ctx context.Context, layerId string) error {
	args := m.Called(ctx, layerId)
	return args.Error(0)
}

func (m *MockStore) GetDesignLayers(ctx context.Context, designId string) ([]models.Layer, error) {
	args := m.Called(ctx, designId)
	return args.Get(0).([]models.Layer), args.Error(1)
}

func (m *MockStore) CountDesignLayers(ctx context.Context, designId string) (int, error) {
	args := m.Called(ctx, designId)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) DeleteDesignLayers(ctx context.Context, designId string) error {
	args := m.Called(ctx, designId)
	return args.Error(0)
}

func (m *MockStore) CreateAsset(ctx context.Context, asset models.Asset) (models.Asset, error) {
	args := m.Called(ctx, asset)
	return args.Get(0).(models.Asset), args.Error(1)
}

func (m *MockStore) GetAsset(ctx context.Context, assetId string) (models.Asset, error) {
	args := m.Called(ctx, assetId)
	return args.Get(0).(models.Asset), args.Error(1)
}

func (m *MockStore) FindAssetByHash(ctx context.Context, sha256 string) (models.Asset, error) {
	args := m.Called(ctx, sha256)
	return args.Get(0).(models.Asset), args.Error(1)
}

func (m *MockStore) ListAssets(ctx context.Context, ownerId string) ([]models.Asset, error) {
	args := m.Called(ctx, ownerId)
	return args.Get(0).([]models.Asset), args.Error(1)
}
