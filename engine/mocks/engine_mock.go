package mocks

import (
	"context"
	"image"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/layerdeck/models"
)

type MockPersister struct {
	mock.Mock
}

func (m *MockPersister) CreateLayer(ctx context.Context, spec models.LayerSpec) (models.Layer, error) {
	args := m.Called(ctx, spec)
	if fn, ok := args.Get(0).(func(models.LayerSpec) models.Layer); ok {
		return fn(spec), args.Error(1)
	}
	return args.Get(0).(models.Layer), args.Error(1)
}

func (m *MockPersister) UpdateLayer(ctx context.Context, id string, patch models.LayerPatch) (models.Layer, error) {
	args := m.Called(ctx, id, patch)
	if fn, ok := args.Get(0).(func(string, models.LayerPatch) models.Layer); ok {
		return fn(id, patch), args.Error(1)
	}
	return args.Get(0).(models.Layer), args.Error(1)
}

func (m *MockPersister) DeleteLayer(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPersister) LoadDesign(ctx context.Context, id string) (models.Design, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Design), args.Error(1)
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) UploadAsset(ctx context.Context, upload models.Upload) (models.Asset, error) {
	args := m.Called(ctx, upload)
	return args.Get(0).(models.Asset), args.Error(1)
}

type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) Load(ctx context.Context, url string) (image.Image, error) {
	args := m.Called(ctx, url)
	img, _ := args.Get(0).(image.Image)
	return img, args.Error(1)
}
