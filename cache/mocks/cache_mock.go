package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/zlnvch/layerdeck/cache"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Publish(ctx context.Context, channel string, message []byte) error {
	args := m.Called(ctx, channel, message)
	return args.Error(0)
}

func (m *MockCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	args := m.Called(ctx, channel, handler)
	return args.Error(0)
}

func (m *MockCache) SetDesignSnapshot(ctx context.Context, designId string, design []byte, layers []cache.LayerCacheItem) error {
	args := m.Called(ctx, designId, design, layers)
	return args.Error(0)
}

func (m *MockCache) GetDesignSnapshot(ctx context.Context, designId string) ([]byte, [][]byte, bool, error) {
	args := m.Called(ctx, designId)
	var design []byte
	if v := args.Get(0); v != nil {
		design = v.([]byte)
	}
	var layers [][]byte
	if v := args.Get(1); v != nil {
		layers = v.([][]byte)
	}
	return design, layers, args.Bool(2), args.Error(3)
}

func (m *MockCache) InvalidateDesigns(ctx context.Context, designIds []string) error {
	args := m.Called(ctx, designIds)
	return args.Error(0)
}

func (m *MockCache) GetAssetBytes(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCache) SetAssetBytes(ctx context.Context, url string, data []byte) error {
	args := m.Called(ctx, url, data)
	return args.Error(0)
}
