package cache

import "context"

// LayerCacheItem is one serialized layer of a design snapshot, scored by
// its z-index.
type LayerCacheItem struct {
	LayerId string
	ZIndex  int
	Data    []byte
}

type LayerdeckCache interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error

	// SetDesignSnapshot replaces the cached design and its layers. A
	// snapshot is only served once it has been written completely.
	SetDesignSnapshot(ctx context.Context, designId string, design []byte, layers []LayerCacheItem) error
	// GetDesignSnapshot returns the design and its layers ordered by z-index
	// ascending, or ok false on a miss.
	GetDesignSnapshot(ctx context.Context, designId string) (design []byte, layers [][]byte, ok bool, err error)
	InvalidateDesigns(ctx context.Context, designIds []string) error

	// GetAssetBytes returns nil, nil on a miss.
	GetAssetBytes(ctx context.Context, url string) ([]byte, error)
	SetAssetBytes(ctx context.Context, url string, data []byte) error
}
