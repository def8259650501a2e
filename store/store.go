package store

import (
	"context"
	"errors"

	"github.com/zlnvch/layerdeck/models"
)

type LayerdeckStore interface {
	CreateOwner(ctx context.Context, owner models.Owner) (models.Owner, error)
	GetOwner(ctx context.Context, provider string, providerId string) (models.Owner, error)

	CreateDesign(ctx context.Context, design models.Design) (models.Design, error)
	GetDesign(ctx context.Context, designId string) (models.Design, error)
	ListDesigns(ctx context.Context, ownerId string) ([]models.Design, error)
	DeleteDesign(ctx context.Context, designId string, ownerId string) error
	// TouchDesign bumps the design's revision by edits and sets its updated time
	TouchDesign(ctx context.Context, designId string, edits int, updated int64) error

	CreateLayer(ctx context.Context, layer models.Layer) (models.Layer, error)
	GetLayer(ctx context.Context, layerId string) (models.Layer, error)
	UpdateLayer(ctx context.Context, layerId string, patch models.LayerPatch) (models.Layer, error)
	DeleteLayer(ctx context.Context, layerId string) error
	// GetDesignLayers returns the layers ordered by z-index ascending
	GetDesignLayers(ctx context.Context, designId string) ([]models.Layer, error)
	CountDesignLayers(ctx context.Context, designId string) (int, error)
	DeleteDesignLayers(ctx context.Context, designId string) error

	CreateAsset(ctx context.Context, asset models.Asset) (models.Asset, error)
	GetAsset(ctx context.Context, assetId string) (models.Asset, error)
	FindAssetByHash(ctx context.Context, sha256 string) (models.Asset, error)
	ListAssets(ctx context.Context, ownerId string) ([]models.Asset, error)
}

// Custom error types for clarity
var (
	ErrItemNotFound    = errors.New("item does not exist")
	ErrConditionFailed = errors.New("condition not met")
)
