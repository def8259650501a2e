// Package engine keeps a design's persisted layer stack consistent with the
// live canvas of one editing session: binding layers to nodes, resolving
// z-order into paint order, cropping, and syncing transforms back to the
// persistence collaborator.
package engine

import (
	"context"

	"github.com/zlnvch/layerdeck/models"
)

// Persister is the persistence collaborator.
type Persister interface {
	CreateLayer(ctx context.Context, spec models.LayerSpec) (models.Layer, error)
	UpdateLayer(ctx context.Context, id string, patch models.LayerPatch) (models.Layer, error)
	DeleteLayer(ctx context.Context, id string) error
	// LoadDesign returns the design with its layers ordered by z-index ascending
	LoadDesign(ctx context.Context, id string) (models.Design, error)
}

// AssetUploader is the asset collaborator.
type AssetUploader interface {
	UploadAsset(ctx context.Context, upload models.Upload) (models.Asset, error)
}

// Debouncer coalesces keys until a quiet interval passes. Due keys are read
// by the session loop, which then calls Controller.Flush.
type Debouncer interface {
	Schedule(key string)
	Cancel(key string)
}
