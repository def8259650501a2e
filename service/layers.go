package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/store"
)

// Geometry written back from a live canvas carries float noise
const geometryTolerance = 1e-6

func (s *Service) CreateLayer(ctx context.Context, spec models.LayerSpec) (models.Layer, error) {
	if err := ValidateLayerSpec(spec); err != nil {
		return models.Layer{}, err
	}

	if _, err := s.designForWrite(ctx, spec.DesignId); err != nil {
		return models.Layer{}, err
	}

	if s.Limits.MaxLayersPerDesign > 0 {
		count, err := s.Store.CountDesignLayers(ctx, spec.DesignId)
		if err != nil {
			return models.Layer{}, err
		}
		if count >= s.Limits.MaxLayersPerDesign {
			return models.Layer{}, ErrTooMany
		}
	}

	var asset *models.Asset
	if spec.AssetId != "" {
		a, err := s.Store.GetAsset(ctx, spec.AssetId)
		if err != nil {
			return models.Layer{}, fmt.Errorf("asset %s: %w", spec.AssetId, err)
		}
		asset = &a
	}

	layer, err := s.Store.CreateLayer(ctx, models.Layer{
		DesignId: spec.DesignId,
		Type:     spec.Type,
		AssetId:  spec.AssetId,
		ZIndex:   spec.ZIndex,
		X:        spec.X,
		Y:        spec.Y,
		Width:    spec.Width,
		Height:   spec.Height,
		Rotation: spec.Rotation,
		FlipX:    spec.FlipX,
		FlipY:    spec.FlipY,
		Opacity:  spec.Opacity,
		Visible:  spec.Visible,
		Locked:   spec.Locked,
		Crop:     spec.Crop,
	})
	if err != nil {
		return models.Layer{}, err
	}
	layer.Asset = asset

	s.invalidateDesign(ctx, spec.DesignId)
	s.touch(spec.DesignId)
	return layer, nil
}

// layerForWrite loads a layer and checks the caller may edit its design
func (s *Service) layerForWrite(ctx context.Context, layerId string) (models.Layer, error) {
	layer, err := s.Store.GetLayer(ctx, layerId)
	if err != nil {
		return models.Layer{}, err
	}
	if _, err := s.designForWrite(ctx, layer.DesignId); err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return models.Layer{}, fmt.Errorf("design of layer %s: %w", layerId, err)
		}
		return models.Layer{}, err
	}
	return layer, nil
}

func (s *Service) UpdateLayer(ctx context.Context, layerId string, patch models.LayerPatch) (models.Layer, error) {
	if err := ValidateLayerPatch(patch); err != nil {
		return models.Layer{}, err
	}

	current, err := s.layerForWrite(ctx, layerId)
	if err != nil {
		return models.Layer{}, err
	}
	unlocking := patch.Locked != nil && !*patch.Locked
	if current.Locked && !unlocking && editsGeometry(current, patch) {
		return models.Layer{}, ErrLayerLocked
	}

	layer, err := s.Store.UpdateLayer(ctx, layerId, patch)
	if err != nil {
		return models.Layer{}, err
	}

	if layer.AssetId != "" {
		if a, err := s.Store.GetAsset(ctx, layer.AssetId); err == nil {
			layer.Asset = &a
		} else {
			log.Printf("Failed to get asset %s of layer %s: %v", layer.AssetId, layerId, err)
		}
	}

	s.invalidateDesign(ctx, layer.DesignId)
	s.touch(layer.DesignId)
	return layer, nil
}

func (s *Service) DeleteLayer(ctx context.Context, layerId string) error {
	layer, err := s.layerForWrite(ctx, layerId)
	if err != nil {
		return err
	}
	if layer.Locked {
		return ErrLayerLocked
	}

	if err := s.Store.DeleteLayer(ctx, layerId); err != nil {
		return err
	}

	s.invalidateDesign(ctx, layer.DesignId)
	s.touch(layer.DesignId)
	return nil
}

// editsGeometry reports whether applying patch would change anything on a
// locked layer besides its visibility.
func editsGeometry(l models.Layer, p models.LayerPatch) bool {
	differs := func(cur float64, v *float64) bool {
		return v != nil && math.Abs(cur-*v) > geometryTolerance
	}
	if differs(l.X, p.X) || differs(l.Y, p.Y) || differs(l.Width, p.Width) ||
		differs(l.Height, p.Height) || differs(l.Opacity, p.Opacity) {
		return true
	}
	if p.Rotation != nil {
		d := math.Abs(math.Mod(l.Rotation-*p.Rotation, 360))
		if min(d, 360-d) > geometryTolerance {
			return true
		}
	}
	if (p.FlipX != nil && *p.FlipX != l.FlipX) || (p.FlipY != nil && *p.FlipY != l.FlipY) {
		return true
	}
	if p.ZIndex != nil && *p.ZIndex != l.ZIndex {
		return true
	}
	if p.ClearCrop {
		return l.Crop != nil
	}
	if p.Crop != nil {
		return l.Crop == nil || *l.Crop != *p.Crop
	}
	return false
}
