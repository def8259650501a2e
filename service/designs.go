package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/zlnvch/layerdeck/cache"
	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/mq"
	"github.com/zlnvch/layerdeck/worker"
)

// DesignDeletedChannel carries DesignDeletedMessage to every instance
const DesignDeletedChannel = "design-deleted"

type DesignDeletedMessage struct {
	DesignId string
}

func (s *Service) CreateDesign(ctx context.Context, owner models.Owner, title string, width, height int) (models.Design, error) {
	if err := ValidateDesign(title, width, height); err != nil {
		return models.Design{}, err
	}

	return s.Store.CreateDesign(ctx, models.Design{
		OwnerId: owner.Id,
		Title:   title,
		Width:   width,
		Height:  height,
	})
}

func (s *Service) ListDesigns(ctx context.Context, owner models.Owner) ([]models.Design, error) {
	return s.Store.ListDesigns(ctx, owner.Id)
}

// LoadDesign returns the design with its layers ordered by z-index ascending
// and their assets attached. Snapshots are served from the cache when
// present.
func (s *Service) LoadDesign(ctx context.Context, designId string) (models.Design, error) {
	design, ok := s.cachedDesign(ctx, designId)
	if !ok {
		var err error
		design, err = s.loadDesignFromStore(ctx, designId)
		if err != nil {
			return models.Design{}, err
		}
		s.cacheDesign(ctx, design)
	}

	if err := authorize(ctx, design.OwnerId); err != nil {
		return models.Design{}, err
	}
	return design, nil
}

func (s *Service) loadDesignFromStore(ctx context.Context, designId string) (models.Design, error) {
	design, err := s.Store.GetDesign(ctx, designId)
	if err != nil {
		return models.Design{}, err
	}

	layers, err := s.Store.GetDesignLayers(ctx, designId)
	if err != nil {
		return models.Design{}, fmt.Errorf("get layers of design %s: %w", designId, err)
	}

	assets := make(map[string]*models.Asset)
	for i := range layers {
		id := layers[i].AssetId
		if id == "" {
			continue
		}
		asset, seen := assets[id]
		if !seen {
			a, err := s.Store.GetAsset(ctx, id)
			if err != nil {
				// The layer loads without an asset and fails to bind alone
				log.Printf("Failed to get asset %s of layer %s: %v", id, layers[i].Id, err)
			} else {
				asset = &a
			}
			assets[id] = asset
		}
		if asset != nil {
			a := *asset
			layers[i].Asset = &a
		}
	}

	slices.SortStableFunc(layers, func(a, b models.Layer) int {
		return a.ZIndex - b.ZIndex
	})
	design.Layers = layers
	return design, nil
}

func (s *Service) cachedDesign(ctx context.Context, designId string) (models.Design, bool) {
	if s.Cache == nil {
		return models.Design{}, false
	}

	data, layerData, ok, err := s.Cache.GetDesignSnapshot(ctx, designId)
	if err != nil {
		log.Printf("Failed to read design %s from cache: %v", designId, err)
		return models.Design{}, false
	}
	if !ok {
		return models.Design{}, false
	}

	var design models.Design
	if err := json.Unmarshal(data, &design); err != nil {
		log.Printf("Cached design %s is corrupt: %v", designId, err)
		return models.Design{}, false
	}
	design.Layers = make([]models.Layer, 0, len(layerData))
	for _, raw := range layerData {
		var l models.Layer
		if err := json.Unmarshal(raw, &l); err != nil {
			log.Printf("Cached layer of design %s is corrupt: %v", designId, err)
			return models.Design{}, false
		}
		design.Layers = append(design.Layers, l)
	}
	// Equal z-indexes come back from the cache in id order
	slices.SortStableFunc(design.Layers, func(a, b models.Layer) int {
		return a.ZIndex - b.ZIndex
	})
	return design, true
}

func (s *Service) cacheDesign(ctx context.Context, design models.Design) {
	if s.Cache == nil {
		return
	}

	meta := design
	meta.Layers = nil
	data, err := json.Marshal(meta)
	if err != nil {
		return
	}

	items := make([]cache.LayerCacheItem, 0, len(design.Layers))
	for _, l := range design.Layers {
		raw, err := json.Marshal(l)
		if err != nil {
			return
		}
		items = append(items, cache.LayerCacheItem{LayerId: l.Id, ZIndex: l.ZIndex, Data: raw})
	}

	if err := s.Cache.SetDesignSnapshot(ctx, design.Id, data, items); err != nil {
		log.Printf("Failed to cache design %s: %v", design.Id, err)
	}
}

func (s *Service) invalidateDesign(ctx context.Context, designId string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.InvalidateDesigns(ctx, []string{designId}); err != nil {
		log.Printf("Failed to invalidate design %s: %v", designId, err)
	}
}

// DeleteDesign removes the design record right away. Its layers are deleted
// asynchronously by the queue consumer, and open sessions are told to close.
func (s *Service) DeleteDesign(ctx context.Context, owner models.Owner, designId string) error {
	if err := s.Store.DeleteDesign(ctx, designId, owner.Id); err != nil {
		return err
	}

	// Async side-effects - return to caller as soon as the store operation is done
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s.invalidateDesign(ctx, designId)

		if msgBytes, err := json.Marshal(DesignDeletedMessage{DesignId: designId}); err == nil && s.Cache != nil {
			if err := s.Cache.Publish(ctx, DesignDeletedChannel, msgBytes); err != nil {
				log.Printf("Failed to publish deletion of design %s: %v", designId, err)
			}
		}

		msg := worker.DeleteDesignLayersMessage{DesignId: designId, OwnerId: owner.Id}
		if err := mq.SendJSON(ctx, s.MQ, msg); err != nil {
			log.Printf("Failed to enqueue layer deletion for design %s: %v", designId, err)
		}
	}()

	return nil
}

// designForWrite loads the design record a layer write targets and checks
// the caller may edit it.
func (s *Service) designForWrite(ctx context.Context, designId string) (models.Design, error) {
	design, err := s.Store.GetDesign(ctx, designId)
	if err != nil {
		return models.Design{}, err
	}
	if err := authorize(ctx, design.OwnerId); err != nil {
		return models.Design{}, err
	}
	return design, nil
}
