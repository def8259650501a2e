package worker

import (
	"context"
	"log"
	"time"

	"github.com/zlnvch/layerdeck/store"
)

// TouchUpdate records layer edits against a design
type TouchUpdate struct {
	DesignId string
	Edits    int
}

// TouchBatcher folds layer edits into per-design revision bumps, so a drag
// that saves many times costs one design write per tick.
type TouchBatcher struct {
	UpdateCh           chan TouchUpdate
	layerdeckStore     store.LayerdeckStore
	tickerMilliseconds int
	now                func() time.Time
}

func NewTouchBatcher(layerdeckStore store.LayerdeckStore, tickerMilliseconds int) *TouchBatcher {
	return &TouchBatcher{
		UpdateCh:           make(chan TouchUpdate, 1024),
		layerdeckStore:     layerdeckStore,
		tickerMilliseconds: tickerMilliseconds,
		now:                time.Now,
	}
}

// Touch queues an update without blocking the caller. When the buffer is
// full the update is dropped; the revision is advisory.
func (b *TouchBatcher) Touch(designId string, edits int) {
	select {
	case b.UpdateCh <- TouchUpdate{DesignId: designId, Edits: edits}:
	default:
		log.Printf("Touch buffer full, dropping update for design %s", designId)
	}
}

func (b *TouchBatcher) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(b.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	edits := make(map[string]int)

	flush := func(wait bool) {
		if len(edits) == 0 {
			return
		}
		now := b.now().Unix()
		done := make(chan struct{}, len(edits))
		for designId, count := range edits {
			go func(id string, c int) {
				defer func() { done <- struct{}{} }()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := b.layerdeckStore.TouchDesign(ctx, id, c, now); err != nil {
					log.Printf("Failed to touch design %s: %v", id, err)
				}
			}(designId, count)
		}
		// On shutdown the pending writes are awaited
		if wait {
			for range edits {
				<-done
			}
		}
		edits = make(map[string]int)
	}

	for {
		select {
		case update := <-b.UpdateCh:
			if update.DesignId == "" || update.Edits <= 0 {
				continue
			}
			edits[update.DesignId] += update.Edits

			if len(edits) >= 100 {
				flush(false)
			}

		case <-ticker.C:
			flush(false)

		case <-shutdownCtx.Done():
			flush(true)
			return
		}
	}
}
