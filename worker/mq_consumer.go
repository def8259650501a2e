package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/zlnvch/layerdeck/cache"
	"github.com/zlnvch/layerdeck/mq"
	"github.com/zlnvch/layerdeck/store"
)

// DeleteDesignLayersMessage asks for every layer of a deleted design to be
// removed.
type DeleteDesignLayersMessage struct {
	DesignId string `json:"designId"`
	OwnerId  string `json:"ownerId"`
}

type MQConsumer struct {
	deleteDesignLayersQueue mq.MessageQueue
	layerdeckStore          store.LayerdeckStore
	layerdeckCache          cache.LayerdeckCache
}

func NewMQConsumer(deleteDesignLayersQueue mq.MessageQueue, layerdeckStore store.LayerdeckStore, layerdeckCache cache.LayerdeckCache) *MQConsumer {
	return &MQConsumer{
		deleteDesignLayersQueue: deleteDesignLayersQueue,
		layerdeckStore:          layerdeckStore,
		layerdeckCache:          layerdeckCache,
	}
}

const (
	// Allow up to 5 minutes for the throttled batch deletion of a design's layers
	visibilityTimeout = 300
	// Messages failing this often are dropped
	maxAttempts = 5
)

func (mqConsumer *MQConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := mqConsumer.deleteDesignLayersQueue.Receive(shutdownCtx, visibilityTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("mqConsumer receive error: %v", err)
			continue
		}
		if msg == nil {
			continue
		}

		mqConsumer.Handle(msg)
	}
}

// Handle processes one message and deletes it from the queue once done.
// Failed messages stay queued and are retried after the visibility timeout.
func (mqConsumer *MQConsumer) Handle(msg *mq.Message) {
	var deleteMsg DeleteDesignLayersMessage
	if err := msg.Decode(&deleteMsg); err != nil || deleteMsg.DesignId == "" {
		log.Printf("Dropping malformed delete message: %q", msg.Body)
		mqConsumer.ack(msg)
		return
	}

	if msg.Attempts > maxAttempts {
		log.Printf("Giving up on layers of design %s after %d attempts", deleteMsg.DesignId, msg.Attempts)
		mqConsumer.ack(msg)
		return
	}

	// timeout should be a little less than queue visibility timeout
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(visibilityTimeout-1)*time.Second)
	defer cancel()

	if err := mqConsumer.layerdeckStore.DeleteDesignLayers(ctx, deleteMsg.DesignId); err != nil {
		log.Printf("layerdeckStore delete design layers error: %v", err)
		return
	}

	if err := mqConsumer.layerdeckCache.InvalidateDesigns(ctx, []string{deleteMsg.DesignId}); err != nil {
		log.Printf("Failed to invalidate design %s: %v", deleteMsg.DesignId, err)
	}

	log.Printf("Deleted layers of design %s", deleteMsg.DesignId)
	mqConsumer.ack(msg)
}

func (mqConsumer *MQConsumer) ack(msg *mq.Message) {
	if err := mqConsumer.deleteDesignLayersQueue.Delete(context.Background(), msg); err != nil {
		log.Printf("mqConsumer delete error: %v", err)
	}
}
