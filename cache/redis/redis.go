package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zlnvch/layerdeck/cache"
)

type RedisLayerdeckCache struct {
	client redis.UniversalClient
}

func NewRedisLayerdeckCache(ctx context.Context, devMode bool, redisEndpoint string) (*RedisLayerdeckCache, error) {
	opts := &redis.Options{Addr: redisEndpoint}
	if !devMode {
		// AWS elasticache endpoints require TLS
		opts.TLSConfig = &tls.Config{}
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisLayerdeckCache{client: client}, nil
}

// NewRedisLayerdeckCacheFromClient wraps an existing client
func NewRedisLayerdeckCacheFromClient(client redis.UniversalClient) *RedisLayerdeckCache {
	return &RedisLayerdeckCache{client: client}
}

func (redisCache *RedisLayerdeckCache) Publish(ctx context.Context, channel string, message []byte) error {
	return redisCache.client.Publish(ctx, channel, message).Err()
}

func (redisCache *RedisLayerdeckCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := redisCache.client.Subscribe(ctx, channel)
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		log.Printf("Pubsub channel closed: %s", channel)
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}

// All keys of one design share a hash tag so they live in the same slot
func buildDesignKey(designId string) string {
	return "design:{" + designId + "}"
}

func buildDesignLayersKey(designId string) string {
	return "design:{" + designId + "}:layers"
}

func buildDesignDataKey(designId string) string {
	return "design:{" + designId + "}:data"
}

func buildAssetKey(url string) string {
	return "asset:{" + url + "}"
}

const (
	designTTL = 10 * time.Minute
	// Asset bytes never change under the same url
	assetTTL = time.Hour
)

// A snapshot is split the same way a page of ordered items would be:
// a ZSet of layer ids scored by z-index keeps the paint order, and a hash
// of layer id to JSON holds the data. The design key itself doubles as
// the completeness marker and is written last.
func (redisCache *RedisLayerdeckCache) SetDesignSnapshot(ctx context.Context, designId string, design []byte, layers []cache.LayerCacheItem) error {
	key := buildDesignKey(designId)
	layersKey := buildDesignLayersKey(designId)
	dataKey := buildDesignDataKey(designId)

	pipe := redisCache.client.TxPipeline()
	pipe.Del(ctx, key, layersKey, dataKey)
	if len(layers) > 0 {
		zMembers := make([]redis.Z, len(layers))
		hValues := make([]interface{}, 0, len(layers)*2)
		for i, l := range layers {
			zMembers[i] = redis.Z{Score: float64(l.ZIndex), Member: l.LayerId}
			hValues = append(hValues, l.LayerId, l.Data)
		}
		pipe.ZAdd(ctx, layersKey, zMembers...)
		pipe.HSet(ctx, dataKey, hValues...)
		pipe.Expire(ctx, layersKey, designTTL)
		pipe.Expire(ctx, dataKey, designTTL)
	}
	pipe.Set(ctx, key, design, designTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisLayerdeckCache) GetDesignSnapshot(ctx context.Context, designId string) ([]byte, [][]byte, bool, error) {
	key := buildDesignKey(designId)
	layersKey := buildDesignLayersKey(designId)
	dataKey := buildDesignDataKey(designId)

	design, err := redisCache.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}

	ids, err := redisCache.client.ZRange(ctx, layersKey, 0, -1).Result()
	if err != nil {
		return nil, nil, false, err
	}

	layers := make([][]byte, 0, len(ids))
	if len(ids) > 0 {
		values, err := redisCache.client.HMGet(ctx, dataKey, ids...).Result()
		if err != nil {
			return nil, nil, false, err
		}
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				// Partially expired snapshot
				return nil, nil, false, nil
			}
			layers = append(layers, []byte(s))
		}
	}

	// Refresh TTL
	pipe := redisCache.client.Pipeline()
	pipe.Expire(ctx, key, designTTL)
	pipe.Expire(ctx, layersKey, designTTL)
	pipe.Expire(ctx, dataKey, designTTL)
	_, _ = pipe.Exec(ctx)

	return design, layers, true, nil
}

func (redisCache *RedisLayerdeckCache) InvalidateDesigns(ctx context.Context, designIds []string) error {
	// Different designs hash to different slots, so each is deleted on its own
	for _, designId := range designIds {
		err := redisCache.client.Del(ctx,
			buildDesignKey(designId),
			buildDesignLayersKey(designId),
			buildDesignDataKey(designId),
		).Err()
		if err != nil {
			return err
		}
	}
	return nil
}

func (redisCache *RedisLayerdeckCache) GetAssetBytes(ctx context.Context, url string) ([]byte, error) {
	data, err := redisCache.client.Get(ctx, buildAssetKey(url)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (redisCache *RedisLayerdeckCache) SetAssetBytes(ctx context.Context, url string, data []byte) error {
	return redisCache.client.Set(ctx, buildAssetKey(url), data, assetTTL).Err()
}
