package embedcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/ai"
)

// RedisClient is the subset of redis.Cmdable the cache needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

func WrapRedisCacheToEmbedder(e ai.IEmbedder, client RedisClient, ttl time.Duration) ai.IEmbedder {
	if e == nil || client == nil {
		return e
	}
	return &redisEmbedder{next: e, client: client, ttl: ttl}
}

type redisEmbedder struct {
	next   ai.IEmbedder
	client RedisClient
	ttl    time.Duration
}

func (r *redisEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	logger := logutil.GetLogger(ctx)
	cacheKey, _, _ := buildCacheKey(r.next.ModelName(), taskType, text)
	raw, err := r.client.Get(ctx, cacheKey).Bytes()
	switch {
	case err == nil:
		var values []float32
		if err := json.Unmarshal(raw, &values); err == nil && len(values) > 0 {
			logger.Debug("embedding cache hit (redis)", zap.String("task_type", taskType))
			return values, nil
		}
		logger.Warn("drop malformed redis embedding", zap.String("key", cacheKey))
	case !errors.Is(err, redis.Nil):
		logger.Warn("read redis embedding cache failed", zap.Error(err))
	}
	res, err := r.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(res)
	if err != nil {
		return res, nil
	}
	if err := r.client.Set(ctx, cacheKey, data, r.ttl).Err(); err != nil {
		logger.Warn("write redis embedding cache failed", zap.Error(err))
	}
	return res, nil
}

func (r *redisEmbedder) ModelName() string {
	return r.next.ModelName()
}
