package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rag-chat/internal/llm"
	"rag-chat/internal/metrics"
)

type redisStringStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// redisEmbeddingCache guarda embeddings de consultas en Redis. Ante errores de Redis
// delega al embedder real (fail-open); los vectores de ceros nunca se cachean.
type redisEmbeddingCache struct {
	client  redisStringStore
	next    llm.Embedder
	ttl     time.Duration
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

func NewRedisEmbeddingCache(client *redis.Client, next llm.Embedder, model string, ttl time.Duration, logger *zap.Logger) llm.Embedder {
	if client == nil {
		return next
	}
	return newRedisEmbeddingCache(client, next, model, ttl, logger)
}

func newRedisEmbeddingCache(client redisStringStore, next llm.Embedder, model string, ttl time.Duration, logger *zap.Logger) *redisEmbeddingCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisEmbeddingCache{
		client:  client,
		next:    next,
		ttl:     ttl,
		prefix:  "emb:" + model + ":",
		timeout: 500 * time.Millisecond,
		logger:  logger,
	}
}

func (c *redisEmbeddingCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *redisEmbeddingCache) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	if vec, ok := c.lookup(ctx, key); ok {
		metrics.EmbeddingCacheHits.WithLabelValues("hit").Inc()
		return vec, nil
	}
	metrics.EmbeddingCacheHits.WithLabelValues("miss").Inc()

	vec, err := c.next.CreateEmbedding(ctx, text)
	if err != nil || llm.IsZeroVector(vec) {
		return vec, err
	}

	c.store(ctx, key, vec)
	return vec, nil
}

func (c *redisEmbeddingCache) lookup(ctx context.Context, key string) ([]float32, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("embedding cache get failed", zap.Error(err))
		}
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil || llm.IsZeroVector(vec) {
		return nil, false
	}
	return vec, true
}

func (c *redisEmbeddingCache) store(ctx context.Context, key string, vec []float32) {
	payload, err := json.Marshal(vec)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("embedding cache set failed", zap.Error(err))
	}
}
