package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"rag-chat/internal/llm"
)

type mockRedisStringStore struct {
	values  map[string]string
	getErr  error
	setErr  error
	setKeys []string
	lastTTL time.Duration
}

func newMockRedisStringStore() *mockRedisStringStore {
	return &mockRedisStringStore{values: make(map[string]string)}
}

func (m *mockRedisStringStore) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if m.getErr != nil {
		cmd.SetErr(m.getErr)
		return cmd
	}
	v, ok := m.values[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (m *mockRedisStringStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key)
	m.setKeys = append(m.setKeys, key)
	m.lastTTL = expiration
	if m.setErr != nil {
		cmd.SetErr(m.setErr)
		return cmd
	}
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	case string:
		m.values[key] = v
	}
	cmd.SetVal("OK")
	return cmd
}

func TestRedisEmbeddingCache(t *testing.T) {
	t.Run("miss luego hit", func(t *testing.T) {
		store := newMockRedisStringStore()
		next := &llm.MockClient{Embedding: []float32{0.5, 0.25}}
		cache := newRedisEmbeddingCache(store, next, "m2", time.Hour, nil)

		first, err := cache.CreateEmbedding(context.Background(), "hola")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := cache.CreateEmbedding(context.Background(), "hola")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if next.EmbedCalls != 1 {
			t.Fatalf("expected one upstream call, got %d", next.EmbedCalls)
		}
		if len(second) != 2 || second[0] != first[0] || second[1] != 0.25 {
			t.Fatalf("expected cached vector, got %v", second)
		}
		if store.lastTTL != time.Hour {
			t.Fatalf("expected ttl 1h, got %s", store.lastTTL)
		}
		if len(store.setKeys) != 1 || store.setKeys[0][:7] != "emb:m2:" {
			t.Fatalf("unexpected cache key %v", store.setKeys)
		}
	})

	t.Run("vector de ceros no se cachea", func(t *testing.T) {
		store := newMockRedisStringStore()
		next := &llm.MockClient{Embedding: llm.ZeroVector(3)}
		cache := newRedisEmbeddingCache(store, next, "m2", time.Hour, nil)

		vec, err := cache.CreateEmbedding(context.Background(), "hola")
		if err != nil || !llm.IsZeroVector(vec) {
			t.Fatalf("expected zero vector passthrough, got %v %v", vec, err)
		}
		if len(store.setKeys) != 0 {
			t.Fatalf("expected no cache write for zero vector")
		}
	})

	t.Run("error upstream se propaga sin cachear", func(t *testing.T) {
		store := newMockRedisStringStore()
		next := &llm.MockClient{Embedding: llm.ZeroVector(3), EmbedErr: errors.New("down")}
		cache := newRedisEmbeddingCache(store, next, "m2", time.Hour, nil)

		if _, err := cache.CreateEmbedding(context.Background(), "hola"); err == nil {
			t.Fatalf("expected upstream error")
		}
		if len(store.setKeys) != 0 {
			t.Fatalf("expected no cache write on error")
		}
	})

	t.Run("redis caido es fail-open", func(t *testing.T) {
		store := newMockRedisStringStore()
		store.getErr = errors.New("redis down")
		store.setErr = errors.New("redis down")
		next := &llm.MockClient{Embedding: []float32{1}}
		cache := newRedisEmbeddingCache(store, next, "m2", 0, nil)

		vec, err := cache.CreateEmbedding(context.Background(), "hola")
		if err != nil || len(vec) != 1 {
			t.Fatalf("expected upstream vector, got %v %v", vec, err)
		}
		if cache.ttl != 24*time.Hour {
			t.Fatalf("expected default ttl, got %s", cache.ttl)
		}
	})

	t.Run("valor corrupto se ignora", func(t *testing.T) {
		store := newMockRedisStringStore()
		next := &llm.MockClient{Embedding: []float32{2}}
		cache := newRedisEmbeddingCache(store, next, "m2", time.Hour, nil)
		store.values[cache.key("hola")] = "not-json"

		vec, _ := cache.CreateEmbedding(context.Background(), "hola")
		if next.EmbedCalls != 1 || vec[0] != 2 {
			t.Fatalf("expected recompute on corrupt cache, got %v", vec)
		}
	})
}

func TestNewRedisEmbeddingCache_NilClientReturnsNext(t *testing.T) {
	next := &llm.MockClient{}
	if got := NewRedisEmbeddingCache(nil, next, "m", time.Hour, nil); got != llm.Embedder(next) {
		t.Fatalf("expected passthrough embedder")
	}
}
