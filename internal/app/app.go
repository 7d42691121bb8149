package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rag-chat/internal/config"
	"rag-chat/internal/db"
	"rag-chat/internal/llm"
	"rag-chat/internal/repository"
	"rag-chat/internal/service"
)

// Components agrupa lo que necesitan los binarios para atender turnos de chat.
type Components struct {
	Chat          *service.ChatService
	Sessions      *repository.MemorySessionStore
	Chunks        *repository.PgChunkRepository // nil sin vector store
	LLMConfigured bool

	closers []func()
}

// Close libera pool y cliente Redis en orden inverso de creación.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build construye los componentes a partir de la configuración. Las dependencias externas
// opcionales (vector store, Redis, credencial LLM) que fallen se registran y quedan deshabilitadas.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	comps := &Components{Sessions: repository.NewMemorySessionStore()}

	completer, embedder, err := NewProvider(ctx, cfg, logger)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Warn("llm provider not configured", zap.String("provider", cfg.LLMProvider))
	case err != nil:
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	comps.LLMConfigured = err == nil && cfg.LLMAPIKey != ""

	if redisClient := NewRedisClient(ctx, cfg, logger); redisClient != nil {
		comps.closers = append(comps.closers, func() { _ = redisClient.Close() })
		if embedder != nil {
			embedder = service.NewRedisEmbeddingCache(redisClient, embedder, cfg.EmbeddingModel, cfg.EmbeddingCacheTTL, logger)
		}
	}

	chunks, closeStore, err := OpenChunkRepository(ctx, cfg, logger)
	switch {
	case errors.Is(err, db.ErrNoDatabaseURL):
		logger.Warn("vector store not configured; retrieval disabled")
	case err != nil:
		logger.Warn("vector store unavailable; retrieval disabled", zap.Error(err))
	default:
		comps.Chunks = chunks
		comps.closers = append(comps.closers, closeStore)
	}

	// Interfaces sin valor tipado nil: el servicio de recuperación distingue store ausente.
	var searcher service.ChunkSearcher
	if comps.Chunks != nil {
		searcher = comps.Chunks
	}
	retrieval := service.NewRetrievalService(searcher, embedder, cfg.HybridAlpha, logger)
	completion := service.NewCompletionService(completer, cfg.LLMTimeout, logger)
	comps.Chat = service.NewChatService(comps.Sessions, retrieval, completion, cfg.MaxMessageLength, logger)

	return comps, nil
}

// NewProvider elige el cliente LLM según LLM_PROVIDER. Con openai el cliente se construye aunque
// no haya credencial (cada llamada devuelve llm.ErrNotConfigured); con gemini se devuelve
// llm.ErrNotConfigured y ambos valores nil.
func NewProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (llm.Completer, llm.Embedder, error) {
	params := generationParams(cfg)

	switch cfg.LLMProvider {
	case "gemini":
		client, err := llm.NewGeminiClient(ctx, cfg.LLMAPIKey, cfg.LLMModel, cfg.EmbeddingModel, cfg.EmbeddingDim, params)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	case "openai", "":
		client := llm.NewHTTPClient(llm.HTTPClientConfig{
			BaseURL:        cfg.LLMBaseURL,
			APIKey:         cfg.LLMAPIKey,
			Model:          cfg.LLMModel,
			EmbeddingModel: cfg.EmbeddingModel,
			EmbeddingDim:   cfg.EmbeddingDim,
			Params:         params,
			Timeout:        cfg.LLMTimeout,
		}, logger)
		if cfg.LLMAPIKey == "" {
			return client, client, llm.ErrNotConfigured
		}
		return client, client, nil
	default:
		return nil, nil, config.ErrInvalidProvider
	}
}

func generationParams(cfg *config.Config) llm.GenerationParams {
	return llm.GenerationParams{
		MaxTokens:         cfg.LLMMaxTokens,
		Temperature:       cfg.LLMTemperature,
		TopP:              cfg.LLMTopP,
		TopK:              cfg.LLMTopK,
		RepetitionPenalty: cfg.LLMRepetitionPenalty,
	}
}

// NewRedisClient devuelve nil si REDIS_ADDR está vacío o Redis no responde al ping.
func NewRedisClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		logger.Warn("redis ping failed; embedding cache disabled", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}

// OpenChunkRepository abre el pool, verifica conectividad y asegura el esquema.
func OpenChunkRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.PgChunkRepository, func(), error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.Ping(ctxPing, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping vector store: %w", err)
	}

	repo := repository.NewPgChunkRepository(pool, cfg.VectorTable, cfg.EmbeddingDim)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}

	logger.Info("vector store ready", zap.String("table", repo.Table()))
	return repo, pool.Close, nil
}
