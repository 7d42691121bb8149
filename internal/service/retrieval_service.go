package service

import (
	"context"
	"fmt"
	"strings"

	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"rag-chat/internal/domain"
	"rag-chat/internal/llm"
	"rag-chat/internal/metrics"
)

// RetrievalFailure etiqueta por qué una búsqueda no devolvió resultados rankeados.
type RetrievalFailure string

const (
	RetrievalOK                   RetrievalFailure = ""
	RetrievalStoreUnavailable     RetrievalFailure = "store_unavailable"
	RetrievalEmbeddingUnavailable RetrievalFailure = "embedding_unavailable"
	RetrievalZeroEmbedding        RetrievalFailure = "zero_embedding"
	RetrievalSearchFailed         RetrievalFailure = "search_failed"
)

const defaultContextLimit = 3

// ChunkSearcher es lo que la recuperación necesita del vector store.
type ChunkSearcher interface {
	HybridSearch(ctx context.Context, query string, embedding pgvector.Vector, alpha float64, limit int) ([]domain.Chunk, error)
	List(ctx context.Context, limit int) ([]domain.Chunk, error)
}

// ContextRetriever define contrato para recuperar contexto de la base de conocimiento.
type ContextRetriever interface {
	Search(ctx context.Context, query string, limit int) RetrievalResult
}

// RetrievalResult nunca lleva error: la falla queda etiquetada en Failure.
// Fallback indica que los fragmentos vienen del listado sin ranking.
type RetrievalResult struct {
	Chunks   []domain.Chunk
	Fallback bool
	Failure  RetrievalFailure
}

// ContextBlock concatena los textos en orden, separados por una línea en blanco.
func (r RetrievalResult) ContextBlock() string {
	parts := make([]string, 0, len(r.Chunks))
	for _, c := range r.Chunks {
		if t := strings.TrimSpace(c.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// RetrievalService hace una única búsqueda híbrida por consulta, con un listado sin ranking como degradación.
type RetrievalService struct {
	store    ChunkSearcher
	embedder llm.Embedder
	alpha    float64
	logger   *zap.Logger
}

func NewRetrievalService(store ChunkSearcher, embedder llm.Embedder, alpha float64, logger *zap.Logger) *RetrievalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrievalService{
		store:    store,
		embedder: embedder,
		alpha:    alpha,
		logger:   logger,
	}
}

// Search nunca propaga fallas: errores y panics del store o del embedder quedan etiquetados.
func (s *RetrievalService) Search(ctx context.Context, query string, limit int) (res RetrievalResult) {
	defer func() {
		if r := recover(); r != nil {
			res = s.fail(RetrievalSearchFailed, fmt.Errorf("retrieval panicked: %v", r))
		}
	}()

	if limit <= 0 {
		limit = defaultContextLimit
	}
	if s == nil || s.store == nil {
		return s.fail(RetrievalStoreUnavailable, nil)
	}

	var vec []float32
	var err error
	if s.embedder == nil {
		err = llm.ErrNotConfigured
	} else {
		vec, err = s.embedder.CreateEmbedding(ctx, query)
	}
	switch {
	case err != nil:
		return s.fallback(ctx, limit, RetrievalEmbeddingUnavailable, err)
	case llm.IsZeroVector(vec):
		// Un vector de ceros es la señal de modo degradado del servicio de embeddings.
		return s.fallback(ctx, limit, RetrievalZeroEmbedding, nil)
	}

	chunks, err := s.store.HybridSearch(ctx, query, pgvector.NewVector(vec), s.alpha, limit)
	if err != nil {
		return s.fallback(ctx, limit, RetrievalSearchFailed, err)
	}

	s.logger.Debug("retrieval done", zap.Int("results", len(chunks)), zap.Int("limit", limit))
	return RetrievalResult{Chunks: chunks}
}

func (s *RetrievalService) fallback(ctx context.Context, limit int, reason RetrievalFailure, cause error) RetrievalResult {
	res := s.fail(reason, cause)

	chunks, err := s.store.List(ctx, limit)
	if err != nil {
		s.logger.Warn("retrieval fallback failed", zap.Error(err))
		return res
	}
	res.Chunks = chunks
	res.Fallback = true
	return res
}

func (s *RetrievalService) fail(reason RetrievalFailure, cause error) RetrievalResult {
	metrics.RetrievalFailures.WithLabelValues(string(reason)).Inc()
	if s != nil {
		fields := []zap.Field{zap.String("reason", string(reason))}
		if cause != nil {
			fields = append(fields, zap.Error(cause))
		}
		s.logger.Warn("retrieval degraded", fields...)
	}
	return RetrievalResult{Chunks: []domain.Chunk{}, Failure: reason}
}
