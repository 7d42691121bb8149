package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VectorStore es la vista de solo lectura que usan /health y /vector/status.
type VectorStore interface {
	Table() string
	Exists(ctx context.Context) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// HealthHandler expone el estado de las dependencias externas.
type HealthHandler struct {
	logger        *zap.Logger
	store         VectorStore
	llmConfigured bool
	timeout       time.Duration
}

// NewHealthHandler acepta store nil cuando no hay vector store configurado.
func NewHealthHandler(logger *zap.Logger, store VectorStore, llmConfigured bool) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:        logger,
		store:         store,
		llmConfigured: llmConfigured,
		timeout:       3 * time.Second,
	}
}

// Root maneja GET /.
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "RAG chat API", "status": "running"})
}

// Health maneja GET /health. Siempre 200: los componentes degradados se reportan, no fallan.
func (h *HealthHandler) Health(c *gin.Context) {
	vector := "not_configured"
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()
		if _, err := h.store.Exists(ctx); err != nil {
			h.logger.Warn("vector store health check failed", zap.Error(err))
			vector = "unavailable"
		} else {
			vector = "connected"
		}
	}

	completion := "not_configured"
	if h.llmConfigured {
		completion = "configured"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"vector_store": vector,
		"completion":   completion,
		"chat_service": "ready",
	})
}

// VectorStatus maneja GET /vector/status.
func (h *HealthHandler) VectorStatus(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vector store not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	exists, err := h.store.Exists(ctx)
	if err != nil {
		h.logger.Warn("vector status check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vector store unavailable"})
		return
	}

	var count int64
	if exists {
		if count, err = h.store.Count(ctx); err != nil {
			h.logger.Warn("vector count failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vector store unavailable"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"table":  h.store.Table(),
		"exists": exists,
		"count":  count,
	})
}
