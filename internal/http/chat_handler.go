package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rag-chat/internal/metrics"
	"rag-chat/internal/service"
)

// ChatHandler mantiene dependencias para los endpoints de chat.
type ChatHandler struct {
	logger     *zap.Logger
	chat       *service.ChatService
	maxHistory int
}

// NewChatHandler crea una instancia de ChatHandler. maxHistory acota history_window.
func NewChatHandler(logger *zap.Logger, chat *service.ChatService, maxHistory int) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		logger:     logger,
		chat:       chat,
		maxHistory: maxHistory,
	}
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessage maneja POST /api/v1/chat/send y responde solo el mensaje del asistente.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid send message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sessionID := c.DefaultQuery("session_id", service.DefaultSessionID)
	turn, err := h.chat.HandleTurn(c.Request.Context(), sessionID, req.Message, service.DefaultTurnOptions())
	if err != nil {
		h.writeTurnError(c, err)
		return
	}

	metrics.TurnsTotal.WithLabelValues("http").Inc()
	c.JSON(http.StatusOK, turn.AssistantMessage)
}

// SendWithHistory maneja POST /api/v1/chat/send-with-ai y devuelve el turno completo.
func (h *ChatHandler) SendWithHistory(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid send-with-ai request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	opts := service.DefaultTurnOptions()
	var err error
	if opts.HistoryWindow, err = queryInt(c, "history_window", opts.HistoryWindow, 0); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "history_window must be a non-negative integer"})
		return
	}
	if opts.ContextLimit, err = queryInt(c, "context_limit", opts.ContextLimit, 1); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "context_limit must be a positive integer"})
		return
	}
	if h.maxHistory > 0 && opts.HistoryWindow > h.maxHistory {
		opts.HistoryWindow = h.maxHistory
	}

	sessionID := c.DefaultQuery("session_id", service.DefaultSessionID)
	turn, err := h.chat.HandleTurn(c.Request.Context(), sessionID, req.Message, opts)
	if err != nil {
		h.writeTurnError(c, err)
		return
	}

	metrics.TurnsTotal.WithLabelValues("http").Inc()
	c.JSON(http.StatusOK, turn)
}

// GetHistory maneja GET /api/v1/chat/history/:session_id.
func (h *ChatHandler) GetHistory(c *gin.Context) {
	session, err := h.chat.History(c.Param("session_id"))
	if err != nil {
		h.writeTurnError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// ClearHistory maneja DELETE /api/v1/chat/clear/:session_id.
func (h *ChatHandler) ClearHistory(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.chat.Clear(sessionID); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		h.writeTurnError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "chat history cleared", "session_id": sessionID})
}

func (h *ChatHandler) writeTurnError(c *gin.Context, err error) {
	status, msg := turnErrorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("chat request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

// turnErrorResponse traduce errores del servicio a status y texto seguro para el cliente.
func turnErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrMessageEmpty):
		return http.StatusBadRequest, "message cannot be empty"
	case errors.Is(err, service.ErrMessageTooLong):
		return http.StatusBadRequest, "message is too long"
	case errors.Is(err, service.ErrMessageInvalidInput):
		return http.StatusBadRequest, "invalid message"
	case errors.Is(err, service.ErrChatServiceNotConfigured):
		return http.StatusServiceUnavailable, "chat service not configured"
	default:
		return http.StatusInternalServerError, "could not process message"
	}
}

// queryInt lee un entero de la query; ausente devuelve def, menor a minVal es error.
func queryInt(c *gin.Context, key string, def, minVal int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < minVal {
		return 0, errors.New("invalid " + key)
	}
	return v, nil
}
