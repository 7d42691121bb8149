package http

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rag-chat/internal/metrics"
	"rag-chat/internal/service"
)

const wsWriteTimeout = 10 * time.Second

// wsInbound es un frame del cliente. SessionID es opcional y solo se usa para validar.
type wsInbound struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// WSHandler atiende el chat por websocket: un goroutine por conexión, frames procesados en orden.
type WSHandler struct {
	logger   *zap.Logger
	chat     *service.ChatService
	registry *ConnectionRegistry
	upgrader websocket.Upgrader
}

func NewWSHandler(logger *zap.Logger, chat *service.ChatService, registry *ConnectionRegistry, allowedOrigins []string) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = NewConnectionRegistry()
	}
	return &WSHandler{
		logger:   logger,
		chat:     chat,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// Serve maneja GET /api/v1/chat/ws/:session_id.
func (h *WSHandler) Serve(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		sessionID = service.DefaultSessionID
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade ya respondió al cliente.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	h.registry.Bind(connID, sessionID)
	metrics.WSConnections.Inc()
	h.logger.Info("websocket connected", zap.String("conn_id", connID), zap.String("session_id", sessionID))

	defer func() {
		h.registry.Unbind(connID)
		metrics.WSConnections.Dec()
		_ = conn.Close()
		h.logger.Info("websocket disconnected", zap.String("conn_id", connID))
	}()

	// El contexto del request no es confiable tras el hijack.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", zap.String("conn_id", connID), zap.Error(err))
			}
			return
		}
		if err := h.handleFrame(ctx, conn, connID, payload); err != nil {
			h.logger.Warn("websocket write failed", zap.String("conn_id", connID), zap.Error(err))
			return
		}
	}
}

// handleFrame procesa un frame; solo devuelve error si no se pudo escribir la respuesta.
func (h *WSHandler) handleFrame(ctx context.Context, conn *websocket.Conn, connID string, payload []byte) error {
	boundSession, ok := h.registry.SessionFor(connID)
	if !ok {
		return writeWSJSON(conn, gin.H{"error": "connection not registered"})
	}

	var in wsInbound
	if err := json.Unmarshal(payload, &in); err != nil {
		return writeWSJSON(conn, gin.H{"error": "invalid frame"})
	}
	if sid := strings.TrimSpace(in.SessionID); sid != "" && sid != boundSession {
		h.logger.Warn("websocket session mismatch",
			zap.String("conn_id", connID),
			zap.String("bound_session", boundSession),
			zap.String("frame_session", sid),
		)
		return writeWSJSON(conn, gin.H{"error": "session_id does not match connection"})
	}

	turn, err := h.chat.HandleTurn(ctx, boundSession, in.Message, service.DefaultTurnOptions())
	if err != nil {
		status, msg := turnErrorResponse(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("websocket turn failed", zap.Error(err))
		}
		return writeWSJSON(conn, gin.H{"error": msg})
	}

	metrics.TurnsTotal.WithLabelValues("ws").Inc()
	return writeWSJSON(conn, turn.AssistantMessage)
}

func writeWSJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}

// originChecker usa la misma lista que CORS. Clientes sin Origin (CLI, tests) se aceptan.
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	if allowAnyOrigin(allowedOrigins) {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowedOrigins, origin)
	}
}
