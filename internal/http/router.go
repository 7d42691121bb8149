package http

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rag-chat/internal/metrics"
)

// NewRouter configura el router de Gin con middlewares y rutas base.
func NewRouter(
	logger *zap.Logger,
	allowedOrigins []string,
	chatH *ChatHandler,
	wsH *WSHandler,
	healthH *HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y CORS.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), corsMiddleware(allowedOrigins))

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	base := r.Group("", jsonContentTypeMiddleware())
	base.GET("/", healthH.Root)
	base.GET("/health", healthH.Health)
	base.GET("/vector/status", healthH.VectorStatus)

	chat := r.Group("/api/v1/chat")
	// El upgrade a websocket no pasa por el middleware JSON.
	chat.GET("/ws/:session_id", wsH.Serve)

	api := chat.Group("", jsonContentTypeMiddleware())
	api.POST("/send", chatH.SendMessage)
	api.POST("/send-with-ai", chatH.SendWithHistory)
	api.GET("/history/:session_id", chatH.GetHistory)
	api.DELETE("/clear/:session_id", chatH.ClearHistory)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

// corsMiddleware aplica ALLOWED_ORIGINS; "*" o lista vacía permite cualquier origen.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	if allowAnyOrigin(allowedOrigins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

func allowAnyOrigin(allowedOrigins []string) bool {
	return len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*")
}
