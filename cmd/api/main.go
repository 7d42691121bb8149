package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"rag-chat/internal/app"
	"rag-chat/internal/config"
	apihttp "rag-chat/internal/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	comps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("build components", zap.Error(err))
	}
	defer comps.Close()

	var vectorStore apihttp.VectorStore
	if comps.Chunks != nil {
		vectorStore = comps.Chunks
	}

	chatHandler := apihttp.NewChatHandler(logger, comps.Chat, cfg.MaxMessagesPerSession)
	wsHandler := apihttp.NewWSHandler(logger, comps.Chat, apihttp.NewConnectionRegistry(), cfg.AllowedOrigins)
	healthHandler := apihttp.NewHealthHandler(logger, vectorStore, comps.LLMConfigured)
	router := apihttp.NewRouter(logger, cfg.AllowedOrigins, chatHandler, wsHandler, healthHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.Bool("vector_store", comps.Chunks != nil),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
