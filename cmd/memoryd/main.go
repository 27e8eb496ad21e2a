package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ekailabs/ekai-memory/internal/api"
	"github.com/ekailabs/ekai-memory/internal/config"
	"github.com/ekailabs/ekai-memory/internal/embedding"
	"github.com/ekailabs/ekai-memory/internal/memory"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting ekai-memory...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/memory.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Initialize embedding provider
	embCfg := embedding.Config{
		Endpoint:  cfg.Embedding.Endpoint,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		Dimension: cfg.Embedding.Dimension,
	}
	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case "local":
		embedder = embedding.NewLocalProvider(embCfg)
	default:
		embedder = embedding.NewAPIProvider(embCfg)
	}

	// Initialize memory store
	store, err := memory.NewStore(cfg.Database.Path, embedder, logger)
	if err != nil {
		logger.Fatal("failed to open memory store", zap.String("path", cfg.Database.Path), zap.Error(err))
	}

	// Build HTTP handler
	handler := api.NewHandler(store, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("ekai-memory listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down ekai-memory...")
	srv.Shutdown(context.Background())
	store.Close()
}
