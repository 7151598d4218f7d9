package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gwi.com/doc-insights/internal/api"
	"gwi.com/doc-insights/internal/config"
	"gwi.com/doc-insights/internal/core"
	"gwi.com/doc-insights/internal/logger"
	"gwi.com/doc-insights/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if !cfg.DotEnvLoaded {
		log.Info("No .env file found, relying on environment variables")
	}

	// Cancelled on shutdown so in-flight analyses and chat turns stop
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// Initialize LLM service
	llmService, err := core.NewLLMService(rootCtx, core.LLMOptions{
		APIKey:            cfg.GeminiAPIKey,
		Model:             cfg.GeminiModel,
		RequestsPerMinute: cfg.LLMRequestsPerMinute,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize LLM service", zap.Error(err))
	}
	defer llmService.Close()

	// Session store and services
	sessions := store.NewSessionStore(rootCtx)
	analysisService := core.NewAnalysisService(llmService, log)
	chatService := core.NewChatService(llmService, cfg.MaxHistoryTurns, log)
	documentService := core.NewDocumentService(sessions, analysisService, chatService, core.DocumentOptions{
		AnalysisTimeout: cfg.AnalysisTimeout,
		ChatTimeout:     cfg.ChatTimeout,
		MaxUploadBytes:  cfg.MaxUploadBytes,
	}, log)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(documentService, cfg.MaxUploadBytes, log)
	router := api.NewRouter(apiHandler, log)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second, // Uploads can be large
		WriteTimeout: cfg.ChatTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting server",
			zap.String("addr", serverAddr),
			zap.String("model", cfg.GeminiModel),
			zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	cancelRoot()
	documentService.Wait()

	log.Info("Server exiting gracefully")
}
