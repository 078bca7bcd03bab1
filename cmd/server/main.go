package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inksink-backend/internal/agents"
	"inksink-backend/internal/config"
	"inksink-backend/internal/database"
	"inksink-backend/internal/handlers"
	"inksink-backend/internal/llm"
	"inksink-backend/internal/logger"
	"inksink-backend/internal/middleware"
	"inksink-backend/internal/repository"
	"inksink-backend/internal/router"
	"inksink-backend/internal/services"
	"inksink-backend/internal/websocket"
	"inksink-backend/internal/worker"
	"inksink-backend/internal/workflow"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	appLog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Logger initialization failed: %v", err)
	}
	defer appLog.Sync()
	appLog.Info("Starting InkSink backend", "env", cfg.Env, "provider", cfg.LLMProvider)

	ctx := context.Background()

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		appLog.Fatal("PostgreSQL connection failed", "error", err)
	}
	defer pool.Close()

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		appLog.Fatal("Redis connection failed", "error", err)
	}
	defer redisClients.Close()

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir, appLog); err != nil {
		appLog.Fatal("Database migration failed", "error", err)
	}

	// ──── Step 5: Initialize Chat Models and Agents ────
	models, err := llm.Open(ctx, llm.Options{
		Provider:       cfg.LLMProvider,
		APIKey:         cfg.LLMAPIKey,
		BaseURL:        cfg.LLMBaseURL,
		Model:          cfg.LLMModel,
		FastModel:      cfg.LLMFastModel,
		Temperature:    float32(cfg.LLMTemperature),
		ConcurrentReqs: cfg.LLMConcurrentReqs,
	})
	if err != nil {
		appLog.Fatal("Chat model initialization failed", "error", err)
	}
	defer models.Close()

	agentSet, err := agents.Load(models.Main, models.Fast)
	if err != nil {
		appLog.Fatal("Agent catalogue failed to load", "error", err)
	}

	chatWorkflow := workflow.New(
		agents.NewClassifier(agentSet.Orchestrator),
		agents.NewResponder(agentSet.Research),
		agents.NewResponder(agentSet.Writer),
		agents.NewResponder(agentSet.Assistant),
		appLog,
	)

	// ──── Initialize Repositories and Services ────
	chatRepo := repository.NewChatRepo(pool)
	profileRepo := repository.NewProfileRepo(pool)

	publisher := services.NewPublisher(redisClients.Queue)
	creditService := services.NewCreditService(profileRepo)
	chatService := services.NewChatService(chatRepo, publisher, appLog)
	settlements := services.NewSettlements(redisClients.Queue)
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)

	// ──── Step 6: Start Settlement Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, creditService, publisher, appLog, cfg.SettlementWorkers)
	workerPool.Start()

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, appLog)

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		router.Handlers{
			Chat:    handlers.NewChatHandler(chatWorkflow, creditService, settlements, appLog),
			Title:   handlers.NewTitleHandler(agents.NewTitleGenerator(agentSet.Title), appLog),
			Chats:   handlers.NewChatsHandler(chatService),
			Credits: handlers.NewCreditsHandler(creditService),
		},
		wsHub,
		cfg.FrontendURL,
		cfg.IsDevelopment(),
	)

	// WriteTimeout bounds plain JSON routes; the chat stream lifts it per request.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		appLog.Info("Shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
		wsHub.Shutdown()
		workerPool.Stop()
	}()

	appLog.Info("InkSink backend ready",
		"api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port),
		"ws", fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port),
		"dev_stream", cfg.IsDevelopment(),
	)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		appLog.Fatal("Server error", "error", err)
	}
	<-shutdownDone
}
