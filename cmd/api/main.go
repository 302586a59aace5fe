package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nightloom/internal/config"
	"nightloom/internal/db"
	apihttp "nightloom/internal/http"
	"nightloom/internal/llm"
	"nightloom/internal/repository"
	"nightloom/internal/service"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Selección del session store: postgres > redis > memoria.
	var store repository.SessionStore = repository.NewMemorySessionStore()
	switch {
	case cfg.DatabaseURL != "":
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		store = repository.NewPgSessionStore(pool)
	case cfg.RedisAddr != "":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, falling back to memory store", zap.Error(err))
		} else {
			store = repository.NewRedisSessionStore(redisClient, time.Duration(cfg.SessionTTLHours)*time.Hour)
		}
		cancel()
	default:
		logger.Info("no DATABASE_URL or REDIS_ADDR, using in-memory session store")
	}

	gateway := llm.NewClient(cfg.GenBaseURL, cfg.GenAPIKey, llm.Config{
		Timeout:    time.Duration(cfg.GenTimeoutSecs) * time.Second,
		MaxRetries: cfg.GenMaxRetries,
		RetryDelay: time.Duration(cfg.GenRetryDelayMS) * time.Millisecond,
	}, logger)

	facade := service.NewGenerationFacade(gateway, service.NewFallbackProvider(), logger)
	scoring := service.NewScoringEngine(cfg.ScoringStrict, logger)
	orchestrator := service.NewSessionOrchestrator(store, facade, scoring, logger)

	sessionHandler := apihttp.NewSessionHandler(logger, orchestrator)
	router := apihttp.NewRouter(logger, sessionHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
