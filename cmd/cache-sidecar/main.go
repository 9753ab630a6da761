package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/agent-cache/pkg/agentcache"
	"github.com/Sternrassler/agent-cache/pkg/kv"
	"github.com/Sternrassler/agent-cache/pkg/logging"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogFormat == "console",
		Output: os.Stderr,
	})

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = redisClient.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("Failed to connect to Redis")
	}
	log.Info().Str("redis_url", cfg.RedisURL).Msg("Connected to Redis")

	manager, err := agentcache.New(agentcache.Config{
		Store:           buildStore(redisClient),
		MaxSizeBytes:    cfg.MaxSizeBytes,
		Policy:          cfg.Policy,
		NamespacePrefix: cfg.Prefix,
		CleanupInterval: time.Duration(cfg.CleanupInterval),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create cache manager")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go manager.Run(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: newServer(manager, redisClient).routes(),
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("policy", cfg.Policy).
			Int64("max_size_bytes", cfg.MaxSizeBytes).
			Msg("Cache sidecar listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close Redis client")
	}
}

// buildStore assembles the shared-tier middleware stack: Redis at the
// bottom, retries above it, the circuit breaker on top.
func buildStore(redisClient *redis.Client) kv.Store {
	var store kv.Store = kv.NewRedisStore(redisClient)
	store = kv.NewRetryingStore(store, kv.DefaultRetryConfig())
	store = kv.NewBreakerStore(store, kv.DefaultBreakerConfig(), logging.NewLogger("kv-breaker"))
	return store
}
