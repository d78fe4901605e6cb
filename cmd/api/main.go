package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"rya/internal/acquire"
	"rya/internal/config"
	"rya/internal/httpapi"
	"rya/internal/jobstore"
	"rya/internal/pkg/logger"
	"rya/internal/pkg/shutdown"
	"rya/internal/storage"
	"rya/internal/worker/queue"
)

func main() {
	_ = godotenv.Load()

	log := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "json"),
		ServiceName: "rya-api",
		AddSource:   getEnv("LOG_SOURCE", "false") == "true",
	})

	log.Info("starting RYA API",
		"version", "0.1.0",
	)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.LogFatal("failed to load configuration", err)
	}
	if cfg.Postgres.URL == "" {
		log.LogFatal("DATABASE_URL is required", nil)
	}
	if cfg.Redis.Addr == "" {
		log.LogFatal("REDIS_ADDR is required", nil)
	}

	ctx := context.Background()

	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	// Connect to PostgreSQL
	log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	if err := pool.Ping(ctx); err != nil {
		log.LogFatal("failed to ping PostgreSQL", err)
	}
	log.Info("PostgreSQL connected")

	// Connect to Redis
	log.Info("connecting to Redis")
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}
	log.Info("Redis connected")

	// Initialize storage provider
	log.Info("initializing storage provider")
	sp, err := storage.NewProvider(storage.Config{
		Provider:  cfg.Storage.Provider,
		LocalRoot: cfg.Storage.LocalRoot,
	})
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", sp.Provider())

	router := httpapi.NewRouter(httpapi.Deps{
		Store: jobstore.NewRedisStore(rdb, cfg.Jobs.TTL()),
		Queue: queue.NewRedisQueue(rdb, cfg.Queue.Name),
		Pool:  pool,
		RDB:   rdb,
		SP:    sp,
		Cache: acquire.NewPostgresCache(pool),
		Log:   log,
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening",
			"addr", server.Addr,
			"port", cfg.Server.Port,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
