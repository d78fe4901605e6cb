package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"rya/internal/acquire"
	"rya/internal/config"
	"rya/internal/jobstore"
	"rya/internal/media"
	"rya/internal/pipeline"
	"rya/internal/pkg/logger"
	"rya/internal/provider"
	"rya/internal/script"
	"rya/internal/storage"
	"rya/internal/worker"
)

func main() {
	_ = godotenv.Load()

	log := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "json"),
		ServiceName: "rya-worker",
		AddSource:   getEnv("LOG_SOURCE", "false") == "true",
	})

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()

	sp, err := storage.NewProvider(storage.Config{
		Provider:  cfg.Storage.Provider,
		LocalRoot: cfg.Storage.LocalRoot,
	})
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}

	tiers, maxTimeout := buildTiers(cfg.Providers.Tiers, log)
	if len(tiers) == 0 {
		log.LogFatal("no acquisition tiers configured", nil)
	}

	cache := acquire.NewPostgresCache(pool)
	visuals := acquire.NewEngine(acquire.EngineDeps{
		Tiers:       tiers,
		Cache:       cache,
		Storage:     sp,
		TierTimeout: maxTimeout,
		Log:         log,
	})

	var broll pipeline.Acquirer
	if cfg.Providers.BRoll.Enabled && cfg.Providers.BRoll.APIKey != "" {
		pexels := provider.NewPexels(cfg.Providers.BRoll.APIKey,
			time.Duration(cfg.Providers.BRoll.TimeoutSeconds)*time.Second)
		broll = acquire.NewEngine(acquire.EngineDeps{
			Tiers:       []provider.Capability{pexels},
			Cache:       cache,
			Storage:     sp,
			TierTimeout: time.Duration(cfg.Providers.BRoll.TimeoutSeconds) * time.Second,
			Log:         log,
		})
	}

	store := jobstore.NewRedisStore(rdb, cfg.Jobs.TTL())
	ffmpeg := media.NewFFmpeg(cfg.Pipeline.FFmpegBinary, log)

	pipe := pipeline.New(pipeline.Deps{
		Store: store,
		Scripts: provider.NewLLMClient(
			cfg.Providers.LLM.BaseURL,
			cfg.Providers.LLM.APIKey,
			cfg.Providers.LLM.Model,
			time.Duration(cfg.Providers.LLM.TimeoutSeconds)*time.Second,
		),
		Parser: script.NewParser(
			script.WithPace(cfg.Script.WordsPerSecond),
			script.WithFloor(cfg.Script.FloorSeconds),
		),
		Speech: provider.NewTTSClient(
			cfg.Providers.TTS.BaseURL,
			cfg.Providers.TTS.APIKey,
			time.Duration(cfg.Providers.TTS.TimeoutSeconds)*time.Second,
		),
		Visuals:            visuals,
		BRoll:              broll,
		Storage:            sp,
		Mixer:              ffmpeg,
		Asm:                ffmpeg,
		Music:              media.NewMusicLibrary(cfg.Pipeline.MusicDir),
		WorkDir:            cfg.Pipeline.WorkDir,
		MaxParallelVisuals: cfg.Pipeline.MaxParallelVisuals,
		TTSProvider:        cfg.Providers.TTS.Provider,
		Log:                log,
	})

	log.Info("RYA worker started",
		"queue", cfg.Queue.Name,
		"tiers", len(tiers),
		"broll_enabled", broll != nil,
	)

	if err := worker.Run(ctx, worker.Deps{
		RDB:       rdb,
		QueueName: cfg.Queue.Name,
		Store:     store,
		Pipeline:  pipe,
		Log:       log,
	}); err != nil && ctx.Err() == nil {
		log.LogFatal("worker stopped unexpectedly", err)
	}
}

// buildTiers instantiates the configured cascade in order. Unknown tier
// names are skipped with a warning so a typo degrades instead of crashing.
func buildTiers(tiers []config.Tier, log *logger.Logger) ([]provider.Capability, time.Duration) {
	var (
		out        []provider.Capability
		maxTimeout time.Duration
	)
	for _, t := range tiers {
		var tier provider.Capability
		switch t.Name {
		case "pollinations":
			tier = provider.NewPollinations(t.BaseURL, t.Timeout())
		case "replicate":
			tier = provider.NewReplicate(t.APIKey, t.Timeout())
		case "dalle":
			tier = provider.NewDallE(t.APIKey, t.Timeout())
		default:
			log.Warn("unknown tier in configuration, skipping", "tier", t.Name)
			continue
		}
		out = append(out, tier)
		if t.Timeout() > maxTimeout {
			maxTimeout = t.Timeout()
		}
	}
	return out, maxTimeout
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
