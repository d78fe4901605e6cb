package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"rya/internal/acquire"
	"rya/internal/httpapi/handlers"
	"rya/internal/httpkit"
	"rya/internal/jobstore"
	"rya/internal/pkg/logger"
	"rya/internal/pkg/middleware"
	"rya/internal/ports"
)

type Deps struct {
	Store jobstore.Store
	Queue handlers.Queue
	Pool  *pgxpool.Pool
	RDB   *redis.Client
	SP    ports.StorageProvider
	Cache *acquire.PostgresCache
	Log   *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Timeout(60 * time.Second))

	// ---- CORS ----
	allowedOrigins := envCSV("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:8081",
		"http://localhost:5173",
	})
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))

	h := handlers.New(handlers.Deps{
		Store: d.Store,
		Queue: d.Queue,
		Pool:  d.Pool,
		RDB:   d.RDB,
		SP:    d.SP,
		Cache: d.Cache,
		Log:   log,
	})

	// ---- HEALTH ----
	r.Get("/health", h.Health)

	// ---- VIDEOS ----
	r.Post("/videos", h.PostVideo)
	r.Get("/videos/{jobId}", h.GetVideo)
	r.Get("/videos/{jobId}/content", h.StreamVideo)

	// ---- JOBS ----
	r.Get("/jobs", h.ListJobs)

	// ---- ARTIFACT CACHE ----
	r.Delete("/artifacts/{cacheKey}", h.DeleteArtifact)

	return r
}

func envCSV(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
