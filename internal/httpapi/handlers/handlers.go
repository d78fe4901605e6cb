package handlers

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"rya/internal/acquire"
	"rya/internal/jobstore"
	"rya/internal/pkg/logger"
	"rya/internal/ports"
)

// Queue is the submit-side of the worker queue.
type Queue interface {
	Push(ctx context.Context, jobID string) error
}

type Deps struct {
	Store jobstore.Store
	Queue Queue
	Pool  *pgxpool.Pool
	RDB   *redis.Client
	SP    ports.StorageProvider
	Cache *acquire.PostgresCache
	Log   *logger.Logger
}

type Handler struct {
	store jobstore.Store
	queue Queue
	pool  *pgxpool.Pool
	rdb   *redis.Client
	sp    ports.StorageProvider
	cache *acquire.PostgresCache
	log   *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		store: d.Store,
		queue: d.Queue,
		pool:  d.Pool,
		rdb:   d.RDB,
		sp:    d.SP,
		cache: d.Cache,
		log:   log.WithComponent("httpapi"),
	}
}
