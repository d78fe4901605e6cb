package worker

import (
	"github.com/redis/go-redis/v9"

	"rya/internal/jobstore"
	"rya/internal/pipeline"
	"rya/internal/pkg/logger"
)

type Deps struct {
	RDB       *redis.Client
	QueueName string
	Store     jobstore.Store
	Pipeline  *pipeline.Pipeline
	Log       *logger.Logger
}
