package worker

import (
	"context"
	"time"

	"rya/internal/models"
	"rya/internal/pkg/logger"
	"rya/internal/worker/queue"
)

// Run consumes job IDs from the queue until the context is canceled. Each
// job is rehydrated from the store and handed to the pipeline; the pipeline
// owns the job record from then on.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	q := queue.NewRedisQueue(d.RDB, d.QueueName)

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		// Use a separate context with timeout for queue operations
		popCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		jobID, err := q.Pop(popCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}

			log.Warn("queue pop error, retrying",
				"error", err.Error(),
			)
			time.Sleep(1 * time.Second)
			continue
		}

		if jobID == "" {
			continue
		}

		jobCtx := logger.ContextWithJobID(ctx, jobID)
		jobLog := log.WithJobID(jobID)

		job, err := d.Store.Get(jobCtx, jobID)
		if err != nil {
			// Expired or never created; nothing to process.
			jobLog.Warn("queued job not found in store, skipping",
				"error", err.Error(),
			)
			continue
		}
		if job.Status.Terminal() {
			jobLog.Warn("queued job already terminal, skipping",
				"status", string(job.Status),
			)
			continue
		}

		jobLog.Info("processing job")
		startTime := time.Now()

		if err := d.Pipeline.Run(jobCtx, jobID, briefFromInput(job.Input)); err != nil {
			jobLog.Error("job failed",
				"error", err.Error(),
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
		} else {
			jobLog.Info("job completed",
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
		}
	}
}

// briefFromInput expands the submission payload into the content brief the
// pipeline consumes.
func briefFromInput(in models.SubmitRequest) models.ContentBrief {
	return models.ContentBrief{
		Topic:          in.Topic,
		TargetDuration: in.DurationSeconds,
		StyleArchetype: in.Style,
		AudienceLevel:  models.AudienceIntermediate,
		VoiceID:        in.VoiceID,
		PinTier:        in.PinTier,
	}
}
