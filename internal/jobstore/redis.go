package jobstore

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"rya/internal/models"
	"rya/internal/pkg/errors"
)

const keyPrefix = "rya:job:"

// RedisStore keeps one hash per job under rya:job:<id>. Hash-field writes
// give us field-level merge semantics for free: concurrent merges of
// disjoint fields never clobber each other.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) key(jobID string) string { return keyPrefix + jobID }

func (s *RedisStore) Create(ctx context.Context, job models.Job) error {
	key := s.key(job.ID)

	// HSetNX on the id field doubles as the existence check.
	set, err := s.rdb.HSetNX(ctx, key, "job_id", job.ID).Result()
	if err != nil {
		return errors.Wrap(err, "jobstore.create", "redis write failed")
	}
	if !set {
		return errors.AlreadyExists("job", job.ID)
	}

	fields, err := recordFields(job)
	if err != nil {
		return errors.Wrap(err, "jobstore.create", "encode job record")
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "jobstore.create", "redis write failed")
	}
	return nil
}

func (s *RedisStore) Merge(ctx context.Context, jobID string, fields Fields) error {
	key := s.key(jobID)

	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return errors.Wrap(err, "jobstore.merge", "redis read failed")
	}
	if n == 0 {
		return errors.NotFound("job", jobID)
	}

	flat, err := flattenFields(fields)
	if err != nil {
		return errors.Wrap(err, "jobstore.merge", "encode fields")
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, flat)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "jobstore.merge", "redis write failed")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*models.Job, error) {
	raw, err := s.rdb.HGetAll(ctx, s.key(jobID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "jobstore.get", "redis read failed")
	}
	if len(raw) == 0 {
		return nil, errors.NotFound("job", jobID)
	}
	return decodeRecord(raw)
}

// List scans the keyspace for live job hashes. Records that fail to decode
// are skipped rather than failing the whole listing.
func (s *RedisStore) List(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	var jobs []*models.Job
	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.rdb.HGetAll(ctx, iter.Val()).Result()
		if err != nil || len(raw) == 0 {
			continue
		}
		job, err := decodeRecord(raw)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "jobstore.list", "redis scan failed")
	}

	sortJobsNewestFirst(jobs)
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// recordFields flattens a whole job into hash fields.
func recordFields(job models.Job) (map[string]any, error) {
	input, err := json.Marshal(job.Input)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		FieldStatus:         string(job.Status),
		FieldProgress:       job.Progress,
		FieldStatusMessage:  job.StatusMessage,
		FieldOutputLocation: job.OutputLocation,
		FieldError:          job.Error,
		"input":             string(input),
		"created_at":        job.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if job.Metadata != nil {
		meta, err := json.Marshal(job.Metadata)
		if err != nil {
			return nil, err
		}
		fields[FieldMetadata] = string(meta)
	}
	return fields, nil
}

// flattenFields converts merge values to hash-storable scalars.
func flattenFields(fields Fields) (map[string]any, error) {
	flat := make(map[string]any, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string, int, int64, float64, bool:
			flat[k] = val
		case models.JobStatus:
			flat[k] = string(val)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, err
			}
			flat[k] = string(b)
		}
	}
	return flat, nil
}

func decodeRecord(raw map[string]string) (*models.Job, error) {
	job := &models.Job{
		ID:             raw["job_id"],
		Status:         models.JobStatus(raw[FieldStatus]),
		StatusMessage:  raw[FieldStatusMessage],
		OutputLocation: raw[FieldOutputLocation],
		Error:          raw[FieldError],
	}

	if v := raw[FieldProgress]; v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrap(err, "jobstore.get", "corrupt progress field")
		}
		job.Progress = p
	}
	if v := raw["input"]; v != "" {
		if err := json.Unmarshal([]byte(v), &job.Input); err != nil {
			return nil, errors.Wrap(err, "jobstore.get", "corrupt input field")
		}
	}
	if v := raw[FieldMetadata]; v != "" {
		if err := json.Unmarshal([]byte(v), &job.Metadata); err != nil {
			return nil, errors.Wrap(err, "jobstore.get", "corrupt metadata field")
		}
	}
	if v := raw["created_at"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, errors.Wrap(err, "jobstore.get", "corrupt created_at field")
		}
		job.CreatedAt = t
	}
	return job, nil
}
