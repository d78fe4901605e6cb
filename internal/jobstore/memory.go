package jobstore

import (
	"context"
	"strconv"
	"sync"
	"time"

	"rya/internal/models"
	"rya/internal/pkg/errors"
)

// MemoryStore is an in-process Store used in tests and single-node setups.
// It mirrors the redis hash semantics, including the sliding TTL.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*memoryEntry

	now func() time.Time
}

type memoryEntry struct {
	fields    map[string]string
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, job models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[job.ID]; ok && s.now().Before(e.expiresAt) {
		return errors.AlreadyExists("job", job.ID)
	}

	fields, err := recordFields(job)
	if err != nil {
		return errors.Wrap(err, "jobstore.create", "encode job record")
	}
	entry := &memoryEntry{
		fields:    map[string]string{"job_id": job.ID},
		expiresAt: s.now().Add(s.ttl),
	}
	for k, v := range fields {
		entry.fields[k] = toString(v)
	}
	s.entries[job.ID] = entry
	return nil
}

func (s *MemoryStore) Merge(_ context.Context, jobID string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[jobID]
	if !ok || s.now().After(e.expiresAt) {
		return errors.NotFound("job", jobID)
	}

	flat, err := flattenFields(fields)
	if err != nil {
		return errors.Wrap(err, "jobstore.merge", "encode fields")
	}
	for k, v := range flat {
		e.fields[k] = toString(v)
	}
	e.expiresAt = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[jobID]
	if !ok || s.now().After(e.expiresAt) {
		return nil, errors.NotFound("job", jobID)
	}

	raw := make(map[string]string, len(e.fields))
	for k, v := range e.fields {
		raw[k] = v
	}
	return decodeRecord(raw)
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	var jobs []*models.Job
	for _, e := range s.entries {
		if s.now().After(e.expiresAt) {
			continue
		}
		job, err := decodeRecord(e.fields)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	sortJobsNewestFirst(jobs)
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
