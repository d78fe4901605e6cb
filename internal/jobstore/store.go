// Package jobstore persists pollable job records with a sliding retention
// window. Every write refreshes the TTL so stale jobs are reclaimed without
// explicit deletion.
package jobstore

import (
	"context"
	"sort"
	"time"

	"rya/internal/models"
)

// DefaultTTL is the retention window applied on every write.
const DefaultTTL = 24 * time.Hour

// Field names for partial-record merges.
const (
	FieldStatus         = "status"
	FieldProgress       = "progress"
	FieldStatusMessage  = "status_message"
	FieldOutputLocation = "output_location"
	FieldError          = "error"
	FieldMetadata       = "metadata"
)

// Fields is a partial job record: a shallow field-level overwrite applied
// by Merge. Unrelated fields written by other call sites are preserved.
type Fields map[string]any

// Store is the durable job record contract shared by the API and the worker.
type Store interface {
	// Create persists a new record. Fails with CodeAlreadyExists if the
	// job ID is present.
	Create(ctx context.Context, job models.Job) error

	// Merge applies a field-level overwrite and refreshes the retention
	// window. Fails with CodeNotFound if the job is absent or expired.
	Merge(ctx context.Context, jobID string, fields Fields) error

	// Get returns the current record, or CodeNotFound if the job is
	// unknown or past its retention window.
	Get(ctx context.Context, jobID string) (*models.Job, error)

	// List returns up to limit live records, newest first.
	List(ctx context.Context, limit int) ([]*models.Job, error)
}

func sortJobsNewestFirst(jobs []*models.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
