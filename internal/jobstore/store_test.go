package jobstore

import (
	"context"
	"testing"
	"time"

	"rya/internal/models"
	"rya/internal/pkg/errors"
)

func newJob(id string) models.Job {
	return models.Job{
		ID:     id,
		Status: models.StatusQueued,
		Input: models.SubmitRequest{
			Topic:           "Hydrogen propulsion",
			DurationSeconds: 30,
			Style:           models.StyleTechnical,
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	if err := store.Create(ctx, newJob("job-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != models.StatusQueued {
		t.Errorf("expected status queued, got %s", got.Status)
	}
	if got.Input.Topic != "Hydrogen propulsion" {
		t.Errorf("input not round-tripped, got %+v", got.Input)
	}
	if got.Progress != 0 {
		t.Errorf("expected progress 0, got %d", got.Progress)
	}
}

func TestCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	if err := store.Create(ctx, newJob("job-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	err := store.Create(ctx, newJob("job-1"))
	if !errors.IsCode(err, errors.CodeAlreadyExists) {
		t.Errorf("expected ALREADY_EXISTS, got %v", err)
	}
}

func TestMergePreservesUnrelatedFields(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	if err := store.Create(ctx, newJob("job-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Two call sites merging disjoint fields.
	if err := store.Merge(ctx, "job-1", Fields{
		FieldStatus:        models.StatusProcessing,
		FieldStatusMessage: "Generating script...",
	}); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if err := store.Merge(ctx, "job-1", Fields{FieldProgress: 15}); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != models.StatusProcessing {
		t.Errorf("status lost by later merge: %s", got.Status)
	}
	if got.StatusMessage != "Generating script..." {
		t.Errorf("status_message lost by later merge: %q", got.StatusMessage)
	}
	if got.Progress != 15 {
		t.Errorf("expected progress 15, got %d", got.Progress)
	}
	if got.Input.Topic != "Hydrogen propulsion" {
		t.Errorf("input lost by merges: %+v", got.Input)
	}
}

func TestMergeMetadata(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	if err := store.Create(ctx, newJob("job-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	meta := map[string]any{"scene_count": 4}
	if err := store.Merge(ctx, "job-1", Fields{FieldMetadata: meta}); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Metadata["scene_count"] != float64(4) {
		t.Errorf("expected scene_count=4, got %v", got.Metadata["scene_count"])
	}
}

func TestMergeNotFound(t *testing.T) {
	store := NewMemoryStore(0)
	err := store.Merge(context.Background(), "nope", Fields{FieldProgress: 5})
	if !errors.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	base := time.Now().UTC()
	for i, id := range []string{"job-a", "job-b", "job-c"} {
		job := newJob(id)
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Create(ctx, job); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	jobs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "job-c" || jobs[1].ID != "job-b" {
		t.Errorf("wrong order: %s, %s", jobs[0].ID, jobs[1].ID)
	}
}

func TestRetentionWindow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	base := time.Now()
	store.now = func() time.Time { return base }

	if err := store.Create(ctx, newJob("job-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// A merge just before expiry refreshes the window.
	store.now = func() time.Time { return base.Add(50 * time.Minute) }
	if err := store.Merge(ctx, "job-1", Fields{FieldProgress: 30}); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	// 50m + 55m is past the original window but inside the refreshed one.
	store.now = func() time.Time { return base.Add(105 * time.Minute) }
	if _, err := store.Get(ctx, "job-1"); err != nil {
		t.Fatalf("expected job alive after TTL refresh: %v", err)
	}

	// Far past the refreshed window the job is reclaimed.
	store.now = func() time.Time { return base.Add(4 * time.Hour) }
	if _, err := store.Get(ctx, "job-1"); !errors.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND after expiry, got %v", err)
	}
}
