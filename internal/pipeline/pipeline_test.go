package pipeline

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rya/internal/acquire"
	"rya/internal/jobstore"
	"rya/internal/media"
	"rya/internal/models"
	"rya/internal/pkg/errors"
	"rya/internal/ports"
)

const sampleScript = `[VISUAL: title | title: "Raft Consensus"]
Distributed systems need to agree. [PAUSE] Raft makes that agreement understandable.

[VISUAL: concept]
Imagine five servers electing a leader by majority vote, terms acting as a logical clock.

[VISUAL: list | title: "Guarantees" | items: ["Election safety", "Log matching", "Leader completeness"]]
Raft gives you three core guarantees that together make replicated logs safe.
`

type fakeScripts struct {
	out string
	err error
}

func (f *fakeScripts) GenerateScript(_ context.Context, _ models.ContentBrief) (string, models.UsageMetrics, error) {
	if f.err != nil {
		return "", models.UsageMetrics{}, f.err
	}
	return f.out, models.UsageMetrics{LLMInputTokens: 120, LLMOutputTokens: 350, LLMModel: "gemini-2.0-flash"}, nil
}

type fakeSpeech struct{ err error }

func (f *fakeSpeech) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("mp3:" + text[:min(8, len(text))]), nil
}

type fakeAcquirer struct {
	calls int
	err   error
	tier  string
}

func (f *fakeAcquirer) Acquire(_ context.Context, req acquire.Request) (*acquire.Acquisition, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &acquire.Acquisition{Artifact: models.Artifact{
		CacheKey:    acquire.CacheKey(req.Topic, req.Style, req.Kind),
		ObjectKey:   "artifacts/image/test.png",
		Provenance:  f.tier,
		ContentType: "image/png",
	}}, nil
}

type fakeStorage struct {
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	data, _ := media.Placeholder(models.StyleTechnical)
	return &fakeStorage{objects: map[string][]byte{"artifacts/image/test.png": data}}
}

func (s *fakeStorage) Provider() string { return "fake" }

func (s *fakeStorage) PutObject(_ context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	s.objects[in.ObjectKey] = data
	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: int64(len(data))}, nil
}

func (s *fakeStorage) GetObject(_ context.Context, objectKey string) (io.ReadCloser, string, int64, error) {
	data, ok := s.objects[objectKey]
	if !ok {
		return nil, "", 0, errors.NotFound("object", objectKey)
	}
	return io.NopCloser(bytes.NewReader(data)), "image/png", int64(len(data)), nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	delete(s.objects, objectKey)
	return nil
}

func (s *fakeStorage) GetSignedURL(_ context.Context, _ string, _ time.Duration) (ports.SignedURLOutput, error) {
	return ports.SignedURLOutput{}, errors.Unavailable("fake")
}

type fakeMixer struct {
	err   error
	music media.MusicTrack
}

func (f *fakeMixer) Mix(_ context.Context, _ []media.SceneAsset, music media.MusicTrack, outPath string) error {
	f.music = music
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outPath, []byte("mixed"), 0o644)
}

type fakeAssembler struct{ err error }

func (f *fakeAssembler) Assemble(_ context.Context, _ []media.SceneAsset, _, outPath string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outPath, []byte("video"), 0o644)
}

type harness struct {
	store    *jobstore.MemoryStore
	storage  *fakeStorage
	visuals  *fakeAcquirer
	mixer    *fakeMixer
	asm      *fakeAssembler
	pipeline *Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:   jobstore.NewMemoryStore(jobstore.DefaultTTL),
		storage: newFakeStorage(),
		visuals: &fakeAcquirer{tier: "pollinations"},
		mixer:   &fakeMixer{},
		asm:     &fakeAssembler{},
	}
	h.pipeline = New(Deps{
		Store:       h.store,
		Scripts:     &fakeScripts{out: sampleScript},
		Speech:      &fakeSpeech{},
		Visuals:     h.visuals,
		Storage:     h.storage,
		Mixer:       h.mixer,
		Asm:         h.asm,
		WorkDir:     t.TempDir(),
		TTSProvider: "elevenlabs",
	})
	return h
}

func (h *harness) createJob(t *testing.T, id string) models.ContentBrief {
	t.Helper()
	brief := models.ContentBrief{
		Topic:          "Raft Consensus",
		TargetDuration: 60,
		StyleArchetype: models.StyleTechnical,
		AudienceLevel:  models.AudienceIntermediate,
	}
	err := h.store.Create(context.Background(), models.Job{
		ID:        id,
		Status:    models.StatusQueued,
		Input:     models.SubmitRequest{Topic: brief.Topic, DurationSeconds: 60, Style: brief.StyleArchetype},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return brief
}

func TestRunCompletesJob(t *testing.T) {
	h := newHarness(t)
	brief := h.createJob(t, "job-1")

	if err := h.pipeline.Run(context.Background(), "job-1", brief); err != nil {
		t.Fatalf("run: %v", err)
	}

	job, err := h.store.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if job.Progress != ProgressDone {
		t.Fatalf("progress = %d, want %d", job.Progress, ProgressDone)
	}
	if job.OutputLocation != "videos/job-1/final.mp4" {
		t.Fatalf("output location = %q", job.OutputLocation)
	}
	if _, ok := h.storage.objects[job.OutputLocation]; !ok {
		t.Fatal("final video missing from storage")
	}
	if job.Metadata["usage"] == nil || job.Metadata["cost"] == nil {
		t.Fatalf("metadata missing usage/cost: %v", job.Metadata)
	}
}

func TestRunFailsJobOnMixError(t *testing.T) {
	h := newHarness(t)
	brief := h.createJob(t, "job-2")
	h.mixer.err = errors.Internal("audio mix blew up")

	if err := h.pipeline.Run(context.Background(), "job-2", brief); err == nil {
		t.Fatal("expected run error")
	}

	job, err := h.store.Get(context.Background(), "job-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.Error == "" {
		t.Fatal("error field empty")
	}
	// Progress freezes at the stage that was running when the job failed.
	if job.Progress != ProgressAudioMix {
		t.Fatalf("progress = %d, want frozen at %d", job.Progress, ProgressAudioMix)
	}
}

func TestRunDegradesScenesWhenTiersExhausted(t *testing.T) {
	h := newHarness(t)
	brief := h.createJob(t, "job-3")
	h.visuals.err = &acquire.ExhaustedError{Failures: []acquire.TierFailure{
		{Tier: "pollinations", Err: errors.Unavailable("pollinations")},
	}}

	if err := h.pipeline.Run(context.Background(), "job-3", brief); err != nil {
		t.Fatalf("run: %v", err)
	}

	job, err := h.store.Get(context.Background(), "job-3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want completed despite exhausted tiers", job.Status)
	}
	if job.Metadata["degraded_scenes"] == nil {
		t.Fatalf("degraded scenes not recorded: %v", job.Metadata)
	}
}

func TestRunFailsJobOnScriptError(t *testing.T) {
	h := newHarness(t)
	brief := h.createJob(t, "job-4")
	h.pipeline.d.Scripts = &fakeScripts{err: errors.RateLimited("llm")}

	if err := h.pipeline.Run(context.Background(), "job-4", brief); err == nil {
		t.Fatal("expected run error")
	}

	job, err := h.store.Get(context.Background(), "job-4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.Progress != ProgressScript {
		t.Fatalf("progress = %d, want frozen at %d", job.Progress, ProgressScript)
	}
}

func TestRunMixesBackgroundMusic(t *testing.T) {
	h := newHarness(t)
	brief := h.createJob(t, "job-6")

	musicDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(musicDir, "technical_bg.mp3"), []byte("mp3"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.pipeline.d.Music = media.NewMusicLibrary(musicDir)

	if err := h.pipeline.Run(context.Background(), "job-6", brief); err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.mixer.music.Path == "" {
		t.Fatal("mixer received no music bed")
	}
	if h.mixer.music.GainDB != -15 {
		t.Fatalf("music gain = %d, want -15", h.mixer.music.GainDB)
	}
}

func TestRunMixesWithoutMusicWhenLibraryEmpty(t *testing.T) {
	h := newHarness(t)
	brief := h.createJob(t, "job-7")

	if err := h.pipeline.Run(context.Background(), "job-7", brief); err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.mixer.music.Path != "" {
		t.Fatalf("mixer received unexpected music bed: %+v", h.mixer.music)
	}
}

func TestRunCountsOnlyFreshImages(t *testing.T) {
	h := newHarness(t)
	brief := h.createJob(t, "job-5")

	if err := h.pipeline.Run(context.Background(), "job-5", brief); err != nil {
		t.Fatalf("run: %v", err)
	}

	// One concept scene in the sample script, acquired fresh.
	if h.visuals.calls != 1 {
		t.Fatalf("acquirer calls = %d, want 1", h.visuals.calls)
	}
	job, _ := h.store.Get(context.Background(), "job-5")
	usage, ok := job.Metadata["usage"].(map[string]any)
	if !ok {
		t.Fatalf("usage metadata shape: %T", job.Metadata["usage"])
	}
	images, ok := usage["images_by_tier"].(map[string]any)
	if !ok || images["pollinations"] == nil {
		t.Fatalf("images_by_tier missing pollinations: %v", usage)
	}
}
