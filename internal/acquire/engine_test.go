package acquire

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"rya/internal/models"
	"rya/internal/pkg/errors"
	"rya/internal/ports"
	"rya/internal/provider"
)

type fakeTier struct {
	name    string
	payload []byte
	err     error
	calls   int
}

func (f *fakeTier) Name() string { return f.name }

func (f *fakeTier) Attempt(_ context.Context, _ provider.Request) (*provider.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Result{Payload: f.payload, ContentType: "image/png"}, nil
}

type fakeStorage struct {
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
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

func newTestEngine(cache Cache, tiers ...provider.Capability) *Engine {
	return NewEngine(EngineDeps{
		Tiers:   tiers,
		Cache:   cache,
		Storage: newFakeStorage(),
	})
}

func TestAcquireSecondCallHitsCache(t *testing.T) {
	tier := &fakeTier{name: "free", payload: []byte("png-bytes")}
	engine := newTestEngine(NewMemoryCache(), tier)
	req := Request{Topic: "Kubernetes Networking", Style: models.StyleTechnical}

	first, err := engine.Acquire(context.Background(), req)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if first.CacheHit {
		t.Fatal("first acquire reported a cache hit")
	}

	second, err := engine.Acquire(context.Background(), req)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("second acquire missed the cache")
	}
	if second.Artifact.ObjectKey != first.Artifact.ObjectKey {
		t.Fatalf("object key changed between calls: %q vs %q", first.Artifact.ObjectKey, second.Artifact.ObjectKey)
	}
	if tier.calls != 1 {
		t.Fatalf("tier called %d times, want 1", tier.calls)
	}
}

func TestAcquireCascadesPastFailingTiers(t *testing.T) {
	failing := &fakeTier{name: "free", err: errors.RateLimited("free")}
	slow := &fakeTier{name: "cheap", err: errors.Timeout("cheap")}
	winning := &fakeTier{name: "premium", payload: []byte("image")}
	engine := newTestEngine(NewMemoryCache(), failing, slow, winning)

	got, err := engine.Acquire(context.Background(), Request{Topic: "raft consensus", Style: models.StyleTechnical})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got.Artifact.Provenance != "premium" {
		t.Fatalf("provenance = %q, want premium", got.Artifact.Provenance)
	}
	if failing.calls != 1 || slow.calls != 1 || winning.calls != 1 {
		t.Fatalf("calls = %d/%d/%d, want 1/1/1", failing.calls, slow.calls, winning.calls)
	}
}

func TestAcquireProvenanceSticksAcrossCalls(t *testing.T) {
	a := &fakeTier{name: "a", err: errors.Unavailable("a")}
	b := &fakeTier{name: "b", payload: []byte("from-b")}
	engine := newTestEngine(NewMemoryCache(), a, b)
	req := Request{Topic: "event sourcing", Style: models.StyleDocumentary}

	first, err := engine.Acquire(context.Background(), req)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if first.Artifact.Provenance != "b" {
		t.Fatalf("provenance = %q, want b", first.Artifact.Provenance)
	}

	second, err := engine.Acquire(context.Background(), req)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if second.Artifact.Provenance != "b" || second.Artifact.ObjectKey != first.Artifact.ObjectKey {
		t.Fatalf("repeat returned a different artifact: %+v", second.Artifact)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("calls after repeat = %d/%d, want 1/1", a.calls, b.calls)
	}
}

func TestAcquireAllTiersExhausted(t *testing.T) {
	a := &fakeTier{name: "free", err: errors.Unavailable("free")}
	b := &fakeTier{name: "cheap", err: errors.InvalidResponse("cheap", "empty payload")}
	engine := newTestEngine(NewMemoryCache(), a, b)

	_, err := engine.Acquire(context.Background(), Request{Topic: "x", Style: models.StyleMinimalist})
	if err == nil {
		t.Fatal("expected error when every tier fails")
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want *ExhaustedError", err)
	}
	if len(exhausted.Failures) != 2 {
		t.Fatalf("failure count = %d, want 2", len(exhausted.Failures))
	}
	if exhausted.Failures[0].Tier != "free" || exhausted.Failures[1].Tier != "cheap" {
		t.Fatalf("failure order = %q, %q", exhausted.Failures[0].Tier, exhausted.Failures[1].Tier)
	}
}

func TestAcquireEmptyPayloadCascades(t *testing.T) {
	empty := &fakeTier{name: "free", payload: nil}
	full := &fakeTier{name: "cheap", payload: []byte("ok")}
	engine := newTestEngine(NewMemoryCache(), empty, full)

	got, err := engine.Acquire(context.Background(), Request{Topic: "y", Style: models.StyleTechnical})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got.Artifact.Provenance != "cheap" {
		t.Fatalf("provenance = %q, want cheap", got.Artifact.Provenance)
	}
}

func TestAcquirePinnedTier(t *testing.T) {
	free := &fakeTier{name: "free", payload: []byte("free-img")}
	premium := &fakeTier{name: "premium", payload: []byte("premium-img")}
	engine := newTestEngine(NewMemoryCache(), free, premium)

	got, err := engine.Acquire(context.Background(), Request{
		Topic:   "z",
		Style:   models.StyleStorytelling,
		PinTier: "premium",
	})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got.Artifact.Provenance != "premium" {
		t.Fatalf("provenance = %q, want premium", got.Artifact.Provenance)
	}
	if free.calls != 0 {
		t.Fatalf("free tier called %d times despite pin", free.calls)
	}
}

func TestAcquireUnknownPinRejected(t *testing.T) {
	engine := newTestEngine(NewMemoryCache(), &fakeTier{name: "free", payload: []byte("x")})

	_, err := engine.Acquire(context.Background(), Request{Topic: "z", Style: models.StyleTechnical, PinTier: "nope"})
	if !errors.IsCode(err, errors.CodeBadRequest) {
		t.Fatalf("error = %v, want BAD_REQUEST", err)
	}
}

func TestCacheKeyNormalization(t *testing.T) {
	base := CacheKey("Kubernetes Networking", models.StyleTechnical, "image")

	for _, topic := range []string{
		"kubernetes networking",
		"  Kubernetes   Networking  ",
		"Kubernetes, Networking!",
	} {
		if got := CacheKey(topic, models.StyleTechnical, "image"); got != base {
			t.Errorf("CacheKey(%q) = %s, want %s", topic, got, base)
		}
	}

	if got := CacheKey("Kubernetes Networking", models.StyleTechnical, ""); got != base {
		t.Errorf("empty kind key = %s, want the image key %s", got, base)
	}
	if CacheKey("Kubernetes Networking", models.StyleMinimalist, "image") == base {
		t.Error("different styles produced the same cache key")
	}
	if CacheKey("Kubernetes Networking", models.StyleTechnical, "clip") == base {
		t.Error("different kinds produced the same cache key")
	}
}

func TestAcquireKindsKeepSeparateEntries(t *testing.T) {
	cache := NewMemoryCache()
	pexels := &fakeTier{name: "pexels", payload: []byte("clip-bytes")}
	images := &fakeTier{name: "pollinations", payload: []byte("image-bytes")}
	clipEngine := newTestEngine(cache, pexels)
	imageEngine := newTestEngine(cache, images)

	clip, err := clipEngine.Acquire(context.Background(), Request{
		Topic: "hydrogen engine",
		Style: models.StyleTechnical,
		Kind:  "clip",
	})
	if err != nil {
		t.Fatalf("clip acquire: %v", err)
	}

	img, err := imageEngine.Acquire(context.Background(), Request{
		Topic: "hydrogen engine",
		Style: models.StyleTechnical,
		Kind:  "image",
	})
	if err != nil {
		t.Fatalf("image acquire: %v", err)
	}
	if img.CacheHit {
		t.Fatal("image request hit the clip's cache entry")
	}
	if images.calls != 1 {
		t.Fatalf("image tier called %d times, want 1", images.calls)
	}
	if img.Artifact.Provenance != "pollinations" || img.Artifact.CacheKey == clip.Artifact.CacheKey {
		t.Fatalf("image artifact = %+v, clip artifact = %+v", img.Artifact, clip.Artifact)
	}
}

func TestMemoryCacheFirstWriterWins(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	first, err := cache.Put(ctx, models.Artifact{CacheKey: "k", ObjectKey: "obj-1", Provenance: "free"})
	if err != nil {
		t.Fatalf("first put: %v", err)
	}
	second, err := cache.Put(ctx, models.Artifact{CacheKey: "k", ObjectKey: "obj-2", Provenance: "premium"})
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if second.ObjectKey != first.ObjectKey || second.Provenance != "free" {
		t.Fatalf("losing writer's record won: %+v", second)
	}
}
