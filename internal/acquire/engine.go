package acquire

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"rya/internal/models"
	"rya/internal/pkg/errors"
	"rya/internal/pkg/logger"
	"rya/internal/ports"
	"rya/internal/provider"
)

// Request describes one artifact to acquire. Topic, Style, and Kind
// determine the cache key; PinTier, when set, skips cascading and uses that
// tier only.
type Request struct {
	Topic   string
	Style   models.StyleArchetype
	Kind    string // "image" or "clip"; empty means image
	PinTier string
}

// Acquisition is a successful result. CacheHit distinguishes zero-cost
// returns from fresh provider work for usage accounting.
type Acquisition struct {
	Artifact models.Artifact
	CacheHit bool
}

// TierFailure records why one tier could not produce the artifact.
type TierFailure struct {
	Tier string
	Err  error
}

// ExhaustedError aggregates the per-tier causes after every configured
// tier failed. Callers treat it as recoverable: a scene falls back to a
// synthetic placeholder, never a fatal pipeline error.
type ExhaustedError struct {
	Failures []TierFailure
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Tier, f.Err))
	}
	return "all tiers exhausted: " + strings.Join(parts, "; ")
}

// styleKeywords decorate the prompt per archetype before any tier attempt.
var styleKeywords = map[models.StyleArchetype]string{
	models.StyleTechnical:    "technical blueprint, schematic, white lines on dark grid, highly detailed, cad drawing",
	models.StyleStorytelling: "cinematic shot, photorealistic, dramatic lighting, depth of field",
	models.StyleDocumentary:  "editorial photography, realistic lighting, sharp focus, professional journalism",
	models.StyleMinimalist:   "minimalist flat vector art, clean lines, solid colors, high contrast",
}

// Engine acquires one artifact per request from an ordered tier list,
// cheapest first. The order is fixed configuration; it is never reordered
// at runtime.
type Engine struct {
	tiers       []provider.Capability
	cache       Cache
	storage     ports.StorageProvider
	tierTimeout time.Duration
	log         *logger.Logger
}

type EngineDeps struct {
	Tiers       []provider.Capability
	Cache       Cache
	Storage     ports.StorageProvider
	TierTimeout time.Duration
	Log         *logger.Logger
}

func NewEngine(d EngineDeps) *Engine {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	timeout := d.TierTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Engine{
		tiers:       d.Tiers,
		cache:       d.Cache,
		storage:     d.Storage,
		tierTimeout: timeout,
		log:         log.WithComponent("acquire"),
	}
}

// Acquire returns the artifact for the request, consulting the cache
// before any provider call. On a miss it walks the tiers in order with a
// bounded timeout each; the first success is persisted under the cache key
// so later identical requests hit the cache regardless of producing tier.
func (e *Engine) Acquire(ctx context.Context, req Request) (*Acquisition, error) {
	key := CacheKey(req.Topic, req.Style, req.Kind)
	log := e.log.FromContext(ctx)

	if cached, err := e.cache.Get(ctx, key); err == nil {
		log.Debug("cache hit", "cache_key", key, "provenance", cached.Provenance)
		return &Acquisition{Artifact: *cached, CacheHit: true}, nil
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	tiers, err := e.selectTiers(req.PinTier)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(req.Topic, req.Style)
	var failures []TierFailure

	for _, tier := range tiers {
		result, err := e.attemptTier(ctx, tier, prompt, req.Style)
		if err != nil {
			log.Warn("tier failed, cascading",
				"tier", tier.Name(),
				"topic", req.Topic,
				"error", err.Error(),
			)
			failures = append(failures, TierFailure{Tier: tier.Name(), Err: err})
			continue
		}

		artifact, err := e.persist(ctx, key, req, tier.Name(), result)
		if err != nil {
			return nil, err
		}
		log.Info("artifact acquired",
			"tier", tier.Name(),
			"cache_key", key,
			"size", artifact.Size,
		)
		return &Acquisition{Artifact: *artifact}, nil
	}

	return nil, &ExhaustedError{Failures: failures}
}

// selectTiers returns the cascade order, or just the pinned tier when the
// caller forces one.
func (e *Engine) selectTiers(pin string) ([]provider.Capability, error) {
	if pin == "" {
		return e.tiers, nil
	}
	for _, tier := range e.tiers {
		if tier.Name() == pin {
			return []provider.Capability{tier}, nil
		}
	}
	return nil, errors.Newf(errors.CodeBadRequest, "unknown tier %q", pin)
}

func (e *Engine) attemptTier(ctx context.Context, tier provider.Capability, prompt string, style models.StyleArchetype) (*provider.Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.tierTimeout)
	defer cancel()

	result, err := tier.Attempt(attemptCtx, provider.Request{Prompt: prompt, Style: style})
	if err != nil {
		return nil, err
	}
	// Success is strictly a non-empty payload; anything else cascades.
	if result == nil || len(result.Payload) == 0 {
		return nil, errors.InvalidResponse(tier.Name(), "empty payload")
	}
	return result, nil
}

// persist writes the payload to storage and registers the index entry.
// A concurrent writer may win the race; its record is returned instead.
func (e *Engine) persist(ctx context.Context, key string, req Request, tier string, result *provider.Result) (*models.Artifact, error) {
	objectKey := fmt.Sprintf("artifacts/%s/%s%s", kindOrDefault(req.Kind), key, extensionFor(result.ContentType))

	put, err := e.storage.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   objectKey,
		ContentType: result.ContentType,
		Reader:      bytes.NewReader(result.Payload),
		Size:        int64(len(result.Payload)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "acquire.persist", "payload write failed")
	}

	return e.cache.Put(ctx, models.Artifact{
		CacheKey:    key,
		ObjectKey:   put.ObjectKey,
		Provenance:  tier,
		ContentType: result.ContentType,
		Size:        put.Size,
	})
}

func buildPrompt(topic string, style models.StyleArchetype) string {
	if kw := styleKeywords[style]; kw != "" {
		return topic + ", " + kw
	}
	return topic
}

func kindOrDefault(kind string) string {
	if kind == "" {
		return "image"
	}
	return kind
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "video/mp4":
		return ".mp4"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ""
	}
}
