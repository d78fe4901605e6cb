// Package acquire obtains artifacts from ranked provider tiers, consulting
// a content-addressed cache before any network attempt.
package acquire

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rya/internal/models"
	"rya/internal/pkg/errors"
)

// CacheKey derives the deterministic key for a request: a stable hash of
// the normalized topic, the style, and the media kind. Identical requests
// always map to the same artifact regardless of which tier produced it;
// a clip and an image for the same topic never share an entry.
func CacheKey(topic string, style models.StyleArchetype, kind string) string {
	h := sha256.Sum256([]byte(normalizeTopic(topic) + "|" + string(style) + "|" + kindOrDefault(kind)))
	return hex.EncodeToString(h[:])
}

func normalizeTopic(topic string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(topic)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// Cache stores one immutable artifact per key. Writers race under
// first-writer-wins semantics: Put returns the winning record, which may
// not be the one just offered.
type Cache interface {
	// Get returns the cached artifact or CodeNotFound.
	Get(ctx context.Context, key string) (*models.Artifact, error)
	// Put registers the artifact under its cache key. If another writer
	// won the race, the stored record is returned and ours is discarded.
	Put(ctx context.Context, artifact models.Artifact) (*models.Artifact, error)
}

// PostgresCache indexes artifacts in a table keyed by cache_key; payload
// bytes live in the storage provider under the artifact's object key.
type PostgresCache struct {
	pool *pgxpool.Pool
}

func NewPostgresCache(pool *pgxpool.Pool) *PostgresCache {
	return &PostgresCache{pool: pool}
}

func (c *PostgresCache) Get(ctx context.Context, key string) (*models.Artifact, error) {
	var a models.Artifact
	err := c.pool.QueryRow(ctx,
		`SELECT cache_key, object_key, provenance, content_type, size, created_at
		 FROM artifacts WHERE cache_key=$1`,
		key,
	).Scan(&a.CacheKey, &a.ObjectKey, &a.Provenance, &a.ContentType, &a.Size, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFound("artifact", key)
		}
		return nil, errors.Wrap(err, "cache.get", "index query failed")
	}
	return &a, nil
}

func (c *PostgresCache) Put(ctx context.Context, artifact models.Artifact) (*models.Artifact, error) {
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}

	// ON CONFLICT DO NOTHING implements first-writer-wins: the losing
	// writer's row is dropped, never merged.
	tag, err := c.pool.Exec(ctx,
		`INSERT INTO artifacts (cache_key, object_key, provenance, content_type, size, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (cache_key) DO NOTHING`,
		artifact.CacheKey, artifact.ObjectKey, artifact.Provenance,
		artifact.ContentType, artifact.Size, artifact.CreatedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "cache.put", "index insert failed")
	}
	if tag.RowsAffected() == 0 {
		return c.Get(ctx, artifact.CacheKey)
	}
	return &artifact, nil
}

// Delete removes an index entry; it is the only way to invalidate a stale
// artifact (cache-bust), since records are never updated in place.
func (c *PostgresCache) Delete(ctx context.Context, key string) error {
	_, err := c.pool.Exec(ctx, `DELETE FROM artifacts WHERE cache_key=$1`, key)
	if err != nil {
		return errors.Wrap(err, "cache.delete", "index delete failed")
	}
	return nil
}

// MemoryCache is the in-process Cache used in tests.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]models.Artifact
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]models.Artifact)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*models.Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[key]
	if !ok {
		return nil, errors.NotFound("artifact", key)
	}
	return &a, nil
}

func (c *MemoryCache) Put(_ context.Context, artifact models.Artifact) (*models.Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[artifact.CacheKey]; ok {
		return &existing, nil
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	c.entries[artifact.CacheKey] = artifact
	return &artifact, nil
}
