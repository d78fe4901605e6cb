package models

import "time"

// Artifact is the immutable output of a successful provider call.
// CacheKey is a deterministic hash of the request parameters; ObjectKey is
// where the payload lives in the storage provider. Stale artifacts are
// invalidated by deletion, never updated in place.
type Artifact struct {
	CacheKey    string    `json:"cache_key"`
	ObjectKey   string    `json:"object_key"`
	Provenance  string    `json:"provenance"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
