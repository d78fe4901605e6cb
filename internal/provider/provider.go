// Package provider defines the uniform contract every generation backend
// implements, plus the concrete HTTP tiers for images and stock footage.
// A provider either produces a complete artifact payload or a typed failure
// (timeout, rate limited, invalid response, unavailable); callers decide
// how to escalate.
package provider

import (
	"context"

	"rya/internal/models"
)

// Request describes one artifact to obtain.
type Request struct {
	Prompt string
	Style  models.StyleArchetype
	Width  int
	Height int
}

// Result is a successful provider payload.
type Result struct {
	Payload     []byte
	ContentType string
}

// Capability is the synchronous attempt contract implemented by each tier.
// Implementations must honor ctx cancellation and return errors coded with
// pkg/errors (CodeTimeout, CodeRateLimited, CodeInvalidResponse,
// CodeUnavailable) so the acquisition engine can report causes per tier.
type Capability interface {
	// Name identifies the tier in logs, provenance tags and usage counters.
	Name() string
	Attempt(ctx context.Context, req Request) (*Result, error)
}

// ScriptProvider generates directive-tagged narration text from a brief.
type ScriptProvider interface {
	GenerateScript(ctx context.Context, brief models.ContentBrief) (string, models.UsageMetrics, error)
}

// SpeechProvider synthesizes narration audio. Prosody markers in the text
// ([PAUSE], [SHORT_PAUSE]) are rendered as timed silences.
type SpeechProvider interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}
