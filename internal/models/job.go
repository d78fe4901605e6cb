package models

import "time"

// JobStatus is the lifecycle state of a generation job.
// Transitions are monotonic: queued -> processing -> completed | failed.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SubmitRequest is the caller-facing submission payload. PinTier, when set,
// forces every visual through the named tier instead of the cascade.
type SubmitRequest struct {
	Topic           string         `json:"topic"`
	DurationSeconds int            `json:"duration_seconds"`
	Style           StyleArchetype `json:"style"`
	VoiceID         string         `json:"voice_id,omitempty"`
	PinTier         string         `json:"pin_tier,omitempty"`
}

// Job is the durable, pollable record for one generation run.
// It is owned by the job store; the orchestrator mutates it only through
// whole-record or field-level merge writes.
type Job struct {
	ID             string         `json:"job_id"`
	Status         JobStatus      `json:"status"`
	Progress       int            `json:"progress"`
	StatusMessage  string         `json:"status_message,omitempty"`
	OutputLocation string         `json:"output_location,omitempty"`
	Error          string         `json:"error,omitempty"`
	Input          SubmitRequest  `json:"input"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
