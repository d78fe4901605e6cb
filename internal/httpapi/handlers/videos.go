package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"rya/internal/httpkit"
	"rya/internal/models"
	"rya/internal/pkg/errors"
)

const (
	minDurationSeconds     = 10
	maxDurationSeconds     = 600
	defaultDurationSeconds = 60
)

func validPinTier(tier string) bool {
	switch tier {
	case "", "pollinations", "replicate", "dalle":
		return true
	}
	return false
}

// PostVideo validates the submission, persists the queued record, and
// enqueues the job ID. The response returns immediately; callers poll.
func (h *Handler) PostVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.SubmitRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}

	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "topic is required", map[string]any{"field": "topic"})
		return
	}
	if req.DurationSeconds == 0 {
		req.DurationSeconds = defaultDurationSeconds
	}
	if req.DurationSeconds < minDurationSeconds || req.DurationSeconds > maxDurationSeconds {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR",
			fmt.Sprintf("duration_seconds must be between %d and %d", minDurationSeconds, maxDurationSeconds),
			map[string]any{"field": "duration_seconds"})
		return
	}
	if req.Style == "" {
		req.Style = models.StyleTechnical
	}
	if !req.Style.Valid() {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "unknown style archetype",
			map[string]any{"field": "style", "value": string(req.Style)})
		return
	}
	if !validPinTier(req.PinTier) {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "unknown pin_tier",
			map[string]any{"field": "pin_tier", "value": req.PinTier})
		return
	}

	job := models.Job{
		ID:        "job_" + uuid.NewString(),
		Status:    models.StatusQueued,
		Progress:  0,
		Input:     req,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.store.Create(ctx, job); err != nil {
		h.log.LogError(ctx, "job create failed", err)
		httpkit.WriteErr(w, errors.GetHTTPStatus(err), string(errors.GetCode(err)), "job create failed", nil)
		return
	}
	if err := h.queue.Push(ctx, job.ID); err != nil {
		h.log.LogError(ctx, "queue push failed", err)
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "queue push failed", nil)
		return
	}

	httpkit.WriteJSON(w, 202, map[string]any{
		"job_id":     job.ID,
		"status":     job.Status,
		"created_at": job.CreatedAt,
	})
}

// GetVideo returns the pollable job record.
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	job, err := h.store.Get(r.Context(), jobID)
	if err != nil {
		if errors.IsNotFound(err) {
			httpkit.WriteErr(w, 404, "NOT_FOUND", "job not found or expired", map[string]any{"job_id": jobID})
			return
		}
		h.log.LogError(r.Context(), "job read failed", err)
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "job read failed", nil)
		return
	}

	httpkit.WriteJSON(w, 200, map[string]any{"job": job})
}

// ListJobs returns recent jobs, newest first.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	jobs, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.log.LogError(r.Context(), "job list failed", err)
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "job list failed", nil)
		return
	}

	httpkit.WriteJSON(w, 200, map[string]any{"jobs": jobs})
}

// StreamVideo streams the finished video straight from storage.
func (h *Handler) StreamVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	job, err := h.store.Get(ctx, jobID)
	if err != nil {
		httpkit.WriteErr(w, 404, "NOT_FOUND", "job not found or expired", map[string]any{"job_id": jobID})
		return
	}
	if job.Status != models.StatusCompleted || job.OutputLocation == "" {
		httpkit.WriteErr(w, 409, "FAILED_PRECONDITION", "job has no output yet",
			map[string]any{"status": job.Status})
		return
	}

	rc, contentType, size, err := h.sp.GetObject(ctx, job.OutputLocation)
	if err != nil {
		h.log.LogError(ctx, "output fetch failed", err, "object_key", job.OutputLocation)
		httpkit.WriteErr(w, 502, "INTERNAL_ERROR", "output fetch failed", nil)
		return
	}
	defer rc.Close()

	if contentType == "" {
		contentType = "video/mp4"
	}
	w.Header().Set("Content-Type", contentType)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(200)
	_, _ = io.Copy(w, rc)
}
