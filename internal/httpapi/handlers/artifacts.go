package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rya/internal/httpkit"
)

// DeleteArtifact evicts one entry from the artifact cache index. The next
// matching request regenerates the artifact through the tiers; this is the
// only invalidation path since cached entries are immutable.
func (h *Handler) DeleteArtifact(w http.ResponseWriter, r *http.Request) {
	cacheKey := chi.URLParam(r, "cacheKey")

	if err := h.cache.Delete(r.Context(), cacheKey); err != nil {
		h.log.LogError(r.Context(), "cache delete failed", err, "cache_key", cacheKey)
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "cache delete failed", nil)
		return
	}

	httpkit.WriteJSON(w, 200, map[string]any{"deleted": cacheKey})
}
