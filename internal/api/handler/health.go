package handler

import (
	"net/http"

	"github.com/Soba101/FluxADM/internal/api/response"
	"github.com/Soba101/FluxADM/internal/cache"
	"github.com/Soba101/FluxADM/internal/llm"
	"github.com/Soba101/FluxADM/internal/store"
)

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
// Database or cache failure makes the service unhealthy. A missing model
// endpoint does not: enrichment degrades to rule-based results, so it is
// reported but never fails the check.
func NewHealthHandler(st store.Store, ca cache.Cache, model llm.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]string{
			"database": "ok",
			"cache":    "ok",
			"model":    "ok",
		}
		healthy := true

		if err := st.Ping(r.Context()); err != nil {
			components["database"] = "unavailable"
			healthy = false
		}
		if err := ca.Ping(r.Context()); err != nil {
			components["cache"] = "unavailable"
			healthy = false
		}
		if err := model.Ready(r.Context()); err != nil {
			components["model"] = "unavailable"
		}

		if !healthy {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", components)
			return
		}

		response.JSON(w, map[string]any{
			"status":     "ok",
			"components": components,
		})
	}
}
