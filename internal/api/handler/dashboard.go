package handler

import (
	"encoding/json"
	"net/http"
	"time"

	mw "github.com/Soba101/FluxADM/internal/api/middleware"
	"github.com/Soba101/FluxADM/internal/api/response"
	"github.com/Soba101/FluxADM/internal/cache"
	"github.com/Soba101/FluxADM/internal/store"
	"github.com/Soba101/FluxADM/pkg/models"
)

// dashboardTTL bounds staleness of the cached summary.
const dashboardTTL = 60 * time.Second

// NewDashboardHandler returns an http.HandlerFunc for
// GET /api/v1/dashboard/summary. Summaries are cached per tenant; cache
// failures fall through to the database.
func NewDashboardHandler(st store.Store, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		key := cache.DashboardKey(tenantID)
		if raw, found, err := ca.Get(r.Context(), key); err == nil && found {
			var summary models.DashboardSummary
			if json.Unmarshal(raw, &summary) == nil {
				response.JSON(w, &summary)
				return
			}
		}

		summary, err := st.GetDashboardSummary(r.Context(), tenantID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to compute dashboard summary", nil)
			return
		}

		if raw, err := json.Marshal(summary); err == nil {
			_ = ca.Set(r.Context(), key, raw, dashboardTTL)
		}

		response.JSON(w, summary)
	}
}
