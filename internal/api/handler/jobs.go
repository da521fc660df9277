package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/Soba101/FluxADM/internal/api/middleware"
	"github.com/Soba101/FluxADM/internal/api/response"
	"github.com/Soba101/FluxADM/internal/store"
	"github.com/Soba101/FluxADM/pkg/models"
)

// NewPollJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewPollJobHandler(svc Intake) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_JOB_ID", "Invalid job ID format", nil)
			return
		}

		job, err := svc.GetJob(r.Context(), jobID, tenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load job", nil)
			return
		}

		result := map[string]any{
			"job_id": job.ID.String(),
			"status": job.Status,
		}
		if job.ChangeRequestID != nil {
			result["cr_id"] = job.ChangeRequestID.String()
		}
		if job.Status == models.JobStatusFailed && job.ErrorMessage != nil {
			result["error_message"] = *job.ErrorMessage
		}

		response.JSON(w, result)
	}
}
