// Package handler contains the HTTP handlers for the public API. Each
// handler validates input, delegates to a service or the store, and maps
// domain errors onto the response envelope.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/Soba101/FluxADM/internal/api/middleware"
	"github.com/Soba101/FluxADM/internal/api/response"
	"github.com/Soba101/FluxADM/internal/intake"
	"github.com/Soba101/FluxADM/internal/store"
	"github.com/Soba101/FluxADM/pkg/models"
)

// Intake is the subset of the intake service the handlers depend on.
type Intake interface {
	Submit(ctx context.Context, params intake.SubmitParams) (*intake.SubmitResult, error)
	Decide(ctx context.Context, params intake.DecisionParams) ([]*models.ApprovalStage, error)
	GetJob(ctx context.Context, jobID, tenantID uuid.UUID) (*models.Job, error)
}

// NewSubmitHandler returns an http.HandlerFunc for POST /api/v1/change-requests.
// Enrichment runs asynchronously; the response carries the job to poll.
func NewSubmitHandler(svc Intake) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		var req struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			DocumentText string `json:"document_text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		result, err := svc.Submit(r.Context(), intake.SubmitParams{
			TenantID:     tenantID,
			Title:        req.Title,
			Description:  req.Description,
			DocumentText: req.DocumentText,
		})
		if err != nil {
			switch {
			case errors.Is(err, intake.ErrEmptyDocument):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"document_text is required", nil)
			case errors.Is(err, intake.ErrDocumentTooLarge):
				response.Error(w, http.StatusRequestEntityTooLarge, "DOCUMENT_TOO_LARGE",
					"document_text exceeds the maximum size", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to submit change request", nil)
			}
			return
		}

		response.Accepted(w, map[string]any{
			"change_request": result.ChangeRequest,
			"job_id":         result.Job.ID.String(),
			"job_status":     result.Job.Status,
		})
	}
}

// NewGetChangeRequestHandler returns an http.HandlerFunc for
// GET /api/v1/change-requests/{crID}. The response includes the latest
// analysis outcome and the approval chain when present.
func NewGetChangeRequestHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		crID, err := uuid.Parse(chi.URLParam(r, "crID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_CR_ID", "Invalid change request ID", nil)
			return
		}

		cr, err := st.GetChangeRequest(r.Context(), crID, tenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "CR_NOT_FOUND", "Change request not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load change request", nil)
			return
		}

		result := map[string]any{
			"change_request": cr,
		}
		if rec, err := st.GetAnalysisOutcome(r.Context(), crID); err == nil {
			result["analysis"] = rec.Outcome
		}
		if stages, err := st.ListApprovalStages(r.Context(), crID); err == nil && len(stages) > 0 {
			result["approval_stages"] = stages
		}

		response.JSON(w, result)
	}
}

// NewListChangeRequestsHandler returns an http.HandlerFunc for
// GET /api/v1/change-requests.
func NewListChangeRequestsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		filter := store.CRFilter{
			TenantID: tenantID,
			Status:   r.URL.Query().Get("status"),
			Category: r.URL.Query().Get("category"),
			Priority: r.URL.Query().Get("priority"),
			Page:     queryInt(r, "page", 1),
			Limit:    queryInt(r, "limit", 20),
		}

		crs, total, err := st.ListChangeRequests(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list change requests", nil)
			return
		}

		response.Collection(w, crs, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: total > filter.Page*filter.Limit,
		})
	}
}

// NewDecisionHandler returns an http.HandlerFunc for
// POST /api/v1/change-requests/{crID}/decision.
func NewDecisionHandler(svc Intake) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		crID, err := uuid.Parse(chi.URLParam(r, "crID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_CR_ID", "Invalid change request ID", nil)
			return
		}

		var req struct {
			Decision  string  `json:"decision"`
			DecidedBy string  `json:"decided_by"`
			Comments  *string `json:"comments"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.DecidedBy == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "decided_by is required", nil)
			return
		}

		stages, err := svc.Decide(r.Context(), intake.DecisionParams{
			TenantID:        tenantID,
			ChangeRequestID: crID,
			Decision:        req.Decision,
			DecidedBy:       req.DecidedBy,
			Comments:        req.Comments,
		})
		if err != nil {
			switch {
			case errors.Is(err, intake.ErrInvalidDecision):
				response.Error(w, http.StatusBadRequest, "INVALID_DECISION",
					"decision must be \"approve\" or \"reject\"", nil)
			case errors.Is(err, intake.ErrNotPendingApproval):
				response.Error(w, http.StatusConflict, "NOT_PENDING_APPROVAL",
					"Change request is not pending approval", nil)
			case errors.Is(err, intake.ErrNoPendingStage):
				response.Error(w, http.StatusConflict, "NO_PENDING_STAGE",
					"No pending approval stage", nil)
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "CR_NOT_FOUND", "Change request not found", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to record decision", nil)
			}
			return
		}

		response.JSON(w, map[string]any{"approval_stages": stages})
	}
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
