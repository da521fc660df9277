// Package intake owns the change request lifecycle: submission, background
// enrichment, and the approval workflow that follows.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Soba101/FluxADM/internal/analysis"
	"github.com/Soba101/FluxADM/internal/cache"
	"github.com/Soba101/FluxADM/internal/store"
	"github.com/Soba101/FluxADM/pkg/models"
)

var (
	ErrEmptyDocument      = errors.New("document text is required")
	ErrDocumentTooLarge   = errors.New("document text exceeds maximum size")
	ErrInvalidDecision    = errors.New("decision must be \"approve\" or \"reject\"")
	ErrNoPendingStage     = errors.New("no pending approval stage")
	ErrNotPendingApproval = errors.New("change request is not pending approval")
)

// maxDocumentBytes bounds submitted document text. Documents arrive already
// extracted upstream; anything larger than this is a client error.
const maxDocumentBytes = 1 << 20

// jobStatusTTL is how long job status entries live in the cache.
const jobStatusTTL = 30 * time.Minute

// Analyzer runs the enrichment tasks for one document.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) models.Outcome
}

// SubmitParams holds validated parameters for a change request submission.
type SubmitParams struct {
	TenantID     uuid.UUID
	Title        string
	Description  string
	DocumentText string
}

// SubmitResult is returned immediately; enrichment continues in the background.
type SubmitResult struct {
	ChangeRequest *models.ChangeRequest
	Job           *models.Job
}

// DecisionParams holds one approval decision against the current pending stage.
type DecisionParams struct {
	TenantID        uuid.UUID
	ChangeRequestID uuid.UUID
	Decision        string // "approve" or "reject"
	DecidedBy       string
	Comments        *string
}

// Service orchestrates intake, enrichment, and approvals.
type Service struct {
	store    store.Store
	cache    cache.Cache
	analyzer Analyzer
}

// NewService creates a new Service.
func NewService(st store.Store, ca cache.Cache, analyzer Analyzer) *Service {
	return &Service{store: st, cache: ca, analyzer: analyzer}
}

// Submit validates and persists a new change request, creates an enrichment
// job, and dispatches analysis in a background goroutine. Returns immediately
// without waiting for enrichment to complete.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*SubmitResult, error) {
	if params.DocumentText == "" {
		return nil, ErrEmptyDocument
	}
	if len(params.DocumentText) > maxDocumentBytes {
		return nil, ErrDocumentTooLarge
	}

	number, err := s.store.NextChangeRequestNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocating number: %w", err)
	}

	now := time.Now().UTC()
	cr := &models.ChangeRequest{
		ID:              uuid.New(),
		TenantID:        params.TenantID,
		Number:          number,
		Title:           params.Title,
		Description:     params.Description,
		DocumentText:    params.DocumentText,
		Category:        models.CategoryNormal,
		Priority:        models.PriorityMedium,
		RiskLevel:       models.RiskMedium,
		AffectedSystems: []string{},
		Status:          models.StatusSubmitted,
		SubmittedAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateChangeRequest(ctx, cr); err != nil {
		return nil, fmt.Errorf("creating change request: %w", err)
	}

	job := &models.Job{
		ID:              uuid.New(),
		TenantID:        params.TenantID,
		Type:            "enrichment",
		Status:          models.JobStatusPending,
		ChangeRequestID: &cr.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusPending, jobStatusTTL)

	go s.runEnrichment(cr, job.ID)

	return &SubmitResult{ChangeRequest: cr, Job: job}, nil
}

// runEnrichment performs the enrichment pipeline in a goroutine. It recovers
// from panics and always marks the job as completed or failed.
func (s *Service) runEnrichment(cr *models.ChangeRequest, jobID uuid.UUID) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in runEnrichment", "error", r, "job_id", jobID, "cr_id", cr.ID)
			s.failJob(ctx, jobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	_ = s.store.UpdateJobStatus(ctx, jobID, models.JobStatusRunning)
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusRunning, jobStatusTTL)
	_ = s.store.UpdateChangeRequestStatus(ctx, cr.ID, cr.TenantID, models.StatusUnderReview)

	// Analyze never fails: degraded results surface as lowered confidence
	// and fallback provenance, not errors.
	outcome := s.analyzer.Analyze(ctx, analysis.Request{
		CRID:         cr.ID,
		DocumentText: cr.DocumentText,
	})

	if err := s.store.ApplyAnalysis(ctx, cr.ID, &outcome); err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("applying analysis: %v", err))
		return
	}

	rec := &store.OutcomeRecord{
		ID:              uuid.New(),
		ChangeRequestID: cr.ID,
		TenantID:        cr.TenantID,
		JobID:           &jobID,
		Outcome:         outcome,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateAnalysisOutcome(ctx, rec); err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("storing outcome: %v", err))
		return
	}

	stages := approvalStagesFor(cr.ID, &outcome)
	if err := s.store.CreateApprovalStages(ctx, stages); err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("creating approval stages: %v", err))
		return
	}

	_ = s.store.UpdateChangeRequestStatus(ctx, cr.ID, cr.TenantID, models.StatusPendingApproval)
	_ = s.store.UpdateJobStatus(ctx, jobID, models.JobStatusCompleted,
		store.WithChangeRequestID(cr.ID))
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusCompleted, jobStatusTTL)

	slog.Info("enrichment completed",
		"cr_id", cr.ID,
		"job_id", jobID,
		"category", outcome.Categorization.Category,
		"risk_level", outcome.RiskAssessment.RiskLevel,
		"overall_confidence", outcome.OverallConfidence,
		"fallback_used", outcome.FallbackUsed,
		"stages", len(stages))
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, msg string) {
	_ = s.store.UpdateJobStatus(ctx, jobID, models.JobStatusFailed,
		store.WithErrorMessage(msg))
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, jobStatusTTL)
}

// approvalStagesFor derives the approval chain from the enrichment outcome.
// Routine changes get a single technical review; emergency, critical-priority,
// or high-risk changes additionally require CAB approval.
func approvalStagesFor(crID uuid.UUID, outcome *models.Outcome) []*models.ApprovalStage {
	now := time.Now().UTC()
	names := []string{models.StageTechnicalReview}

	needsCAB := outcome.Categorization.Category == models.CategoryEmergency ||
		outcome.Categorization.Priority == models.PriorityCritical ||
		outcome.RiskAssessment.RiskLevel == models.RiskHigh ||
		outcome.RiskAssessment.RequiresAdditionalReview
	if needsCAB {
		names = append(names, models.StageCABApproval)
	}

	stages := make([]*models.ApprovalStage, 0, len(names))
	for i, name := range names {
		stages = append(stages, &models.ApprovalStage{
			ID:              uuid.New(),
			ChangeRequestID: crID,
			StageNumber:     i + 1,
			StageName:       name,
			Status:          models.StagePending,
			CreatedAt:       now,
		})
	}
	return stages
}

// Decide records an approval decision against the first pending stage of a
// change request. A rejection at any stage rejects the change request;
// approving the final stage approves it.
func (s *Service) Decide(ctx context.Context, params DecisionParams) ([]*models.ApprovalStage, error) {
	if params.Decision != "approve" && params.Decision != "reject" {
		return nil, ErrInvalidDecision
	}

	cr, err := s.store.GetChangeRequest(ctx, params.ChangeRequestID, params.TenantID)
	if err != nil {
		return nil, err
	}
	if cr.Status != models.StatusPendingApproval {
		return nil, ErrNotPendingApproval
	}

	stages, err := s.store.ListApprovalStages(ctx, cr.ID)
	if err != nil {
		return nil, fmt.Errorf("listing approval stages: %w", err)
	}

	var current *models.ApprovalStage
	for _, stage := range stages {
		if stage.Status == models.StagePending {
			current = stage
			break
		}
	}
	if current == nil {
		return nil, ErrNoPendingStage
	}

	stageStatus := models.StageApproved
	if params.Decision == "reject" {
		stageStatus = models.StageRejected
	}
	if err := s.store.DecideApprovalStage(ctx, current.ID, stageStatus, params.DecidedBy, params.Comments); err != nil {
		return nil, fmt.Errorf("deciding stage: %w", err)
	}

	if stageStatus == models.StageRejected {
		if err := s.store.UpdateChangeRequestStatus(ctx, cr.ID, cr.TenantID, models.StatusRejected); err != nil {
			return nil, fmt.Errorf("rejecting change request: %w", err)
		}
	} else if current.StageNumber == len(stages) {
		// Last stage approved
		if err := s.store.UpdateChangeRequestStatus(ctx, cr.ID, cr.TenantID, models.StatusApproved); err != nil {
			return nil, fmt.Errorf("approving change request: %w", err)
		}
	}

	return s.store.ListApprovalStages(ctx, cr.ID)
}

// GetJob returns job status, preferring the cache over the database.
func (s *Service) GetJob(ctx context.Context, jobID, tenantID uuid.UUID) (*models.Job, error) {
	job, err := s.store.GetJob(ctx, jobID, tenantID)
	if err != nil {
		return nil, err
	}
	if status, ok, cerr := s.cache.GetJobStatus(ctx, jobID); cerr == nil && ok {
		job.Status = status
	}
	return job, nil
}
