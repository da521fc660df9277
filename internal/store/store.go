package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Soba101/FluxADM/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	NextChangeRequestNumber(ctx context.Context) (string, error)
	CreateChangeRequest(ctx context.Context, cr *models.ChangeRequest) error
	GetChangeRequest(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.ChangeRequest, error)
	ListChangeRequests(ctx context.Context, filter CRFilter) ([]*models.ChangeRequest, int, error)
	UpdateChangeRequestStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status string) error
	ApplyAnalysis(ctx context.Context, id uuid.UUID, outcome *models.Outcome) error

	CreateAnalysisOutcome(ctx context.Context, rec *OutcomeRecord) error
	GetAnalysisOutcome(ctx context.Context, crID uuid.UUID) (*OutcomeRecord, error)

	CreateAttempt(ctx context.Context, rec *models.AttemptRecord) error
	ListAttempts(ctx context.Context, crID uuid.UUID) ([]*models.AttemptRecord, error)

	CreateApprovalStages(ctx context.Context, stages []*models.ApprovalStage) error
	ListApprovalStages(ctx context.Context, crID uuid.UUID) ([]*models.ApprovalStage, error)
	DecideApprovalStage(ctx context.Context, stageID uuid.UUID, status, decidedBy string, comments *string) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error

	GetDashboardSummary(ctx context.Context, tenantID uuid.UUID) (*models.DashboardSummary, error)
}

// OutcomeRecord is one persisted analysis outcome.
type OutcomeRecord struct {
	ID              uuid.UUID      `db:"id"         json:"id"`
	ChangeRequestID uuid.UUID      `db:"cr_id"      json:"cr_id"`
	TenantID        uuid.UUID      `db:"tenant_id"  json:"tenant_id"`
	JobID           *uuid.UUID     `db:"job_id"     json:"job_id,omitempty"`
	Outcome         models.Outcome `db:"outcome"    json:"outcome"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// CRFilter selects change requests for listing. Zero-valued fields are
// ignored.
type CRFilter struct {
	TenantID uuid.UUID
	Status   string
	Category string
	Priority string
	Since    time.Time
	Page     int
	Limit    int
}

type jobUpdateParams struct {
	ErrorMessage    *string
	ChangeRequestID *uuid.UUID
}

type JobUpdateOption func(*jobUpdateParams)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithChangeRequestID(id uuid.UUID) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ChangeRequestID = &id
	}
}
