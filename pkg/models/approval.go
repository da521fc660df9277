package models

import (
	"time"

	"github.com/google/uuid"
)

// Approval stage statuses.
const (
	StagePending  = "pending"
	StageApproved = "approved"
	StageRejected = "rejected"
)

// Stage names seeded from analysis outcomes.
const (
	StageTechnicalReview = "technical_review"
	StageCABApproval     = "cab_approval"
)

// ApprovalStage is one step of a change request's approval workflow.
// Stages are decided in StageNumber order; a rejection at any stage
// rejects the whole request.
type ApprovalStage struct {
	ID              uuid.UUID  `db:"id"           json:"id"`
	ChangeRequestID uuid.UUID  `db:"cr_id"        json:"cr_id"`
	StageNumber     int        `db:"stage_number" json:"stage_number"`
	StageName       string     `db:"stage_name"   json:"stage_name"`
	Status          string     `db:"status"       json:"status"`
	DecidedBy       *string    `db:"decided_by"   json:"decided_by,omitempty"`
	Comments        *string    `db:"comments"     json:"comments,omitempty"`
	DecidedAt       *time.Time `db:"decided_at"   json:"decided_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at"   json:"created_at"`
}
