package models

import (
	"time"

	"github.com/google/uuid"
)

// AttemptRecord captures one model call attempt for audit. The analysis core
// produces these; a caller-supplied sink persists them.
type AttemptRecord struct {
	ID               uuid.UUID `db:"id"                 json:"id"`
	ChangeRequestID  uuid.UUID `db:"cr_id"              json:"cr_id"`
	Kind             Kind      `db:"kind"               json:"kind"`
	Provider         string    `db:"provider"           json:"provider"`
	Model            string    `db:"model"              json:"model"`
	ProcessingTimeMS int64     `db:"processing_time_ms" json:"processing_time_ms"`
	Success          bool      `db:"success"            json:"success"`
	Confidence       float64   `db:"confidence"         json:"confidence"`
	PromptTokens     int       `db:"prompt_tokens"      json:"prompt_tokens"`
	CompletionTokens int       `db:"completion_tokens"  json:"completion_tokens"`
	ErrorMessage     *string   `db:"error_message"      json:"error_message,omitempty"`
	RetryOrdinal     int       `db:"retry_ordinal"      json:"retry_ordinal"`
	CreatedAt        time.Time `db:"created_at"         json:"created_at"`
}
