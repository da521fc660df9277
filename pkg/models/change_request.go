// Package models contains shared data models used across the FluxADM codebase.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category classifies a change request. Closed set, not extensible at runtime.
type Category string

const (
	CategoryEmergency      Category = "emergency"
	CategoryStandard       Category = "standard"
	CategoryNormal         Category = "normal"
	CategoryEnhancement    Category = "enhancement"
	CategoryInfrastructure Category = "infrastructure"
	CategorySecurity       Category = "security"
	CategoryMaintenance    Category = "maintenance"
	CategoryRollback       Category = "rollback"
)

// Priority of a change request.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// RiskLevel from the 3x3 impact/probability matrix.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Change request lifecycle statuses.
const (
	StatusDraft           = "draft"
	StatusSubmitted       = "submitted"
	StatusUnderReview     = "under_review"
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
	StatusInProgress      = "in_progress"
	StatusCompleted       = "completed"
	StatusCancelled       = "cancelled"
)

// ChangeRequest is the core tracked business record. Document text arrives
// already extracted by the upstream ingestion step; this service never
// touches files.
type ChangeRequest struct {
	ID              uuid.UUID  `db:"id"               json:"id"`
	TenantID        uuid.UUID  `db:"tenant_id"        json:"tenant_id"`
	Number          string     `db:"number"           json:"number"`
	Title           string     `db:"title"            json:"title"`
	Description     string     `db:"description"      json:"description"`
	DocumentText    string     `db:"document_text"    json:"-"`
	Category        Category   `db:"category"         json:"category"`
	Priority        Priority   `db:"priority"         json:"priority"`
	RiskLevel       RiskLevel  `db:"risk_level"       json:"risk_level"`
	RiskScore       *int       `db:"risk_score"       json:"risk_score,omitempty"`
	QualityScore    *int       `db:"quality_score"    json:"quality_score,omitempty"`
	AIConfidence    *float64   `db:"ai_confidence"    json:"ai_confidence,omitempty"`
	AffectedSystems []string   `db:"affected_systems" json:"affected_systems"`
	Status          string     `db:"status"           json:"status"`
	SubmittedAt     time.Time  `db:"submitted_at"     json:"submitted_at"`
	ApprovedAt      *time.Time `db:"approved_at"      json:"approved_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"       json:"updated_at"`
}

var validCategories = map[Category]bool{
	CategoryEmergency:      true,
	CategoryStandard:       true,
	CategoryNormal:         true,
	CategoryEnhancement:    true,
	CategoryInfrastructure: true,
	CategorySecurity:       true,
	CategoryMaintenance:    true,
	CategoryRollback:       true,
}

var validPriorities = map[Priority]bool{
	PriorityLow:      true,
	PriorityMedium:   true,
	PriorityHigh:     true,
	PriorityCritical: true,
}

var validRiskLevels = map[RiskLevel]bool{
	RiskLow:    true,
	RiskMedium: true,
	RiskHigh:   true,
}

// categoryRules map keyword sets to categories, checked in order.
var categoryRules = []struct {
	keywords []string
	category Category
}{
	{[]string{"emergency", "urgent", "critical"}, CategoryEmergency},
	{[]string{"standard", "routine"}, CategoryStandard},
	{[]string{"enhancement", "feature", "improvement"}, CategoryEnhancement},
	{[]string{"infrastructure", "hardware", "network"}, CategoryInfrastructure},
	{[]string{"security", "patch", "vulnerability"}, CategorySecurity},
	{[]string{"maintenance", "update", "upgrade"}, CategoryMaintenance},
	{[]string{"rollback", "revert", "back"}, CategoryRollback},
}

var priorityRules = []struct {
	keywords []string
	priority Priority
}{
	{[]string{"critical", "urgent", "emergency"}, PriorityCritical},
	{[]string{"high", "important"}, PriorityHigh},
	{[]string{"low", "minor"}, PriorityLow},
}

// NormalizeCategory maps an arbitrary string onto a valid Category.
// Exact match wins; otherwise the first keyword rule that matches; otherwise
// CategoryNormal. Used for both model output and operator input.
func NormalizeCategory(s string) Category {
	lower := strings.ToLower(strings.TrimSpace(s))
	if validCategories[Category(lower)] {
		return Category(lower)
	}
	for _, rule := range categoryRules {
		if containsAny(lower, rule.keywords) {
			return rule.category
		}
	}
	return CategoryNormal
}

// NormalizePriority maps an arbitrary string onto a valid Priority,
// defaulting to PriorityMedium.
func NormalizePriority(s string) Priority {
	lower := strings.ToLower(strings.TrimSpace(s))
	if validPriorities[Priority(lower)] {
		return Priority(lower)
	}
	for _, rule := range priorityRules {
		if containsAny(lower, rule.keywords) {
			return rule.priority
		}
	}
	return PriorityMedium
}

// NormalizeRiskLevel maps an arbitrary string onto a valid RiskLevel,
// defaulting to RiskMedium.
func NormalizeRiskLevel(s string) RiskLevel {
	lower := strings.ToLower(strings.TrimSpace(s))
	if validRiskLevels[RiskLevel(lower)] {
		return RiskLevel(lower)
	}
	return RiskMedium
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
