package models

import "time"

// Kind identifies one of the three independent enrichment tasks run against
// a change request document.
type Kind string

const (
	KindCategorization Kind = "categorization"
	KindRiskAssessment Kind = "risk_assessment"
	KindQualityCheck   Kind = "quality_check"
)

// ProviderFallback is the provenance marker for rule-based results.
const ProviderFallback = "fallback"

// ModelRuleBased is the provenance model name for rule-based results.
const ModelRuleBased = "rule-based"

// Completeness of one document section as judged by the quality check.
type Completeness string

const (
	SectionComplete   Completeness = "complete"
	SectionIncomplete Completeness = "incomplete"
	SectionUnclear    Completeness = "unclear"
)

// CompletenessSections is the fixed set of section names evaluated by the
// quality check, in report order.
var CompletenessSections = []string{
	"business_justification",
	"technical_details",
	"implementation_plan",
	"rollback_plan",
	"testing_plan",
}

// Provenance describes which computation path produced a result.
type Provenance struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
}

// CategorizationResult is the structured output of the categorization kind.
// Every field is clamped/truncated to its declared domain before the result
// leaves the analysis package.
type CategorizationResult struct {
	Category        Category `json:"category"`
	Priority        Priority `json:"priority"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	AffectedSystems []string `json:"affected_systems"`
	Confidence      float64  `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	Provenance
}

// RiskFactor is one identified risk in a risk assessment.
type RiskFactor struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// RiskAssessmentResult is the structured output of the risk assessment kind.
// RiskScore is on the 1-9 scale of a 3x3 impact/probability matrix.
type RiskAssessmentResult struct {
	RiskLevel                 RiskLevel    `json:"risk_level"`
	RiskScore                 int          `json:"risk_score"`
	ImpactScore               int          `json:"impact_score"`
	ProbabilityScore          int          `json:"probability_score"`
	RiskFactors               []RiskFactor `json:"risk_factors"`
	MitigationRecommendations []string     `json:"mitigation_recommendations"`
	Confidence                float64      `json:"confidence"`
	RequiresAdditionalReview  bool         `json:"requires_additional_review"`
	Provenance
}

// QualityIssue is one problem found during the quality check.
type QualityIssue struct {
	Type           string `json:"type"`
	Severity       string `json:"severity"`
	Description    string `json:"description"`
	Location       string `json:"location,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
}

// QualityCheckResult is the structured output of the quality check kind.
type QualityCheckResult struct {
	QualityScore      int                     `json:"quality_score"`
	QualityIssues     []QualityIssue          `json:"quality_issues"`
	CompletenessCheck map[string]Completeness `json:"completeness_check"`
	ComplianceFlags   []string                `json:"compliance_flags"`
	OverallAssessment string                  `json:"overall_assessment"`
	Confidence        float64                 `json:"confidence"`
	Provenance
}

// Outcome is the aggregate produced by one full analysis run. The caller
// always receives a complete Outcome; degraded quality shows up only in
// confidence and provider attribution, never as an error.
type Outcome struct {
	Categorization    CategorizationResult `json:"categorization"`
	RiskAssessment    RiskAssessmentResult `json:"risk_assessment"`
	QualityCheck      QualityCheckResult   `json:"quality_check"`
	OverallConfidence float64              `json:"overall_confidence"`
	AnalyzedAt        time.Time            `json:"analyzed_at"`
	ProvidersUsed     []string             `json:"providers_used"`
	FallbackUsed      bool                 `json:"fallback_used"`
}
