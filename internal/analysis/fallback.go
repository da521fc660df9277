package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Soba101/FluxADM/pkg/models"
)

// fallbackConfidence is the fixed confidence assigned to rule-based results.
const fallbackConfidence = 0.3

func fallbackProvenance() models.Provenance {
	return models.Provenance{
		Provider:   models.ProviderFallback,
		Model:      models.ModelRuleBased,
		TokensUsed: 0,
	}
}

var (
	emergencyKeywords   = []string{"emergency", "critical", "outage", "down"}
	securityKeywords    = []string{"security", "patch", "vulnerability"}
	enhancementKeywords = []string{"enhancement", "feature", "improvement"}

	highRiskKeywords   = []string{"production", "database", "critical", "customer", "revenue"}
	mediumRiskKeywords = []string{"system", "application", "service", "integration"}

	requiredSections = []string{"business", "technical", "risk", "testing", "rollback"}
)

// fallbackCategorization derives a categorization from the document text
// with simple keyword rules.
func fallbackCategorization(doc string) models.CategorizationResult {
	lower := strings.ToLower(doc)

	category := models.CategoryNormal
	priority := models.PriorityMedium
	switch {
	case containsAnyOf(lower, emergencyKeywords):
		category = models.CategoryEmergency
		priority = models.PriorityCritical
	case containsAnyOf(lower, securityKeywords):
		category = models.CategorySecurity
		priority = models.PriorityHigh
	case containsAnyOf(lower, enhancementKeywords):
		category = models.CategoryEnhancement
		priority = models.PriorityMedium
	}

	return models.CategorizationResult{
		Category:        category,
		Priority:        priority,
		Title:           excerpt(doc, 100),
		Description:     excerpt(doc, 500),
		AffectedSystems: []string{},
		Confidence:      fallbackConfidence,
		Reasoning:       "Automatic rule-based categorization (AI services unavailable)",
		Provenance:      fallbackProvenance(),
	}
}

// fallbackRiskAssessment scores risk by counting distinct risk keywords
// present in the document.
func fallbackRiskAssessment(doc string) models.RiskAssessmentResult {
	lower := strings.ToLower(doc)

	highCount := countPresent(lower, highRiskKeywords)
	mediumCount := countPresent(lower, mediumRiskKeywords)

	level := models.RiskLow
	score := 2
	switch {
	case highCount >= 2:
		level = models.RiskHigh
		score = 6
	case highCount >= 1 || mediumCount >= 3:
		level = models.RiskMedium
		score = 4
	}

	return models.RiskAssessmentResult{
		RiskLevel:        level,
		RiskScore:        score,
		ImpactScore:      2,
		ProbabilityScore: 2,
		RiskFactors: []models.RiskFactor{
			{Type: "general", Description: "Rule-based assessment", Severity: "medium"},
		},
		MitigationRecommendations: []string{"Please perform manual risk assessment"},
		Confidence:                fallbackConfidence,
		RequiresAdditionalReview:  true,
		Provenance:                fallbackProvenance(),
	}
}

// fallbackQualityCheck scores document quality from its length and the
// presence of required section keywords.
func fallbackQualityCheck(doc string) models.QualityCheckResult {
	lower := strings.ToLower(doc)

	score := 50
	issues := []models.QualityIssue{}

	if len(doc) < 100 {
		score -= 20
		issues = append(issues, models.QualityIssue{
			Type:           "insufficient_detail",
			Severity:       "high",
			Description:    "Document appears too brief",
			Location:       "overall",
			Recommendation: "Provide more detailed information",
		})
	}

	var missing []string
	for _, section := range requiredSections {
		if !strings.Contains(lower, section) {
			missing = append(missing, section)
		}
	}
	if len(missing) > 0 {
		score -= len(missing) * 5
		issues = append(issues, models.QualityIssue{
			Type:           "missing_requirements",
			Severity:       "medium",
			Description:    fmt.Sprintf("Missing sections: %s", strings.Join(missing, ", ")),
			Location:       "document structure",
			Recommendation: "Add missing sections",
		})
	}

	completeness := make(map[string]models.Completeness, len(models.CompletenessSections))
	for _, section := range models.CompletenessSections {
		completeness[section] = models.SectionIncomplete
	}

	return models.QualityCheckResult{
		QualityScore:      clampInt(score, 0, 100),
		QualityIssues:     issues,
		CompletenessCheck: completeness,
		ComplianceFlags:   []string{"Manual review required"},
		OverallAssessment: "Basic rule-based quality assessment completed",
		Confidence:        fallbackConfidence,
		Provenance:        fallbackProvenance(),
	}
}

// excerpt returns the first max runes of s, appending an ellipsis when truncated.
func excerpt(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return truncateString(s, max) + "..."
}

func containsAnyOf(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func countPresent(s string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			n++
		}
	}
	return n
}
