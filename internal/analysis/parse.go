package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Soba101/FluxADM/internal/llm"
	"github.com/Soba101/FluxADM/pkg/models"
)

// ErrUnparseable means no usable JSON object could be extracted from a
// model reply. Callers treat it as a signal to fall back to rules, not retry.
var ErrUnparseable = errors.New("unparseable model reply")

// Field limits applied during parsing. Values outside these bounds are
// clamped or truncated rather than rejected.
const (
	maxTitleLen       = 200
	maxDescriptionLen = 1000
	maxSystems        = 10
	maxRiskFactors    = 20
	maxMitigations    = 10
	maxQualityIssues  = 50
	maxFlags          = 20

	defaultTitle = "Untitled Change Request"
)

// extractJSON pulls the outermost JSON object out of a model reply.
// Markdown code fences and any prose before/after the object are discarded.
func extractJSON(reply string) (map[string]any, error) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object found", ErrUnparseable)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(s[start:end+1]), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return data, nil
}

func parseCategorization(reply llm.Completion) (models.CategorizationResult, error) {
	data, err := extractJSON(reply.Content)
	if err != nil {
		return models.CategorizationResult{}, err
	}

	title := truncateString(stringField(data, "title", defaultTitle), maxTitleLen)
	if title == "" {
		title = defaultTitle
	}

	return models.CategorizationResult{
		Category:        models.NormalizeCategory(stringField(data, "category", "normal")),
		Priority:        models.NormalizePriority(stringField(data, "priority", "medium")),
		Title:           title,
		Description:     truncateString(stringField(data, "description", ""), maxDescriptionLen),
		AffectedSystems: capStrings(stringList(data, "affected_systems"), maxSystems),
		Confidence:      clampFloat(floatField(data, "confidence", 0.5), 0, 1),
		Reasoning:       stringField(data, "reasoning", ""),
		Provenance:      provenanceFrom(reply),
	}, nil
}

func parseRiskAssessment(reply llm.Completion) (models.RiskAssessmentResult, error) {
	data, err := extractJSON(reply.Content)
	if err != nil {
		return models.RiskAssessmentResult{}, err
	}

	return models.RiskAssessmentResult{
		RiskLevel:                 models.NormalizeRiskLevel(stringField(data, "risk_level", "medium")),
		RiskScore:                 clampInt(intField(data, "risk_score", 4), 1, 9),
		ImpactScore:               clampInt(intField(data, "impact_score", 2), 1, 3),
		ProbabilityScore:          clampInt(intField(data, "probability_score", 2), 1, 3),
		RiskFactors:               riskFactors(data, maxRiskFactors),
		MitigationRecommendations: capStrings(stringList(data, "mitigation_recommendations"), maxMitigations),
		Confidence:                clampFloat(floatField(data, "confidence", 0.5), 0, 1),
		RequiresAdditionalReview:  boolField(data, "requires_additional_review"),
		Provenance:                provenanceFrom(reply),
	}, nil
}

func parseQualityCheck(reply llm.Completion) (models.QualityCheckResult, error) {
	data, err := extractJSON(reply.Content)
	if err != nil {
		return models.QualityCheckResult{}, err
	}

	return models.QualityCheckResult{
		QualityScore:      clampInt(intField(data, "quality_score", 50), 0, 100),
		QualityIssues:     qualityIssues(data, maxQualityIssues),
		CompletenessCheck: completenessCheck(data),
		ComplianceFlags:   capStrings(stringList(data, "compliance_flags"), maxFlags),
		OverallAssessment: stringField(data, "overall_assessment", ""),
		Confidence:        clampFloat(floatField(data, "confidence", 0.5), 0, 1),
		Provenance:        provenanceFrom(reply),
	}, nil
}

func provenanceFrom(reply llm.Completion) models.Provenance {
	return models.Provenance{
		Provider:   reply.Provider,
		Model:      reply.Model,
		TokensUsed: reply.TotalTokens,
	}
}

// --- typed field accessors ---

func stringField(data map[string]any, key, defaultVal string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return defaultVal
	}
	s, ok := v.(string)
	if !ok {
		return defaultVal
	}
	return s
}

func floatField(data map[string]any, key string, defaultVal float64) float64 {
	v, ok := data[key]
	if !ok || v == nil {
		return defaultVal
	}
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return defaultVal
		}
		return f
	default:
		return defaultVal
	}
}

func intField(data map[string]any, key string, defaultVal int) int {
	v, ok := data[key]
	if !ok || v == nil {
		return defaultVal
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return defaultVal
		}
		return i
	default:
		return defaultVal
	}
}

func boolField(data map[string]any, key string) bool {
	b, _ := data[key].(bool)
	return b
}

func stringList(data map[string]any, key string) []string {
	raw, ok := data[key].([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func capStrings(list []string, limit int) []string {
	if len(list) > limit {
		return list[:limit]
	}
	return list
}

func riskFactors(data map[string]any, limit int) []models.RiskFactor {
	raw, ok := data["risk_factors"].([]any)
	if !ok {
		return []models.RiskFactor{}
	}
	out := make([]models.RiskFactor, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, models.RiskFactor{
			Type:        stringField(m, "type", "general"),
			Description: stringField(m, "description", ""),
			Severity:    stringField(m, "severity", "medium"),
		})
		if len(out) == limit {
			break
		}
	}
	return out
}

func qualityIssues(data map[string]any, limit int) []models.QualityIssue {
	raw, ok := data["quality_issues"].([]any)
	if !ok {
		return []models.QualityIssue{}
	}
	out := make([]models.QualityIssue, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, models.QualityIssue{
			Type:           stringField(m, "type", "general"),
			Severity:       stringField(m, "severity", "medium"),
			Description:    stringField(m, "description", ""),
			Location:       stringField(m, "location", ""),
			Recommendation: stringField(m, "recommendation", ""),
		})
		if len(out) == limit {
			break
		}
	}
	return out
}

// completenessCheck reads the per-section verdicts, coercing unknown values
// to "unclear" and filling absent sections with "unclear".
func completenessCheck(data map[string]any) map[string]models.Completeness {
	raw, _ := data["completeness_check"].(map[string]any)

	out := make(map[string]models.Completeness, len(models.CompletenessSections))
	for _, section := range models.CompletenessSections {
		verdict := models.SectionUnclear
		if raw != nil {
			if s, ok := raw[section].(string); ok {
				switch models.Completeness(strings.ToLower(strings.TrimSpace(s))) {
				case models.SectionComplete:
					verdict = models.SectionComplete
				case models.SectionIncomplete:
					verdict = models.SectionIncomplete
				}
			}
		}
		out[section] = verdict
	}
	return out
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
