package analysis

import (
	"fmt"
	"unicode/utf8"
)

// Per-task document budgets, in runes. Documents are truncated before
// interpolation so prompts stay within the model's context window.
const (
	categorizationDocBudget = 2000
	riskDocBudget           = 3000
	qualityDocBudget        = 3000
)

const categorizationPromptTemplate = `Analyze this IT change request and provide a structured categorization in JSON format.

Document Content:
%s

Please analyze and respond with JSON containing:
{
    "category": "one of: emergency, standard, normal, enhancement, infrastructure, security, maintenance, rollback",
    "priority": "one of: low, medium, high, critical",
    "title": "clear, concise title for the change",
    "description": "brief summary of what will be changed",
    "affected_systems": ["list", "of", "affected", "systems"],
    "confidence": 0.85,
    "reasoning": "brief explanation of the categorization decision"
}

Focus on accuracy and be conservative with priority/risk levels.
Base decisions on ITIL change management best practices.`

const riskPromptTemplate = `Perform a comprehensive risk assessment for this IT change request.

Document Content:
%s

Analyze using a 3x3 risk matrix (Impact x Probability) and respond with JSON:
{
    "risk_level": "one of: low, medium, high",
    "risk_score": 4,
    "impact_score": 2,
    "probability_score": 2,
    "risk_factors": [
        {"type": "technical", "description": "specific risk", "severity": "medium"},
        {"type": "business", "description": "specific risk", "severity": "low"}
    ],
    "mitigation_recommendations": [
        "specific recommendation 1",
        "specific recommendation 2"
    ],
    "confidence": 0.82,
    "requires_additional_review": false
}

Consider: technical complexity, system dependencies, timing, resource availability, business impact.
Use conservative risk assessment - err on the side of caution.`

const qualityPromptTemplate = `Assess the quality of this change request and identify any issues or gaps.

Document Content:
%s

Evaluate completeness, clarity, and compliance. Respond with JSON:
{
    "quality_score": 78,
    "quality_issues": [
        {
            "type": "missing_requirements",
            "severity": "medium",
            "description": "specific issue found",
            "location": "which section/field",
            "recommendation": "how to fix"
        }
    ],
    "completeness_check": {
        "business_justification": "complete/incomplete/unclear",
        "technical_details": "complete/incomplete/unclear",
        "implementation_plan": "complete/incomplete/unclear",
        "rollback_plan": "complete/incomplete/unclear",
        "testing_plan": "complete/incomplete/unclear"
    },
    "compliance_flags": [
        "any compliance concerns"
    ],
    "confidence": 0.90,
    "overall_assessment": "brief summary of quality level"
}

Look for: missing information, unclear requirements, inadequate planning, compliance gaps.`

func buildCategorizationPrompt(doc string) string {
	return fmt.Sprintf(categorizationPromptTemplate, truncateString(doc, categorizationDocBudget))
}

func buildRiskPrompt(doc string) string {
	return fmt.Sprintf(riskPromptTemplate, truncateString(doc, riskDocBudget))
}

func buildQualityPrompt(doc string) string {
	return fmt.Sprintf(qualityPromptTemplate, truncateString(doc, qualityDocBudget))
}

// truncateString truncates s to at most maxRunes runes without splitting
// a multi-byte character.
func truncateString(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}
