package models

import "testing"

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Category
	}{
		{name: "exact match", raw: "security", want: CategorySecurity},
		{name: "exact match uppercase", raw: "EMERGENCY", want: CategoryEmergency},
		{name: "exact match mixed case with spaces", raw: "  Standard  ", want: CategoryStandard},
		{name: "urgent keyword maps to emergency", raw: "urgent fix required", want: CategoryEmergency},
		{name: "critical keyword maps to emergency", raw: "critical-change", want: CategoryEmergency},
		{name: "routine maps to standard", raw: "routine maintenance window", want: CategoryStandard},
		{name: "feature maps to enhancement", raw: "new feature rollout", want: CategoryEnhancement},
		{name: "network maps to infrastructure", raw: "network change", want: CategoryInfrastructure},
		{name: "vulnerability maps to security", raw: "vulnerability remediation", want: CategorySecurity},
		{name: "upgrade maps to maintenance", raw: "os upgrade", want: CategoryMaintenance},
		{name: "revert maps to rollback", raw: "revert deployment", want: CategoryRollback},
		{name: "unknown defaults to normal", raw: "blah", want: CategoryNormal},
		{name: "empty defaults to normal", raw: "", want: CategoryNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeCategory(tt.raw)
			if got != tt.want {
				t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeCategoryIdempotent(t *testing.T) {
	for c := range validCategories {
		if got := NormalizeCategory(string(c)); got != c {
			t.Errorf("NormalizeCategory(%q) = %q, normalization not idempotent", c, got)
		}
	}
}

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Priority
	}{
		{name: "exact match", raw: "high", want: PriorityHigh},
		{name: "urgent maps to critical", raw: "urgent", want: PriorityCritical},
		{name: "emergency maps to critical", raw: "emergency change", want: PriorityCritical},
		{name: "important maps to high", raw: "important update", want: PriorityHigh},
		{name: "minor maps to low", raw: "minor tweak", want: PriorityLow},
		{name: "unknown defaults to medium", raw: "whatever", want: PriorityMedium},
		{name: "empty defaults to medium", raw: "", want: PriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePriority(tt.raw)
			if got != tt.want {
				t.Errorf("NormalizePriority(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeRiskLevel(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want RiskLevel
	}{
		{name: "exact low", raw: "low", want: RiskLow},
		{name: "exact high uppercase", raw: "HIGH", want: RiskHigh},
		{name: "no fuzzy matching", raw: "very high", want: RiskMedium},
		{name: "unknown defaults to medium", raw: "severe", want: RiskMedium},
		{name: "empty defaults to medium", raw: "", want: RiskMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeRiskLevel(tt.raw)
			if got != tt.want {
				t.Errorf("NormalizeRiskLevel(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
