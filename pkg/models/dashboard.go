package models

// DashboardSummary aggregates change request counts and enrichment health
// for one tenant.
type DashboardSummary struct {
	TotalChangeRequests int            `json:"total_change_requests"`
	ByStatus            map[string]int `json:"by_status"`
	ByCategory          map[string]int `json:"by_category"`
	ByPriority          map[string]int `json:"by_priority"`
	AvgQualityScore     float64        `json:"avg_quality_score"`
	FallbackRate        float64        `json:"fallback_rate"`
}
