package cache

import "github.com/google/uuid"

// keyspace prefixes every FluxADM key so the Redis instance can be shared.
const keyspace = "fluxadm:"

// JobStatusKey addresses the cached status of one enrichment job.
func JobStatusKey(jobID uuid.UUID) string {
	return keyspace + "job:" + jobID.String()
}

// RateLimitKey addresses the request counter for one API key prefix.
func RateLimitKey(apiKeyPrefix string) string {
	return keyspace + "ratelimit:" + apiKeyPrefix
}

// DashboardKey addresses a tenant's cached dashboard summary.
func DashboardKey(tenantID uuid.UUID) string {
	return keyspace + "dashboard:" + tenantID.String()
}
