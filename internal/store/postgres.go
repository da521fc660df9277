package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Soba101/FluxADM/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) GetDefaultTenant(ctx context.Context) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM tenants WHERE name = 'default' LIMIT 1`,
	).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default tenant: %w", err)
	}
	return &t, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Change Requests ---

const crColumns = `id, tenant_id, number, title, description, document_text, category, priority,
	 risk_level, risk_score, quality_score, ai_confidence, affected_systems, status,
	 submitted_at, approved_at, created_at, updated_at`

func scanChangeRequest(row pgx.Row) (*models.ChangeRequest, error) {
	var cr models.ChangeRequest
	err := row.Scan(&cr.ID, &cr.TenantID, &cr.Number, &cr.Title, &cr.Description, &cr.DocumentText,
		&cr.Category, &cr.Priority, &cr.RiskLevel, &cr.RiskScore, &cr.QualityScore, &cr.AIConfidence,
		&cr.AffectedSystems, &cr.Status, &cr.SubmittedAt, &cr.ApprovedAt, &cr.CreatedAt, &cr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

// NextChangeRequestNumber allocates the next human-readable CR number,
// formatted CR-<year>-<seq>.
func (s *PostgresStore) NextChangeRequestNumber(ctx context.Context) (string, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT nextval('cr_number_seq')`).Scan(&n); err != nil {
		return "", fmt.Errorf("next change request number: %w", err)
	}
	return fmt.Sprintf("CR-%d-%04d", time.Now().UTC().Year(), n), nil
}

func (s *PostgresStore) CreateChangeRequest(ctx context.Context, cr *models.ChangeRequest) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO change_requests (`+crColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		cr.ID, cr.TenantID, cr.Number, cr.Title, cr.Description, cr.DocumentText, cr.Category, cr.Priority,
		cr.RiskLevel, cr.RiskScore, cr.QualityScore, cr.AIConfidence, cr.AffectedSystems, cr.Status,
		cr.SubmittedAt, cr.ApprovedAt, cr.CreatedAt, cr.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create change request: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChangeRequest(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.ChangeRequest, error) {
	cr, err := scanChangeRequest(s.pool.QueryRow(ctx,
		`SELECT `+crColumns+` FROM change_requests WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get change request: %w", err)
	}
	return cr, nil
}

func (s *PostgresStore) ListChangeRequests(ctx context.Context, filter CRFilter) ([]*models.ChangeRequest, int, error) {
	// Build WHERE clause dynamically
	conditions := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	argIdx := 2

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, filter.Category)
		argIdx++
	}
	if filter.Priority != "" {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", argIdx))
		args = append(args, filter.Priority)
		argIdx++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	// Count query
	var total int
	countQuery := "SELECT COUNT(*) FROM change_requests WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count change requests: %w", err)
	}

	// Normalize pagination
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	// Data query
	dataQuery := fmt.Sprintf(
		`SELECT `+crColumns+` FROM change_requests WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list change requests: %w", err)
	}
	defer rows.Close()

	var crs []*models.ChangeRequest
	for rows.Next() {
		cr, err := scanChangeRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan change request: %w", err)
		}
		crs = append(crs, cr)
	}
	return crs, total, rows.Err()
}

func (s *PostgresStore) UpdateChangeRequestStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status string) error {
	query := `UPDATE change_requests SET status = $3, updated_at = NOW()`
	if status == models.StatusApproved {
		query += `, approved_at = NOW()`
	}
	query += ` WHERE id = $1 AND tenant_id = $2`

	tag, err := s.pool.Exec(ctx, query, id, tenantID, status)
	if err != nil {
		return fmt.Errorf("update change request status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyAnalysis writes the enrichment columns derived from an analysis
// outcome onto the change request row.
func (s *PostgresStore) ApplyAnalysis(ctx context.Context, id uuid.UUID, outcome *models.Outcome) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE change_requests SET
		   title = CASE WHEN title = '' THEN $2 ELSE title END,
		   description = CASE WHEN description = '' THEN $3 ELSE description END,
		   category = $4, priority = $5, risk_level = $6, risk_score = $7,
		   quality_score = $8, ai_confidence = $9, affected_systems = $10,
		   updated_at = NOW()
		 WHERE id = $1`,
		id,
		outcome.Categorization.Title,
		outcome.Categorization.Description,
		outcome.Categorization.Category,
		outcome.Categorization.Priority,
		outcome.RiskAssessment.RiskLevel,
		outcome.RiskAssessment.RiskScore,
		outcome.QualityCheck.QualityScore,
		outcome.OverallConfidence,
		outcome.Categorization.AffectedSystems)
	if err != nil {
		return fmt.Errorf("apply analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Analysis Outcomes ---

func (s *PostgresStore) CreateAnalysisOutcome(ctx context.Context, rec *OutcomeRecord) error {
	payload, err := json.Marshal(rec.Outcome)
	if err != nil {
		return fmt.Errorf("encode analysis outcome: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analysis_outcomes (id, cr_id, tenant_id, job_id, outcome, overall_confidence, fallback_used, analyzed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.ChangeRequestID, rec.TenantID, rec.JobID, payload,
		rec.Outcome.OverallConfidence, rec.Outcome.FallbackUsed, rec.Outcome.AnalyzedAt, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create analysis outcome: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAnalysisOutcome(ctx context.Context, crID uuid.UUID) (*OutcomeRecord, error) {
	var rec OutcomeRecord
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, cr_id, tenant_id, job_id, outcome, created_at
		 FROM analysis_outcomes WHERE cr_id = $1 ORDER BY created_at DESC LIMIT 1`, crID,
	).Scan(&rec.ID, &rec.ChangeRequestID, &rec.TenantID, &rec.JobID, &payload, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis outcome: %w", err)
	}

	if err := json.Unmarshal(payload, &rec.Outcome); err != nil {
		return nil, fmt.Errorf("decode analysis outcome: %w", err)
	}
	return &rec, nil
}

// --- Analysis Attempts ---

func (s *PostgresStore) CreateAttempt(ctx context.Context, rec *models.AttemptRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_attempts (id, cr_id, kind, provider, model, processing_time_ms, success,
		   confidence, prompt_tokens, completion_tokens, error_message, retry_ordinal, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.ChangeRequestID, rec.Kind, rec.Provider, rec.Model, rec.ProcessingTimeMS, rec.Success,
		rec.Confidence, rec.PromptTokens, rec.CompletionTokens, rec.ErrorMessage, rec.RetryOrdinal, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create analysis attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAttempts(ctx context.Context, crID uuid.UUID) ([]*models.AttemptRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, cr_id, kind, provider, model, processing_time_ms, success,
		   confidence, prompt_tokens, completion_tokens, error_message, retry_ordinal, created_at
		 FROM analysis_attempts WHERE cr_id = $1 ORDER BY created_at ASC`, crID)
	if err != nil {
		return nil, fmt.Errorf("list analysis attempts: %w", err)
	}
	defer rows.Close()

	var recs []*models.AttemptRecord
	for rows.Next() {
		var r models.AttemptRecord
		if err := rows.Scan(&r.ID, &r.ChangeRequestID, &r.Kind, &r.Provider, &r.Model, &r.ProcessingTimeMS,
			&r.Success, &r.Confidence, &r.PromptTokens, &r.CompletionTokens, &r.ErrorMessage,
			&r.RetryOrdinal, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis attempt: %w", err)
		}
		recs = append(recs, &r)
	}
	return recs, rows.Err()
}

// --- Approval Stages ---

func (s *PostgresStore) CreateApprovalStages(ctx context.Context, stages []*models.ApprovalStage) error {
	for _, stage := range stages {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO approval_stages (id, cr_id, stage_number, stage_name, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			stage.ID, stage.ChangeRequestID, stage.StageNumber, stage.StageName, stage.Status, stage.CreatedAt)
		if err != nil {
			return fmt.Errorf("create approval stage: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListApprovalStages(ctx context.Context, crID uuid.UUID) ([]*models.ApprovalStage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, cr_id, stage_number, stage_name, status, decided_by, comments, decided_at, created_at
		 FROM approval_stages WHERE cr_id = $1 ORDER BY stage_number ASC`, crID)
	if err != nil {
		return nil, fmt.Errorf("list approval stages: %w", err)
	}
	defer rows.Close()

	var stages []*models.ApprovalStage
	for rows.Next() {
		var st models.ApprovalStage
		if err := rows.Scan(&st.ID, &st.ChangeRequestID, &st.StageNumber, &st.StageName, &st.Status,
			&st.DecidedBy, &st.Comments, &st.DecidedAt, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan approval stage: %w", err)
		}
		stages = append(stages, &st)
	}
	return stages, rows.Err()
}

func (s *PostgresStore) DecideApprovalStage(ctx context.Context, stageID uuid.UUID, status, decidedBy string, comments *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE approval_stages SET status = $2, decided_by = $3, comments = $4, decided_at = NOW()
		 WHERE id = $1 AND status = 'pending'`,
		stageID, status, decidedBy, comments)
	if err != nil {
		return fmt.Errorf("decide approval stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, tenant_id, type, status, cr_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.TenantID, job.Type, job.Status, job.ChangeRequestID, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, type, status, cr_id, error_message, started_at, completed_at, created_at, updated_at
		 FROM jobs WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&j.ID, &j.TenantID, &j.Type, &j.Status, &j.ChangeRequestID, &j.ErrorMessage,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

var validTransitions = map[string][]string{
	"pending": {"running"},
	"running": {"completed", "failed"},
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	// Fetch current status
	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	// Validate transition
	allowed := validTransitions[currentStatus]
	valid := false
	for _, a := range allowed {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid job status transition: %s -> %s", currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE jobs SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == "running" {
		query += fmt.Sprintf(", started_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status == "completed" || status == "failed" {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}
	if params.ChangeRequestID != nil {
		query += fmt.Sprintf(", cr_id = $%d", argIdx)
		args = append(args, *params.ChangeRequestID)
		argIdx++
	}

	query += " WHERE id = $1"

	_, err = s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// --- Dashboard ---

func (s *PostgresStore) GetDashboardSummary(ctx context.Context, tenantID uuid.UUID) (*models.DashboardSummary, error) {
	summary := &models.DashboardSummary{
		ByStatus:   map[string]int{},
		ByCategory: map[string]int{},
		ByPriority: map[string]int{},
	}

	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(quality_score), 0)
		 FROM change_requests WHERE tenant_id = $1`, tenantID,
	).Scan(&summary.TotalChangeRequests, &summary.AvgQualityScore)
	if err != nil {
		return nil, fmt.Errorf("dashboard totals: %w", err)
	}

	groupCounts := func(column string, dest map[string]int) error {
		rows, err := s.pool.Query(ctx,
			fmt.Sprintf(`SELECT %s, COUNT(*) FROM change_requests WHERE tenant_id = $1 GROUP BY %s`, column, column),
			tenantID)
		if err != nil {
			return fmt.Errorf("dashboard counts by %s: %w", column, err)
		}
		defer rows.Close()

		for rows.Next() {
			var key string
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				return fmt.Errorf("scan dashboard counts: %w", err)
			}
			dest[key] = count
		}
		return rows.Err()
	}

	if err := groupCounts("status", summary.ByStatus); err != nil {
		return nil, err
	}
	if err := groupCounts("category", summary.ByCategory); err != nil {
		return nil, err
	}
	if err := groupCounts("priority", summary.ByPriority); err != nil {
		return nil, err
	}

	var outcomes, fallbacks int
	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE fallback_used)
		 FROM analysis_outcomes WHERE tenant_id = $1`, tenantID,
	).Scan(&outcomes, &fallbacks)
	if err != nil {
		return nil, fmt.Errorf("dashboard fallback rate: %w", err)
	}
	if outcomes > 0 {
		summary.FallbackRate = float64(fallbacks) / float64(outcomes)
	}

	return summary, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
