package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Soba101/FluxADM/internal/analysis"
	"github.com/Soba101/FluxADM/internal/store"
	"github.com/Soba101/FluxADM/pkg/models"
)

// --- mocks ---

type statusUpdate struct {
	ID     uuid.UUID
	Status string
}

type mockStore struct {
	mu              sync.Mutex
	seq             int64
	crs             map[uuid.UUID]*models.ChangeRequest
	jobs            map[uuid.UUID]*models.Job
	outcomes        []*store.OutcomeRecord
	attempts        []*models.AttemptRecord
	stages          map[uuid.UUID][]*models.ApprovalStage
	applied         []*models.Outcome
	jobUpdates      []statusUpdate
	crUpdates       []statusUpdate
	createCRErr     error
	createJobErr    error
	applyErr        error
	createOutErr    error
	createStagesErr error
	createAttErr    error
}

func newMockStore() *mockStore {
	return &mockStore{
		crs:    make(map[uuid.UUID]*models.ChangeRequest),
		jobs:   make(map[uuid.UUID]*models.Job),
		stages: make(map[uuid.UUID][]*models.ApprovalStage),
	}
}

func (s *mockStore) Ping(_ context.Context) error                                 { return nil }
func (s *mockStore) GetDefaultTenant(_ context.Context) (*models.Tenant, error)   { return nil, nil }
func (s *mockStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *mockStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (s *mockStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *mockStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }
func (s *mockStore) ListChangeRequests(_ context.Context, _ store.CRFilter) ([]*models.ChangeRequest, int, error) {
	return nil, 0, nil
}
func (s *mockStore) GetAnalysisOutcome(_ context.Context, _ uuid.UUID) (*store.OutcomeRecord, error) {
	return nil, store.ErrNotFound
}
func (s *mockStore) ListAttempts(_ context.Context, _ uuid.UUID) ([]*models.AttemptRecord, error) {
	return nil, nil
}
func (s *mockStore) GetDashboardSummary(_ context.Context, _ uuid.UUID) (*models.DashboardSummary, error) {
	return nil, nil
}

func (s *mockStore) NextChangeRequestNumber(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("CR-2026-%04d", s.seq), nil
}

func (s *mockStore) CreateChangeRequest(_ context.Context, cr *models.ChangeRequest) error {
	if s.createCRErr != nil {
		return s.createCRErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crs[cr.ID] = cr
	return nil
}

func (s *mockStore) GetChangeRequest(_ context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.ChangeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cr, ok := s.crs[id]
	if !ok || cr.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	copied := *cr
	return &copied, nil
}

func (s *mockStore) UpdateChangeRequestStatus(_ context.Context, id uuid.UUID, _ uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cr, ok := s.crs[id]; ok {
		cr.Status = status
	}
	s.crUpdates = append(s.crUpdates, statusUpdate{ID: id, Status: status})
	return nil
}

func (s *mockStore) ApplyAnalysis(_ context.Context, _ uuid.UUID, outcome *models.Outcome) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, outcome)
	return nil
}

func (s *mockStore) CreateAnalysisOutcome(_ context.Context, rec *store.OutcomeRecord) error {
	if s.createOutErr != nil {
		return s.createOutErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, rec)
	return nil
}

func (s *mockStore) CreateAttempt(_ context.Context, rec *models.AttemptRecord) error {
	if s.createAttErr != nil {
		return s.createAttErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, rec)
	return nil
}

func (s *mockStore) CreateApprovalStages(_ context.Context, stages []*models.ApprovalStage) error {
	if s.createStagesErr != nil {
		return s.createStagesErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stage := range stages {
		s.stages[stage.ChangeRequestID] = append(s.stages[stage.ChangeRequestID], stage)
	}
	return nil
}

func (s *mockStore) ListApprovalStages(_ context.Context, crID uuid.UUID) ([]*models.ApprovalStage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ApprovalStage, 0, len(s.stages[crID]))
	for _, stage := range s.stages[crID] {
		copied := *stage
		out = append(out, &copied)
	}
	return out, nil
}

func (s *mockStore) DecideApprovalStage(_ context.Context, stageID uuid.UUID, status, decidedBy string, comments *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stages := range s.stages {
		for _, stage := range stages {
			if stage.ID == stageID {
				if stage.Status != models.StagePending {
					return store.ErrNotFound
				}
				now := time.Now().UTC()
				stage.Status = status
				stage.DecidedBy = &decidedBy
				stage.Comments = comments
				stage.DecidedAt = &now
				return nil
			}
		}
	}
	return store.ErrNotFound
}

func (s *mockStore) CreateJob(_ context.Context, job *models.Job) error {
	if s.createJobErr != nil {
		return s.createJobErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *mockStore) GetJob(_ context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *mockStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status string, _ ...store.JobUpdateOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = status
	}
	s.jobUpdates = append(s.jobUpdates, statusUpdate{ID: id, Status: status})
	return nil
}

type mockCache struct {
	mu       sync.Mutex
	statuses map[string]string
}

func newMockCache() *mockCache {
	return &mockCache{statuses: make(map[string]string)}
}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *mockCache) Ping(_ context.Context) error                                     { return nil }
func (c *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

func (c *mockCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[jobID.String()] = status
	return nil
}

func (c *mockCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[jobID.String()]
	return s, ok, nil
}

type mockAnalyzer struct {
	analyzeFunc func(ctx context.Context, req analysis.Request) models.Outcome
}

func (a *mockAnalyzer) Analyze(ctx context.Context, req analysis.Request) models.Outcome {
	if a.analyzeFunc != nil {
		return a.analyzeFunc(ctx, req)
	}
	return routineOutcome()
}

// --- helpers ---

func routineOutcome() models.Outcome {
	return models.Outcome{
		Categorization: models.CategorizationResult{
			Category:        models.CategoryNormal,
			Priority:        models.PriorityMedium,
			Title:           "Routine upgrade",
			AffectedSystems: []string{},
			Confidence:      0.8,
			Provenance:      models.Provenance{Provider: "local", Model: "test-model"},
		},
		RiskAssessment: models.RiskAssessmentResult{
			RiskLevel:  models.RiskLow,
			RiskScore:  2,
			Confidence: 0.7,
			Provenance: models.Provenance{Provider: "local", Model: "test-model"},
		},
		QualityCheck: models.QualityCheckResult{
			QualityScore: 75,
			Confidence:   0.7,
			Provenance:   models.Provenance{Provider: "local", Model: "test-model"},
		},
		OverallConfidence: 0.66,
		AnalyzedAt:        time.Now().UTC(),
		ProvidersUsed:     []string{"local"},
	}
}

func highRiskOutcome() models.Outcome {
	outcome := routineOutcome()
	outcome.RiskAssessment.RiskLevel = models.RiskHigh
	outcome.RiskAssessment.RiskScore = 6
	return outcome
}

func submitParams() SubmitParams {
	return SubmitParams{
		TenantID:     uuid.New(),
		Title:        "Upgrade payments DB",
		DocumentText: "Upgrade the payments database to version 16 with rollback plan",
	}
}

// waitForEnrichment blocks until the job has received at least n status updates.
func waitForEnrichment(t *testing.T, s *mockStore, n int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		s.mu.Lock()
		count := len(s.jobUpdates)
		s.mu.Unlock()
		if count >= n {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d job updates, got %d", n, count)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// --- Submit tests ---

func TestSubmit_ReturnsImmediately(t *testing.T) {
	st := newMockStore()
	ca := newMockCache()
	analyzer := &mockAnalyzer{
		analyzeFunc: func(_ context.Context, _ analysis.Request) models.Outcome {
			// Simulate slow model
			time.Sleep(100 * time.Millisecond)
			return routineOutcome()
		},
	}
	svc := NewService(st, ca, analyzer)

	start := time.Now()
	result, err := svc.Submit(context.Background(), submitParams())
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ChangeRequest.Status != models.StatusSubmitted {
		t.Errorf("expected status submitted, got %s", result.ChangeRequest.Status)
	}
	if !strings.HasPrefix(result.ChangeRequest.Number, "CR-") {
		t.Errorf("unexpected number format: %s", result.ChangeRequest.Number)
	}
	if result.Job.Status != models.JobStatusPending {
		t.Errorf("expected job pending, got %s", result.Job.Status)
	}
	if result.Job.ChangeRequestID == nil || *result.Job.ChangeRequestID != result.ChangeRequest.ID {
		t.Error("job should reference the change request")
	}
	if elapsed > 50*time.Millisecond {
		t.Errorf("Submit should return immediately, took %v", elapsed)
	}

	status, ok, _ := ca.GetJobStatus(context.Background(), result.Job.ID)
	if !ok || status != models.JobStatusPending {
		t.Errorf("expected cached status 'pending', got %q (found=%v)", status, ok)
	}
}

func TestSubmit_EmptyDocument(t *testing.T) {
	svc := NewService(newMockStore(), newMockCache(), &mockAnalyzer{})

	params := submitParams()
	params.DocumentText = ""
	_, err := svc.Submit(context.Background(), params)
	if !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("expected ErrEmptyDocument, got: %v", err)
	}
}

func TestSubmit_DocumentTooLarge(t *testing.T) {
	svc := NewService(newMockStore(), newMockCache(), &mockAnalyzer{})

	params := submitParams()
	params.DocumentText = strings.Repeat("x", maxDocumentBytes+1)
	_, err := svc.Submit(context.Background(), params)
	if !errors.Is(err, ErrDocumentTooLarge) {
		t.Errorf("expected ErrDocumentTooLarge, got: %v", err)
	}
}

func TestSubmit_StoreError(t *testing.T) {
	st := newMockStore()
	st.createCRErr = errors.New("db down")
	svc := NewService(st, newMockCache(), &mockAnalyzer{})

	_, err := svc.Submit(context.Background(), submitParams())
	if err == nil {
		t.Fatal("expected error when store fails")
	}
}

// --- enrichment tests ---

func TestRunEnrichment_Success(t *testing.T) {
	st := newMockStore()
	ca := newMockCache()
	svc := NewService(st, ca, &mockAnalyzer{})

	result, err := svc.Submit(context.Background(), submitParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// running + completed = 2 job updates
	waitForEnrichment(t, st, 2)

	st.mu.Lock()
	defer st.mu.Unlock()

	if len(st.applied) != 1 {
		t.Fatalf("expected analysis applied once, got %d", len(st.applied))
	}
	if len(st.outcomes) != 1 {
		t.Fatalf("expected 1 outcome record, got %d", len(st.outcomes))
	}
	rec := st.outcomes[0]
	if rec.ChangeRequestID != result.ChangeRequest.ID {
		t.Errorf("outcome bound to wrong change request: %s", rec.ChangeRequestID)
	}
	if rec.JobID == nil || *rec.JobID != result.Job.ID {
		t.Error("outcome should reference the enrichment job")
	}

	// Routine outcome: single technical review stage
	stages := st.stages[result.ChangeRequest.ID]
	if len(stages) != 1 {
		t.Fatalf("expected 1 approval stage, got %d", len(stages))
	}
	if stages[0].StageName != models.StageTechnicalReview {
		t.Errorf("expected technical_review, got %s", stages[0].StageName)
	}

	// CR went under_review then pending_approval
	if len(st.crUpdates) != 2 {
		t.Fatalf("expected 2 CR status updates, got %d", len(st.crUpdates))
	}
	if st.crUpdates[0].Status != models.StatusUnderReview {
		t.Errorf("expected under_review first, got %s", st.crUpdates[0].Status)
	}
	if st.crUpdates[1].Status != models.StatusPendingApproval {
		t.Errorf("expected pending_approval second, got %s", st.crUpdates[1].Status)
	}

	if st.jobUpdates[len(st.jobUpdates)-1].Status != models.JobStatusCompleted {
		t.Errorf("expected job completed, got %s", st.jobUpdates[len(st.jobUpdates)-1].Status)
	}
	status, _, _ := ca.GetJobStatus(context.Background(), result.Job.ID)
	if status != models.JobStatusCompleted {
		t.Errorf("expected cached status 'completed', got %s", status)
	}
}

func TestRunEnrichment_HighRiskAddsCABStage(t *testing.T) {
	st := newMockStore()
	svc := NewService(st, newMockCache(), &mockAnalyzer{
		analyzeFunc: func(_ context.Context, _ analysis.Request) models.Outcome {
			return highRiskOutcome()
		},
	})

	result, err := svc.Submit(context.Background(), submitParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForEnrichment(t, st, 2)

	st.mu.Lock()
	defer st.mu.Unlock()
	stages := st.stages[result.ChangeRequest.ID]
	if len(stages) != 2 {
		t.Fatalf("expected 2 approval stages, got %d", len(stages))
	}
	if stages[0].StageName != models.StageTechnicalReview || stages[1].StageName != models.StageCABApproval {
		t.Errorf("unexpected stage chain: %s, %s", stages[0].StageName, stages[1].StageName)
	}
	if stages[0].StageNumber != 1 || stages[1].StageNumber != 2 {
		t.Errorf("unexpected stage numbering: %d, %d", stages[0].StageNumber, stages[1].StageNumber)
	}
}

func TestRunEnrichment_EmergencyAddsCABStage(t *testing.T) {
	st := newMockStore()
	svc := NewService(st, newMockCache(), &mockAnalyzer{
		analyzeFunc: func(_ context.Context, _ analysis.Request) models.Outcome {
			outcome := routineOutcome()
			outcome.Categorization.Category = models.CategoryEmergency
			outcome.Categorization.Priority = models.PriorityCritical
			return outcome
		},
	})

	result, err := svc.Submit(context.Background(), submitParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForEnrichment(t, st, 2)

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.stages[result.ChangeRequest.ID]) != 2 {
		t.Fatalf("expected 2 approval stages, got %d", len(st.stages[result.ChangeRequest.ID]))
	}
}

func TestRunEnrichment_StoreFailureMarksJobFailed(t *testing.T) {
	st := newMockStore()
	st.applyErr = errors.New("db down")
	ca := newMockCache()
	svc := NewService(st, ca, &mockAnalyzer{})

	result, err := svc.Submit(context.Background(), submitParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForEnrichment(t, st, 2)

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.outcomes) != 0 {
		t.Errorf("expected no outcome records, got %d", len(st.outcomes))
	}
	last := st.jobUpdates[len(st.jobUpdates)-1]
	if last.Status != models.JobStatusFailed {
		t.Errorf("expected job failed, got %s", last.Status)
	}
	status, _, _ := ca.GetJobStatus(context.Background(), result.Job.ID)
	if status != models.JobStatusFailed {
		t.Errorf("expected cached status 'failed', got %s", status)
	}
}

func TestRunEnrichment_AnalyzerPanicMarksJobFailed(t *testing.T) {
	st := newMockStore()
	svc := NewService(st, newMockCache(), &mockAnalyzer{
		analyzeFunc: func(_ context.Context, _ analysis.Request) models.Outcome {
			panic("simulated panic")
		},
	})

	if _, err := svc.Submit(context.Background(), submitParams()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForEnrichment(t, st, 2)

	st.mu.Lock()
	defer st.mu.Unlock()
	last := st.jobUpdates[len(st.jobUpdates)-1]
	if last.Status != models.JobStatusFailed {
		t.Errorf("expected failed after panic, got %s", last.Status)
	}
}

// --- Decide tests ---

// pendingCR seeds a change request in pending_approval with the given stages.
func pendingCR(st *mockStore, stageNames ...string) *models.ChangeRequest {
	now := time.Now().UTC()
	cr := &models.ChangeRequest{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Number:   "CR-2026-0001",
		Status:   models.StatusPendingApproval,
	}
	st.crs[cr.ID] = cr
	for i, name := range stageNames {
		st.stages[cr.ID] = append(st.stages[cr.ID], &models.ApprovalStage{
			ID:              uuid.New(),
			ChangeRequestID: cr.ID,
			StageNumber:     i + 1,
			StageName:       name,
			Status:          models.StagePending,
			CreatedAt:       now,
		})
	}
	return cr
}

func TestDecide_ApproveFinalStage(t *testing.T) {
	st := newMockStore()
	cr := pendingCR(st, models.StageTechnicalReview)
	svc := NewService(st, newMockCache(), &mockAnalyzer{})

	stages, err := svc.Decide(context.Background(), DecisionParams{
		TenantID:        cr.TenantID,
		ChangeRequestID: cr.ID,
		Decision:        "approve",
		DecidedBy:       "alice",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stages[0].Status != models.StageApproved {
		t.Errorf("expected stage approved, got %s", stages[0].Status)
	}
	if st.crs[cr.ID].Status != models.StatusApproved {
		t.Errorf("expected change request approved, got %s", st.crs[cr.ID].Status)
	}
}

func TestDecide_ApproveFirstOfTwoKeepsPending(t *testing.T) {
	st := newMockStore()
	cr := pendingCR(st, models.StageTechnicalReview, models.StageCABApproval)
	svc := NewService(st, newMockCache(), &mockAnalyzer{})

	stages, err := svc.Decide(context.Background(), DecisionParams{
		TenantID:        cr.TenantID,
		ChangeRequestID: cr.ID,
		Decision:        "approve",
		DecidedBy:       "alice",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stages[0].Status != models.StageApproved {
		t.Errorf("expected first stage approved, got %s", stages[0].Status)
	}
	if stages[1].Status != models.StagePending {
		t.Errorf("expected second stage still pending, got %s", stages[1].Status)
	}
	if st.crs[cr.ID].Status != models.StatusPendingApproval {
		t.Errorf("expected change request still pending_approval, got %s", st.crs[cr.ID].Status)
	}

	// Second decision lands on the CAB stage and approves the CR.
	_, err = svc.Decide(context.Background(), DecisionParams{
		TenantID:        cr.TenantID,
		ChangeRequestID: cr.ID,
		Decision:        "approve",
		DecidedBy:       "bob",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.crs[cr.ID].Status != models.StatusApproved {
		t.Errorf("expected change request approved, got %s", st.crs[cr.ID].Status)
	}
}

func TestDecide_RejectRejectsChangeRequest(t *testing.T) {
	st := newMockStore()
	cr := pendingCR(st, models.StageTechnicalReview, models.StageCABApproval)
	svc := NewService(st, newMockCache(), &mockAnalyzer{})

	comments := "insufficient rollback plan"
	stages, err := svc.Decide(context.Background(), DecisionParams{
		TenantID:        cr.TenantID,
		ChangeRequestID: cr.ID,
		Decision:        "reject",
		DecidedBy:       "alice",
		Comments:        &comments,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stages[0].Status != models.StageRejected {
		t.Errorf("expected stage rejected, got %s", stages[0].Status)
	}
	if stages[1].Status != models.StagePending {
		t.Errorf("later stage should be untouched, got %s", stages[1].Status)
	}
	if st.crs[cr.ID].Status != models.StatusRejected {
		t.Errorf("expected change request rejected, got %s", st.crs[cr.ID].Status)
	}
}

func TestDecide_InvalidDecision(t *testing.T) {
	svc := NewService(newMockStore(), newMockCache(), &mockAnalyzer{})

	_, err := svc.Decide(context.Background(), DecisionParams{
		TenantID:        uuid.New(),
		ChangeRequestID: uuid.New(),
		Decision:        "maybe",
	})
	if !errors.Is(err, ErrInvalidDecision) {
		t.Errorf("expected ErrInvalidDecision, got: %v", err)
	}
}

func TestDecide_NotPendingApproval(t *testing.T) {
	st := newMockStore()
	cr := pendingCR(st, models.StageTechnicalReview)
	st.crs[cr.ID].Status = models.StatusSubmitted
	svc := NewService(st, newMockCache(), &mockAnalyzer{})

	_, err := svc.Decide(context.Background(), DecisionParams{
		TenantID:        cr.TenantID,
		ChangeRequestID: cr.ID,
		Decision:        "approve",
		DecidedBy:       "alice",
	})
	if !errors.Is(err, ErrNotPendingApproval) {
		t.Errorf("expected ErrNotPendingApproval, got: %v", err)
	}
}

func TestDecide_ChangeRequestNotFound(t *testing.T) {
	svc := NewService(newMockStore(), newMockCache(), &mockAnalyzer{})

	_, err := svc.Decide(context.Background(), DecisionParams{
		TenantID:        uuid.New(),
		ChangeRequestID: uuid.New(),
		Decision:        "approve",
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

// --- GetJob tests ---

func TestGetJob_PrefersCachedStatus(t *testing.T) {
	st := newMockStore()
	ca := newMockCache()
	svc := NewService(st, ca, &mockAnalyzer{})

	tenantID := uuid.New()
	job := &models.Job{ID: uuid.New(), TenantID: tenantID, Type: "enrichment", Status: models.JobStatusPending}
	st.jobs[job.ID] = job
	_ = ca.SetJobStatus(context.Background(), job.ID, models.JobStatusRunning, time.Minute)

	got, err := svc.GetJob(context.Background(), job.ID, tenantID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.JobStatusRunning {
		t.Errorf("expected cached status 'running', got %s", got.Status)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	svc := NewService(newMockStore(), newMockCache(), &mockAnalyzer{})

	_, err := svc.GetJob(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

// --- AttemptRecorder tests ---

func TestAttemptRecorder_PersistsAttempt(t *testing.T) {
	st := newMockStore()
	rec := NewAttemptRecorder(st)

	rec.Record(context.Background(), models.AttemptRecord{
		ID:              uuid.New(),
		ChangeRequestID: uuid.New(),
		Kind:            models.KindCategorization,
		Provider:        "local",
		Success:         true,
		Confidence:      0.8,
	})

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.attempts) != 1 {
		t.Fatalf("expected 1 attempt stored, got %d", len(st.attempts))
	}
}

func TestAttemptRecorder_SwallowsStoreError(t *testing.T) {
	st := newMockStore()
	st.createAttErr = errors.New("db down")
	rec := NewAttemptRecorder(st)

	// Must not panic or propagate
	rec.Record(context.Background(), models.AttemptRecord{ID: uuid.New()})
}
