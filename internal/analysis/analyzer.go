// Package analysis runs AI-assisted enrichment of change request documents:
// categorization, risk assessment, and quality checking. Each task degrades
// independently to rule-based results when the model endpoint fails, so an
// analysis run always yields a complete outcome.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Soba101/FluxADM/internal/llm"
	"github.com/Soba101/FluxADM/pkg/models"
)

// completeFallbackConfidence marks an outcome where no task reached the model.
const completeFallbackConfidence = 0.3

// confidenceDiscount is applied to the averaged per-task confidence, keeping
// the aggregate below any single task's self-reported score.
const confidenceDiscount = 0.9

// Recorder receives one record per model call attempt, for audit.
type Recorder interface {
	Record(ctx context.Context, rec models.AttemptRecord)
}

// Request identifies the document to analyze.
type Request struct {
	CRID         uuid.UUID
	DocumentText string
}

// Options configure an Analyzer.
type Options struct {
	Client     llm.Client
	Recorder   Recorder // optional
	MaxRetries int
	RetryBase  time.Duration
}

// Analyzer orchestrates the three enrichment tasks.
type Analyzer struct {
	client     llm.Client
	recorder   Recorder
	maxRetries int
	retryBase  time.Duration
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	retryBase := opts.RetryBase
	if retryBase <= 0 {
		retryBase = time.Second
	}
	return &Analyzer{
		client:     opts.Client,
		recorder:   opts.Recorder,
		maxRetries: opts.MaxRetries,
		retryBase:  retryBase,
	}
}

// kindSpec bundles the prompt builder, parser, and rule fallback for one
// enrichment task.
type kindSpec[T any] struct {
	kind        models.Kind
	buildPrompt func(doc string) string
	parse       func(reply llm.Completion) (T, error)
	fallback    func(doc string) T
}

var (
	categorizationSpec = kindSpec[models.CategorizationResult]{
		kind:        models.KindCategorization,
		buildPrompt: buildCategorizationPrompt,
		parse:       parseCategorization,
		fallback:    fallbackCategorization,
	}
	riskSpec = kindSpec[models.RiskAssessmentResult]{
		kind:        models.KindRiskAssessment,
		buildPrompt: buildRiskPrompt,
		parse:       parseRiskAssessment,
		fallback:    fallbackRiskAssessment,
	}
	qualitySpec = kindSpec[models.QualityCheckResult]{
		kind:        models.KindQualityCheck,
		buildPrompt: buildQualityPrompt,
		parse:       parseQualityCheck,
		fallback:    fallbackQualityCheck,
	}
)

// runKind executes one enrichment task. Model failures and unparseable
// replies both degrade to the task's rule fallback; runKind never errors.
func runKind[T any](ctx context.Context, a *Analyzer, spec kindSpec[T], req Request) T {
	reply, err := a.callModel(ctx, spec.kind, req.CRID, spec.buildPrompt(req.DocumentText))
	if err != nil {
		slog.Warn("falling back to rule-based result",
			"kind", spec.kind, "cr_id", req.CRID, "error", err)
		return spec.fallback(req.DocumentText)
	}

	result, err := spec.parse(reply)
	if err != nil {
		if !errors.Is(err, ErrUnparseable) {
			slog.Error("unexpected parse error", "kind", spec.kind, "cr_id", req.CRID, "error", err)
		} else {
			slog.Warn("unparseable model reply, falling back to rule-based result",
				"kind", spec.kind, "cr_id", req.CRID)
		}
		return spec.fallback(req.DocumentText)
	}

	return result
}

// Analyze runs all three enrichment tasks and assembles the aggregate
// outcome. It never returns an error: a panic anywhere in the pipeline
// degrades to a complete rule-based outcome.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (outcome models.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic during analysis, using complete fallback", "cr_id", req.CRID, "panic", r)
			outcome = completeFallback(req.DocumentText)
		}
	}()

	outcome.Categorization = runKind(ctx, a, categorizationSpec, req)
	outcome.RiskAssessment = runKind(ctx, a, riskSpec, req)
	outcome.QualityCheck = runKind(ctx, a, qualitySpec, req)

	finalize(&outcome)
	return outcome
}

// completeFallback builds an outcome entirely from rule-based results.
func completeFallback(doc string) models.Outcome {
	outcome := models.Outcome{
		Categorization: fallbackCategorization(doc),
		RiskAssessment: fallbackRiskAssessment(doc),
		QualityCheck:   fallbackQualityCheck(doc),
	}
	finalize(&outcome)
	outcome.FallbackUsed = true
	return outcome
}

// finalize computes the aggregate confidence and provider attribution.
func finalize(outcome *models.Outcome) {
	providers := []string{
		outcome.Categorization.Provider,
		outcome.RiskAssessment.Provider,
		outcome.QualityCheck.Provider,
	}

	allFallback := true
	seen := map[string]bool{}
	used := []string{}
	for _, p := range providers {
		if p != models.ProviderFallback {
			allFallback = false
		}
		if !seen[p] {
			seen[p] = true
			used = append(used, p)
		}
	}

	// When every task degraded independently the aggregate is pinned to the
	// rule-based confidence, but fallback_used stays false: that flag marks
	// only the catastrophic path where the pipeline itself failed.
	if allFallback {
		outcome.OverallConfidence = completeFallbackConfidence
	} else {
		avg := (outcome.Categorization.Confidence +
			outcome.RiskAssessment.Confidence +
			outcome.QualityCheck.Confidence) / 3
		outcome.OverallConfidence = math.Round(avg*confidenceDiscount*100) / 100
	}

	outcome.ProvidersUsed = used
	outcome.AnalyzedAt = time.Now().UTC()
}
