package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Soba101/FluxADM/internal/llm"
	"github.com/Soba101/FluxADM/pkg/models"
)

// nominalCallConfidence is recorded for attempts that returned a reply.
// Actual result confidence comes from the parsed payload.
const nominalCallConfidence = 0.8

// callModel runs one prompt against the model endpoint with retries.
// Every attempt, successful or not, is reported to the recorder. The
// returned error wraps the last transport error once all attempts are spent.
func (a *Analyzer) callModel(ctx context.Context, kind models.Kind, crID uuid.UUID, prompt string) (llm.Completion, error) {
	var lastErr error

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, a.retryBase, attempt); err != nil {
				return llm.Completion{}, err
			}
		}

		start := time.Now()
		reply, err := a.client.Complete(ctx, llm.CompletionRequest{Prompt: prompt})
		elapsedMS := time.Since(start).Milliseconds()

		if err != nil {
			lastErr = err
			slog.Warn("model call failed",
				"kind", kind, "cr_id", crID, "attempt", attempt, "error", err)
			a.record(ctx, kind, crID, attempt, elapsedMS, llm.Completion{}, err)
			continue
		}

		a.record(ctx, kind, crID, attempt, elapsedMS, reply, nil)
		return reply, nil
	}

	return llm.Completion{}, fmt.Errorf("model call failed after %d attempts: %w", a.maxRetries+1, lastErr)
}

// backoffDelay returns the pause before the given attempt ordinal.
// Delays double per attempt: base, 2*base, 4*base, ...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << (attempt - 1)
}

func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	timer := time.NewTimer(backoffDelay(base, attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (a *Analyzer) record(ctx context.Context, kind models.Kind, crID uuid.UUID, attempt int, elapsedMS int64, reply llm.Completion, callErr error) {
	if a.recorder == nil {
		return
	}

	provider := reply.Provider
	if provider == "" {
		provider = a.client.Name()
	}
	model := reply.Model
	if model == "" {
		// Failed attempts carry no reply; attribute them to the configured model.
		model = a.client.Model()
	}

	rec := models.AttemptRecord{
		ID:               uuid.New(),
		ChangeRequestID:  crID,
		Kind:             kind,
		Provider:         provider,
		Model:            model,
		ProcessingTimeMS: elapsedMS,
		Success:          callErr == nil,
		Confidence:       nominalCallConfidence,
		PromptTokens:     reply.PromptTokens,
		CompletionTokens: reply.CompletionTokens,
		RetryOrdinal:     attempt,
		CreatedAt:        time.Now().UTC(),
	}
	if callErr != nil {
		msg := callErr.Error()
		rec.Confidence = 0
		rec.ErrorMessage = &msg
	}

	a.recorder.Record(ctx, rec)
}
