package intake

import (
	"context"
	"log/slog"

	"github.com/Soba101/FluxADM/internal/analysis"
	"github.com/Soba101/FluxADM/internal/store"
	"github.com/Soba101/FluxADM/pkg/models"
)

// AttemptRecorder persists one audit row per model call attempt. Recording is
// best-effort: a failed insert must never disturb the enrichment run itself.
type AttemptRecorder struct {
	store store.Store
}

var _ analysis.Recorder = (*AttemptRecorder)(nil)

// NewAttemptRecorder creates an AttemptRecorder backed by the given store.
func NewAttemptRecorder(st store.Store) *AttemptRecorder {
	return &AttemptRecorder{store: st}
}

func (r *AttemptRecorder) Record(ctx context.Context, rec models.AttemptRecord) {
	if err := r.store.CreateAttempt(ctx, &rec); err != nil {
		slog.Warn("recording analysis attempt",
			"cr_id", rec.ChangeRequestID, "kind", rec.Kind, "error", err)
	}
}
