package jobs

import (
	"context"
	"log/slog"

	"github.com/storeops/storeops/internal/inventory"
	jobmetrics "github.com/storeops/storeops/internal/jobs"
)

// DriftRecorder counts and logs stock drift raised by reconciliation.
type DriftRecorder struct {
	Metrics *jobmetrics.Metrics
	Logger  *slog.Logger
}

// HandleStockDrift implements inventory.DriftHandler.
func (d DriftRecorder) HandleStockDrift(_ context.Context, evt inventory.DriftDetectedEvent) error {
	d.Metrics.AddDrift(evt.Result.StoreID, 1)
	if d.Logger != nil {
		d.Logger.Warn("stock drift recorded",
			slog.Int64("store_id", evt.Result.StoreID),
			slog.Int64("product_id", evt.Result.ProductID),
			slog.Int64("drift", evt.Result.Drift),
			slog.Time("detected_at", evt.DetectedAt))
	}
	return nil
}
