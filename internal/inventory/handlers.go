package inventory

import "context"

// DriftHandler receives reconciliation mismatches.
type DriftHandler interface {
	HandleStockDrift(ctx context.Context, evt DriftDetectedEvent) error
}
