package purchasing

import "context"

// IntegrationHandler receives purchasing events after commit. Failures are
// logged and never undo the committed operation.
type IntegrationHandler interface {
	HandleStockReceived(ctx context.Context, evt StockReceivedEvent) error
}

// MetricsRecorder counts committed purchasing activity.
type MetricsRecorder interface {
	RecordTransition(action, status string)
	AddReceivedUnits(units int64)
}
