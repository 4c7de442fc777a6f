package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventoryReconcile compares product stock with the ledger.
	TaskInventoryReconcile = "inventory:reconcile"
	// TaskIdempotencyCleanup prunes processed idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency-cleanup"
)

// DefaultIdempotencyRetention keeps claimed keys for a week.
const DefaultIdempotencyRetention = 7 * 24 * time.Hour

// ReconcilePayload selects what to reconcile. A zero StoreID scans every store;
// empty ProductIDs scans the whole store.
type ReconcilePayload struct {
	StoreID    int64   `json:"store_id,omitempty"`
	ProductIDs []int64 `json:"product_ids,omitempty"`
}

// NewReconcileTask constructs an Asynq task for stock reconciliation.
func NewReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	if payload.StoreID == 0 && len(payload.ProductIDs) > 0 {
		return nil, fmt.Errorf("reconcile task: product ids need a store")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryReconcile, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload configures key retention.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

func (p IdempotencyCleanupPayload) retention() time.Duration {
	if p.RetentionHours <= 0 {
		return DefaultIdempotencyRetention
	}
	return time.Duration(p.RetentionHours) * time.Hour
}

// NewIdempotencyCleanupTask builds the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
