package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/storeops/storeops/internal/inventory"
	jobmetrics "github.com/storeops/storeops/internal/jobs"
	"github.com/storeops/storeops/internal/shared"
)

// ReconcileService is the inventory surface the reconcile job needs.
type ReconcileService interface {
	Reconcile(ctx context.Context, storeID, productID int64) (inventory.ReconcileResult, error)
	ReconcileStore(ctx context.Context, storeID int64) ([]inventory.ReconcileResult, error)
}

// StoreLister enumerates stores for a full scan.
type StoreLister interface {
	ListStoreIDs(ctx context.Context) ([]int64, error)
}

// ReconcileJob checks stock against the ledger. Drift is reported through the
// inventory service's drift handler; the job only counts and logs.
type ReconcileJob struct {
	Service ReconcileService
	Stores  StoreLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReconcileJob initialises the reconcile handler.
func NewReconcileJob(service ReconcileService, stores StoreLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{Service: service, Stores: stores, Logger: logger, Metrics: metrics}
}

// Handle executes one reconcile task.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Service == nil {
		return errors.New("reconcile: handler not configured")
	}
	var payload ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("reconcile: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskInventoryReconcile)
	defer func() {
		err = tracker.End(err)
	}()

	start := time.Now()
	logger := j.logger().With(slog.Int64("store_id", payload.StoreID), slog.Int("products", len(payload.ProductIDs)))

	drifted, checked, err := j.run(ctx, payload)
	if err != nil {
		logger.Error("reconcile failed", slog.Any("error", err))
		return err
	}
	logger.Info("reconcile completed",
		slog.Int("scopes", checked),
		slog.Int("drifted", drifted),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *ReconcileJob) run(ctx context.Context, payload ReconcilePayload) (drifted, checked int, err error) {
	if payload.StoreID != 0 && len(payload.ProductIDs) > 0 {
		for _, productID := range payload.ProductIDs {
			result, err := j.Service.Reconcile(ctx, payload.StoreID, productID)
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			if err != nil {
				return drifted, checked, err
			}
			checked++
			if !result.Balanced() {
				drifted++
			}
		}
		return drifted, checked, nil
	}

	stores := []int64{payload.StoreID}
	if payload.StoreID == 0 {
		if j.Stores == nil {
			return 0, 0, errors.New("reconcile: store lister not configured")
		}
		if stores, err = j.Stores.ListStoreIDs(ctx); err != nil {
			return 0, 0, err
		}
	}
	for _, storeID := range stores {
		results, err := j.Service.ReconcileStore(ctx, storeID)
		if err != nil {
			return drifted, checked, fmt.Errorf("store %d: %w", storeID, err)
		}
		checked++
		drifted += len(results)
	}
	return drifted, checked, nil
}

func (j *ReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
