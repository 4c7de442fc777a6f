package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/storeops/storeops/internal/shared"
)

// RepositoryPort abstracts read access used by Service.
type RepositoryPort interface {
	GetProduct(ctx context.Context, storeID, productID int64) (Product, error)
	ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, int, error)
	SumLedger(ctx context.Context, storeID, productID int64) (int64, error)
	ListProductIDs(ctx context.Context, storeID int64) ([]int64, error)
}

// Service exposes the stock ledger and reconciliation.
type Service struct {
	repo        RepositoryPort
	drift       DriftHandler
	logger      *slog.Logger
	concurrency int
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// ReconcileConcurrency bounds parallel product checks in a store-wide scan.
	ReconcileConcurrency int
}

// NewService builds Service.
func NewService(repo RepositoryPort, drift DriftHandler, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconcileConcurrency <= 0 {
		cfg.ReconcileConcurrency = 4
	}
	return &Service{repo: repo, drift: drift, logger: logger, concurrency: cfg.ReconcileConcurrency}
}

// Ledger lists stock movements newest-first.
func (s *Service) Ledger(ctx context.Context, actor shared.Actor, productID int64, page shared.Page) (shared.PageResult[LedgerEntry], error) {
	if err := actor.RequireOwner(); err != nil {
		return shared.PageResult[LedgerEntry]{}, err
	}
	page = page.Normalize()
	if productID != 0 {
		if _, err := s.repo.GetProduct(ctx, actor.StoreID, productID); err != nil {
			return shared.PageResult[LedgerEntry]{}, err
		}
	}
	entries, total, err := s.repo.ListLedger(ctx, LedgerFilter{StoreID: actor.StoreID, ProductID: productID, Page: page})
	if err != nil {
		return shared.PageResult[LedgerEntry]{}, err
	}
	return shared.NewPageResult(entries, total, page), nil
}

// Reconcile compares one product's stock with the sum of its ledger deltas.
func (s *Service) Reconcile(ctx context.Context, storeID, productID int64) (ReconcileResult, error) {
	product, err := s.repo.GetProduct(ctx, storeID, productID)
	if err != nil {
		return ReconcileResult{}, err
	}
	sum, err := s.repo.SumLedger(ctx, storeID, productID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("inventory: sum ledger: %w", err)
	}
	result := ReconcileResult{
		StoreID:   storeID,
		ProductID: productID,
		Stock:     product.Stock,
		LedgerSum: sum,
		Drift:     product.Stock - sum,
	}
	if !result.Balanced() {
		s.reportDrift(ctx, result)
	}
	return result, nil
}

// ReconcileStore checks every product of a store and returns the unbalanced ones.
func (s *Service) ReconcileStore(ctx context.Context, storeID int64) ([]ReconcileResult, error) {
	ids, err := s.repo.ListProductIDs(ctx, storeID)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		drifted []ReconcileResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			result, err := s.Reconcile(gctx, storeID, id)
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if !result.Balanced() {
				mu.Lock()
				drifted = append(drifted, result)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return drifted, nil
}

func (s *Service) reportDrift(ctx context.Context, result ReconcileResult) {
	s.logger.Warn("stock drift detected",
		slog.Int64("store_id", result.StoreID),
		slog.Int64("product_id", result.ProductID),
		slog.Int64("stock", result.Stock),
		slog.Int64("ledger_sum", result.LedgerSum))
	if s.drift == nil {
		return
	}
	evt := DriftDetectedEvent{Result: result, DetectedAt: time.Now().UTC()}
	if err := s.drift.HandleStockDrift(ctx, evt); err != nil {
		s.logger.Error("stock drift handler failed", slog.Any("error", err))
	}
}
