package purchasing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/storeops/storeops/internal/audit"
	"github.com/storeops/storeops/internal/catalog"
	"github.com/storeops/storeops/internal/inventory"
	"github.com/storeops/storeops/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPurchaseOrder(ctx context.Context, storeID, id int64) (PurchaseOrder, error)
	GetSupplierByUser(ctx context.Context, storeID, userID int64) (catalog.Supplier, error)
}

// TxRepository exposes transactional operations. It embeds the inventory,
// catalogue and audit writers so a transition commits atomically with its
// stock movements and audit entry.
type TxRepository interface {
	inventory.TxRepository
	catalog.TxRepository
	audit.Writer

	GetPurchaseOrderForUpdate(ctx context.Context, storeID, id int64) (PurchaseOrder, error)
	NextCodeSequence(ctx context.Context, storeID int64, year int) (int64, error)
	// InsertPurchaseOrder returns errDuplicateCode on a code collision and
	// leaves the transaction usable.
	InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error
	UpdateItem(ctx context.Context, item Item) error
	ProductExists(ctx context.Context, storeID, productID int64) (bool, error)
	ClaimIdempotencyKey(ctx context.Context, key, module string) error
}

// HistoryPort serves audit history.
type HistoryPort interface {
	History(ctx context.Context, storeID, purchaseOrderID int64, page shared.Page) (shared.PageResult[audit.Entry], error)
}

// Service orchestrates the purchase order lifecycle.
type Service struct {
	repo        RepositoryPort
	history     HistoryPort
	locker      shared.Locker
	integration IntegrationHandler
	metrics     MetricsRecorder
	logger      *slog.Logger
	validate    *validator.Validate
	codes       CodeGenerator
	now         func() time.Time
}

// ServiceConfig groups optional collaborators and settings.
type ServiceConfig struct {
	Codes       CodeGenerator
	Locker      shared.Locker
	Integration IntegrationHandler
	Metrics     MetricsRecorder
	Logger      *slog.Logger
}

// NewService constructs the purchasing service.
func NewService(repo RepositoryPort, history HistoryPort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		history:     history,
		locker:      cfg.Locker,
		integration: cfg.Integration,
		metrics:     cfg.Metrics,
		logger:      logger,
		validate:    newValidator(),
		codes:       cfg.Codes,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a draft purchase order for a supplier of the actor's store.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (PurchaseOrder, error) {
	if err := actor.RequireOwner(); err != nil {
		return PurchaseOrder{}, err
	}
	if err := validateStruct(s.validate, input); err != nil {
		return PurchaseOrder{}, err
	}

	now := s.now()
	po := PurchaseOrder{
		StoreID:    actor.StoreID,
		SupplierID: input.SupplierID,
		Status:     StatusDraft,
		Notes:      input.Notes,
		CreatedBy:  actor.UserID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetSupplier(ctx, actor.StoreID, input.SupplierID); err != nil {
			return err
		}
		for _, line := range input.Items {
			ok, err := tx.ProductExists(ctx, actor.StoreID, line.ProductID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: product %d", shared.ErrNotFound, line.ProductID)
			}
		}
		if err := s.insertWithCode(ctx, tx, &po); err != nil {
			return err
		}
		for _, line := range input.Items {
			item := Item{PurchaseOrderID: po.ID, ProductID: line.ProductID, Qty: line.Qty}
			id, err := tx.InsertItem(ctx, item)
			if err != nil {
				return err
			}
			item.ID = id
			po.Items = append(po.Items, item)
		}
		return s.recordAudit(ctx, tx, actor, po, ActionCreate, "", input.Notes)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordTransition(ActionCreate, po.Status)
	return po, nil
}

// Get returns a purchase order with its items. Suppliers see only their own orders.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (PurchaseOrder, error) {
	po, err := s.repo.GetPurchaseOrder(ctx, actor.StoreID, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if err := s.authorizeReader(ctx, actor, po); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// History lists the audit trail of a purchase order newest-first.
func (s *Service) History(ctx context.Context, actor shared.Actor, id int64, page shared.Page) (shared.PageResult[audit.Entry], error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return shared.PageResult[audit.Entry]{}, err
	}
	if s.history == nil {
		return shared.PageResult[audit.Entry]{}, errors.New("purchasing: audit history not configured")
	}
	return s.history.History(ctx, actor.StoreID, id, page)
}

func (s *Service) authorizeReader(ctx context.Context, actor shared.Actor, po PurchaseOrder) error {
	switch actor.Role {
	case shared.RoleOwner:
		return nil
	case shared.RoleSupplier:
		supplier, err := s.repo.GetSupplierByUser(ctx, actor.StoreID, actor.UserID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return fmt.Errorf("%w: user is not a supplier of this store", shared.ErrForbidden)
			}
			return err
		}
		if supplier.ID != po.SupplierID {
			return fmt.Errorf("%w: purchase order belongs to another supplier", shared.ErrForbidden)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown role", shared.ErrForbidden)
	}
}

// authorizeSupplier checks inside tx that actor operates po's supplier.
func authorizeSupplier(ctx context.Context, tx TxRepository, actor shared.Actor, po PurchaseOrder) error {
	supplier, err := tx.GetSupplierByUser(ctx, actor.StoreID, actor.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: user is not a supplier of this store", shared.ErrForbidden)
		}
		return err
	}
	if supplier.ID != po.SupplierID {
		return fmt.Errorf("%w: purchase order belongs to another supplier", shared.ErrForbidden)
	}
	return nil
}

// transition runs a guarded status change: role check, row lock, supplier link
// check, source status check, mutate, persist and audit, all in one transaction.
func (s *Service) transition(ctx context.Context, actor shared.Actor, id int64, action Action, notes string,
	mutate func(ctx context.Context, tx TxRepository, po *PurchaseOrder, now time.Time) error) (PurchaseOrder, error) {
	if actor.Role != requiredRole(action) {
		return PurchaseOrder{}, fmt.Errorf("%w: %s requires %s", shared.ErrForbidden, action, requiredRole(action))
	}

	var (
		po   PurchaseOrder
		from Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		po, err = tx.GetPurchaseOrderForUpdate(ctx, actor.StoreID, id)
		if err != nil {
			return err
		}
		if actor.IsSupplier() {
			if err := authorizeSupplier(ctx, tx, actor, po); err != nil {
				return err
			}
		}
		if err := checkTransition(action, po.Status); err != nil {
			return err
		}
		from = po.Status
		now := s.now()
		if err := mutate(ctx, tx, &po, now); err != nil {
			return err
		}
		po.UpdatedAt = now
		if err := tx.UpdatePurchaseOrder(ctx, po); err != nil {
			return err
		}
		if po.Status != from {
			return s.recordAudit(ctx, tx, actor, po, action, from, notes)
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status != from {
		s.recordTransition(action, po.Status)
	}
	return po, nil
}

func (s *Service) recordAudit(ctx context.Context, tx TxRepository, actor shared.Actor, po PurchaseOrder, action Action, from Status, notes string) error {
	_, err := audit.Append(ctx, tx, audit.Entry{
		PurchaseOrderID: po.ID,
		StoreID:         po.StoreID,
		ActorID:         actor.UserID,
		Action:          string(action),
		PreviousStatus:  string(from),
		NewStatus:       string(po.Status),
		Notes:           notes,
		CreatedAt:       po.UpdatedAt,
	})
	return err
}

func (s *Service) recordTransition(action Action, status Status) {
	if s.metrics != nil {
		s.metrics.RecordTransition(string(action), string(status))
	}
}
