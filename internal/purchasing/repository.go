package purchasing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storeops/storeops/internal/audit"
	"github.com/storeops/storeops/internal/catalog"
	"github.com/storeops/storeops/internal/inventory"
	"github.com/storeops/storeops/internal/platform/db"
	"github.com/storeops/storeops/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	*inventory.StockTx
	*catalog.LookupTx
	*audit.TxWriter
	tx pgx.Tx
}

// WithTx wraps callback in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{
			StockTx:  inventory.NewStockTx(tx),
			LookupTx: catalog.NewLookupTx(tx),
			TxWriter: audit.NewTxWriter(tx),
			tx:       tx,
		})
	})
}

// GetPurchaseOrder returns a purchase order with items.
func (r *Repository) GetPurchaseOrder(ctx context.Context, storeID, id int64) (PurchaseOrder, error) {
	return loadPurchaseOrder(ctx, r.pool, storeID, id, false)
}

// GetSupplierByUser resolves the supplier operated by userID.
func (r *Repository) GetSupplierByUser(ctx context.Context, storeID, userID int64) (catalog.Supplier, error) {
	var s catalog.Supplier
	err := r.pool.QueryRow(ctx, `SELECT id, store_id, user_id, name FROM suppliers WHERE store_id=$1 AND user_id=$2`,
		storeID, userID).Scan(&s.ID, &s.StoreID, &s.UserID, &s.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Supplier{}, fmt.Errorf("%w: supplier", shared.ErrNotFound)
		}
		return catalog.Supplier{}, err
	}
	return s, nil
}
