package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storeops/storeops/internal/shared"
)

// TxRepository exposes the transactional operations of the receiving engine.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, storeID, productID int64) (Product, error)
	UpdateProductStock(ctx context.Context, productID, stock, costPrice int64) error
	InsertLedgerEntry(ctx context.Context, entry LedgerEntry) (int64, error)
}

// Repository persists products and the stock ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StockTx implements TxRepository on an open transaction owned by the caller.
type StockTx struct {
	tx pgx.Tx
}

// NewStockTx wraps tx.
func NewStockTx(tx pgx.Tx) *StockTx {
	return &StockTx{tx: tx}
}

const productColumns = `id, store_id, sku, title, description, COALESCE(category_id, 0), selling_price, stock, cost_price, created_at, updated_at`

// ScanProduct reads a row selected with productColumns.
func ScanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.StoreID, &p.SKU, &p.Title, &p.Description, &p.CategoryID, &p.SellingPrice, &p.Stock, &p.CostPrice, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("%w: product", shared.ErrNotFound)
		}
		return Product{}, err
	}
	return p, nil
}

// ProductColumns lists the columns ScanProduct expects.
func ProductColumns() string {
	return productColumns
}

func (r *StockTx) GetProductForUpdate(ctx context.Context, storeID, productID int64) (Product, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 AND store_id=$2 FOR UPDATE`, productID, storeID)
	p, err := ScanProduct(row)
	if err != nil {
		return Product{}, fmt.Errorf("inventory: lock product %d: %w", productID, err)
	}
	return p, nil
}

func (r *StockTx) UpdateProductStock(ctx context.Context, productID, stock, costPrice int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET stock=$2, cost_price=$3, updated_at=$4 WHERE id=$1`,
		productID, stock, costPrice, time.Now().UTC())
	return err
}

func (r *StockTx) InsertLedgerEntry(ctx context.Context, entry LedgerEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_ledger
(store_id, product_id, ref_type, ref_id, delta, unit_cost, balance_after, cost_after, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		entry.StoreID, entry.ProductID, entry.RefType, entry.RefID, entry.Delta, entry.UnitCost,
		entry.BalanceAfter, entry.CostAfter, entry.CreatedBy, entry.CreatedAt).Scan(&id)
	return id, err
}
