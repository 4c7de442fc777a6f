package inventory

import (
	"context"
)

// GetProduct loads a product scoped to its store.
func (r *Repository) GetProduct(ctx context.Context, storeID, productID int64) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 AND store_id=$2`, productID, storeID)
	return ScanProduct(row)
}

// ListLedger returns ledger entries newest-first with the total row count.
func (r *Repository) ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_ledger
WHERE store_id=$1 AND ($2::bigint = 0 OR product_id=$2)`, filter.StoreID, filter.ProductID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, store_id, product_id, ref_type, ref_id, delta, unit_cost, balance_after, cost_after, created_by, created_at
FROM stock_ledger
WHERE store_id=$1 AND ($2::bigint = 0 OR product_id=$2)
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4`, filter.StoreID, filter.ProductID, filter.Page.Limit, filter.Page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.StoreID, &e.ProductID, &e.RefType, &e.RefID, &e.Delta, &e.UnitCost,
			&e.BalanceAfter, &e.CostAfter, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// SumLedger totals all deltas recorded for a product.
func (r *Repository) SumLedger(ctx context.Context, storeID, productID int64) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(delta), 0) FROM stock_ledger WHERE store_id=$1 AND product_id=$2`,
		storeID, productID).Scan(&sum)
	return sum, err
}

// ListProductIDs returns every product id of a store.
func (r *Repository) ListProductIDs(ctx context.Context, storeID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM products WHERE store_id=$1 ORDER BY id`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListStoreIDs returns every store holding at least one product.
func (r *Repository) ListStoreIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT store_id FROM products ORDER BY store_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
