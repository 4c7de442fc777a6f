package purchasing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/storeops/storeops/internal/platform/db"
	"github.com/storeops/storeops/internal/shared"
)

const codeConstraint = "purchase_orders_code_key"

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const poColumns = `id, store_id, supplier_id, code, status, placed_at, quotation_requested_at,
quotation_submitted_at, quotation_approved_at, quotation_rejected_at, shipped_at, received_at,
cancelled_at, closed_at, subtotal, tax_total, total, notes, quotation_notes, created_by, created_at, updated_at`

func loadPurchaseOrder(ctx context.Context, q querier, storeID, id int64, forUpdate bool) (PurchaseOrder, error) {
	query := `SELECT ` + poColumns + ` FROM purchase_orders WHERE id=$1 AND store_id=$2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var po PurchaseOrder
	err := q.QueryRow(ctx, query, id, storeID).Scan(
		&po.ID, &po.StoreID, &po.SupplierID, &po.Code, &po.Status, &po.PlacedAt, &po.QuotationRequestedAt,
		&po.QuotationSubmittedAt, &po.QuotationApprovedAt, &po.QuotationRejectedAt, &po.ShippedAt, &po.ReceivedAt,
		&po.CancelledAt, &po.ClosedAt, &po.Subtotal, &po.TaxTotal, &po.Total, &po.Notes, &po.QuotationNotes,
		&po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, fmt.Errorf("%w: purchase order %d", shared.ErrNotFound, id)
		}
		return PurchaseOrder{}, err
	}

	rows, err := q.Query(ctx, `SELECT id, purchase_order_id, product_id, qty, cost, quoted_cost, received_qty
FROM purchase_order_items WHERE purchase_order_id=$1 ORDER BY id`, po.ID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.PurchaseOrderID, &item.ProductID, &item.Qty, &item.Cost,
			&item.QuotedCost, &item.ReceivedQty); err != nil {
			return PurchaseOrder{}, err
		}
		po.Items = append(po.Items, item)
	}
	return po, rows.Err()
}

func (t *txRepo) GetPurchaseOrderForUpdate(ctx context.Context, storeID, id int64) (PurchaseOrder, error) {
	return loadPurchaseOrder(ctx, t.tx, storeID, id, true)
}

func (t *txRepo) NextCodeSequence(ctx context.Context, storeID int64, year int) (int64, error) {
	var next int64
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) + 1 FROM purchase_orders
WHERE store_id=$1 AND date_part('year', created_at) = $2`, storeID, year).Scan(&next)
	return next, err
}

// InsertPurchaseOrder runs inside a savepoint so a code collision rolls back
// only the failed insert.
func (t *txRepo) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return 0, err
	}
	var id int64
	err = sp.QueryRow(ctx, `INSERT INTO purchase_orders (`+insertColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21) RETURNING id`,
		po.StoreID, po.SupplierID, po.Code, po.Status, po.PlacedAt, po.QuotationRequestedAt,
		po.QuotationSubmittedAt, po.QuotationApprovedAt, po.QuotationRejectedAt, po.ShippedAt, po.ReceivedAt,
		po.CancelledAt, po.ClosedAt, po.Subtotal, po.TaxTotal, po.Total, po.Notes, po.QuotationNotes,
		po.CreatedBy, po.CreatedAt, po.UpdatedAt).Scan(&id)
	if err != nil {
		_ = sp.Rollback(ctx)
		if db.IsUniqueViolation(err, codeConstraint) {
			return 0, errDuplicateCode
		}
		return 0, err
	}
	if err := sp.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

const insertColumns = `store_id, supplier_id, code, status, placed_at, quotation_requested_at,
quotation_submitted_at, quotation_approved_at, quotation_rejected_at, shipped_at, received_at,
cancelled_at, closed_at, subtotal, tax_total, total, notes, quotation_notes, created_by, created_at, updated_at`

func (t *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_order_items
(purchase_order_id, product_id, qty, cost, quoted_cost, received_qty)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		item.PurchaseOrderID, item.ProductID, item.Qty, item.Cost, item.QuotedCost, item.ReceivedQty).Scan(&id)
	return id, err
}

func (t *txRepo) UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET
status=$2, placed_at=$3, quotation_requested_at=$4, quotation_submitted_at=$5, quotation_approved_at=$6,
quotation_rejected_at=$7, shipped_at=$8, received_at=$9, cancelled_at=$10, closed_at=$11,
subtotal=$12, tax_total=$13, total=$14, quotation_notes=$15, updated_at=$16
WHERE id=$1`,
		po.ID, po.Status, po.PlacedAt, po.QuotationRequestedAt, po.QuotationSubmittedAt, po.QuotationApprovedAt,
		po.QuotationRejectedAt, po.ShippedAt, po.ReceivedAt, po.CancelledAt, po.ClosedAt,
		po.Subtotal, po.TaxTotal, po.Total, po.QuotationNotes, po.UpdatedAt)
	return err
}

func (t *txRepo) UpdateItem(ctx context.Context, item Item) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_order_items SET quoted_cost=$2, received_qty=$3 WHERE id=$1`,
		item.ID, item.QuotedCost, item.ReceivedQty)
	return err
}

func (t *txRepo) ProductExists(ctx context.Context, storeID, productID int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id=$1 AND store_id=$2)`,
		productID, storeID).Scan(&ok)
	return ok, err
}

func (t *txRepo) ClaimIdempotencyKey(ctx context.Context, key, module string) error {
	return shared.ClaimIdempotencyKey(ctx, t.tx, key, module)
}
