package audit

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository reads audit entries from PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// ListEntries returns entries newest-first with the total count.
func (r *PgRepository) ListEntries(ctx context.Context, filter HistoryFilter) ([]Entry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM po_audit_log WHERE store_id=$1 AND purchase_order_id=$2`,
		filter.StoreID, filter.PurchaseOrderID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, purchase_order_id, store_id, actor_id, action,
COALESCE(previous_status, ''), new_status, notes, created_at
FROM po_audit_log
WHERE store_id=$1 AND purchase_order_id=$2
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4`, filter.StoreID, filter.PurchaseOrderID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.PurchaseOrderID, &e.StoreID, &e.ActorID, &e.Action,
			&e.PreviousStatus, &e.NewStatus, &e.Notes, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// TxWriter writes entries on an open transaction.
type TxWriter struct {
	tx pgx.Tx
}

// NewTxWriter wraps tx.
func NewTxWriter(tx pgx.Tx) *TxWriter {
	return &TxWriter{tx: tx}
}

// InsertAuditEntry stores entry; an empty previous status is stored as NULL.
func (w *TxWriter) InsertAuditEntry(ctx context.Context, entry Entry) (int64, error) {
	var previous *string
	if entry.PreviousStatus != "" {
		previous = &entry.PreviousStatus
	}
	var id int64
	err := w.tx.QueryRow(ctx, `INSERT INTO po_audit_log
(purchase_order_id, store_id, actor_id, action, previous_status, new_status, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		entry.PurchaseOrderID, entry.StoreID, entry.ActorID, entry.Action, previous,
		entry.NewStatus, entry.Notes, entry.CreatedAt).Scan(&id)
	return id, err
}
