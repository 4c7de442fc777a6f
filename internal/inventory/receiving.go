package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/storeops/storeops/internal/shared"
)

// Receive applies a receipt to its product: stock grows by Qty, cost price moves
// to the weighted average and one ledger entry is appended. It must run inside
// the caller's transaction; the product row is locked before it is read.
func Receive(ctx context.Context, tx TxRepository, receipt Receipt) (LedgerEntry, error) {
	if receipt.Qty <= 0 {
		return LedgerEntry{}, fmt.Errorf("%w: receipt quantity %d", shared.ErrInvalidQuantity, receipt.Qty)
	}
	if receipt.UnitCost < 0 {
		return LedgerEntry{}, fmt.Errorf("%w: negative unit cost", shared.ErrValidation)
	}
	if receipt.RefType == "" {
		receipt.RefType = RefTypePOReceipt
	}

	product, err := tx.GetProductForUpdate(ctx, receipt.StoreID, receipt.ProductID)
	if err != nil {
		return LedgerEntry{}, err
	}

	newStock := product.Stock + receipt.Qty
	newCost := WeightedAverage(product.Stock, product.CostPrice, receipt.Qty, receipt.UnitCost)
	if err := tx.UpdateProductStock(ctx, product.ID, newStock, newCost); err != nil {
		return LedgerEntry{}, err
	}

	unitCost := receipt.UnitCost
	entry := LedgerEntry{
		StoreID:      receipt.StoreID,
		ProductID:    product.ID,
		RefType:      receipt.RefType,
		RefID:        receipt.RefID,
		Delta:        receipt.Qty,
		UnitCost:     &unitCost,
		BalanceAfter: newStock,
		CostAfter:    &newCost,
		CreatedBy:    receipt.ActorID,
		CreatedAt:    time.Now().UTC(),
	}
	id, err := tx.InsertLedgerEntry(ctx, entry)
	if err != nil {
		return LedgerEntry{}, err
	}
	entry.ID = id
	return entry, nil
}

// ReceiveAll applies receipts in ascending product id order so concurrent
// multi-product receipts acquire row locks in the same sequence.
func ReceiveAll(ctx context.Context, tx TxRepository, receipts []Receipt) ([]LedgerEntry, error) {
	ordered := make([]Receipt, len(receipts))
	copy(ordered, receipts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ProductID < ordered[j].ProductID
	})

	entries := make([]LedgerEntry, 0, len(ordered))
	for _, receipt := range ordered {
		entry, err := Receive(ctx, tx, receipt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
