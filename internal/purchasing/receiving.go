package purchasing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/storeops/storeops/internal/inventory"
	"github.com/storeops/storeops/internal/shared"
)

const idempotencyModule = "purchasing.receive"

// Confirm settles a shipped order. Accepted orders receive every outstanding
// unit into stock; rejected orders end without stock movement.
func (s *Service) Confirm(ctx context.Context, actor shared.Actor, id int64, input ConfirmInput) (PurchaseOrder, error) {
	if err := validateStruct(s.validate, input); err != nil {
		return PurchaseOrder{}, err
	}
	var lines []ReceivedLine
	po, err := s.transition(ctx, actor, id, ActionConfirm, input.Notes,
		func(ctx context.Context, tx TxRepository, po *PurchaseOrder, now time.Time) error {
			if !input.Accepted {
				po.Status = StatusRejected
				return nil
			}
			deltas := make(map[int64]int64, len(po.Items))
			for _, item := range po.Items {
				deltas[item.ID] = item.Remaining()
			}
			var err error
			lines, err = applyReceipt(ctx, tx, actor, po, deltas)
			if err != nil {
				return err
			}
			po.Status = StatusReceived
			po.ReceivedAt = &now
			return nil
		})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.afterReceipt(ctx, po, lines)
	return po, nil
}

// ReceivePartial adds received quantities to items. Status becomes RECEIVED
// when every item is complete, PARTIAL when anything has arrived, and is
// otherwise left alone. Zero deltas are ignored.
func (s *Service) ReceivePartial(ctx context.Context, actor shared.Actor, id int64, input ReceiveInput) (PurchaseOrder, error) {
	if err := actor.RequireOwner(); err != nil {
		return PurchaseOrder{}, err
	}
	if err := validateStruct(s.validate, input); err != nil {
		return PurchaseOrder{}, err
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, shared.PurchaseOrderLockKey(actor.StoreID, id))
		if err != nil {
			return PurchaseOrder{}, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("release receive lock", slog.Int64("po_id", id), slog.Any("error", err))
			}
		}()
	}

	var lines []ReceivedLine
	po, err := s.transition(ctx, actor, id, ActionReceive, input.Notes,
		func(ctx context.Context, tx TxRepository, po *PurchaseOrder, now time.Time) error {
			before := po.Status
			if input.IdempotencyKey != "" {
				key := fmt.Sprintf("store:%d:po:%d:%s", po.StoreID, po.ID, input.IdempotencyKey)
				if err := tx.ClaimIdempotencyKey(ctx, key, idempotencyModule); err != nil {
					return err
				}
			}
			deltas, err := receiptDeltas(po, input.Items)
			if err != nil {
				return err
			}
			lines, err = applyReceipt(ctx, tx, actor, po, deltas)
			if err != nil {
				return err
			}
			po.Status = po.receiptStatus()
			if po.Status == StatusReceived && po.ReceivedAt == nil {
				po.ReceivedAt = &now
			}
			if po.Status == before && len(lines) > 0 {
				// status changes are audited by transition; record stock-only receipts here
				po.UpdatedAt = now
				return s.recordAudit(ctx, tx, actor, *po, ActionReceive, before, receiptNote(input.Notes, lines))
			}
			return nil
		})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.afterReceipt(ctx, po, lines)
	return po, nil
}

func receiptNote(notes string, lines []ReceivedLine) string {
	var units int64
	for _, line := range lines {
		units += line.Qty
	}
	if notes == "" {
		return fmt.Sprintf("received %d units", units)
	}
	return fmt.Sprintf("received %d units: %s", units, notes)
}

// receiptDeltas validates requested deltas against po without mutating it.
func receiptDeltas(po *PurchaseOrder, lines []ReceiveLine) (map[int64]int64, error) {
	deltas := make(map[int64]int64, len(lines))
	for _, line := range lines {
		if line.Qty < 0 {
			return nil, fmt.Errorf("%w: negative receipt for item %d", shared.ErrInvalidQuantity, line.ItemID)
		}
		if po.itemIndex(line.ItemID) < 0 {
			return nil, fmt.Errorf("%w: item %d", shared.ErrNotFound, line.ItemID)
		}
		deltas[line.ItemID] += line.Qty
	}
	for itemID, delta := range deltas {
		item := po.Items[po.itemIndex(itemID)]
		if item.ReceivedQty+delta > item.Qty {
			return nil, fmt.Errorf("%w: item %d would receive %d of %d",
				shared.ErrInvalidQuantity, itemID, item.ReceivedQty+delta, item.Qty)
		}
	}
	return deltas, nil
}

// applyReceipt raises item received quantities and runs the receiving engine
// for every positive delta at the item's unit cost.
func applyReceipt(ctx context.Context, tx TxRepository, actor shared.Actor, po *PurchaseOrder, deltas map[int64]int64) ([]ReceivedLine, error) {
	var (
		receipts []inventory.Receipt
		lines    []ReceivedLine
	)
	for idx := range po.Items {
		item := &po.Items[idx]
		delta := deltas[item.ID]
		if delta <= 0 {
			continue
		}
		item.ReceivedQty += delta
		if err := tx.UpdateItem(ctx, *item); err != nil {
			return nil, err
		}
		receipts = append(receipts, inventory.Receipt{
			StoreID:   po.StoreID,
			ProductID: item.ProductID,
			Qty:       delta,
			UnitCost:  item.UnitCost(),
			RefType:   inventory.RefTypePOReceipt,
			RefID:     po.ID,
			ActorID:   actor.UserID,
		})
		lines = append(lines, ReceivedLine{ProductID: item.ProductID, Qty: delta, UnitCost: item.UnitCost()})
	}
	if _, err := inventory.ReceiveAll(ctx, tx, receipts); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Service) afterReceipt(ctx context.Context, po PurchaseOrder, lines []ReceivedLine) {
	if len(lines) == 0 {
		return
	}
	var units int64
	for _, line := range lines {
		units += line.Qty
	}
	if s.metrics != nil {
		s.metrics.AddReceivedUnits(units)
	}
	if s.integration == nil {
		return
	}
	evt := StockReceivedEvent{
		StoreID:         po.StoreID,
		PurchaseOrderID: po.ID,
		Code:            po.Code,
		Status:          po.Status,
		Lines:           lines,
		ReceivedAt:      po.UpdatedAt,
	}
	if err := s.integration.HandleStockReceived(context.WithoutCancel(ctx), evt); err != nil {
		s.logger.Error("stock received hook failed",
			slog.Int64("po_id", po.ID), slog.String("code", po.Code), slog.Any("error", err))
	}
}
