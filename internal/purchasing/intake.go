package purchasing

import (
	"context"
	"time"

	"github.com/storeops/storeops/internal/catalog"
	"github.com/storeops/storeops/internal/inventory"
	"github.com/storeops/storeops/internal/shared"
)

// BulkIntake records goods already paid for and in hand as one RECEIVED order.
// Categories and products are found or created per line and every line is
// received into stock. The declared total is kept even when it differs from
// the sum of line costs.
func (s *Service) BulkIntake(ctx context.Context, actor shared.Actor, input BulkIntakeInput) (PurchaseOrder, error) {
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
		Status:     StatusReceived,
		PlacedAt:   &now,
		ReceivedAt: &now,
		Total:      input.TotalAmount,
		Notes:      input.Notes,
		CreatedBy:  actor.UserID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	var lines []ReceivedLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetSupplier(ctx, actor.StoreID, input.SupplierID); err != nil {
			return err
		}

		items := make([]Item, 0, len(input.Lines))
		for _, line := range input.Lines {
			category, err := catalog.FindOrCreateCategory(ctx, tx, actor.StoreID, line.Category)
			if err != nil {
				return err
			}
			product, _, err := catalog.FindOrCreateProduct(ctx, tx, catalog.ProductSpec{
				StoreID:     actor.StoreID,
				CategoryID:  category.ID,
				SKU:         line.SKU,
				Title:       line.Title,
				Description: line.Description,
				UnitCost:    line.UnitCost,
				Price:       line.Price,
			})
			if err != nil {
				return err
			}
			items = append(items, Item{
				ProductID:   product.ID,
				Qty:         line.Quantity,
				Cost:        line.UnitCost,
				ReceivedQty: line.Quantity,
			})
			po.Subtotal += line.Quantity * line.UnitCost
		}

		if err := s.insertWithCode(ctx, tx, &po); err != nil {
			return err
		}
		receipts := make([]inventory.Receipt, 0, len(items))
		for _, item := range items {
			item.PurchaseOrderID = po.ID
			id, err := tx.InsertItem(ctx, item)
			if err != nil {
				return err
			}
			item.ID = id
			po.Items = append(po.Items, item)
			receipts = append(receipts, inventory.Receipt{
				StoreID:   po.StoreID,
				ProductID: item.ProductID,
				Qty:       item.Qty,
				UnitCost:  item.Cost,
				RefType:   inventory.RefTypePOReceipt,
				RefID:     po.ID,
				ActorID:   actor.UserID,
			})
			lines = append(lines, ReceivedLine{ProductID: item.ProductID, Qty: item.Qty, UnitCost: item.Cost})
		}
		if _, err := inventory.ReceiveAll(ctx, tx, receipts); err != nil {
			return err
		}
		return s.recordAudit(ctx, tx, actor, po, ActionBulkIntake, "", input.Notes)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordTransition(ActionBulkIntake, po.Status)
	s.afterReceipt(ctx, po, lines)
	return po, nil
}

// setClock pins the service clock.
func (s *Service) setClock(now func() time.Time) {
	s.now = now
}
