package purchasing

import (
	"context"
	"time"

	"github.com/storeops/storeops/internal/shared"
)

// Send places a draft order with the supplier.
func (s *Service) Send(ctx context.Context, actor shared.Actor, id int64, input NoteInput) (PurchaseOrder, error) {
	if err := validateStruct(s.validate, input); err != nil {
		return PurchaseOrder{}, err
	}
	return s.transition(ctx, actor, id, ActionSend, input.Notes,
		func(_ context.Context, _ TxRepository, po *PurchaseOrder, now time.Time) error {
			po.Status = StatusSent
			po.PlacedAt = &now
			return nil
		})
}

// Ship marks the goods as dispatched by the supplier.
func (s *Service) Ship(ctx context.Context, actor shared.Actor, id int64, input NoteInput) (PurchaseOrder, error) {
	if err := validateStruct(s.validate, input); err != nil {
		return PurchaseOrder{}, err
	}
	return s.transition(ctx, actor, id, ActionShip, input.Notes,
		func(_ context.Context, _ TxRepository, po *PurchaseOrder, now time.Time) error {
			po.Status = StatusShipped
			po.ShippedAt = &now
			return nil
		})
}

// Cancel abandons an order before goods are shipped.
func (s *Service) Cancel(ctx context.Context, actor shared.Actor, id int64, input NoteInput) (PurchaseOrder, error) {
	if err := validateStruct(s.validate, input); err != nil {
		return PurchaseOrder{}, err
	}
	return s.transition(ctx, actor, id, ActionCancel, input.Notes,
		func(_ context.Context, _ TxRepository, po *PurchaseOrder, now time.Time) error {
			po.Status = StatusCancelled
			po.CancelledAt = &now
			return nil
		})
}

// Close archives a settled order; no further receipts are accepted.
func (s *Service) Close(ctx context.Context, actor shared.Actor, id int64, input NoteInput) (PurchaseOrder, error) {
	if err := validateStruct(s.validate, input); err != nil {
		return PurchaseOrder{}, err
	}
	return s.transition(ctx, actor, id, ActionClose, input.Notes,
		func(_ context.Context, _ TxRepository, po *PurchaseOrder, now time.Time) error {
			po.Status = StatusClosed
			po.ClosedAt = &now
			return nil
		})
}
