package purchasing

import (
	"context"
	"fmt"
	"time"

	"github.com/storeops/storeops/internal/shared"
)

// RequestQuotation asks the supplier to price a draft order.
func (s *Service) RequestQuotation(ctx context.Context, actor shared.Actor, id int64, input NoteInput) (PurchaseOrder, error) {
	if err := validateStruct(s.validate, input); err != nil {
		return PurchaseOrder{}, err
	}
	return s.transition(ctx, actor, id, ActionRequestQuotation, input.Notes,
		func(_ context.Context, _ TxRepository, po *PurchaseOrder, now time.Time) error {
			po.Status = StatusQuotationRequested
			po.QuotationRequestedAt = &now
			return nil
		})
}

// SubmitQuotation records the supplier's unit costs and recomputes totals.
// Items left out or quoted at zero or less keep their previous quote, falling
// back to the baseline cost.
func (s *Service) SubmitQuotation(ctx context.Context, actor shared.Actor, id int64, input QuoteInput) (PurchaseOrder, error) {
	if err := validateStruct(s.validate, input); err != nil {
		return PurchaseOrder{}, err
	}
	return s.transition(ctx, actor, id, ActionSubmitQuotation, input.Notes,
		func(ctx context.Context, tx TxRepository, po *PurchaseOrder, now time.Time) error {
			for _, line := range input.Items {
				idx := po.itemIndex(line.ItemID)
				if idx < 0 {
					return fmt.Errorf("%w: item %d", shared.ErrNotFound, line.ItemID)
				}
				if line.UnitCost <= 0 {
					continue
				}
				cost := line.UnitCost
				po.Items[idx].QuotedCost = &cost
			}
			for _, item := range po.Items {
				if err := tx.UpdateItem(ctx, item); err != nil {
					return err
				}
			}
			po.recomputeQuotedTotals()
			po.Status = StatusQuotationSubmitted
			po.QuotationSubmittedAt = &now
			po.QuotationNotes = ""
			return nil
		})
}

// RequestRevision sends the quotation back to the supplier with notes.
func (s *Service) RequestRevision(ctx context.Context, actor shared.Actor, id int64, input NoteInput) (PurchaseOrder, error) {
	if err := validateStruct(s.validate, input); err != nil {
		return PurchaseOrder{}, err
	}
	return s.transition(ctx, actor, id, ActionRequestRevision, input.Notes,
		func(_ context.Context, _ TxRepository, po *PurchaseOrder, _ time.Time) error {
			po.Status = StatusQuotationRevisionRequested
			po.QuotationNotes = input.Notes
			return nil
		})
}

// ApproveQuotation accepts the submitted quotation.
func (s *Service) ApproveQuotation(ctx context.Context, actor shared.Actor, id int64, input NoteInput) (PurchaseOrder, error) {
	if err := validateStruct(s.validate, input); err != nil {
		return PurchaseOrder{}, err
	}
	return s.transition(ctx, actor, id, ActionApproveQuotation, input.Notes,
		func(_ context.Context, _ TxRepository, po *PurchaseOrder, now time.Time) error {
			po.Status = StatusQuotationApproved
			po.QuotationApprovedAt = &now
			return nil
		})
}

// RejectQuotation declines the submitted quotation.
func (s *Service) RejectQuotation(ctx context.Context, actor shared.Actor, id int64, input NoteInput) (PurchaseOrder, error) {
	if err := validateStruct(s.validate, input); err != nil {
		return PurchaseOrder{}, err
	}
	return s.transition(ctx, actor, id, ActionRejectQuotation, input.Notes,
		func(_ context.Context, _ TxRepository, po *PurchaseOrder, now time.Time) error {
			po.Status = StatusQuotationRejected
			po.QuotationRejectedAt = &now
			return nil
		})
}
