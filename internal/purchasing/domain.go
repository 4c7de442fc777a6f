package purchasing

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storeops/storeops/internal/shared"
)

// Status is the purchase order lifecycle state.
type Status string

const (
	StatusDraft                      Status = "DRAFT"
	StatusQuotationRequested         Status = "QUOTATION_REQUESTED"
	StatusQuotationSubmitted         Status = "QUOTATION_SUBMITTED"
	StatusQuotationRevisionRequested Status = "QUOTATION_REVISION_REQUESTED"
	StatusQuotationApproved          Status = "QUOTATION_APPROVED"
	StatusQuotationRejected          Status = "QUOTATION_REJECTED"
	StatusSent                       Status = "SENT"
	StatusShipped                    Status = "SHIPPED"
	StatusPartial                    Status = "PARTIAL"
	StatusReceived                   Status = "RECEIVED"
	StatusRejected                   Status = "REJECTED"
	StatusCancelled                  Status = "CANCELLED"
	StatusClosed                     Status = "CLOSED"
)

// Action names an operation on a purchase order. It doubles as the audit action.
type Action string

const (
	ActionCreate           Action = "create"
	ActionRequestQuotation Action = "request-quotation"
	ActionSubmitQuotation  Action = "submit-quotation"
	ActionRequestRevision  Action = "request-revision"
	ActionApproveQuotation Action = "approve-quotation"
	ActionRejectQuotation  Action = "reject-quotation"
	ActionSend             Action = "send"
	ActionShip             Action = "ship"
	ActionConfirm          Action = "confirm"
	ActionReceive          Action = "receive"
	ActionCancel           Action = "cancel"
	ActionClose            Action = "close"
	ActionBulkIntake       Action = "bulk-intake"
)

// errDuplicateCode signals a code collision; the generator retries.
var errDuplicateCode = errors.New("purchasing: duplicate purchase order code")

// TaxRate applied to quoted subtotals.
var TaxRate = decimal.RequireFromString("0.18")

type rule struct {
	role shared.Role
	from []Status
}

var rules = map[Action]rule{
	ActionRequestQuotation: {shared.RoleOwner, []Status{StatusDraft}},
	ActionSubmitQuotation:  {shared.RoleSupplier, []Status{StatusQuotationRequested, StatusQuotationRevisionRequested}},
	ActionRequestRevision:  {shared.RoleOwner, []Status{StatusQuotationSubmitted, StatusQuotationRevisionRequested}},
	ActionApproveQuotation: {shared.RoleOwner, []Status{StatusQuotationSubmitted}},
	ActionRejectQuotation:  {shared.RoleOwner, []Status{StatusQuotationSubmitted}},
	ActionSend:             {shared.RoleOwner, []Status{StatusDraft}},
	ActionShip:             {shared.RoleSupplier, []Status{StatusSent, StatusQuotationApproved}},
	ActionConfirm:          {shared.RoleOwner, []Status{StatusShipped}},
	ActionCancel: {shared.RoleOwner, []Status{
		StatusDraft, StatusQuotationRequested, StatusQuotationSubmitted, StatusQuotationRevisionRequested,
		StatusQuotationApproved, StatusQuotationRejected, StatusSent,
	}},
	ActionClose: {shared.RoleOwner, []Status{StatusPartial, StatusReceived, StatusRejected, StatusQuotationRejected}},
}

// CanReceive reports whether goods may still be received against the status.
func (s Status) CanReceive() bool {
	switch s {
	case StatusCancelled, StatusClosed, StatusRejected:
		return false
	default:
		return true
	}
}

// Allows reports whether action may start from s.
func (s Status) Allows(action Action) bool {
	if action == ActionReceive {
		return s.CanReceive()
	}
	r, ok := rules[action]
	return ok && slices.Contains(r.from, s)
}

func requiredRole(action Action) shared.Role {
	if r, ok := rules[action]; ok {
		return r.role
	}
	return shared.RoleOwner
}

func checkTransition(action Action, status Status) error {
	if !status.Allows(action) {
		return fmt.Errorf("%w: cannot %s a purchase order in %s", shared.ErrInvalidTransition, action, status)
	}
	return nil
}

// PurchaseOrder is the aggregate root. Money fields are minor units.
type PurchaseOrder struct {
	ID                   int64
	StoreID              int64
	SupplierID           int64
	Code                 string
	Status               Status
	PlacedAt             *time.Time
	QuotationRequestedAt *time.Time
	QuotationSubmittedAt *time.Time
	QuotationApprovedAt  *time.Time
	QuotationRejectedAt  *time.Time
	ShippedAt            *time.Time
	ReceivedAt           *time.Time
	CancelledAt          *time.Time
	ClosedAt             *time.Time
	Subtotal             int64
	TaxTotal             int64
	Total                int64
	Notes                string
	QuotationNotes       string
	CreatedBy            int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Items                []Item
}

// Item is one ordered product line. Qty is fixed at creation.
type Item struct {
	ID              int64
	PurchaseOrderID int64
	ProductID       int64
	Qty             int64
	Cost            int64
	QuotedCost      *int64
	ReceivedQty     int64
}

// UnitCost is the quoted cost when present, else the baseline cost.
func (i Item) UnitCost() int64 {
	if i.QuotedCost != nil {
		return *i.QuotedCost
	}
	return i.Cost
}

// Remaining is the quantity still expected.
func (i Item) Remaining() int64 {
	return i.Qty - i.ReceivedQty
}

func (po *PurchaseOrder) itemIndex(itemID int64) int {
	for idx, item := range po.Items {
		if item.ID == itemID {
			return idx
		}
	}
	return -1
}

// recomputeQuotedTotals sets subtotal from unit costs and applies tax.
func (po *PurchaseOrder) recomputeQuotedTotals() {
	var subtotal int64
	for _, item := range po.Items {
		subtotal += item.Qty * item.UnitCost()
	}
	po.Subtotal = subtotal
	po.TaxTotal = decimal.NewFromInt(subtotal).Mul(TaxRate).Round(0).IntPart()
	po.Total = po.Subtotal + po.TaxTotal
}

// receiptStatus derives the status after receiving.
func (po *PurchaseOrder) receiptStatus() Status {
	full, started := true, false
	for _, item := range po.Items {
		if item.ReceivedQty < item.Qty {
			full = false
		}
		if item.ReceivedQty > 0 {
			started = true
		}
	}
	switch {
	case full:
		return StatusReceived
	case started:
		return StatusPartial
	default:
		return po.Status
	}
}
