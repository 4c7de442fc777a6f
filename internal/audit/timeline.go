package audit

import "time"

// Entry is one immutable record of a purchase order status change.
type Entry struct {
	ID              int64     `json:"id"`
	PurchaseOrderID int64     `json:"purchaseOrderId"`
	StoreID         int64     `json:"storeId"`
	ActorID         int64     `json:"actorId"`
	Action          string    `json:"action"`
	PreviousStatus  string    `json:"previousStatus,omitempty"`
	NewStatus       string    `json:"newStatus"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// HistoryFilter selects the entries of one purchase order.
type HistoryFilter struct {
	StoreID         int64
	PurchaseOrderID int64
	Offset          int
	Limit           int
}
