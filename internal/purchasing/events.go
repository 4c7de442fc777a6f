package purchasing

import "time"

// ReceivedLine is one product movement caused by a receipt.
type ReceivedLine struct {
	ProductID int64
	Qty       int64
	UnitCost  int64
}

// StockReceivedEvent is published after a receipt commits.
type StockReceivedEvent struct {
	StoreID         int64
	PurchaseOrderID int64
	Code            string
	Status          Status
	Lines           []ReceivedLine
	ReceivedAt      time.Time
}
