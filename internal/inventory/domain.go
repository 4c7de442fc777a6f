package inventory

import (
	"time"

	"github.com/storeops/storeops/internal/shared"
)

// RefType identifies the document that produced a stock movement.
type RefType string

const (
	// RefTypePOReceipt records goods received against a purchase order.
	RefTypePOReceipt RefType = "PO_RECEIPT"
	// RefTypeSale records stock leaving through a sale.
	RefTypeSale RefType = "SALE"
	// RefTypeAdjustment records a manual correction.
	RefTypeAdjustment RefType = "ADJUSTMENT"
)

// Product is the stock-bearing catalogue item of a store. Money fields are minor units.
type Product struct {
	ID           int64
	StoreID      int64
	SKU          string
	Title        string
	Description  string
	CategoryID   int64
	SellingPrice int64
	Stock        int64
	// CostPrice stays nil until the first receipt.
	CostPrice *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LedgerEntry is one immutable stock movement.
type LedgerEntry struct {
	ID           int64     `json:"id"`
	StoreID      int64     `json:"storeId"`
	ProductID    int64     `json:"productId"`
	RefType      RefType   `json:"refType"`
	RefID        int64     `json:"refId"`
	Delta        int64     `json:"delta"`
	UnitCost     *int64    `json:"unitCost,omitempty"`
	BalanceAfter int64     `json:"balanceAfter"`
	CostAfter    *int64    `json:"costAfter,omitempty"`
	CreatedBy    int64     `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Receipt describes goods arriving for one product.
type Receipt struct {
	StoreID   int64
	ProductID int64
	Qty       int64
	UnitCost  int64
	RefType   RefType
	RefID     int64
	ActorID   int64
}

// LedgerFilter selects ledger rows of a store, optionally for one product.
type LedgerFilter struct {
	StoreID   int64
	ProductID int64
	Page      shared.Page
}

// ReconcileResult compares stored stock with the sum of ledger deltas.
type ReconcileResult struct {
	StoreID   int64 `json:"storeId"`
	ProductID int64 `json:"productId"`
	Stock     int64 `json:"stock"`
	LedgerSum int64 `json:"ledgerSum"`
	Drift     int64 `json:"drift"`
}

// Balanced reports whether stock matches the ledger.
func (r ReconcileResult) Balanced() bool {
	return r.Drift == 0
}
