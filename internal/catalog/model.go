package catalog

import "time"

// Category groups products of a store. Slug is unique per store.
type Category struct {
	ID        int64     `json:"id"`
	StoreID   int64     `json:"storeId"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

// Supplier is a vendor of a store, optionally linked to a supplier user.
type Supplier struct {
	ID      int64  `json:"id"`
	StoreID int64  `json:"storeId"`
	UserID  *int64 `json:"userId,omitempty"`
	Name    string `json:"name"`
}

// LinkedTo reports whether userID operates this supplier.
func (s Supplier) LinkedTo(userID int64) bool {
	return s.UserID != nil && *s.UserID == userID
}

// ProductSpec describes a product to find by SKU or create.
type ProductSpec struct {
	StoreID     int64
	CategoryID  int64
	SKU         string
	Title       string
	Description string
	UnitCost    int64
	// Price overrides the default selling price when set.
	Price *int64
}
