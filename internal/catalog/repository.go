package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/storeops/storeops/internal/inventory"
	"github.com/storeops/storeops/internal/shared"
)

// LookupTx implements TxRepository on a caller-owned transaction.
type LookupTx struct {
	tx pgx.Tx
}

// NewLookupTx wraps tx.
func NewLookupTx(tx pgx.Tx) *LookupTx {
	return &LookupTx{tx: tx}
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", shared.ErrNotFound, what)
	}
	return err
}

func (r *LookupTx) GetSupplier(ctx context.Context, storeID, supplierID int64) (Supplier, error) {
	var s Supplier
	err := r.tx.QueryRow(ctx, `SELECT id, store_id, user_id, name FROM suppliers WHERE id=$1 AND store_id=$2`,
		supplierID, storeID).Scan(&s.ID, &s.StoreID, &s.UserID, &s.Name)
	if err != nil {
		return Supplier{}, notFound(err, "supplier")
	}
	return s, nil
}

func (r *LookupTx) GetSupplierByUser(ctx context.Context, storeID, userID int64) (Supplier, error) {
	var s Supplier
	err := r.tx.QueryRow(ctx, `SELECT id, store_id, user_id, name FROM suppliers WHERE store_id=$1 AND user_id=$2`,
		storeID, userID).Scan(&s.ID, &s.StoreID, &s.UserID, &s.Name)
	if err != nil {
		return Supplier{}, notFound(err, "supplier")
	}
	return s, nil
}

func (r *LookupTx) FindCategoryByName(ctx context.Context, storeID int64, name string) (Category, error) {
	var c Category
	err := r.tx.QueryRow(ctx, `SELECT id, store_id, name, slug, created_at FROM categories
WHERE store_id=$1 AND lower(name)=lower($2) ORDER BY id LIMIT 1`, storeID, name).
		Scan(&c.ID, &c.StoreID, &c.Name, &c.Slug, &c.CreatedAt)
	if err != nil {
		return Category{}, notFound(err, "category")
	}
	return c, nil
}

func (r *LookupTx) SlugTaken(ctx context.Context, storeID int64, slug string) (bool, error) {
	var taken bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE store_id=$1 AND slug=$2)`,
		storeID, slug).Scan(&taken)
	return taken, err
}

func (r *LookupTx) InsertCategory(ctx context.Context, category Category) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO categories (store_id, name, slug, created_at) VALUES ($1,$2,$3,$4) RETURNING id`,
		category.StoreID, category.Name, category.Slug, category.CreatedAt).Scan(&id)
	return id, err
}

func (r *LookupTx) FindProductBySKUForUpdate(ctx context.Context, storeID int64, sku string) (inventory.Product, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+inventory.ProductColumns()+` FROM products WHERE store_id=$1 AND sku=$2 FOR UPDATE`,
		storeID, sku)
	return inventory.ScanProduct(row)
}

func (r *LookupTx) InsertProduct(ctx context.Context, p inventory.Product) (int64, error) {
	var category *int64
	if p.CategoryID != 0 {
		category = &p.CategoryID
	}
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO products
(store_id, sku, title, description, category_id, selling_price, stock, cost_price, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		p.StoreID, p.SKU, p.Title, p.Description, category, p.SellingPrice, p.Stock, p.CostPrice, p.CreatedAt, p.UpdatedAt).Scan(&id)
	return id, err
}
