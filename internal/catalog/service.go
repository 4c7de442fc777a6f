package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storeops/storeops/internal/inventory"
	"github.com/storeops/storeops/internal/shared"
)

// maxSlugAttempts bounds the -2, -3, ... suffix search.
const maxSlugAttempts = 1000

// TxRepository exposes catalogue lookups and inserts on an open transaction.
type TxRepository interface {
	GetSupplier(ctx context.Context, storeID, supplierID int64) (Supplier, error)
	GetSupplierByUser(ctx context.Context, storeID, userID int64) (Supplier, error)
	FindCategoryByName(ctx context.Context, storeID int64, name string) (Category, error)
	SlugTaken(ctx context.Context, storeID int64, slug string) (bool, error)
	InsertCategory(ctx context.Context, category Category) (int64, error)
	FindProductBySKUForUpdate(ctx context.Context, storeID int64, sku string) (inventory.Product, error)
	InsertProduct(ctx context.Context, product inventory.Product) (int64, error)
}

// FindOrCreateCategory returns the store's category named name, creating it with
// a unique slug when missing. Names match case-insensitively.
func FindOrCreateCategory(ctx context.Context, tx TxRepository, storeID int64, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name required", shared.ErrValidation)
	}
	existing, err := tx.FindCategoryByName(ctx, storeID, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Category{}, err
	}

	slug, err := uniqueSlug(ctx, tx, storeID, Slugify(name))
	if err != nil {
		return Category{}, err
	}
	category := Category{StoreID: storeID, Name: name, Slug: slug, CreatedAt: time.Now().UTC()}
	id, err := tx.InsertCategory(ctx, category)
	if err != nil {
		return Category{}, fmt.Errorf("catalog: insert category: %w", err)
	}
	category.ID = id
	return category, nil
}

func uniqueSlug(ctx context.Context, tx TxRepository, storeID int64, base string) (string, error) {
	for n := 1; n <= maxSlugAttempts; n++ {
		candidate := suffixed(base, n)
		taken, err := tx.SlugTaken(ctx, storeID, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("catalog: no free slug for %q", base)
}

// FindOrCreateProduct returns the product with spec.SKU, locked for update, or
// inserts a new one with zero stock. created reports which happened.
func FindOrCreateProduct(ctx context.Context, tx TxRepository, spec ProductSpec) (inventory.Product, bool, error) {
	spec.SKU = strings.TrimSpace(spec.SKU)
	if spec.SKU == "" {
		return inventory.Product{}, false, fmt.Errorf("%w: sku required", shared.ErrValidation)
	}
	existing, err := tx.FindProductBySKUForUpdate(ctx, spec.StoreID, spec.SKU)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return inventory.Product{}, false, err
	}

	now := time.Now().UTC()
	product := inventory.Product{
		StoreID:      spec.StoreID,
		SKU:          spec.SKU,
		Title:        strings.TrimSpace(spec.Title),
		Description:  spec.Description,
		CategoryID:   spec.CategoryID,
		SellingPrice: DefaultSellingPrice(spec.UnitCost, spec.Price),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := tx.InsertProduct(ctx, product)
	if err != nil {
		return inventory.Product{}, false, fmt.Errorf("catalog: insert product: %w", err)
	}
	product.ID = id
	return product, true, nil
}
