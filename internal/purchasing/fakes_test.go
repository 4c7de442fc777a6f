package purchasing

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/storeops/storeops/internal/audit"
	"github.com/storeops/storeops/internal/catalog"
	"github.com/storeops/storeops/internal/inventory"
	"github.com/storeops/storeops/internal/shared"
)

// memoryProcRepo serialises transactions with one mutex, standing in for row
// locks, and restores a snapshot when the callback fails.
type memoryProcRepo struct {
	mu         sync.Mutex
	pos        map[int64]PurchaseOrder
	products   map[int64]inventory.Product
	suppliers  []catalog.Supplier
	categories []catalog.Category
	ledger     []inventory.LedgerEntry
	audit      []audit.Entry
	idem       map[string]bool
	nextID     int64

	insertPOAttempts int
	failInsertPO     error
}

type memoryProcTx struct {
	repo *memoryProcRepo
}

type snapshot struct {
	pos        map[int64]PurchaseOrder
	products   map[int64]inventory.Product
	categories []catalog.Category
	ledger     []inventory.LedgerEntry
	audit      []audit.Entry
	idem       map[string]bool
	nextID     int64
}

func newMemoryProcRepo() *memoryProcRepo {
	return &memoryProcRepo{
		pos:      make(map[int64]PurchaseOrder),
		products: make(map[int64]inventory.Product),
		idem:     make(map[string]bool),
		nextID:   1000,
	}
}

func (r *memoryProcRepo) addSupplier(s catalog.Supplier) {
	r.suppliers = append(r.suppliers, s)
}

func (r *memoryProcRepo) addProduct(p inventory.Product) {
	r.products[p.ID] = p
}

func clonePO(po PurchaseOrder) PurchaseOrder {
	po.Items = slices.Clone(po.Items)
	return po
}

func (r *memoryProcRepo) snapshot() snapshot {
	pos := make(map[int64]PurchaseOrder, len(r.pos))
	for id, po := range r.pos {
		pos[id] = clonePO(po)
	}
	return snapshot{
		pos:        pos,
		products:   maps.Clone(r.products),
		categories: slices.Clone(r.categories),
		ledger:     slices.Clone(r.ledger),
		audit:      slices.Clone(r.audit),
		idem:       maps.Clone(r.idem),
		nextID:     r.nextID,
	}
}

func (r *memoryProcRepo) restore(s snapshot) {
	r.pos, r.products, r.categories = s.pos, s.products, s.categories
	r.ledger, r.audit, r.idem, r.nextID = s.ledger, s.audit, s.idem, s.nextID
}

func (r *memoryProcRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snapshot()
	if err := fn(ctx, &memoryProcTx{repo: r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memoryProcRepo) GetPurchaseOrder(ctx context.Context, storeID, id int64) (PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	po, ok := r.pos[id]
	if !ok || po.StoreID != storeID {
		return PurchaseOrder{}, shared.ErrNotFound
	}
	return clonePO(po), nil
}

func (r *memoryProcRepo) GetSupplierByUser(ctx context.Context, storeID, userID int64) (catalog.Supplier, error) {
	return (&memoryProcTx{repo: r}).GetSupplierByUser(ctx, storeID, userID)
}

func (r *memoryProcRepo) ListEntries(ctx context.Context, filter audit.HistoryFilter) ([]audit.Entry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []audit.Entry
	for i := len(r.audit) - 1; i >= 0; i-- {
		e := r.audit[i]
		if e.StoreID == filter.StoreID && e.PurchaseOrderID == filter.PurchaseOrderID {
			matched = append(matched, e)
		}
	}
	total := len(matched)
	start := min(filter.Offset, total)
	end := min(start+filter.Limit, total)
	return matched[start:end], total, nil
}

func (r *memoryProcRepo) auditFor(poID int64) []audit.Entry {
	var out []audit.Entry
	for _, e := range r.audit {
		if e.PurchaseOrderID == poID {
			out = append(out, e)
		}
	}
	return out
}

func (r *memoryProcRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (tx *memoryProcTx) GetProductForUpdate(ctx context.Context, storeID, productID int64) (inventory.Product, error) {
	p, ok := tx.repo.products[productID]
	if !ok || p.StoreID != storeID {
		return inventory.Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (tx *memoryProcTx) UpdateProductStock(ctx context.Context, productID, stock, costPrice int64) error {
	p := tx.repo.products[productID]
	p.Stock = stock
	p.CostPrice = &costPrice
	tx.repo.products[productID] = p
	return nil
}

func (tx *memoryProcTx) InsertLedgerEntry(ctx context.Context, entry inventory.LedgerEntry) (int64, error) {
	entry.ID = tx.repo.id()
	tx.repo.ledger = append(tx.repo.ledger, entry)
	return entry.ID, nil
}

func (tx *memoryProcTx) GetSupplier(ctx context.Context, storeID, supplierID int64) (catalog.Supplier, error) {
	for _, s := range tx.repo.suppliers {
		if s.ID == supplierID && s.StoreID == storeID {
			return s, nil
		}
	}
	return catalog.Supplier{}, shared.ErrNotFound
}

func (tx *memoryProcTx) GetSupplierByUser(ctx context.Context, storeID, userID int64) (catalog.Supplier, error) {
	for _, s := range tx.repo.suppliers {
		if s.StoreID == storeID && s.LinkedTo(userID) {
			return s, nil
		}
	}
	return catalog.Supplier{}, shared.ErrNotFound
}

func (tx *memoryProcTx) FindCategoryByName(ctx context.Context, storeID int64, name string) (catalog.Category, error) {
	for _, c := range tx.repo.categories {
		if c.StoreID == storeID && strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return catalog.Category{}, shared.ErrNotFound
}

func (tx *memoryProcTx) SlugTaken(ctx context.Context, storeID int64, slug string) (bool, error) {
	for _, c := range tx.repo.categories {
		if c.StoreID == storeID && c.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryProcTx) InsertCategory(ctx context.Context, category catalog.Category) (int64, error) {
	category.ID = tx.repo.id()
	tx.repo.categories = append(tx.repo.categories, category)
	return category.ID, nil
}

func (tx *memoryProcTx) FindProductBySKUForUpdate(ctx context.Context, storeID int64, sku string) (inventory.Product, error) {
	for _, p := range tx.repo.products {
		if p.StoreID == storeID && p.SKU == sku {
			return p, nil
		}
	}
	return inventory.Product{}, shared.ErrNotFound
}

func (tx *memoryProcTx) InsertProduct(ctx context.Context, product inventory.Product) (int64, error) {
	product.ID = tx.repo.id()
	tx.repo.products[product.ID] = product
	return product.ID, nil
}

func (tx *memoryProcTx) InsertAuditEntry(ctx context.Context, entry audit.Entry) (int64, error) {
	entry.ID = tx.repo.id()
	tx.repo.audit = append(tx.repo.audit, entry)
	return entry.ID, nil
}

func (tx *memoryProcTx) GetPurchaseOrderForUpdate(ctx context.Context, storeID, id int64) (PurchaseOrder, error) {
	po, ok := tx.repo.pos[id]
	if !ok || po.StoreID != storeID {
		return PurchaseOrder{}, shared.ErrNotFound
	}
	return clonePO(po), nil
}

func (tx *memoryProcTx) NextCodeSequence(ctx context.Context, storeID int64, year int) (int64, error) {
	var n int64
	for _, po := range tx.repo.pos {
		if po.StoreID == storeID && po.CreatedAt.Year() == year {
			n++
		}
	}
	return n + 1, nil
}

func (tx *memoryProcTx) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	tx.repo.insertPOAttempts++
	if tx.repo.failInsertPO != nil {
		return 0, tx.repo.failInsertPO
	}
	for _, existing := range tx.repo.pos {
		if existing.Code == po.Code {
			return 0, errDuplicateCode
		}
	}
	po.ID = tx.repo.id()
	po.Items = nil
	tx.repo.pos[po.ID] = po
	return po.ID, nil
}

func (tx *memoryProcTx) InsertItem(ctx context.Context, item Item) (int64, error) {
	po, ok := tx.repo.pos[item.PurchaseOrderID]
	if !ok {
		return 0, errors.New("purchase order missing")
	}
	item.ID = tx.repo.id()
	po.Items = append(po.Items, item)
	tx.repo.pos[po.ID] = po
	return item.ID, nil
}

func (tx *memoryProcTx) UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	stored, ok := tx.repo.pos[po.ID]
	if !ok {
		return shared.ErrNotFound
	}
	items := stored.Items
	stored = clonePO(po)
	stored.Items = items
	tx.repo.pos[po.ID] = stored
	return nil
}

func (tx *memoryProcTx) UpdateItem(ctx context.Context, item Item) error {
	po := tx.repo.pos[item.PurchaseOrderID]
	for i := range po.Items {
		if po.Items[i].ID == item.ID {
			po.Items[i].QuotedCost = item.QuotedCost
			po.Items[i].ReceivedQty = item.ReceivedQty
			tx.repo.pos[po.ID] = po
			return nil
		}
	}
	return shared.ErrNotFound
}

func (tx *memoryProcTx) ProductExists(ctx context.Context, storeID, productID int64) (bool, error) {
	p, ok := tx.repo.products[productID]
	return ok && p.StoreID == storeID, nil
}

func (tx *memoryProcTx) ClaimIdempotencyKey(ctx context.Context, key, module string) error {
	if tx.repo.idem[key] {
		return shared.ErrDuplicateRequest
	}
	tx.repo.idem[key] = true
	return nil
}

type recordingIntegration struct {
	mu     sync.Mutex
	events []StockReceivedEvent
}

func (r *recordingIntegration) HandleStockReceived(ctx context.Context, evt StockReceivedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

type recordingMetrics struct {
	mu          sync.Mutex
	transitions []string
	units       int64
}

func (m *recordingMetrics) RecordTransition(action, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, action+":"+status)
}

func (m *recordingMetrics) AddReceivedUnits(units int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units += units
}
