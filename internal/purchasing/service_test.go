package purchasing

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/storeops/storeops/internal/audit"
	"github.com/storeops/storeops/internal/catalog"
	"github.com/storeops/storeops/internal/inventory"
	"github.com/storeops/storeops/internal/shared"
)

const (
	storeID        = int64(1)
	ownerUserID    = int64(10)
	supplierUserID = int64(20)
	supplierID     = int64(5)
)

var (
	owner    = shared.Actor{UserID: ownerUserID, StoreID: storeID, Role: shared.RoleOwner}
	supplier = shared.Actor{UserID: supplierUserID, StoreID: storeID, Role: shared.RoleSupplier}
)

type fixture struct {
	repo        *memoryProcRepo
	svc         *Service
	integration *recordingIntegration
	metrics     *recordingMetrics
}

func newFixture(t *testing.T, cfg ServiceConfig) fixture {
	t.Helper()
	repo := newMemoryProcRepo()
	linked := supplierUserID
	repo.addSupplier(catalog.Supplier{ID: supplierID, StoreID: storeID, UserID: &linked, Name: "Acme Traders"})
	other := int64(21)
	repo.addSupplier(catalog.Supplier{ID: 6, StoreID: storeID, UserID: &other, Name: "Other Co"})
	repo.addSupplier(catalog.Supplier{ID: 7, StoreID: 2, Name: "Foreign"})
	repo.addProduct(inventory.Product{ID: 100, StoreID: storeID, SKU: "ALM-1", Title: "Almonds"})
	repo.addProduct(inventory.Product{ID: 101, StoreID: storeID, SKU: "CSH-1", Title: "Cashews"})
	repo.addProduct(inventory.Product{ID: 200, StoreID: 2, SKU: "ALM-1", Title: "Almonds"})

	integration := &recordingIntegration{}
	metrics := &recordingMetrics{}
	if cfg.Integration == nil {
		cfg.Integration = integration
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics
	}
	svc := NewService(repo, audit.NewService(repo), cfg)
	svc.setClock(func() time.Time { return time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC) })
	return fixture{repo: repo, svc: svc, integration: integration, metrics: metrics}
}

func (f fixture) draft(t *testing.T, lines ...LineInput) PurchaseOrder {
	t.Helper()
	if len(lines) == 0 {
		lines = []LineInput{{ProductID: 100, Qty: 10}}
	}
	po, err := f.svc.Create(context.Background(), owner, CreateInput{SupplierID: supplierID, Items: lines})
	require.NoError(t, err)
	return po
}

func (f fixture) stored(id int64) PurchaseOrder {
	return f.repo.pos[id]
}

func TestCreateDraft(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	po := f.draft(t, LineInput{ProductID: 100, Qty: 2}, LineInput{ProductID: 101, Qty: 3})

	require.Equal(t, StatusDraft, po.Status)
	require.Regexp(t, regexp.MustCompile(`^PO-2024-0001-[0-9A-F]{4}$`), po.Code)
	require.Len(t, po.Items, 2)
	for _, item := range po.Items {
		require.Zero(t, item.Cost)
		require.Nil(t, item.QuotedCost)
		require.Zero(t, item.ReceivedQty)
	}
	require.Zero(t, po.Subtotal)
	require.Zero(t, po.TaxTotal)
	require.Zero(t, po.Total)

	entries := f.repo.auditFor(po.ID)
	require.Len(t, entries, 1)
	require.Equal(t, "create", entries[0].Action)
	require.Empty(t, entries[0].PreviousStatus)
	require.Equal(t, "DRAFT", entries[0].NewStatus)

	second := f.draft(t)
	require.Contains(t, second.Code, "PO-2024-0002-")
}

func TestCreateRejectsBadInput(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, owner, CreateInput{SupplierID: supplierID})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.Create(ctx, owner, CreateInput{SupplierID: supplierID, Items: []LineInput{{ProductID: 100, Qty: 0}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.Create(ctx, owner, CreateInput{SupplierID: 7, Items: []LineInput{{ProductID: 100, Qty: 1}}})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.Create(ctx, owner, CreateInput{SupplierID: supplierID, Items: []LineInput{{ProductID: 200, Qty: 1}}})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.Create(ctx, supplier, CreateInput{SupplierID: supplierID, Items: []LineInput{{ProductID: 100, Qty: 1}}})
	require.ErrorIs(t, err, shared.ErrForbidden)

	require.Empty(t, f.repo.pos)
	require.Empty(t, f.repo.audit)
}

func TestCodeCollisionRetries(t *testing.T) {
	picks := []string{"AAAA", "AAAA", "BBBB"}
	f := newFixture(t, ServiceConfig{Codes: CodeGenerator{Disambiguator: func() string {
		next := picks[0]
		if len(picks) > 1 {
			picks = picks[1:]
		}
		return next
	}}})
	f.repo.pos[1] = PurchaseOrder{ID: 1, StoreID: 99, Code: "PO-2024-0001-AAAA"}

	po := f.draft(t)
	require.Equal(t, "PO-2024-0001-BBBB", po.Code)
	require.Equal(t, 3, f.repo.insertPOAttempts)
}

func TestCodeGenerationExhausted(t *testing.T) {
	f := newFixture(t, ServiceConfig{Codes: CodeGenerator{MaxAttempts: 4, Disambiguator: func() string { return "ZZZZ" }}})
	f.repo.pos[1] = PurchaseOrder{ID: 1, StoreID: 99, Code: "PO-2024-0001-ZZZZ"}

	_, err := f.svc.Create(context.Background(), owner, CreateInput{SupplierID: supplierID, Items: []LineInput{{ProductID: 100, Qty: 1}}})
	require.ErrorIs(t, err, shared.ErrCodeGenerationExhausted)
	require.Equal(t, 4, f.repo.insertPOAttempts)
	require.Len(t, f.repo.pos, 1)
	require.Empty(t, f.repo.audit)
}

func TestQuotationTotals(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	po := f.draft(t, LineInput{ProductID: 100, Qty: 2}, LineInput{ProductID: 101, Qty: 3})

	_, err := f.svc.RequestQuotation(ctx, owner, po.ID, NoteInput{})
	require.NoError(t, err)

	quoted, err := f.svc.SubmitQuotation(ctx, supplier, po.ID, QuoteInput{Items: []QuoteLine{
		{ItemID: po.Items[0].ID, UnitCost: 100},
		{ItemID: po.Items[1].ID, UnitCost: 200},
	}})
	require.NoError(t, err)
	require.Equal(t, StatusQuotationSubmitted, quoted.Status)
	require.Equal(t, int64(800), quoted.Subtotal)
	require.Equal(t, int64(144), quoted.TaxTotal)
	require.Equal(t, int64(944), quoted.Total)
	require.NotNil(t, quoted.QuotationSubmittedAt)
	require.Equal(t, int64(200), *f.stored(po.ID).Items[1].QuotedCost)
}

func TestQuotationRevisionLoop(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	po := f.draft(t, LineInput{ProductID: 100, Qty: 4})
	item := po.Items[0].ID

	_, err := f.svc.RequestQuotation(ctx, owner, po.ID, NoteInput{})
	require.NoError(t, err)
	_, err = f.svc.SubmitQuotation(ctx, supplier, po.ID, QuoteInput{Items: []QuoteLine{{ItemID: item, UnitCost: 250}}})
	require.NoError(t, err)

	revised, err := f.svc.RequestRevision(ctx, owner, po.ID, NoteInput{Notes: "too expensive"})
	require.NoError(t, err)
	require.Equal(t, StatusQuotationRevisionRequested, revised.Status)
	require.Equal(t, "too expensive", revised.QuotationNotes)

	again, err := f.svc.RequestRevision(ctx, owner, po.ID, NoteInput{Notes: "still waiting"})
	require.NoError(t, err)
	require.Equal(t, "still waiting", again.QuotationNotes)

	resubmitted, err := f.svc.SubmitQuotation(ctx, supplier, po.ID, QuoteInput{Items: []QuoteLine{{ItemID: item, UnitCost: 200}}})
	require.NoError(t, err)
	require.Empty(t, resubmitted.QuotationNotes)
	require.Equal(t, int64(800), resubmitted.Subtotal)

	approved, err := f.svc.ApproveQuotation(ctx, owner, po.ID, NoteInput{})
	require.NoError(t, err)
	require.Equal(t, StatusQuotationApproved, approved.Status)
	require.NotNil(t, approved.QuotationApprovedAt)

	shipped, err := f.svc.Ship(ctx, supplier, po.ID, NoteInput{})
	require.NoError(t, err)
	require.Equal(t, StatusShipped, shipped.Status)

	received, err := f.svc.Confirm(ctx, owner, po.ID, ConfirmInput{Accepted: true})
	require.NoError(t, err)
	require.Equal(t, StatusReceived, received.Status)
	require.Equal(t, int64(4), received.Items[0].ReceivedQty)
	require.Equal(t, int64(4), f.repo.products[100].Stock)
	require.Equal(t, int64(200), *f.repo.products[100].CostPrice)
}

func TestSubmitQuotationSkipsNonPositiveCosts(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	po := f.draft(t, LineInput{ProductID: 100, Qty: 2}, LineInput{ProductID: 101, Qty: 3})
	_, err := f.svc.RequestQuotation(ctx, owner, po.ID, NoteInput{})
	require.NoError(t, err)

	_, err = f.svc.SubmitQuotation(ctx, supplier, po.ID, QuoteInput{Items: []QuoteLine{{ItemID: 424242, UnitCost: 5}}})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, StatusQuotationRequested, f.stored(po.ID).Status)

	quoted, err := f.svc.SubmitQuotation(ctx, supplier, po.ID, QuoteInput{Items: []QuoteLine{
		{ItemID: po.Items[0].ID, UnitCost: 100},
		{ItemID: po.Items[1].ID, UnitCost: 0},
	}})
	require.NoError(t, err)
	require.Equal(t, StatusQuotationSubmitted, quoted.Status)
	require.Equal(t, int64(100), *quoted.Items[0].QuotedCost)
	require.Nil(t, quoted.Items[1].QuotedCost)
	require.Equal(t, int64(200), quoted.Subtotal)
	require.Equal(t, int64(36), quoted.TaxTotal)

	_, err = f.svc.RequestRevision(ctx, owner, po.ID, NoteInput{Notes: "second line"})
	require.NoError(t, err)
	revised, err := f.svc.SubmitQuotation(ctx, supplier, po.ID, QuoteInput{Items: []QuoteLine{
		{ItemID: po.Items[0].ID, UnitCost: -5},
		{ItemID: po.Items[1].ID, UnitCost: 200},
	}})
	require.NoError(t, err)
	require.Equal(t, int64(100), *revised.Items[0].QuotedCost)
	require.Equal(t, int64(200), *revised.Items[1].QuotedCost)
	require.Equal(t, int64(800), revised.Subtotal)
}

func TestActorChecks(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	po := f.draft(t)
	_, err := f.svc.RequestQuotation(ctx, owner, po.ID, NoteInput{})
	require.NoError(t, err)
	quote := QuoteInput{Items: []QuoteLine{{ItemID: po.Items[0].ID, UnitCost: 10}}}

	_, err = f.svc.SubmitQuotation(ctx, owner, po.ID, quote)
	require.ErrorIs(t, err, shared.ErrForbidden)

	otherSupplier := shared.Actor{UserID: 21, StoreID: storeID, Role: shared.RoleSupplier}
	_, err = f.svc.SubmitQuotation(ctx, otherSupplier, po.ID, quote)
	require.ErrorIs(t, err, shared.ErrForbidden)

	stranger := shared.Actor{UserID: 99, StoreID: storeID, Role: shared.RoleSupplier}
	_, err = f.svc.SubmitQuotation(ctx, stranger, po.ID, quote)
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = f.svc.ApproveQuotation(ctx, supplier, po.ID, NoteInput{})
	require.ErrorIs(t, err, shared.ErrForbidden)

	foreignOwner := shared.Actor{UserID: ownerUserID, StoreID: 2, Role: shared.RoleOwner}
	_, err = f.svc.Cancel(ctx, foreignOwner, po.ID, NoteInput{})
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.Equal(t, StatusQuotationRequested, f.stored(po.ID).Status)
}

func TestIllegalTransitionLeavesOrderUntouched(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	po := f.draft(t)
	before := f.stored(po.ID)

	_, err := f.svc.Ship(ctx, supplier, po.ID, NoteInput{})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = f.svc.ApproveQuotation(ctx, owner, po.ID, NoteInput{})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = f.svc.Confirm(ctx, owner, po.ID, ConfirmInput{Accepted: true})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = f.svc.Close(ctx, owner, po.ID, NoteInput{})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	require.Equal(t, before, f.stored(po.ID))
	require.Len(t, f.repo.auditFor(po.ID), 1)
}

func TestSendShipConfirmRejected(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	po := f.draft(t)

	sent, err := f.svc.Send(ctx, owner, po.ID, NoteInput{})
	require.NoError(t, err)
	require.Equal(t, StatusSent, sent.Status)
	require.NotNil(t, sent.PlacedAt)

	_, err = f.svc.Ship(ctx, supplier, po.ID, NoteInput{})
	require.NoError(t, err)

	rejected, err := f.svc.Confirm(ctx, owner, po.ID, ConfirmInput{Accepted: false, Notes: "damaged"})
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Zero(t, f.repo.products[100].Stock)
	require.Empty(t, f.repo.ledger)

	_, err = f.svc.ReceivePartial(ctx, owner, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: po.Items[0].ID, Qty: 1}}})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	closed, err := f.svc.Close(ctx, owner, po.ID, NoteInput{})
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	po := f.draft(t)

	cancelled, err := f.svc.Cancel(ctx, owner, po.ID, NoteInput{Notes: "no longer needed"})
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = f.svc.ReceivePartial(ctx, owner, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: po.Items[0].ID, Qty: 1}}})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = f.svc.Send(ctx, owner, po.ID, NoteInput{})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestPartialThenFullReceipt(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	po := f.draft(t)
	item := po.Items[0].ID

	partial, err := f.svc.ReceivePartial(ctx, owner, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: item, Qty: 4}}})
	require.NoError(t, err)
	require.Equal(t, StatusPartial, partial.Status)
	require.Equal(t, int64(4), f.repo.products[100].Stock)

	full, err := f.svc.ReceivePartial(ctx, owner, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: item, Qty: 6}}})
	require.NoError(t, err)
	require.Equal(t, StatusReceived, full.Status)
	require.NotNil(t, full.ReceivedAt)
	require.Equal(t, int64(10), f.repo.products[100].Stock)

	_, err = f.svc.ReceivePartial(ctx, owner, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: item, Qty: 1}}})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
	require.Equal(t, int64(10), f.stored(po.ID).Items[0].ReceivedQty)
	require.Equal(t, int64(10), f.repo.products[100].Stock)

	entries := f.repo.auditFor(po.ID)
	require.Len(t, entries, 3)
	require.Equal(t, "PARTIAL", entries[1].NewStatus)
	require.Equal(t, "DRAFT", entries[1].PreviousStatus)
	require.Equal(t, "RECEIVED", entries[2].NewStatus)
	require.Equal(t, "PARTIAL", entries[2].PreviousStatus)

	require.Equal(t, int64(10), f.metrics.units)
	require.Len(t, f.integration.events, 2)
	require.Equal(t, StatusReceived, f.integration.events[1].Status)
}

func TestReceiptWithoutStatusChangeIsAudited(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	po := f.draft(t)
	item := po.Items[0].ID

	_, err := f.svc.ReceivePartial(ctx, owner, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: item, Qty: 4}}})
	require.NoError(t, err)
	again, err := f.svc.ReceivePartial(ctx, owner, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: item, Qty: 3}}, Notes: "second pallet"})
	require.NoError(t, err)
	require.Equal(t, StatusPartial, again.Status)
	_, err = f.svc.ReceivePartial(ctx, owner, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: item, Qty: 0}}})
	require.NoError(t, err)

	entries := f.repo.auditFor(po.ID)
	require.Len(t, entries, 3)
	last := entries[2]
	require.Equal(t, "receive", last.Action)
	require.Equal(t, "PARTIAL", last.PreviousStatus)
	require.Equal(t, "PARTIAL", last.NewStatus)
	require.Equal(t, "received 3 units: second pallet", last.Notes)
	require.Len(t, f.metrics.transitions, 2)
	require.Equal(t, int64(7), f.repo.products[100].Stock)
}

func TestReceiveUsesQuotedCost(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	cost := int64(500)
	f.repo.products[100] = inventory.Product{ID: 100, StoreID: storeID, SKU: "ALM-1", Stock: 10, CostPrice: &cost}
	po := f.draft(t, LineInput{ProductID: 100, Qty: 2})

	_, err := f.svc.RequestQuotation(ctx, owner, po.ID, NoteInput{})
	require.NoError(t, err)
	_, err = f.svc.SubmitQuotation(ctx, supplier, po.ID, QuoteInput{Items: []QuoteLine{{ItemID: po.Items[0].ID, UnitCost: 600}}})
	require.NoError(t, err)

	_, err = f.svc.ReceivePartial(ctx, owner, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: po.Items[0].ID, Qty: 2}}})
	require.NoError(t, err)

	product := f.repo.products[100]
	require.Equal(t, int64(12), product.Stock)
	require.Equal(t, int64(517), *product.CostPrice)

	require.Len(t, f.repo.ledger, 1)
	entry := f.repo.ledger[0]
	require.Equal(t, inventory.RefTypePOReceipt, entry.RefType)
	require.Equal(t, po.ID, entry.RefID)
	require.Equal(t, int64(2), entry.Delta)
	require.Equal(t, int64(600), *entry.UnitCost)
}

func TestReceiveRejectsBadDeltas(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	po := f.draft(t, LineInput{ProductID: 100, Qty: 5}, LineInput{ProductID: 101, Qty: 5})
	first, second := po.Items[0].ID, po.Items[1].ID

	_, err := f.svc.ReceivePartial(ctx, owner, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: first, Qty: 2}, {ItemID: second, Qty: -1}}})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)

	_, err = f.svc.ReceivePartial(ctx, owner, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: first, Qty: 2}, {ItemID: 777, Qty: 1}}})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.ReceivePartial(ctx, owner, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: first, Qty: 3}, {ItemID: first, Qty: 3}}})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)

	_, err = f.svc.ReceivePartial(ctx, supplier, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: first, Qty: 1}}})
	require.ErrorIs(t, err, shared.ErrForbidden)

	require.Empty(t, f.repo.ledger)
	require.Zero(t, f.repo.products[100].Stock)
	require.Equal(t, StatusDraft, f.stored(po.ID).Status)

	unchanged, err := f.svc.ReceivePartial(ctx, owner, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: first, Qty: 0}}})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, unchanged.Status)
	require.Len(t, f.repo.auditFor(po.ID), 1)
	require.Empty(t, f.integration.events)
}

func TestReceiveMultipleProductsLocksInOrder(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	po := f.draft(t, LineInput{ProductID: 101, Qty: 1}, LineInput{ProductID: 100, Qty: 1})

	_, err := f.svc.ReceivePartial(ctx, owner, po.ID, ReceiveInput{Items: []ReceiveLine{
		{ItemID: po.Items[0].ID, Qty: 1},
		{ItemID: po.Items[1].ID, Qty: 1},
	}})
	require.NoError(t, err)
	require.Len(t, f.repo.ledger, 2)
	require.Equal(t, int64(100), f.repo.ledger[0].ProductID)
	require.Equal(t, int64(101), f.repo.ledger[1].ProductID)
}

func TestConcurrentReceiptsNeverOverReceive(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	po := f.draft(t)
	item := po.Items[0].ID

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.ReceivePartial(context.Background(), owner, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: item, Qty: 6}}})
		}()
	}
	wg.Wait()

	var ok, invalid int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, shared.ErrInvalidQuantity):
			invalid++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, invalid)
	require.Equal(t, int64(6), f.stored(po.ID).Items[0].ReceivedQty)
	require.Equal(t, int64(6), f.repo.products[100].Stock)
}

func TestReceiveIdempotencyKey(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	po := f.draft(t)
	input := ReceiveInput{IdempotencyKey: "grn-77", Items: []ReceiveLine{{ItemID: po.Items[0].ID, Qty: 3}}}

	_, err := f.svc.ReceivePartial(ctx, owner, po.ID, input)
	require.NoError(t, err)
	_, err = f.svc.ReceivePartial(ctx, owner, po.ID, input)
	require.ErrorIs(t, err, shared.ErrDuplicateRequest)
	require.Equal(t, int64(3), f.repo.products[100].Stock)

	failing := ReceiveInput{IdempotencyKey: "grn-78", Items: []ReceiveLine{{ItemID: po.Items[0].ID, Qty: 50}}}
	_, err = f.svc.ReceivePartial(ctx, owner, po.ID, failing)
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
	failing.Items[0].Qty = 1
	_, err = f.svc.ReceivePartial(ctx, owner, po.ID, failing)
	require.NoError(t, err)
}

func TestReceiveWithRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	locker := shared.NewRedisLocker(rdb, 200*time.Millisecond)
	f := newFixture(t, ServiceConfig{Locker: locker})
	ctx := context.Background()
	po := f.draft(t)
	line := ReceiveInput{Items: []ReceiveLine{{ItemID: po.Items[0].ID, Qty: 1}}}

	_, err := f.svc.ReceivePartial(ctx, owner, po.ID, line)
	require.NoError(t, err)
	require.False(t, mr.Exists(shared.PurchaseOrderLockKey(storeID, po.ID)))

	release, err := shared.NewRedisLocker(rdb, time.Minute).Acquire(ctx, shared.PurchaseOrderLockKey(storeID, po.ID))
	require.NoError(t, err)
	_, err = f.svc.ReceivePartial(ctx, owner, po.ID, line)
	require.ErrorIs(t, err, shared.ErrLockBusy)
	require.NoError(t, release(ctx))

	_, err = f.svc.ReceivePartial(ctx, owner, po.ID, line)
	require.NoError(t, err)
	require.Equal(t, int64(2), f.repo.products[100].Stock)
}

func TestEveryTransitionWritesOneAuditEntry(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	po := f.draft(t, LineInput{ProductID: 100, Qty: 3})
	item := po.Items[0].ID

	steps := []func() (PurchaseOrder, error){
		func() (PurchaseOrder, error) { return f.svc.RequestQuotation(ctx, owner, po.ID, NoteInput{}) },
		func() (PurchaseOrder, error) {
			return f.svc.SubmitQuotation(ctx, supplier, po.ID, QuoteInput{Items: []QuoteLine{{ItemID: item, UnitCost: 90}}})
		},
		func() (PurchaseOrder, error) { return f.svc.RequestRevision(ctx, owner, po.ID, NoteInput{Notes: "cheaper"}) },
		func() (PurchaseOrder, error) {
			return f.svc.SubmitQuotation(ctx, supplier, po.ID, QuoteInput{Items: []QuoteLine{{ItemID: item, UnitCost: 80}}})
		},
		func() (PurchaseOrder, error) { return f.svc.ApproveQuotation(ctx, owner, po.ID, NoteInput{}) },
		func() (PurchaseOrder, error) { return f.svc.Ship(ctx, supplier, po.ID, NoteInput{}) },
		func() (PurchaseOrder, error) { return f.svc.Confirm(ctx, owner, po.ID, ConfirmInput{Accepted: true}) },
		func() (PurchaseOrder, error) { return f.svc.Close(ctx, owner, po.ID, NoteInput{}) },
	}
	for _, step := range steps {
		_, err := step()
		require.NoError(t, err)
	}

	want := [][2]string{
		{"", "DRAFT"},
		{"DRAFT", "QUOTATION_REQUESTED"},
		{"QUOTATION_REQUESTED", "QUOTATION_SUBMITTED"},
		{"QUOTATION_SUBMITTED", "QUOTATION_REVISION_REQUESTED"},
		{"QUOTATION_REVISION_REQUESTED", "QUOTATION_SUBMITTED"},
		{"QUOTATION_SUBMITTED", "QUOTATION_APPROVED"},
		{"QUOTATION_APPROVED", "SHIPPED"},
		{"SHIPPED", "RECEIVED"},
		{"RECEIVED", "CLOSED"},
	}
	entries := f.repo.auditFor(po.ID)
	require.Len(t, entries, len(want))
	for i, pair := range want {
		require.Equal(t, pair[0], entries[i].PreviousStatus, "entry %d", i)
		require.Equal(t, pair[1], entries[i].NewStatus, "entry %d", i)
		require.Equal(t, storeID, entries[i].StoreID)
	}
	require.Equal(t, "cheaper", entries[3].Notes)
	require.Equal(t, "confirm", entries[7].Action)
	require.Equal(t, int64(80), *f.repo.products[100].CostPrice)
	require.Len(t, f.metrics.transitions, len(want))
}

func TestRevisionRequestWhileRevisingIsAudited(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	po := f.draft(t)
	_, err := f.svc.RequestQuotation(ctx, owner, po.ID, NoteInput{})
	require.NoError(t, err)
	_, err = f.svc.SubmitQuotation(ctx, supplier, po.ID, QuoteInput{Items: []QuoteLine{{ItemID: po.Items[0].ID, UnitCost: 10}}})
	require.NoError(t, err)
	_, err = f.svc.RequestRevision(ctx, owner, po.ID, NoteInput{Notes: "one"})
	require.NoError(t, err)
	_, err = f.svc.RequestRevision(ctx, owner, po.ID, NoteInput{Notes: "two"})
	require.NoError(t, err)

	// A repeated revision request keeps the status, so only the first is audited.
	require.Len(t, f.repo.auditFor(po.ID), 4)
	require.Equal(t, "two", f.stored(po.ID).QuotationNotes)
}

func TestGetAndHistoryVisibility(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	po := f.draft(t)
	_, err := f.svc.Send(ctx, owner, po.ID, NoteInput{})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, supplier, po.ID)
	require.NoError(t, err)
	require.Equal(t, po.Code, got.Code)
	require.Len(t, got.Items, 1)

	_, err = f.svc.Get(ctx, shared.Actor{UserID: 21, StoreID: storeID, Role: shared.RoleSupplier}, po.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = f.svc.Get(ctx, shared.Actor{UserID: ownerUserID, StoreID: 2, Role: shared.RoleOwner}, po.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	history, err := f.svc.History(ctx, owner, po.ID, shared.Page{})
	require.NoError(t, err)
	require.Equal(t, 2, history.Total)
	require.Equal(t, "SENT", history.Items[0].NewStatus)
	require.Equal(t, "DRAFT", history.Items[1].NewStatus)
}

func TestBulkIntake(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	cost := int64(1000)
	f.repo.products[100] = inventory.Product{ID: 100, StoreID: storeID, SKU: "ALM-1", Title: "Almonds", Stock: 2, CostPrice: &cost}
	f.repo.categories = append(f.repo.categories, catalog.Category{ID: 900, StoreID: storeID, Name: "Nuts", Slug: "nuts"})
	price := int64(9999)

	po, err := f.svc.BulkIntake(ctx, owner, BulkIntakeInput{
		SupplierID:  supplierID,
		TotalAmount: 5000,
		Notes:       "market run",
		Lines: []BulkLine{
			{Category: "nuts", SKU: "ALM-1", Title: "Almonds", Quantity: 2, UnitCost: 1200},
			{Category: "Dried Fruit", SKU: "RSN-1", Title: "Raisins", Quantity: 5, UnitCost: 301},
			{Category: "Nuts!", SKU: "PST-1", Title: "Pistachio", Quantity: 1, UnitCost: 700, Price: &price},
		},
	})
	require.NoError(t, err)

	require.Equal(t, StatusReceived, po.Status)
	require.Equal(t, int64(2*1200+5*301+700), po.Subtotal)
	require.Zero(t, po.TaxTotal)
	require.Equal(t, int64(5000), po.Total)
	require.NotNil(t, po.ReceivedAt)
	require.Len(t, po.Items, 3)
	for _, item := range po.Items {
		require.Equal(t, item.Qty, item.ReceivedQty)
	}

	almonds := f.repo.products[100]
	require.Equal(t, int64(4), almonds.Stock)
	require.Equal(t, int64(1100), *almonds.CostPrice)

	var raisins, pistachio inventory.Product
	for _, p := range f.repo.products {
		switch p.SKU {
		case "RSN-1":
			raisins = p
		case "PST-1":
			pistachio = p
		}
	}
	require.Equal(t, int64(5), raisins.Stock)
	require.Equal(t, int64(452), raisins.SellingPrice)
	require.Equal(t, int64(301), *raisins.CostPrice)
	require.Equal(t, int64(9999), pistachio.SellingPrice)

	slugs := map[string]bool{}
	for _, c := range f.repo.categories {
		slugs[c.Slug] = true
	}
	require.True(t, slugs["dried-fruit"])
	require.True(t, slugs["nuts-2"])
	require.Equal(t, pistachio.CategoryID, f.repo.categories[len(f.repo.categories)-1].ID)

	require.Len(t, f.repo.ledger, 3)
	entries := f.repo.auditFor(po.ID)
	require.Len(t, entries, 1)
	require.Equal(t, "bulk-intake", entries[0].Action)
	require.Equal(t, "RECEIVED", entries[0].NewStatus)
	require.Len(t, f.integration.events, 1)
}

func TestBulkIntakeRollsBackOnFailure(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	f.repo.failInsertPO = errors.New("disk full")
	productsBefore := len(f.repo.products)

	_, err := f.svc.BulkIntake(context.Background(), owner, BulkIntakeInput{
		SupplierID:  supplierID,
		TotalAmount: 100,
		Lines:       []BulkLine{{Category: "Spices", SKU: "PEP-1", Title: "Pepper", Quantity: 3, UnitCost: 40}},
	})
	require.ErrorContains(t, err, "disk full")

	require.Len(t, f.repo.products, productsBefore)
	require.Empty(t, f.repo.categories)
	require.Empty(t, f.repo.ledger)
	require.Empty(t, f.repo.audit)
	require.Empty(t, f.repo.pos)
	require.Empty(t, f.integration.events)
}

func TestInputBoundsKeepTotalsInRange(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, owner, CreateInput{SupplierID: supplierID, Items: []LineInput{{ProductID: 100, Qty: 1_000_001}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	po := f.draft(t)
	_, err = f.svc.RequestQuotation(ctx, owner, po.ID, NoteInput{})
	require.NoError(t, err)
	_, err = f.svc.SubmitQuotation(ctx, supplier, po.ID, QuoteInput{Items: []QuoteLine{{ItemID: po.Items[0].ID, UnitCost: 1_000_000_001}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.ReceivePartial(ctx, owner, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: po.Items[0].ID, Qty: 1_000_001}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	line := BulkLine{Category: "A", SKU: "B", Title: "C", Quantity: 1, UnitCost: 1}
	tooMany, tooCostly := line, line
	tooMany.Quantity = 1_000_001
	tooCostly.UnitCost = 1_000_000_001
	for _, input := range []BulkIntakeInput{
		{SupplierID: supplierID, Lines: []BulkLine{tooMany}},
		{SupplierID: supplierID, Lines: []BulkLine{tooCostly}},
		{SupplierID: supplierID, TotalAmount: 1_000_000_000_000_001, Lines: []BulkLine{line}},
	} {
		_, err = f.svc.BulkIntake(ctx, owner, input)
		require.ErrorIs(t, err, shared.ErrValidation)
	}

	ceiling, err := f.svc.BulkIntake(ctx, owner, BulkIntakeInput{SupplierID: supplierID, TotalAmount: 1_000_000_000_000_000, Lines: []BulkLine{
		{Category: "Bulk", SKU: "MAX-1", Title: "Max", Quantity: 1_000_000, UnitCost: 1_000_000_000},
	}})
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000_000_000_000), ceiling.Subtotal)
	require.Equal(t, StatusQuotationRequested, f.stored(po.ID).Status)
}

func TestBulkIntakeValidation(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()

	_, err := f.svc.BulkIntake(ctx, owner, BulkIntakeInput{SupplierID: supplierID})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.BulkIntake(ctx, owner, BulkIntakeInput{SupplierID: supplierID, Lines: []BulkLine{{Category: "A", SKU: "B", Title: "C", Quantity: 0}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.BulkIntake(ctx, supplier, BulkIntakeInput{SupplierID: supplierID, Lines: []BulkLine{{Category: "A", SKU: "B", Title: "C", Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = f.svc.BulkIntake(ctx, owner, BulkIntakeInput{SupplierID: 7, Lines: []BulkLine{{Category: "A", SKU: "B", Title: "C", Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
