package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storeops/storeops/internal/shared"
)

// Writer appends entries inside the caller's transaction.
type Writer interface {
	InsertAuditEntry(ctx context.Context, entry Entry) (int64, error)
}

// Repository reads stored entries.
type Repository interface {
	ListEntries(ctx context.Context, filter HistoryFilter) ([]Entry, int, error)
}

// Append validates and writes entry, returning it with id and timestamp set.
func Append(ctx context.Context, w Writer, entry Entry) (Entry, error) {
	if entry.PurchaseOrderID == 0 || entry.StoreID == 0 {
		return Entry{}, errors.New("audit: purchase order and store required")
	}
	if entry.Action == "" || entry.NewStatus == "" {
		return Entry{}, errors.New("audit: action and new status required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	id, err := w.InsertAuditEntry(ctx, entry)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: insert entry: %w", err)
	}
	entry.ID = id
	return entry, nil
}

// Service serves audit history.
type Service struct {
	repo Repository
}

// NewService builds the audit history service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// History lists a purchase order's entries newest-first.
func (s *Service) History(ctx context.Context, storeID, purchaseOrderID int64, page shared.Page) (shared.PageResult[Entry], error) {
	if s.repo == nil {
		return shared.PageResult[Entry]{}, fmt.Errorf("audit: repository not configured")
	}
	page = page.Normalize()
	entries, total, err := s.repo.ListEntries(ctx, HistoryFilter{
		StoreID:         storeID,
		PurchaseOrderID: purchaseOrderID,
		Offset:          page.Offset,
		Limit:           page.Limit,
	})
	if err != nil {
		return shared.PageResult[Entry]{}, err
	}
	return shared.NewPageResult(entries, total, page), nil
}
