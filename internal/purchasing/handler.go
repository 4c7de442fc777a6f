package purchasing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storeops/storeops/internal/platform/httpx"
	"github.com/storeops/storeops/internal/shared"
)

// Handler manages purchase order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers purchase order routes under a store-scoped router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/purchase-orders", func(r chi.Router) {
		r.Post("/", h.create)
		r.Post("/bulk-intake", h.bulkIntake)
		r.Get("/{poID}", h.get)
		r.Get("/{poID}/history", h.history)
		r.Post("/{poID}/request-quotation", h.noteAction(h.service.RequestQuotation))
		r.Post("/{poID}/submit-quotation", h.submitQuotation)
		r.Post("/{poID}/request-revision", h.noteAction(h.service.RequestRevision))
		r.Post("/{poID}/approve-quotation", h.noteAction(h.service.ApproveQuotation))
		r.Post("/{poID}/reject-quotation", h.noteAction(h.service.RejectQuotation))
		r.Post("/{poID}/send", h.noteAction(h.service.Send))
		r.Post("/{poID}/ship", h.noteAction(h.service.Ship))
		r.Post("/{poID}/confirm", h.confirm)
		r.Post("/{poID}/receive", h.receive)
		r.Post("/{poID}/cancel", h.noteAction(h.service.Cancel))
		r.Post("/{poID}/close", h.noteAction(h.service.Close))
	})
}

type itemResponse struct {
	ID          int64         `json:"id"`
	ProductID   int64         `json:"productId"`
	Qty         int64         `json:"qty"`
	Cost        httpx.Amount  `json:"cost"`
	QuotedCost  *httpx.Amount `json:"quotedCost"`
	ReceivedQty int64         `json:"receivedQty"`
}

type purchaseOrderResponse struct {
	ID                   int64          `json:"id"`
	StoreID              int64          `json:"storeId"`
	SupplierID           int64          `json:"supplierId"`
	Code                 string         `json:"code"`
	Status               Status         `json:"status"`
	PlacedAt             *time.Time     `json:"placedAt"`
	QuotationRequestedAt *time.Time     `json:"quotationRequestedAt"`
	QuotationSubmittedAt *time.Time     `json:"quotationSubmittedAt"`
	QuotationApprovedAt  *time.Time     `json:"quotationApprovedAt"`
	QuotationRejectedAt  *time.Time     `json:"quotationRejectedAt"`
	ShippedAt            *time.Time     `json:"shippedAt"`
	ReceivedAt           *time.Time     `json:"receivedAt"`
	CancelledAt          *time.Time     `json:"cancelledAt"`
	ClosedAt             *time.Time     `json:"closedAt"`
	Subtotal             httpx.Amount   `json:"subtotal"`
	TaxTotal             httpx.Amount   `json:"taxTotal"`
	Total                httpx.Amount   `json:"total"`
	Notes                string         `json:"notes"`
	QuotationNotes       string         `json:"quotationNotes"`
	CreatedBy            int64          `json:"createdBy"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
	Items                []itemResponse `json:"items"`
}

func toResponse(po PurchaseOrder) purchaseOrderResponse {
	items := make([]itemResponse, 0, len(po.Items))
	for _, item := range po.Items {
		items = append(items, itemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			Qty:         item.Qty,
			Cost:        httpx.Amount(item.Cost),
			QuotedCost:  httpx.AmountPtr(item.QuotedCost),
			ReceivedQty: item.ReceivedQty,
		})
	}
	return purchaseOrderResponse{
		ID:                   po.ID,
		StoreID:              po.StoreID,
		SupplierID:           po.SupplierID,
		Code:                 po.Code,
		Status:               po.Status,
		PlacedAt:             po.PlacedAt,
		QuotationRequestedAt: po.QuotationRequestedAt,
		QuotationSubmittedAt: po.QuotationSubmittedAt,
		QuotationApprovedAt:  po.QuotationApprovedAt,
		QuotationRejectedAt:  po.QuotationRejectedAt,
		ShippedAt:            po.ShippedAt,
		ReceivedAt:           po.ReceivedAt,
		CancelledAt:          po.CancelledAt,
		ClosedAt:             po.ClosedAt,
		Subtotal:             httpx.Amount(po.Subtotal),
		TaxTotal:             httpx.Amount(po.TaxTotal),
		Total:                httpx.Amount(po.Total),
		Notes:                po.Notes,
		QuotationNotes:       po.QuotationNotes,
		CreatedBy:            po.CreatedBy,
		CreatedAt:            po.CreatedAt,
		UpdatedAt:            po.UpdatedAt,
		Items:                items,
	}
}

type quoteRequest struct {
	Items []struct {
		ItemID   int64        `json:"itemId"`
		UnitCost httpx.Amount `json:"unitCost"`
	} `json:"items"`
	Notes string `json:"notes"`
}

type bulkIntakeRequest struct {
	SupplierID  int64        `json:"supplierId"`
	TotalAmount httpx.Amount `json:"totalAmount"`
	Notes       string       `json:"notes"`
	Lines       []struct {
		Category    string        `json:"category"`
		SKU         string        `json:"sku"`
		Title       string        `json:"title"`
		Quantity    int64         `json:"quantity"`
		UnitCost    httpx.Amount  `json:"unitCost"`
		Description string        `json:"description"`
		Price       *httpx.Amount `json:"price"`
	} `json:"lines"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.Create(r.Context(), actor, input)
	h.respond(w, http.StatusCreated, po, err)
}

func (h *Handler) bulkIntake(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req bulkIntakeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := BulkIntakeInput{SupplierID: req.SupplierID, TotalAmount: int64(req.TotalAmount), Notes: req.Notes}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, BulkLine{
			Category:    line.Category,
			SKU:         line.SKU,
			Title:       line.Title,
			Quantity:    line.Quantity,
			UnitCost:    int64(line.UnitCost),
			Description: line.Description,
			Price:       line.Price.Minor(),
		})
	}
	po, err := h.service.BulkIntake(r.Context(), actor, input)
	h.respond(w, http.StatusCreated, po, err)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	po, err := h.service.Get(r.Context(), actor, id)
	h.respond(w, http.StatusOK, po, err)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	page, err := httpx.PageFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.History(r.Context(), actor, id, page)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type noteOperation func(ctx context.Context, actor shared.Actor, id int64, input NoteInput) (PurchaseOrder, error)

func (h *Handler) noteAction(op noteOperation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := h.actorAndID(w, r)
		if !ok {
			return
		}
		var input NoteInput
		if err := httpx.DecodeOptionalJSON(r, &input); err != nil {
			httpx.RespondError(w, err)
			return
		}
		po, err := op(r.Context(), actor, id, input)
		h.respond(w, http.StatusOK, po, err)
	}
}

func (h *Handler) submitQuotation(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req quoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := QuoteInput{Notes: req.Notes}
	for _, line := range req.Items {
		input.Items = append(input.Items, QuoteLine{ItemID: line.ItemID, UnitCost: int64(line.UnitCost)})
	}
	po, err := h.service.SubmitQuotation(r.Context(), actor, id, input)
	h.respond(w, http.StatusOK, po, err)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var input ConfirmInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.Confirm(r.Context(), actor, id, input)
	h.respond(w, http.StatusOK, po, err)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var input ReceiveInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if input.IdempotencyKey == "" {
		input.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}
	po, err := h.service.ReceivePartial(r.Context(), actor, id, input)
	h.respond(w, http.StatusOK, po, err)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: missing identity", shared.ErrForbidden))
		return shared.Actor{}, false
	}
	return actor, true
}

func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request) (shared.Actor, int64, bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return shared.Actor{}, 0, false
	}
	id, err := httpx.IDParam(r, "poID")
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Actor{}, 0, false
	}
	return actor, id, true
}

func (h *Handler) respond(w http.ResponseWriter, status int, po PurchaseOrder, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, status, toResponse(po))
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if status, _ := httpx.Status(err); status == http.StatusInternalServerError {
		h.logger.Error("purchasing request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
