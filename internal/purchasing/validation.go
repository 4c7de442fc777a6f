package purchasing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/storeops/storeops/internal/shared"
)

// CreateInput describes a new draft purchase order.
type CreateInput struct {
	SupplierID int64       `json:"supplierId" validate:"required,gt=0"`
	Items      []LineInput `json:"items" validate:"required,min=1,max=1000,dive"`
	Notes      string      `json:"notes" validate:"max=2000"`
}

// LineInput is one ordered product.
type LineInput struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Qty       int64 `json:"qty" validate:"required,gt=0,lte=1000000"`
}

// QuoteInput carries the supplier's quotation.
type QuoteInput struct {
	Items []QuoteLine `validate:"required,min=1,max=1000,dive"`
	Notes string      `validate:"max=2000"`
}

// QuoteLine prices one item in minor units. Non-positive costs are skipped.
type QuoteLine struct {
	ItemID   int64 `validate:"required,gt=0"`
	UnitCost int64 `validate:"lte=1000000000"`
}

// NoteInput carries optional free text for a transition.
type NoteInput struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// ConfirmInput settles a shipped order.
type ConfirmInput struct {
	Accepted bool   `json:"accepted"`
	Notes    string `json:"notes" validate:"max=2000"`
}

// ReceiveInput records a partial or full receipt. Qty values are deltas.
type ReceiveInput struct {
	Items          []ReceiveLine `json:"items" validate:"required,min=1,max=1000,dive"`
	IdempotencyKey string        `json:"idempotencyKey" validate:"omitempty,max=128"`
	Notes          string        `json:"notes" validate:"max=2000"`
}

// ReceiveLine adds Qty to one item's received quantity. Sign is checked by the
// receiving rules so a negative delta reports as an invalid quantity.
type ReceiveLine struct {
	ItemID int64 `json:"itemId" validate:"required,gt=0"`
	Qty    int64 `json:"qty" validate:"lte=1000000"`
}

// BulkIntakeInput creates an already received order from offline procurement.
type BulkIntakeInput struct {
	SupplierID  int64      `validate:"required,gt=0"`
	TotalAmount int64      `validate:"gte=0,lte=1000000000000000"`
	Notes       string     `validate:"max=2000"`
	Lines       []BulkLine `validate:"required,min=1,max=1000,dive"`
}

// BulkLine is one intake line; category and product are found or created.
type BulkLine struct {
	Category    string `validate:"required,max=120"`
	SKU         string `validate:"required,max=64"`
	Title       string `validate:"required,max=255"`
	Quantity    int64  `validate:"required,gt=0,lte=1000000"`
	UnitCost    int64  `validate:"gte=0,lte=1000000000"`
	Description string `validate:"max=2000"`
	Price       *int64 `validate:"omitempty,gte=0,lte=1000000000000"`
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// validateStruct runs tag validation and reports failures as ErrValidation.
func validateStruct(v *validator.Validate, input any) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(msgs, "; "))
}
