package httpx

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storeops/storeops/internal/shared"
)

// Amount carries money in minor units and travels as a two-decimal string.
// Decoding accepts either a JSON string or number with at most two decimals.
type Amount int64

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// MarshalJSON renders the amount as "12.34".
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(decimal.New(int64(a), -2).StringFixed(2))
}

// UnmarshalJSON parses "12.34" or 12.34 into minor units.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid amount %q", shared.ErrValidation, raw)
	}
	minor := d.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return fmt.Errorf("%w: amount %q has more than two decimals", shared.ErrValidation, raw)
	}
	if minor.IsNegative() || minor.GreaterThan(maxMinor) {
		return fmt.Errorf("%w: amount %q out of range", shared.ErrValidation, raw)
	}
	*a = Amount(minor.IntPart())
	return nil
}

// AmountPtr converts an optional minor-unit value.
func AmountPtr(v *int64) *Amount {
	if v == nil {
		return nil
	}
	a := Amount(*v)
	return &a
}

// Minor converts an optional Amount back to minor units.
func (a *Amount) Minor() *int64 {
	if a == nil {
		return nil
	}
	v := int64(*a)
	return &v
}
