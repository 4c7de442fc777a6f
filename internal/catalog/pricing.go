package catalog

import "github.com/shopspring/decimal"

var defaultMarkup = decimal.RequireFromString("1.5")

// DefaultSellingPrice returns price when given, else unitCost marked up by 50%
// and rounded half-up to a whole minor unit.
func DefaultSellingPrice(unitCost int64, price *int64) int64 {
	if price != nil {
		return *price
	}
	return decimal.NewFromInt(unitCost).Mul(defaultMarkup).Round(0).IntPart()
}
