package inventory

import "github.com/shopspring/decimal"

// WeightedAverage returns the unit cost after receiving qty at unitCost into a
// product holding stock at costPrice. The result is rounded half-up to a whole
// minor unit. Without a prior cost or with no stock on hand, unitCost wins.
func WeightedAverage(stock int64, costPrice *int64, qty, unitCost int64) int64 {
	if costPrice == nil || stock <= 0 {
		return unitCost
	}
	onHand := decimal.NewFromInt(*costPrice).Mul(decimal.NewFromInt(stock))
	incoming := decimal.NewFromInt(unitCost).Mul(decimal.NewFromInt(qty))
	return onHand.Add(incoming).DivRound(decimal.NewFromInt(stock+qty), 0).IntPart()
}
