// Package pricing derives charged prices and savings from raw receipt fields.
// The stored line-item price is always the receipt-printed, pre-discount
// value; every display and aggregation path must go through these functions.
// All functions are pure.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/pricetrack/pricetrack/internal/entity"
)

// Heuristic inputs for the price-adjustment estimate. Items priced above the
// threshold are assumed adjustable at the given rate. This is an estimate,
// not a guarantee, and is labeled as such wherever surfaced.
var (
	AdjustmentThreshold = decimal.RequireFromString("50.00")
	AdjustmentRate      = decimal.RequireFromString("0.15")
)

// IsOnSale reports whether the line item carries a point-of-sale discount.
func IsOnSale(it entity.LineItem) bool {
	return it.OnSale || it.InstantSavings.IsPositive()
}

// EffectivePrice is the actual per-unit price paid after instant savings,
// floored at zero for over-discounted (bad) data.
func EffectivePrice(it entity.LineItem) decimal.Decimal {
	if !IsOnSale(it) {
		return it.Price
	}
	p := it.Price.Sub(it.InstantSavings)
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}

// LineTotal is the effective price multiplied by quantity.
func LineTotal(it entity.LineItem) decimal.Decimal {
	return EffectivePrice(it).Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// ReceiptSavings sums instant savings over the receipt's line items.
func ReceiptSavings(r *entity.Receipt) decimal.Decimal {
	total := decimal.Zero
	for _, it := range r.Items {
		total = total.Add(it.InstantSavings)
	}
	return total
}

// PotentialAdjustment estimates the price-adjustment opportunity for a single
// line item. Items at or below the threshold contribute nothing.
func PotentialAdjustment(it entity.LineItem) decimal.Decimal {
	effective := EffectivePrice(it)
	if !effective.GreaterThan(AdjustmentThreshold) {
		return decimal.Zero
	}
	return effective.Mul(AdjustmentRate)
}
