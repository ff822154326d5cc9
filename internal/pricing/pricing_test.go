package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pricetrack/pricetrack/internal/entity"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEffectivePriceWithInstantSavings(t *testing.T) {
	it := entity.LineItem{
		Name:           "TV",
		Price:          dec("79.99"),
		Quantity:       2,
		OnSale:         true,
		InstantSavings: dec("5.00"),
	}

	assert.True(t, IsOnSale(it))
	assert.True(t, EffectivePrice(it).Equal(dec("74.99")))
	assert.True(t, LineTotal(it).Equal(dec("149.98")))
}

func TestEffectivePriceNotOnSale(t *testing.T) {
	it := entity.LineItem{Name: "Milk", Price: dec("4.49"), Quantity: 1}

	assert.False(t, IsOnSale(it))
	assert.True(t, EffectivePrice(it).Equal(dec("4.49")))
}

func TestSavingsImplyOnSale(t *testing.T) {
	// A positive instant-savings amount marks the line on sale even when the
	// flag is unset.
	it := entity.LineItem{Name: "Cheese", Price: dec("10.00"), Quantity: 1, InstantSavings: dec("2.00")}

	assert.True(t, IsOnSale(it))
	assert.True(t, EffectivePrice(it).Equal(dec("8.00")))
}

func TestEffectivePriceFlooredAtZero(t *testing.T) {
	// Over-discounted data must not produce a negative price.
	it := entity.LineItem{Name: "Bad data", Price: dec("3.00"), Quantity: 1, InstantSavings: dec("5.00")}

	assert.True(t, EffectivePrice(it).Equal(decimal.Zero))
}

func TestReceiptSavings(t *testing.T) {
	r := &entity.Receipt{
		Items: []entity.LineItem{
			{Name: "a", Price: dec("10.00"), Quantity: 1, InstantSavings: dec("1.50")},
			{Name: "b", Price: dec("20.00"), Quantity: 1, InstantSavings: dec("2.50")},
			{Name: "c", Price: dec("5.00"), Quantity: 1},
		},
	}

	assert.True(t, ReceiptSavings(r).Equal(dec("4.00")))
}

func TestPotentialAdjustment(t *testing.T) {
	above := entity.LineItem{Name: "Monitor", Price: dec("200.00"), Quantity: 1}
	below := entity.LineItem{Name: "Snack", Price: dec("3.00"), Quantity: 1}
	atThreshold := entity.LineItem{Name: "Edge", Price: dec("50.00"), Quantity: 1}

	assert.True(t, PotentialAdjustment(above).Equal(dec("30.00")), "200 * 0.15")
	assert.True(t, PotentialAdjustment(below).IsZero())
	assert.True(t, PotentialAdjustment(atThreshold).IsZero(), "threshold is exclusive")
}

func TestPotentialAdjustmentUsesEffectivePrice(t *testing.T) {
	// 60.00 printed, 15.00 savings -> effective 45.00, below threshold.
	it := entity.LineItem{Name: "Discounted", Price: dec("60.00"), Quantity: 1, OnSale: true, InstantSavings: dec("15.00")}

	assert.True(t, PotentialAdjustment(it).IsZero())
}
