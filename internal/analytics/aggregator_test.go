package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricetrack/pricetrack/internal/entity"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func receipt(date time.Time, total string, items ...entity.LineItem) *entity.Receipt {
	return &entity.Receipt{
		PurchaseDate: date,
		Total:        dec(total),
		Items:        items,
	}
}

func TestTotalSpentAndCountInWindow(t *testing.T) {
	receipts := []*entity.Receipt{
		receipt(day(2026, time.March, 10), "25.00"),
		receipt(day(2026, time.March, 31), "10.00"),
		receipt(day(2026, time.April, 1), "99.00"),
	}
	w := Between(day(2026, time.March, 1), day(2026, time.March, 31))

	// Window ends are inclusive.
	assert.True(t, TotalSpent(receipts, w).Equal(dec("35.00")))
	assert.Equal(t, 2, ReceiptCount(receipts, w))
	assert.True(t, TotalSpent(receipts, AllTime()).Equal(dec("134.00")))
}

func TestAverageReceiptEmptyCollection(t *testing.T) {
	avg := AverageReceipt(nil, AllTime())

	assert.True(t, avg.IsZero(), "empty collection must yield zero, not an error or NaN")
}

func TestAverageReceipt(t *testing.T) {
	receipts := []*entity.Receipt{
		receipt(day(2026, time.May, 1), "10.00"),
		receipt(day(2026, time.May, 2), "20.00"),
	}

	assert.True(t, AverageReceipt(receipts, AllTime()).Equal(dec("15.00")))
}

func TestTopCategoriesFoldsUncategorized(t *testing.T) {
	receipts := []*entity.Receipt{
		receipt(day(2026, time.May, 1), "0",
			entity.LineItem{Name: "tv", Category: "Electronics", Price: dec("100.00"), Quantity: 1},
			entity.LineItem{Name: "cable", Category: "Electronics", Price: dec("10.00"), Quantity: 2},
			entity.LineItem{Name: "mystery", Price: dec("5.00"), Quantity: 1},
		),
	}

	cats := TopCategories(receipts, AllTime())
	require.Len(t, cats, 2)
	assert.Equal(t, "Electronics", cats[0].Category)
	assert.True(t, cats[0].Total.Equal(dec("120.00")))
	assert.Equal(t, Uncategorized, cats[1].Category)
	assert.True(t, cats[1].Total.Equal(dec("5.00")))
}

func TestTopCategoriesUsesEffectivePrice(t *testing.T) {
	receipts := []*entity.Receipt{
		receipt(day(2026, time.May, 1), "0",
			entity.LineItem{Name: "sale item", Category: "Grocery", Price: dec("10.00"), Quantity: 1, OnSale: true, InstantSavings: dec("2.00")},
		),
	}

	cats := TopCategories(receipts, AllTime())
	require.Len(t, cats, 1)
	assert.True(t, cats[0].Total.Equal(dec("8.00")), "the printed price is pre-discount; aggregation must use the effective price")
}

func TestSpendingByMonthZeroFill(t *testing.T) {
	now := day(2026, time.June, 15)
	receipts := []*entity.Receipt{
		receipt(day(2026, time.June, 2), "40.00"),
		receipt(day(2026, time.June, 20), "10.00"),
		receipt(day(2026, time.March, 5), "25.00"),
		receipt(day(2025, time.November, 5), "99.00"), // outside the trailing window
	}

	buckets := SpendingByMonth(receipts, 6, now)
	require.Len(t, buckets, 6, "buckets with no data must still appear")

	assert.Equal(t, "Jan 2026", buckets[0].Label)
	assert.Equal(t, "Jun 2026", buckets[5].Label)

	zeroes := 0
	for _, b := range buckets {
		if b.Total.IsZero() {
			zeroes++
		}
	}
	assert.Equal(t, 4, zeroes)
	assert.True(t, buckets[2].Total.Equal(dec("25.00")), "March")
	assert.True(t, buckets[5].Total.Equal(dec("50.00")), "June")
}

func TestSpendingByWeekZeroFill(t *testing.T) {
	now := day(2026, time.June, 17) // a Wednesday
	receipts := []*entity.Receipt{
		receipt(day(2026, time.June, 15), "12.00"), // Monday of the current week
		receipt(day(2026, time.June, 21), "8.00"),  // Sunday of the current week
	}

	buckets := SpendingByWeek(receipts, 12, now)
	require.Len(t, buckets, 12)
	assert.True(t, buckets[11].Total.Equal(dec("20.00")))
	for _, b := range buckets[:11] {
		assert.True(t, b.Total.IsZero())
	}
}

func TestStoreVisits(t *testing.T) {
	receipts := []*entity.Receipt{
		{StoreName: "Costco", PurchaseDate: day(2026, time.May, 1), Total: dec("100.00")},
		{StoreName: "Costco", PurchaseDate: day(2026, time.May, 8), Total: dec("50.00")},
		{StoreName: "Aldi", PurchaseDate: day(2026, time.May, 2), Total: dec("30.00")},
	}

	visits := StoreVisits(receipts, AllTime())
	require.Len(t, visits, 2)
	assert.Equal(t, "Costco", visits[0].Store)
	assert.Equal(t, 2, visits[0].VisitCount)
	assert.True(t, visits[0].TotalSpent.Equal(dec("150.00")))
}

func TestMostPurchasedItemsTopN(t *testing.T) {
	receipts := []*entity.Receipt{
		receipt(day(2026, time.May, 1), "0",
			entity.LineItem{Name: "Milk", Price: dec("4.00"), Quantity: 3},
			entity.LineItem{Name: "Eggs", Price: dec("6.00"), Quantity: 1},
		),
		receipt(day(2026, time.May, 8), "0",
			entity.LineItem{Name: "Milk", Price: dec("4.00"), Quantity: 2},
			entity.LineItem{Name: "Bread", Price: dec("3.00"), Quantity: 1},
		),
	}

	items := MostPurchasedItems(receipts, AllTime(), 2)
	require.Len(t, items, 2)
	assert.Equal(t, "Milk", items[0].Name)
	assert.Equal(t, 5, items[0].Quantity)
	assert.True(t, items[0].TotalSpent.Equal(dec("20.00")))
}

func TestPotentialSavingsEstimate(t *testing.T) {
	receipts := []*entity.Receipt{
		receipt(day(2026, time.May, 1), "0",
			entity.LineItem{Name: "Monitor", Price: dec("200.00"), Quantity: 1},
			entity.LineItem{Name: "Snack", Price: dec("3.00"), Quantity: 1},
		),
	}

	assert.True(t, PotentialSavings(receipts, AllTime()).Equal(dec("30.00")))
	assert.True(t, PotentialSavings(nil, AllTime()).IsZero())
}

func TestTrend(t *testing.T) {
	assert.True(t, Trend(dec("150.00"), dec("100.00")).Equal(dec("50")))
	assert.True(t, Trend(dec("50.00"), dec("100.00")).Equal(dec("-50")))
	assert.True(t, Trend(dec("100.00"), decimal.Zero).IsZero(), "zero previous period yields zero")
}

func TestBuildSnapshotEmptyCollection(t *testing.T) {
	snap := BuildSnapshot(nil, AllTime(), day(2026, time.June, 15))

	assert.True(t, snap.TotalSpent.IsZero())
	assert.Equal(t, 0, snap.ReceiptCount)
	assert.True(t, snap.AverageReceipt.IsZero())
	assert.Len(t, snap.SpendingByMonth, TrailingMonths)
	assert.Len(t, snap.SpendingByWeek, TrailingWeeks)
	assert.Empty(t, snap.TopCategories)
}
