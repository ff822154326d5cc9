// Package analytics computes date-windowed spending aggregates over the
// reconciled local receipt collection. Every function is pure: no caching,
// no I/O, and an empty collection yields zeros, never errors.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pricetrack/pricetrack/internal/entity"
	"github.com/pricetrack/pricetrack/internal/pricing"
)

// Uncategorized is the bucket for line items with no category.
const Uncategorized = "Uncategorized"

// Window is a date range for filtering receipts. The zero value with AllTime
// set matches everything; a bounded window uses inclusive containment on
// both ends.
type Window struct {
	Start   time.Time
	End     time.Time
	AllTime bool
}

// AllTime returns the unbounded window.
func AllTime() Window {
	return Window{AllTime: true}
}

// Between returns a bounded window with inclusive ends.
func Between(start, end time.Time) Window {
	return Window{Start: start, End: end}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.AllTime {
		return true
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

func inWindow(receipts []*entity.Receipt, w Window) []*entity.Receipt {
	out := make([]*entity.Receipt, 0, len(receipts))
	for _, r := range receipts {
		if w.Contains(r.PurchaseDate) {
			out = append(out, r)
		}
	}
	return out
}

// TotalSpent sums receipt totals inside the window.
func TotalSpent(receipts []*entity.Receipt, w Window) decimal.Decimal {
	total := decimal.Zero
	for _, r := range inWindow(receipts, w) {
		total = total.Add(r.Total)
	}
	return total
}

// ReceiptCount counts receipts inside the window.
func ReceiptCount(receipts []*entity.Receipt, w Window) int {
	return len(inWindow(receipts, w))
}

// AverageReceipt is total spent divided by receipt count, zero for an empty
// window.
func AverageReceipt(receipts []*entity.Receipt, w Window) decimal.Decimal {
	count := ReceiptCount(receipts, w)
	if count == 0 {
		return decimal.Zero
	}
	return TotalSpent(receipts, w).Div(decimal.NewFromInt(int64(count))).Round(2)
}

// CategoryTotal is spend attributed to one line-item category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// TopCategories groups line totals (effective price x quantity) by category,
// descending. Items without a category fold into the Uncategorized bucket.
func TopCategories(receipts []*entity.Receipt, w Window) []CategoryTotal {
	totals := map[string]decimal.Decimal{}
	for _, r := range inWindow(receipts, w) {
		for _, it := range r.Items {
			cat := it.Category
			if cat == "" {
				cat = Uncategorized
			}
			totals[cat] = totals[cat].Add(pricing.LineTotal(it))
		}
	}
	out := make([]CategoryTotal, 0, len(totals))
	for cat, total := range totals {
		out = append(out, CategoryTotal{Category: cat, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Bucket is one calendar period in a trailing series. Periods with no data
// still appear, zero-valued, so charts render consistent axes.
type Bucket struct {
	Start time.Time       `json:"start"`
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
}

// SpendingByMonth returns the trailing `months` calendar months ending at
// now, oldest first, zero-filled.
func SpendingByMonth(receipts []*entity.Receipt, months int, now time.Time) []Bucket {
	if months <= 0 {
		return []Bucket{}
	}
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	buckets := make([]Bucket, months)
	index := map[string]int{}
	for i := 0; i < months; i++ {
		start := first.AddDate(0, i-(months-1), 0)
		buckets[i] = Bucket{Start: start, Label: start.Format("Jan 2006"), Total: decimal.Zero}
		index[start.Format("2006-01")] = i
	}
	for _, r := range receipts {
		key := r.PurchaseDate.UTC().Format("2006-01")
		if i, ok := index[key]; ok {
			buckets[i].Total = buckets[i].Total.Add(r.Total)
		}
	}
	return buckets
}

// SpendingByWeek returns the trailing `weeks` calendar weeks (Monday start)
// ending at now, oldest first, zero-filled.
func SpendingByWeek(receipts []*entity.Receipt, weeks int, now time.Time) []Bucket {
	if weeks <= 0 {
		return []Bucket{}
	}
	current := startOfWeek(now.UTC())

	buckets := make([]Bucket, weeks)
	index := map[string]int{}
	for i := 0; i < weeks; i++ {
		start := current.AddDate(0, 0, 7*(i-(weeks-1)))
		buckets[i] = Bucket{Start: start, Label: start.Format("Jan 02"), Total: decimal.Zero}
		index[start.Format("2006-01-02")] = i
	}
	for _, r := range receipts {
		key := startOfWeek(r.PurchaseDate.UTC()).Format("2006-01-02")
		if i, ok := index[key]; ok {
			buckets[i].Total = buckets[i].Total.Add(r.Total)
		}
	}
	return buckets
}

func startOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// StoreVisitStat aggregates visits to one store.
type StoreVisitStat struct {
	Store      string          `json:"store"`
	VisitCount int             `json:"visit_count"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

// StoreVisits groups receipts by store name, sorted by visit count
// descending.
func StoreVisits(receipts []*entity.Receipt, w Window) []StoreVisitStat {
	type acc struct {
		visits int
		total  decimal.Decimal
	}
	stores := map[string]*acc{}
	for _, r := range inWindow(receipts, w) {
		name := r.StoreName
		if name == "" {
			name = "Unknown"
		}
		a := stores[name]
		if a == nil {
			a = &acc{total: decimal.Zero}
			stores[name] = a
		}
		a.visits++
		a.total = a.total.Add(r.Total)
	}
	out := make([]StoreVisitStat, 0, len(stores))
	for name, a := range stores {
		out = append(out, StoreVisitStat{Store: name, VisitCount: a.visits, TotalSpent: a.total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VisitCount != out[j].VisitCount {
			return out[i].VisitCount > out[j].VisitCount
		}
		return out[i].Store < out[j].Store
	})
	return out
}

// ItemStat aggregates purchases of one item name across receipts.
type ItemStat struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

// MostPurchasedItems groups line items by name, summing quantity and line
// totals, sorted by quantity descending and capped at topN.
func MostPurchasedItems(receipts []*entity.Receipt, w Window, topN int) []ItemStat {
	type acc struct {
		qty   int
		total decimal.Decimal
	}
	items := map[string]*acc{}
	for _, r := range inWindow(receipts, w) {
		for _, it := range r.Items {
			a := items[it.Name]
			if a == nil {
				a = &acc{total: decimal.Zero}
				items[it.Name] = a
			}
			a.qty += it.Quantity
			a.total = a.total.Add(pricing.LineTotal(it))
		}
	}
	out := make([]ItemStat, 0, len(items))
	for name, a := range items {
		out = append(out, ItemStat{Name: name, Quantity: a.qty, TotalSpent: a.total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].Name < out[j].Name
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// PotentialSavings is the heuristic price-adjustment estimate over the
// window. It is an estimate, not a guarantee; callers must label it as such.
func PotentialSavings(receipts []*entity.Receipt, w Window) decimal.Decimal {
	total := decimal.Zero
	for _, r := range inWindow(receipts, w) {
		for _, it := range r.Items {
			total = total.Add(pricing.PotentialAdjustment(it))
		}
	}
	return total
}

// Trend is the percentage change from previous to current. A zero previous
// period yields zero, not a division error.
func Trend(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(2)
}

// Snapshot is the full analytics view for one window.
type Snapshot struct {
	Window             Window           `json:"window"`
	TotalSpent         decimal.Decimal  `json:"total_spent"`
	ReceiptCount       int              `json:"receipt_count"`
	AverageReceipt     decimal.Decimal  `json:"average_receipt"`
	TotalSavings       decimal.Decimal  `json:"total_savings"`
	TopCategories      []CategoryTotal  `json:"top_categories"`
	SpendingByMonth    []Bucket         `json:"spending_by_month"`
	SpendingByWeek     []Bucket         `json:"spending_by_week"`
	StoreVisits        []StoreVisitStat `json:"store_visits"`
	MostPurchasedItems []ItemStat       `json:"most_purchased_items"`
	// PotentialSavings is a heuristic estimate, not a guarantee.
	PotentialSavings decimal.Decimal `json:"potential_savings_estimate"`
}

// Defaults for the snapshot series.
const (
	TrailingMonths = 6
	TrailingWeeks  = 12
	TopItemsLimit  = 10
)

// BuildSnapshot computes the full analytics view at the given reference time.
func BuildSnapshot(receipts []*entity.Receipt, w Window, now time.Time) Snapshot {
	savings := decimal.Zero
	for _, r := range inWindow(receipts, w) {
		savings = savings.Add(pricing.ReceiptSavings(r))
	}
	return Snapshot{
		Window:             w,
		TotalSpent:         TotalSpent(receipts, w),
		ReceiptCount:       ReceiptCount(receipts, w),
		AverageReceipt:     AverageReceipt(receipts, w),
		TotalSavings:       savings,
		TopCategories:      TopCategories(receipts, w),
		SpendingByMonth:    SpendingByMonth(receipts, TrailingMonths, now),
		SpendingByWeek:     SpendingByWeek(receipts, TrailingWeeks, now),
		StoreVisits:        StoreVisits(receipts, w),
		MostPurchasedItems: MostPurchasedItems(receipts, w, TopItemsLimit),
		PotentialSavings:   PotentialSavings(receipts, w),
	}
}
