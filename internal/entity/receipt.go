package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pricetrack/pricetrack/constants"
)

// TotalEpsilon is the tolerance for the total = subtotal + tax invariant.
// Source receipts are untrusted external data, so divergence beyond this is
// surfaced as a warning and never corrected silently.
var TotalEpsilon = decimal.RequireFromString("0.01")

// Receipt represents one purchase transaction for data transfer between layers.
type Receipt struct {
	ID            uuid.UUID                  `json:"id"`
	ServerID      string                     `json:"server_id,omitempty"`
	ReceiptNumber string                     `json:"receipt_number,omitempty"`
	StoreName     string                     `json:"store_name,omitempty"`
	StoreLocation string                     `json:"store_location,omitempty"`
	PurchaseDate  time.Time                  `json:"purchase_date"`
	Subtotal      decimal.Decimal            `json:"subtotal"`
	Tax           decimal.Decimal            `json:"tax"`
	Total         decimal.Decimal            `json:"total"`
	Notes         string                     `json:"notes,omitempty"`
	Status        constants.ProcessingStatus `json:"status"`
	RawFileRef    string                     `json:"raw_file_ref,omitempty"`
	LocalEdits    bool                       `json:"local_edits"`
	LastSyncedAt  *time.Time                 `json:"last_synced_at,omitempty"`
	CreatedAt     time.Time                  `json:"created_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`
	Items         []LineItem                 `json:"items,omitempty"`
}

// DataQualityWarning flags an invariant violation on untrusted receipt data.
// Warnings are surfaced to the caller; they never block storage or sync.
type DataQualityWarning struct {
	ReceiptID uuid.UUID `json:"receipt_id"`
	Field     string    `json:"field"`
	Message   string    `json:"message"`
}

func (w DataQualityWarning) String() string {
	return fmt.Sprintf("%s: %s (receipt %s)", w.Field, w.Message, w.ReceiptID)
}

// QualityWarnings checks the receipt and its line items against the data
// invariants and returns one warning per violation.
func (r *Receipt) QualityWarnings() []DataQualityWarning {
	var warnings []DataQualityWarning

	expected := r.Subtotal.Add(r.Tax)
	if r.Total.Sub(expected).Abs().GreaterThan(TotalEpsilon) {
		warnings = append(warnings, DataQualityWarning{
			ReceiptID: r.ID,
			Field:     "total",
			Message:   fmt.Sprintf("total %s diverges from subtotal+tax %s", r.Total, expected),
		})
	}

	for _, it := range r.Items {
		if it.InstantSavings.GreaterThan(it.Price) {
			warnings = append(warnings, DataQualityWarning{
				ReceiptID: r.ID,
				Field:     "instant_savings",
				Message:   fmt.Sprintf("line %q: instant savings %s exceeds price %s", it.Name, it.InstantSavings, it.Price),
			})
		}
		if it.Quantity <= 0 {
			warnings = append(warnings, DataQualityWarning{
				ReceiptID: r.ID,
				Field:     "quantity",
				Message:   fmt.Sprintf("line %q: non-positive quantity %d", it.Name, it.Quantity),
			})
		}
	}
	return warnings
}
