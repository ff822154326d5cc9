package entity

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem represents one purchased product line within a receipt.
// Price is always the receipt-printed, pre-discount price; the charged
// price is derived (see internal/pricing), never stored.
type LineItem struct {
	ID             uuid.UUID       `json:"id"`
	ServerID       string          `json:"server_id,omitempty"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int             `json:"quantity"`
	ItemCode       string          `json:"item_code,omitempty"`
	Category       string          `json:"category,omitempty"`
	OrderIndex     int             `json:"order_index"`
	OnSale         bool            `json:"on_sale"`
	InstantSavings decimal.Decimal `json:"instant_savings"`
	OriginalPrice  decimal.Decimal `json:"original_price"`
}
