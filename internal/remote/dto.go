package remote

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pricetrack/pricetrack/constants"
	"github.com/pricetrack/pricetrack/internal/entity"
)

// ReceiptPayload is the wire shape of a parsed receipt returned by the
// remote service.
type ReceiptPayload struct {
	ID            string            `json:"id"`
	ReceiptNumber string            `json:"receiptNumber,omitempty"`
	StoreName     string            `json:"storeName,omitempty"`
	StoreLocation string            `json:"storeLocation,omitempty"`
	Date          string            `json:"date"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Tax           decimal.Decimal   `json:"tax"`
	Total         decimal.Decimal   `json:"total"`
	Notes         string            `json:"notes,omitempty"`
	Status        string            `json:"status,omitempty"`
	LineItems     []LineItemPayload `json:"lineItems"`
}

// LineItemPayload is the wire shape of one receipt line.
type LineItemPayload struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Price          decimal.Decimal  `json:"price"`
	Quantity       int              `json:"quantity"`
	ItemCode       string           `json:"itemCode,omitempty"`
	Category       string           `json:"category,omitempty"`
	OrderIndex     int              `json:"orderIndex"`
	OnSale         bool             `json:"onSale"`
	InstantSavings decimal.Decimal  `json:"instantSavings"`
	OriginalPrice  *decimal.Decimal `json:"originalPrice,omitempty"`
}

// statusFromWire maps the server-reported processing state. A record listed
// without an explicit state is a finished parse, so the default is completed.
func statusFromWire(s string) constants.ProcessingStatus {
	switch st := constants.ProcessingStatus(s); st {
	case constants.StatusPending, constants.StatusProcessing, constants.StatusFailed:
		return st
	default:
		return constants.StatusCompleted
	}
}

// ParseDate accepts the date formats the service has been seen to emit:
// RFC 3339 timestamps and bare YYYY-MM-DD dates.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// ToEntity maps the wire payload to the local entity shape. Line items are
// ordered by their explicit order index; original price defaults to the
// printed price when the server does not report one.
func (p *ReceiptPayload) ToEntity() (*entity.Receipt, error) {
	date, err := ParseDate(p.Date)
	if err != nil {
		return nil, err
	}

	items := make([]entity.LineItem, 0, len(p.LineItems))
	for _, ip := range p.LineItems {
		original := ip.Price
		if ip.OriginalPrice != nil {
			original = *ip.OriginalPrice
		}
		items = append(items, entity.LineItem{
			ServerID:       ip.ID,
			Name:           ip.Name,
			Price:          ip.Price,
			Quantity:       ip.Quantity,
			ItemCode:       ip.ItemCode,
			Category:       ip.Category,
			OrderIndex:     ip.OrderIndex,
			OnSale:         ip.OnSale,
			InstantSavings: ip.InstantSavings,
			OriginalPrice:  original,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].OrderIndex < items[j].OrderIndex
	})

	return &entity.Receipt{
		ServerID:      p.ID,
		ReceiptNumber: p.ReceiptNumber,
		StoreName:     p.StoreName,
		StoreLocation: p.StoreLocation,
		PurchaseDate:  date,
		Subtotal:      p.Subtotal,
		Tax:           p.Tax,
		Total:         p.Total,
		Notes:         p.Notes,
		Status:        statusFromWire(p.Status),
		Items:         items,
	}, nil
}
