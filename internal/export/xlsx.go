package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pricetrack/pricetrack/internal/pricing"
	"github.com/pricetrack/pricetrack/internal/repository"
)

// Service is a tiny façade over the repository that produces XLSX bytes for
// exports.
type Service struct {
	repo   repository.ReceiptRepository
	logger *slog.Logger
}

func NewService(repo repository.ReceiptRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportReceiptsXLSX returns an XLSX workbook (as bytes) for the given date
// window: a Receipts sheet plus a Line Items sheet with derived effective
// prices. Nil bounds mean unbounded.
func (s *Service) ExportReceiptsXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	recs, err := s.repo.List(ctx, repository.Filter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}

	f := excelize.NewFile()
	const receiptsSheet = "Receipts"
	const itemsSheet = "Line Items"

	if err := f.SetSheetName("Sheet1", receiptsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	write := func(sheet string, col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	receiptHeaders := []string{"Date", "Store", "Location", "Receipt #", "Subtotal", "Tax", "Total", "Instant Savings", "Items", "Status", "Notes"}
	for i, h := range receiptHeaders {
		write(receiptsSheet, i+1, 1, h)
	}
	itemHeaders := []string{"Date", "Store", "Item", "Category", "Printed Price", "Instant Savings", "Effective Price", "Qty", "Line Total", "On Sale"}
	for i, h := range itemHeaders {
		write(itemsSheet, i+1, 1, h)
	}

	receiptRow, itemRow := 2, 2
	for _, r := range recs {
		write(receiptsSheet, 1, receiptRow, r.PurchaseDate.Format("2006-01-02"))
		write(receiptsSheet, 2, receiptRow, r.StoreName)
		write(receiptsSheet, 3, receiptRow, r.StoreLocation)
		write(receiptsSheet, 4, receiptRow, r.ReceiptNumber)
		write(receiptsSheet, 5, receiptRow, r.Subtotal.StringFixed(2))
		write(receiptsSheet, 6, receiptRow, r.Tax.StringFixed(2))
		write(receiptsSheet, 7, receiptRow, r.Total.StringFixed(2))
		write(receiptsSheet, 8, receiptRow, pricing.ReceiptSavings(r).StringFixed(2))
		write(receiptsSheet, 9, receiptRow, len(r.Items))
		write(receiptsSheet, 10, receiptRow, string(r.Status))
		write(receiptsSheet, 11, receiptRow, truncate(r.Notes, 140))
		receiptRow++

		for _, it := range r.Items {
			write(itemsSheet, 1, itemRow, r.PurchaseDate.Format("2006-01-02"))
			write(itemsSheet, 2, itemRow, r.StoreName)
			write(itemsSheet, 3, itemRow, it.Name)
			write(itemsSheet, 4, itemRow, it.Category)
			write(itemsSheet, 5, itemRow, it.Price.StringFixed(2))
			write(itemsSheet, 6, itemRow, it.InstantSavings.StringFixed(2))
			write(itemsSheet, 7, itemRow, pricing.EffectivePrice(it).StringFixed(2))
			write(itemsSheet, 8, itemRow, it.Quantity)
			write(itemsSheet, 9, itemRow, pricing.LineTotal(it).StringFixed(2))
			write(itemsSheet, 10, itemRow, it.OnSale)
			itemRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(receiptsSheet, "A", "A", 12)
	_ = f.SetColWidth(receiptsSheet, "B", "C", 24)
	_ = f.SetColWidth(receiptsSheet, "E", "H", 14)
	_ = f.SetColWidth(receiptsSheet, "K", "K", 48)
	_ = f.SetColWidth(itemsSheet, "C", "C", 32)
	_ = f.SetColWidth(itemsSheet, "E", "I", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"receipts", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// truncate caps s at n runes. Notes are free text, so cutting on a byte
// offset could split a multi-byte rune.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
