// Package pricetrack is the local-first synchronization and analytics engine
// for itemized purchase receipts. It uploads raw captures to the remote
// receipt service, reconciles the local store against the remote parsed
// receipts under a server-wins policy, derives sale and price-adjustment
// state per line item, and computes date-windowed spending aggregates.
//
// The package is a library: the presentation layer owns observation and
// retry policy, and constructs a Tracker with explicit dependencies.
package pricetrack

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pricetrack/pricetrack/constants"
	"github.com/pricetrack/pricetrack/internal/analytics"
	"github.com/pricetrack/pricetrack/internal/entity"
	"github.com/pricetrack/pricetrack/internal/export"
	"github.com/pricetrack/pricetrack/internal/remote"
	"github.com/pricetrack/pricetrack/internal/repository"
	"github.com/pricetrack/pricetrack/internal/syncer"
)

// Tracker is the core engine. All local store access goes through the single
// injected repository, which serializes writes internally; the Tracker holds
// no mutable state of its own and is safe for concurrent use.
type Tracker struct {
	repo     repository.ReceiptRepository
	client   *remote.Client
	coord    *syncer.Coordinator
	exporter *export.Service
	logger   *slog.Logger
	now      func() time.Time
}

func New(repo repository.ReceiptRepository, client *remote.Client, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		repo:     repo,
		client:   client,
		coord:    syncer.NewCoordinator(repo, client, logger),
		exporter: export.NewService(repo, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// UploadReceipt sends a raw capture blob to the remote service and, on
// acceptance, creates the local placeholder receipt. An AcceptedNoData
// outcome is a success: the server parses asynchronously and the next sync
// cycle materializes the parsed fields.
func (t *Tracker) UploadReceipt(ctx context.Context, blob []byte, fileName string) (remote.UploadResult, error) {
	result, err := t.client.Upload(ctx, blob, fileName)
	if err != nil {
		return result, err
	}

	now := t.now().UTC()
	var rec *entity.Receipt
	switch result.Status {
	case remote.UploadAccepted:
		rec, err = result.Receipt.ToEntity()
		if err != nil {
			// The server accepted the blob; a payload we cannot map is the
			// async case in disguise.
			t.logger.Warn("upload.payload_unmappable", "file_name", fileName, "error", err)
			result = remote.UploadResult{Status: remote.UploadAcceptedNoData}
			rec = t.placeholder(fileName, now)
		} else {
			rec.ID = uuid.New()
			rec.CreatedAt = now
			rec.UpdatedAt = now
			rec.LastSyncedAt = &now
		}
	case remote.UploadAcceptedNoData:
		rec = t.placeholder(fileName, now)
	}

	if err := t.repo.Save(ctx, rec); err != nil {
		return result, fmt.Errorf("save placeholder: %w", err)
	}
	t.logger.Info("upload.placeholder_created", "receipt_id", rec.ID, "status", string(rec.Status))
	return result, nil
}

func (t *Tracker) placeholder(fileName string, now time.Time) *entity.Receipt {
	return &entity.Receipt{
		ID:           uuid.New(),
		PurchaseDate: now,
		Status:       constants.StatusPending,
		RawFileRef:   fileName,
		CreatedAt:    now,
		UpdatedAt:    now,
		Items:        []entity.LineItem{},
	}
}

// UploadReceiptFile reads a captured file from disk and uploads it.
func (t *Tracker) UploadReceiptFile(ctx context.Context, path string) error {
	if !constants.IsAllowedCapture(filepath.Ext(path)) {
		return fmt.Errorf("unsupported capture format: %s", filepath.Ext(path))
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read capture: %w", err)
	}
	_, err = t.UploadReceipt(ctx, blob, filepath.Base(path))
	return err
}

// SyncNow runs one full reconciliation cycle against the remote service.
func (t *Tracker) SyncNow(ctx context.Context) (syncer.Summary, error) {
	return t.coord.SyncNow(ctx)
}

// Analytics computes the full analytics snapshot for a window over the
// reconciled local collection. Pending placeholders carry no parsed totals
// yet and are excluded.
func (t *Tracker) Analytics(ctx context.Context, w analytics.Window) (analytics.Snapshot, error) {
	completed := constants.StatusCompleted
	recs, err := t.repo.List(ctx, repository.Filter{Status: &completed})
	if err != nil {
		return analytics.Snapshot{}, fmt.Errorf("list receipts: %w", err)
	}
	return analytics.BuildSnapshot(recs, w, t.now()), nil
}

// UpdateReceipt commits a local user edit. The edit is marked unsynced so
// the next sync cycle protects it from a server overwrite; when Items is
// non-nil the whole line-item collection is replaced with it.
func (t *Tracker) UpdateReceipt(ctx context.Context, rec *entity.Receipt) error {
	rec.LocalEdits = true
	rec.UpdatedAt = t.now().UTC()
	if err := t.repo.Save(ctx, rec); err != nil {
		return err
	}
	for _, w := range rec.QualityWarnings() {
		t.logger.Warn("receipt.data_quality", "receipt_id", rec.ID, "field", w.Field, "detail", w.Message)
	}
	return nil
}

// DeleteReceipt removes a receipt locally. Deletion is local-only; the
// remote copy is untouched.
func (t *Tracker) DeleteReceipt(ctx context.Context, id uuid.UUID) error {
	return t.repo.Delete(ctx, id)
}

// ExportXLSX renders receipts in the window to an XLSX workbook.
func (t *Tracker) ExportXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	return t.exporter.ExportReceiptsXLSX(ctx, from, to)
}
