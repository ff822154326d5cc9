// Package syncer reconciles the local receipt store against the remote
// receipt service under a server-wins policy that never clobbers unsynced
// local edits.
package syncer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pricetrack/pricetrack/internal/common"
	"github.com/pricetrack/pricetrack/internal/entity"
	"github.com/pricetrack/pricetrack/internal/remote"
	"github.com/pricetrack/pricetrack/internal/repository"
)

// RemoteLister is the slice of the remote client the coordinator needs.
type RemoteLister interface {
	ListReceipts(ctx context.Context) ([]json.RawMessage, error)
}

// RecordFailure reports one remote record that could not be reconciled.
type RecordFailure struct {
	ServerID string `json:"server_id"`
	Error    string `json:"error"`
}

// Summary reports the outcome of one sync cycle. Per-record failures do not
// abort the cycle; the rest of the summary remains valid alongside them.
type Summary struct {
	Created  int                         `json:"created"`
	Updated  int                         `json:"updated"`
	Skipped  int                         `json:"skipped"`
	Failed   int                         `json:"failed"`
	Failures []RecordFailure             `json:"failures,omitempty"`
	Warnings []entity.DataQualityWarning `json:"warnings,omitempty"`
	Duration time.Duration               `json:"duration"`
}

// Coordinator runs full reconciliation cycles. Each cycle is independent:
// per-record writes go through the repository's serialized write path, so
// concurrent cycles need no external locking.
type Coordinator struct {
	repo   repository.ReceiptRepository
	lister RemoteLister
	logger *slog.Logger
	now    func() time.Time
}

func NewCoordinator(repo repository.ReceiptRepository, lister RemoteLister, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		repo:   repo,
		lister: lister,
		now:    time.Now,
		logger: logger,
	}
}

// SyncNow fetches the full remote list and reconciles it record by record.
// A fetch failure aborts the cycle; a single record's failure is collected
// and the cycle continues. Running the cycle twice with no remote change
// produces no additional mutations.
func (c *Coordinator) SyncNow(ctx context.Context) (Summary, error) {
	start := c.now()
	var summary Summary

	records, err := c.lister.ListReceipts(ctx)
	if err != nil {
		c.logger.Error("sync.fetch_failed", "error", err)
		return summary, common.WrapError(err, "fetch remote receipts")
	}

	locals, err := c.repo.List(ctx, repository.Filter{})
	if err != nil {
		return summary, common.WrapError(err, "list local receipts")
	}

	byServerID := make(map[string]*entity.Receipt, len(locals))
	var unsynced []*entity.Receipt
	for _, l := range locals {
		if l.ServerID != "" {
			byServerID[l.ServerID] = l
		} else {
			unsynced = append(unsynced, l)
		}
	}

	for _, raw := range records {
		serverID, err := c.reconcile(ctx, raw, byServerID, &unsynced, &summary)
		if err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, RecordFailure{ServerID: serverID, Error: err.Error()})
			c.logger.Warn("sync.record_failed", "server_id", serverID, "error", err)
		}
	}

	summary.Duration = c.now().Sub(start)
	c.logger.Info("sync.cycle.ok",
		"created", summary.Created,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"elapsed_ms", summary.Duration.Milliseconds(),
	)
	return summary, nil
}

// reconcile applies the per-record rule for one remote receipt and returns
// the server id for failure reporting.
func (c *Coordinator) reconcile(
	ctx context.Context,
	raw json.RawMessage,
	byServerID map[string]*entity.Receipt,
	unsynced *[]*entity.Receipt,
	summary *Summary,
) (string, error) {
	payload, err := remote.DecodeReceipt(raw)
	if err != nil {
		return "", err
	}
	incoming, err := payload.ToEntity()
	if err != nil {
		return payload.ID, err
	}

	if !incoming.Status.IsTerminal() {
		// The server has not finished parsing this receipt; a later cycle
		// picks it up once the state settles.
		summary.Skipped++
		c.logger.Info("sync.skipped.processing", "server_id", payload.ID, "status", string(incoming.Status))
		return payload.ID, nil
	}

	if w := incoming.QualityWarnings(); len(w) > 0 {
		summary.Warnings = append(summary.Warnings, w...)
		for _, warning := range w {
			c.logger.Warn("sync.data_quality", "server_id", payload.ID, "field", warning.Field, "detail", warning.Message)
		}
	}

	local := byServerID[payload.ID]
	if local == nil {
		// An adopted placeholder leaves the pool so a second record sharing
		// the composite key cannot claim it again this cycle.
		if i := matchPlaceholder(*unsynced, incoming); i >= 0 {
			local = (*unsynced)[i]
			*unsynced = append((*unsynced)[:i], (*unsynced)[i+1:]...)
		}
	}

	now := c.now().UTC()
	switch {
	case local == nil:
		// Unseen: materialize locally from the remote payload.
		incoming.ID = uuid.New()
		incoming.CreatedAt = now
		incoming.UpdatedAt = now
		incoming.LastSyncedAt = &now
		if err := c.repo.Save(ctx, incoming); err != nil {
			return payload.ID, err
		}
		byServerID[payload.ID] = incoming
		summary.Created++
		c.logger.Info("sync.created", "server_id", payload.ID, "receipt_id", incoming.ID)

	case local.LocalEdits:
		// Known-Modified: the unsynced local edit is protected this cycle.
		summary.Skipped++
		c.logger.Info("sync.skipped.local_edits", "server_id", payload.ID, "receipt_id", local.ID)

	case sameReceipt(local, incoming):
		// Already in agreement; writing again would break idempotency.
		summary.Skipped++

	default:
		// Known-Unmodified: server wins unconditionally. The identity and
		// local bookkeeping survive; everything else is overwritten and the
		// line items replaced wholesale.
		incoming.ID = local.ID
		incoming.CreatedAt = local.CreatedAt
		incoming.UpdatedAt = now
		incoming.LastSyncedAt = &now
		if err := c.repo.Save(ctx, incoming); err != nil {
			return payload.ID, err
		}
		byServerID[payload.ID] = incoming
		summary.Updated++
		c.logger.Info("sync.updated", "server_id", payload.ID, "receipt_id", local.ID)
	}
	// Receipts that exist only locally (orphaned or still-pending drafts) are
	// left in place: a transient remote outage must not cause data loss.
	return payload.ID, nil
}

// matchPlaceholder finds the index of the local placeholder for a remote
// record whose server id is not yet known locally, or -1. The match is
// deliberately strict: a non-empty receipt number must agree, plus the
// calendar date and exact total. Date and total alone never merge two
// receipts.
func matchPlaceholder(unsynced []*entity.Receipt, incoming *entity.Receipt) int {
	if incoming.ReceiptNumber == "" {
		return -1
	}
	for i, l := range unsynced {
		if l.ReceiptNumber == incoming.ReceiptNumber &&
			sameDay(l.PurchaseDate, incoming.PurchaseDate) &&
			l.Total.Equal(incoming.Total) {
			return i
		}
	}
	return -1
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// sameReceipt reports whether the local copy already reflects the remote
// payload, field for field, items included.
func sameReceipt(local, incoming *entity.Receipt) bool {
	if local.ServerID != incoming.ServerID ||
		local.ReceiptNumber != incoming.ReceiptNumber ||
		local.StoreName != incoming.StoreName ||
		local.StoreLocation != incoming.StoreLocation ||
		!local.PurchaseDate.Equal(incoming.PurchaseDate) ||
		!local.Subtotal.Equal(incoming.Subtotal) ||
		!local.Tax.Equal(incoming.Tax) ||
		!local.Total.Equal(incoming.Total) ||
		local.Notes != incoming.Notes ||
		len(local.Items) != len(incoming.Items) {
		return false
	}
	for i := range local.Items {
		if !sameItem(local.Items[i], incoming.Items[i]) {
			return false
		}
	}
	return true
}

func sameItem(a, b entity.LineItem) bool {
	return a.ServerID == b.ServerID &&
		a.Name == b.Name &&
		a.Price.Equal(b.Price) &&
		a.Quantity == b.Quantity &&
		a.ItemCode == b.ItemCode &&
		a.Category == b.Category &&
		a.OrderIndex == b.OrderIndex &&
		a.OnSale == b.OnSale &&
		a.InstantSavings.Equal(b.InstantSavings) &&
		a.OriginalPrice.Equal(b.OriginalPrice)
}
