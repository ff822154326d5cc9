package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pricetrack/pricetrack/constants"
	"github.com/pricetrack/pricetrack/internal/common"
	"github.com/pricetrack/pricetrack/internal/entity"
)

// Filter narrows List results. Nil fields are ignored.
type Filter struct {
	From   *time.Time
	To     *time.Time
	Status *constants.ProcessingStatus
}

// ReceiptRepository is the only write path to the local store. All mutations
// are serialized internally; callers never need external locking.
type ReceiptRepository interface {
	Save(ctx context.Context, r *entity.Receipt) error
	ReplaceLineItems(ctx context.Context, receiptID uuid.UUID, items []entity.LineItem) error
	Delete(ctx context.Context, receiptID uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	GetByServerID(ctx context.Context, serverID string) (*entity.Receipt, error)
	List(ctx context.Context, f Filter) ([]*entity.Receipt, error)
}

type receiptRepository struct {
	db     *sql.DB
	logger *slog.Logger

	mu sync.Mutex // single-writer discipline

	onPersistFailure func(error)
}

// Option configures the repository.
type Option func(*receiptRepository)

// WithPersistenceFailureHook registers a side-channel callback invoked when a
// write fails even after the retry, so the caller can surface a warning
// instead of losing data silently.
func WithPersistenceFailureHook(fn func(error)) Option {
	return func(r *receiptRepository) {
		if fn != nil {
			r.onPersistFailure = fn
		}
	}
}

func NewReceiptRepository(db *sql.DB, logger *slog.Logger, opts ...Option) ReceiptRepository {
	if logger == nil {
		logger = slog.Default()
	}
	r := &receiptRepository{
		db:               db,
		logger:           logger,
		onPersistFailure: func(error) {},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Save writes the receipt row and, when r.Items is non-nil, replaces its line
// items wholesale in the same transaction. On failure the transaction is
// rolled back and retried exactly once.
func (r *receiptRepository) Save(ctx context.Context, rec *entity.Receipt) error {
	return r.mutate(ctx, "save", func(tx *sql.Tx) error {
		if err := upsertReceipt(ctx, tx, rec); err != nil {
			return err
		}
		if rec.Items != nil {
			return replaceItems(ctx, tx, rec.ID, rec.Items)
		}
		return nil
	})
}

// ReplaceLineItems swaps the entire line-item collection of a receipt.
// Edits always replace the whole collection rather than patching individual
// items, to avoid partial-update ambiguity.
func (r *receiptRepository) ReplaceLineItems(ctx context.Context, receiptID uuid.UUID, items []entity.LineItem) error {
	return r.mutate(ctx, "replace_line_items", func(tx *sql.Tx) error {
		return replaceItems(ctx, tx, receiptID, items)
	})
}

func (r *receiptRepository) Delete(ctx context.Context, receiptID uuid.UUID) error {
	return r.mutate(ctx, "delete", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM line_items WHERE receipt_id = ?`, receiptID.String()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM receipts WHERE id = ?`, receiptID.String())
		return err
	})
}

// mutate runs fn in a transaction under the writer lock, rolling back and
// retrying once on failure. The second failure is reported through the
// persistence-failure hook.
func (r *receiptRepository) mutate(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		lastErr = r.runTx(ctx, fn)
		if lastErr == nil {
			return nil
		}
		r.logger.Warn("store.write_failed", "op", op, "attempt", attempt, "error", lastErr)
	}

	err := fmt.Errorf("%s: %v: %w", op, lastErr, common.ErrPersistenceFailed)
	r.logger.Error("store.persistence_failed", "op", op, "error", lastErr)
	r.onPersistFailure(err)
	return err
}

func (r *receiptRepository) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func upsertReceipt(ctx context.Context, tx *sql.Tx, rec *entity.Receipt) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO receipts (
			id, server_id, receipt_number, store_name, store_location,
			purchase_date, subtotal, tax, total, notes, status, raw_file_ref,
			local_edits, last_synced_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			server_id = excluded.server_id,
			receipt_number = excluded.receipt_number,
			store_name = excluded.store_name,
			store_location = excluded.store_location,
			purchase_date = excluded.purchase_date,
			subtotal = excluded.subtotal,
			tax = excluded.tax,
			total = excluded.total,
			notes = excluded.notes,
			status = excluded.status,
			raw_file_ref = excluded.raw_file_ref,
			local_edits = excluded.local_edits,
			last_synced_at = excluded.last_synced_at,
			updated_at = excluded.updated_at`,
		rec.ID.String(), rec.ServerID, rec.ReceiptNumber, rec.StoreName, rec.StoreLocation,
		timeToDB(rec.PurchaseDate), rec.Subtotal.String(), rec.Tax.String(), rec.Total.String(),
		rec.Notes, string(rec.Status), rec.RawFileRef,
		boolToDB(rec.LocalEdits), nullableTimeToDB(rec.LastSyncedAt),
		timeToDB(rec.CreatedAt), timeToDB(rec.UpdatedAt),
	)
	return err
}

func replaceItems(ctx context.Context, tx *sql.Tx, receiptID uuid.UUID, items []entity.LineItem) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM line_items WHERE receipt_id = ?`, receiptID.String()); err != nil {
		return err
	}
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO line_items (
				id, receipt_id, server_id, name, price, quantity,
				item_code, category, order_index, on_sale, instant_savings, original_price
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID.String(), receiptID.String(), it.ServerID, it.Name,
			it.Price.String(), it.Quantity, it.ItemCode, it.Category,
			it.OrderIndex, boolToDB(it.OnSale), it.InstantSavings.String(), it.OriginalPrice.String(),
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *receiptRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	recs, err := r.queryReceipts(ctx, `WHERE id = ?`, id.String())
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, common.ErrNotFound
	}
	return recs[0], nil
}

func (r *receiptRepository) GetByServerID(ctx context.Context, serverID string) (*entity.Receipt, error) {
	if serverID == "" {
		return nil, common.ErrNotFound
	}
	recs, err := r.queryReceipts(ctx, `WHERE server_id = ?`, serverID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, common.ErrNotFound
	}
	return recs[0], nil
}

func (r *receiptRepository) List(ctx context.Context, f Filter) ([]*entity.Receipt, error) {
	where := `WHERE 1=1`
	var args []any
	if f.From != nil {
		where += ` AND purchase_date >= ?`
		args = append(args, timeToDB(*f.From))
	}
	if f.To != nil {
		where += ` AND purchase_date <= ?`
		args = append(args, timeToDB(*f.To))
	}
	if f.Status != nil {
		where += ` AND status = ?`
		args = append(args, string(*f.Status))
	}
	return r.queryReceipts(ctx, where, args...)
}

func (r *receiptRepository) queryReceipts(ctx context.Context, where string, args ...any) ([]*entity.Receipt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, server_id, receipt_number, store_name, store_location,
		       purchase_date, subtotal, tax, total, notes, status, raw_file_ref,
		       local_edits, last_synced_at, created_at, updated_at
		FROM receipts `+where+` ORDER BY purchase_date`, args...)
	if err != nil {
		r.logger.Error("failed to query receipts", "error", err)
		return nil, common.WrapError(err, "query receipts")
	}
	defer rows.Close()

	var recs []*entity.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapError(err, "iterate receipts")
	}

	for _, rec := range recs {
		items, err := r.queryItems(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		rec.Items = items
	}
	return recs, nil
}

func (r *receiptRepository) queryItems(ctx context.Context, receiptID uuid.UUID) ([]entity.LineItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, server_id, name, price, quantity, item_code, category,
		       order_index, on_sale, instant_savings, original_price
		FROM line_items WHERE receipt_id = ? ORDER BY order_index`, receiptID.String())
	if err != nil {
		return nil, common.WrapError(err, "query line items")
	}
	defer rows.Close()

	items := make([]entity.LineItem, 0)
	for rows.Next() {
		var it entity.LineItem
		var id string
		var price, savings, originalPrice string
		var onSale int
		if err := rows.Scan(&id, &it.ServerID, &it.Name, &price, &it.Quantity,
			&it.ItemCode, &it.Category, &it.OrderIndex, &onSale, &savings, &originalPrice); err != nil {
			return nil, common.WrapError(err, "scan line item")
		}
		it.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, common.WrapError(err, "parse line item id")
		}
		it.OnSale = onSale != 0
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, common.WrapError(err, "parse price")
		}
		if it.InstantSavings, err = decimal.NewFromString(savings); err != nil {
			return nil, common.WrapError(err, "parse instant savings")
		}
		if it.OriginalPrice, err = decimal.NewFromString(originalPrice); err != nil {
			return nil, common.WrapError(err, "parse original price")
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*entity.Receipt, error) {
	var rec entity.Receipt
	var id, status string
	var purchaseDate, created, updated string
	var subtotal, tax, total string
	var localEdits int
	var lastSynced sql.NullString
	if err := row.Scan(&id, &rec.ServerID, &rec.ReceiptNumber, &rec.StoreName, &rec.StoreLocation,
		&purchaseDate, &subtotal, &tax, &total, &rec.Notes, &status, &rec.RawFileRef,
		&localEdits, &lastSynced, &created, &updated); err != nil {
		return nil, common.WrapError(err, "scan receipt")
	}

	var err error
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, common.WrapError(err, "parse receipt id")
	}
	rec.Status = constants.ProcessingStatus(status)
	rec.LocalEdits = localEdits != 0
	if rec.PurchaseDate, err = timeFromDB(purchaseDate); err != nil {
		return nil, common.WrapError(err, "parse purchase date")
	}
	if rec.CreatedAt, err = timeFromDB(created); err != nil {
		return nil, common.WrapError(err, "parse created at")
	}
	if rec.UpdatedAt, err = timeFromDB(updated); err != nil {
		return nil, common.WrapError(err, "parse updated at")
	}
	if lastSynced.Valid {
		t, err := timeFromDB(lastSynced.String)
		if err != nil {
			return nil, common.WrapError(err, "parse last synced at")
		}
		rec.LastSyncedAt = &t
	}
	if rec.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, common.WrapError(err, "parse subtotal")
	}
	if rec.Tax, err = decimal.NewFromString(tax); err != nil {
		return nil, common.WrapError(err, "parse tax")
	}
	if rec.Total, err = decimal.NewFromString(total); err != nil {
		return nil, common.WrapError(err, "parse total")
	}
	return &rec, nil
}

// dbTimeLayout is fixed-width so stored timestamps compare correctly as text.
const dbTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func timeToDB(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func nullableTimeToDB(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timeToDB(*t)
}

func timeFromDB(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func boolToDB(b bool) int {
	if b {
		return 1
	}
	return 0
}

// IsNotFound reports whether err is the repository's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
