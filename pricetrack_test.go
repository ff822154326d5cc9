package pricetrack

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricetrack/pricetrack/constants"
	"github.com/pricetrack/pricetrack/internal/analytics"
	"github.com/pricetrack/pricetrack/internal/remote"
	"github.com/pricetrack/pricetrack/internal/repository"
)

// fakeService imitates the remote receipt service: uploads are acknowledged
// with an empty 2xx body and the parsed receipt appears in the list "later".
type fakeService struct {
	mu       sync.Mutex
	uploaded int
	parsed   string
}

func (s *fakeService) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			s.uploaded++
			w.WriteHeader(http.StatusAccepted)
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			if s.parsed == "" {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_, _ = w.Write([]byte(`[` + s.parsed + `]`))
		}
	})
}

func newTestTracker(t *testing.T, baseURL string) *Tracker {
	t.Helper()
	db, err := repository.Open(context.Background(), filepath.Join(t.TempDir(), "store.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewReceiptRepository(db, slog.Default())
	client := remote.NewClient(baseURL, 2*time.Second, slog.Default())
	return New(repo, client, slog.Default())
}

func TestUploadThenSyncThenAnalytics(t *testing.T) {
	svc := &fakeService{}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()

	tracker := newTestTracker(t, srv.URL)
	ctx := context.Background()

	// Upload: server accepts the blob but parses asynchronously.
	result, err := tracker.UploadReceipt(ctx, []byte("jpegbytes"), "costco.jpg")
	require.NoError(t, err)
	assert.Equal(t, remote.UploadAcceptedNoData, result.Status)

	// The server finishes parsing.
	svc.mu.Lock()
	svc.parsed = `{
		"id": "srv-1",
		"receiptNumber": "0042",
		"storeName": "Costco",
		"date": "2026-03-10",
		"subtotal": 30.00,
		"tax": 5.50,
		"total": 35.50,
		"lineItems": [
			{"id": "li-1", "name": "Milk", "price": 4.50, "quantity": 1, "orderIndex": 0},
			{"id": "li-2", "name": "Eggs", "price": 25.50, "quantity": 1, "orderIndex": 1, "onSale": true, "instantSavings": 2.00}
		]
	}`
	svc.mu.Unlock()

	summary, err := tracker.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)

	snap, err := tracker.Analytics(ctx, analytics.AllTime())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ReceiptCount)
	assert.True(t, snap.TotalSpent.Equal(decimal.RequireFromString("35.50")))
	assert.True(t, snap.TotalSavings.Equal(decimal.RequireFromString("2.00")))

	// No remote change: the second cycle must be a no-op.
	summary, err = tracker.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 0, summary.Updated)
}

func TestLocalEditSurvivesSync(t *testing.T) {
	svc := &fakeService{parsed: `{"id":"srv-1","date":"2026-03-10","storeName":"Costco","subtotal":35.50,"tax":0,"total":35.50,"lineItems":[]}`}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()

	tracker := newTestTracker(t, srv.URL)
	ctx := context.Background()

	_, err := tracker.SyncNow(ctx)
	require.NoError(t, err)

	recs, err := tracker.repo.List(ctx, repository.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	edited := recs[0]
	edited.StoreName = "Costco (edited)"
	edited.Notes = "kept my note"
	require.NoError(t, tracker.UpdateReceipt(ctx, edited))

	summary, err := tracker.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)

	recs, err = tracker.repo.List(ctx, repository.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Costco (edited)", recs[0].StoreName)
	assert.Equal(t, "kept my note", recs[0].Notes)
}

func TestUploadCreatesPendingPlaceholder(t *testing.T) {
	svc := &fakeService{}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()

	tracker := newTestTracker(t, srv.URL)
	ctx := context.Background()

	_, err := tracker.UploadReceipt(ctx, []byte("bytes"), "capture.jpg")
	require.NoError(t, err)

	pending := constants.StatusPending
	recs, err := tracker.repo.List(ctx, repository.Filter{Status: &pending})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "capture.jpg", recs[0].RawFileRef)

	// Placeholders are invisible to analytics until parsed.
	snap, err := tracker.Analytics(ctx, analytics.AllTime())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.ReceiptCount)
}

func TestUploadTransportFailureDoesNotCreatePlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	tracker := newTestTracker(t, srv.URL)
	ctx := context.Background()

	_, err := tracker.UploadReceipt(ctx, []byte("bytes"), "capture.jpg")
	require.Error(t, err)

	recs, listErr := tracker.repo.List(ctx, repository.Filter{})
	require.NoError(t, listErr)
	assert.Empty(t, recs)
}

func TestExportXLSX(t *testing.T) {
	svc := &fakeService{parsed: `{"id":"srv-1","date":"2026-03-10","storeName":"Costco","subtotal":35.50,"tax":0,"total":35.50,"lineItems":[{"name":"Milk","price":35.50,"quantity":1,"orderIndex":0}]}`}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()

	tracker := newTestTracker(t, srv.URL)
	ctx := context.Background()

	_, err := tracker.SyncNow(ctx)
	require.NoError(t, err)

	out, err := tracker.ExportXLSX(ctx, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
