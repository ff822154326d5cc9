// Package remote is the client for the Remote Receipt Service: it uploads
// raw capture blobs for asynchronous server-side parsing and fetches the
// authoritative parsed receipt list.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pricetrack/pricetrack/internal/common"
)

// TransportError wraps a network or server failure. It is surfaced verbatim
// to the caller; retry policy belongs to the caller, never to this package.
type TransportError struct {
	Op         string
	StatusCode int
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return common.ErrTransport
}

// Client talks to the remote receipt service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ListReceipts fetches the full remote receipt list. Records are returned
// raw so the caller can validate and decode each one independently; one
// malformed record must not poison the whole cycle.
func (c *Client) ListReceipts(ctx context.Context) ([]json.RawMessage, error) {
	reqID := uuid.New().String()
	start := time.Now()

	url := c.baseURL + "/receipts"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{Op: "list receipts", Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Info("remote.list.request", "req_id", reqID, "url", url)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("remote.list.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, &TransportError{Op: "list receipts", Cause: err}
	}
	defer closeBody(resp.Body, c.logger, reqID)

	raw, _ := io.ReadAll(resp.Body)

	c.logger.Info("remote.list.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return nil, &TransportError{Op: "list receipts", StatusCode: resp.StatusCode, Cause: fmt.Errorf("non-2xx status")}
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &TransportError{Op: "list receipts", StatusCode: resp.StatusCode, Cause: fmt.Errorf("decode list: %w", err)}
	}
	return records, nil
}

func closeBody(body io.ReadCloser, logger *slog.Logger, reqID string) {
	if err := body.Close(); err != nil {
		logger.Warn("remote.response_body_close_error", "req_id", reqID, "error", err)
	}
}
