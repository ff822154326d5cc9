package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// UploadStatus classifies an accepted upload.
type UploadStatus string

const (
	// UploadAccepted means the server parsed the blob synchronously and
	// returned the receipt payload.
	UploadAccepted UploadStatus = "ACCEPTED"
	// UploadAcceptedNoData means the server accepted the blob but returned no
	// parseable payload; parsing happens asynchronously. This is a success,
	// not an error.
	UploadAcceptedNoData UploadStatus = "ACCEPTED_NO_DATA"
)

// UploadResult is the classified outcome of a successful upload.
type UploadResult struct {
	Status  UploadStatus
	Receipt *ReceiptPayload // non-nil only for UploadAccepted
}

// Upload sends the raw blob as a multipart request. Any non-2xx response or
// transport failure returns a *TransportError; a 2xx response always
// succeeds, even with an empty or unparseable body.
func (c *Client) Upload(ctx context.Context, blob []byte, fileName string) (UploadResult, error) {
	reqID := uuid.New().String()
	start := time.Now()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return UploadResult{}, &TransportError{Op: "upload", Cause: fmt.Errorf("build multipart: %w", err)}
	}
	if _, err := part.Write(blob); err != nil {
		return UploadResult{}, &TransportError{Op: "upload", Cause: fmt.Errorf("write blob: %w", err)}
	}
	if err := w.Close(); err != nil {
		return UploadResult{}, &TransportError{Op: "upload", Cause: fmt.Errorf("close multipart: %w", err)}
	}

	url := c.baseURL + "/receipts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return UploadResult{}, &TransportError{Op: "upload", Cause: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	c.logger.Info("upload.request",
		"req_id", reqID,
		"file_name", fileName,
		"bytes", len(blob),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("upload.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return UploadResult{}, &TransportError{Op: "upload", Cause: err}
	}
	defer closeBody(resp.Body, c.logger, reqID)

	raw, _ := io.ReadAll(resp.Body)

	c.logger.Info("upload.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return UploadResult{}, &TransportError{Op: "upload", StatusCode: resp.StatusCode, Cause: fmt.Errorf("non-2xx status")}
	}

	// 2xx with an empty or unparseable body means the server accepted the
	// file and will parse it asynchronously. The decode error is deliberately
	// dropped here: reclassifying this case as a failure is the bug this
	// branch exists to prevent.
	if len(bytes.TrimSpace(raw)) == 0 {
		c.logger.Info("upload.accepted_no_data", "req_id", reqID, "file_name", fileName)
		return UploadResult{Status: UploadAcceptedNoData}, nil
	}
	var payload ReceiptPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.ID == "" {
		c.logger.Info("upload.accepted_no_data", "req_id", reqID, "file_name", fileName)
		return UploadResult{Status: UploadAcceptedNoData}, nil
	}

	c.logger.Info("upload.accepted", "req_id", reqID, "file_name", fileName, "server_id", payload.ID)
	return UploadResult{Status: UploadAccepted, Receipt: &payload}, nil
}
