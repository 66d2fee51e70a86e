// Package httpremote implements the remote order store contract over HTTP.
package httpremote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/outpost/internal/platform/timeouts"
	"github.com/louisbranch/outpost/internal/remote"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Client submits orders to an HTTP order API. Writes carry the local queue ID
// as an idempotency key so a retry after a lost acknowledgement does not
// create a duplicate upstream record.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New creates a remote client for baseURL.
func New(baseURL string, httpc *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("remote base url is required")
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: timeouts.RemoteWrite}
	}
	return &Client{baseURL: baseURL, httpc: httpc}, nil
}

type createOrderResponse struct {
	ID string `json:"id"`
}

// CreateOrder submits one order payload. A 409 response means the remote
// store already holds this idempotency key; that counts as success.
func (c *Client) CreateOrder(ctx context.Context, req remote.CreateOrderRequest) (remote.CreateOrderResult, error) {
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return remote.CreateOrderResult{}, &remote.WriteError{
			Kind: remote.KindPermanent,
			Err:  fmt.Errorf("idempotency key is required"),
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader([]byte(req.PayloadJSON)))
	if err != nil {
		return remote.CreateOrderResult{}, &remote.WriteError{Kind: remote.KindPermanent, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(idempotencyKeyHeader, req.IdempotencyKey)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return remote.CreateOrderResult{}, &remote.WriteError{Kind: remote.KindTransient, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var decoded createOrderResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
			// The write landed; a malformed body must not trigger a retry.
			return remote.CreateOrderResult{RemoteID: req.IdempotencyKey}, nil
		}
		return remote.CreateOrderResult{RemoteID: decoded.ID}, nil

	case resp.StatusCode == http.StatusConflict:
		return remote.CreateOrderResult{RemoteID: req.IdempotencyKey, Duplicate: true}, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return remote.CreateOrderResult{}, &remote.WriteError{
			Kind: remote.KindPermanent,
			Err:  fmt.Errorf("remote rejected order: status %d", resp.StatusCode),
		}

	default:
		return remote.CreateOrderResult{}, &remote.WriteError{
			Kind: remote.KindTransient,
			Err:  fmt.Errorf("remote unavailable: status %d", resp.StatusCode),
		}
	}
}

// Reachable reports whether the remote health endpoint answers in time.
func (c *Client) Reachable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, timeouts.RemoteProbe)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))
	return resp.StatusCode == http.StatusOK
}

var _ remote.Store = (*Client)(nil)

// Timeout returns the write timeout the client enforces per request.
func (c *Client) Timeout() time.Duration {
	if c == nil || c.httpc == nil {
		return 0
	}
	return c.httpc.Timeout
}
