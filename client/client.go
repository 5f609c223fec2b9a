package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotFound is returned when the server has no transfer for a signature.
var ErrNotFound = errors.New("transfer not found")

// Transfer is a transfer record as served by the read API.
type Transfer struct {
	Signature     string `json:"signature"`
	Sender        string `json:"sender"`
	Receiver      string `json:"receiver"`
	SolAmount     int64  `json:"sol_amount"`
	Fee           int64  `json:"fee"`
	Timestamp     *int64 `json:"timestamp"`
	PrevBlockhash string `json:"prev_blockhash"`
}

// Time returns the block time, or the zero time when it is unknown.
func (t *Transfer) Time() time.Time {
	if t.Timestamp == nil {
		return time.Time{}
	}
	return time.Unix(*t.Timestamp, 0).UTC()
}

// Page is one page of transfers.
type Page struct {
	Transfers []*Transfer `json:"transfers"`
	Count     int         `json:"count"`
	Limit     int         `json:"limit"`
	Offset    int         `json:"offset"`
}

// Client is the HTTP client for the soltrack read API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new read API client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// ListTransfers fetches every stored transfer from GET /transactions.
func (c *Client) ListTransfers(ctx context.Context) ([]*Transfer, error) {
	var transfers []*Transfer
	if err := c.getJSON(ctx, "/transactions", &transfers, nil); err != nil {
		return nil, err
	}
	c.logger.Debug("transfers listed", "count", len(transfers))
	return transfers, nil
}

// ListTransfersPage fetches one page from GET /api/v1/transfers.
func (c *Client) ListTransfersPage(ctx context.Context, limit, offset int) (*Page, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var page Page
	if err := c.getJSON(ctx, "/api/v1/transfers?"+q.Encode(), &page, nil); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetTransfer fetches one transfer. It returns ErrNotFound when the server
// has none for signature.
func (c *Client) GetTransfer(ctx context.Context, signature string) (*Transfer, error) {
	var t Transfer
	if err := c.getJSON(ctx, "/api/v1/transfers/"+url.PathEscape(signature), &t, ErrNotFound); err != nil {
		return nil, err
	}
	return &t, nil
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// getJSON decodes a 200 response into out. A 404 becomes notFound when it is
// set and an ordinary status error otherwise.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}, notFound error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && notFound != nil {
		return notFound
	}
	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse extracts the error message from an error response.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
