package luno

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"xbt_book/internal/domain"

	"github.com/shopspring/decimal"
)

// Client is the Luno REST trading client (Boundary Layer).
type Client struct {
	baseURL      string
	pair         string
	apiKeyID     string
	apiKeySecret string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates a client for the given market.
func NewClient(baseURL string, market domain.Market, keyID, keySecret string) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		pair:         market.Code(),
		apiKeyID:     keyID,
		apiKeySecret: keySecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		logger: slog.Default().With("module", "luno_client"),
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

// PlaceOrder posts a limit order and returns the exchange order id.
// Volume is rounded to four decimals, price is sent with two.
func (c *Client) PlaceOrder(ctx context.Context, side domain.Side, volume, price decimal.Decimal) (string, error) {
	form := url.Values{}
	form.Set("pair", c.pair)
	form.Set("type", string(side))
	form.Set("volume", volume.Round(4).String())
	form.Set("price", price.StringFixed(2))

	var resp struct {
		OrderID string `json:"order_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/1/postorder", nil, form, &resp); err != nil {
		return "", fmt.Errorf("luno place order failed: %w", err)
	}
	if resp.OrderID == "" {
		return "", domain.NewFatalNetworkError("postorder", fmt.Errorf("empty order id"))
	}

	c.logger.Info("Order placed", "oid", resp.OrderID, "side", side, "volume", form.Get("volume"), "price", form.Get("price"))
	return resp.OrderID, nil
}

// CancelOrder stops a pending order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	form := url.Values{}
	form.Set("order_id", orderID)

	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/1/stoporder", nil, form, &resp); err != nil {
		return fmt.Errorf("luno cancel order %s failed: %w", orderID, err)
	}
	if !resp.Success {
		return domain.NewNetworkError("stoporder", fmt.Errorf("order %s not stopped", orderID))
	}
	return nil
}

type apiOrder struct {
	OrderID           string          `json:"order_id"`
	CreationTimestamp int64           `json:"creation_timestamp"`
	Type              string          `json:"type"`
	State             string          `json:"state"`
	LimitPrice        decimal.Decimal `json:"limit_price"`
	LimitVolume       decimal.Decimal `json:"limit_volume"`
	Base              decimal.Decimal `json:"base"`
}

// ListPendingOrders returns the account's pending orders on the market,
// with LimitVolume reduced by what has already been filled.
func (c *Client) ListPendingOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	query := url.Values{}
	query.Set("pair", c.pair)
	query.Set("state", "PENDING")

	var resp struct {
		Orders []apiOrder `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/1/listorders", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("luno list orders failed: %w", err)
	}

	out := make([]domain.OpenOrder, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		side := domain.Side(o.Type)
		if !side.Valid() {
			c.logger.Warn("Skipping order with unknown type", "oid", o.OrderID, "type", o.Type)
			continue
		}
		out = append(out, domain.OpenOrder{
			ID:                o.OrderID,
			Side:              side,
			LimitPrice:        o.LimitPrice,
			LimitVolume:       o.LimitVolume.Sub(o.Base),
			CreationTimestamp: o.CreationTimestamp,
		})
	}
	return out, nil
}

// do sends a basic-auth request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, query, form url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.apiKeyID, c.apiKeySecret)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError(path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewNetworkError(path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		_ = json.Unmarshal(bodyBytes, &apiErr)
		err := fmt.Errorf("status=%d code=%s msg=%s", resp.StatusCode, apiErr.ErrorCode, apiErr.Error)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return domain.NewNetworkError(path, err)
		}
		return domain.NewFatalNetworkError(path, err)
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
