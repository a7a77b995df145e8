package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"polyradar/config"
	"polyradar/logging"
	"polyradar/models"
)

// Client is the Polymarket CLOB/Gamma REST client. Request signing is
// delegated to the transport layer configured at construction.
type Client struct {
	cfg    *config.Config
	http   *http.Client
	cache  *PriceCache
	logger logging.LoggerInterface
}

// NewClient creates a new Polymarket client
func NewClient(cfg *config.Config, log logging.LoggerInterface) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 15 * time.Second},
		cache:  NewPriceCache(500 * time.Millisecond),
		logger: log,
	}
}

func (c *Client) get(ctx context.Context, host, path string, q url.Values) ([]byte, error) {
	u := host + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.ClobHost+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY-ADDRESS", c.cfg.FunderWallet)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, body)
	}
	return body, nil
}

// Quote returns the current best price for one side of a token. Results
// are cached briefly per (token, side) so concurrent lookups of the same
// quote collapse into one fetch; failures are never cached.
func (c *Client) Quote(ctx context.Context, tokenID, side string) (float64, error) {
	if price, ok := c.cache.Get(tokenID, side); ok {
		return price, nil
	}

	q := url.Values{}
	q.Set("token_id", tokenID)
	q.Set("side", side)
	body, err := c.get(ctx, c.cfg.ClobHost, "/price", q)
	if err != nil {
		return 0, fmt.Errorf("quote %s/%s: %w", tokenID, side, err)
	}

	var r struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return 0, fmt.Errorf("parse quote: %w", err)
	}
	price, err := strconv.ParseFloat(r.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quote %q: %w", r.Price, err)
	}

	c.cache.Put(tokenID, side, price)
	return price, nil
}

// Balance returns available collateral: wallet balance minus value
// locked in resting buy orders.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	body, err := c.get(ctx, c.cfg.ClobHost, "/balance-allowance", url.Values{
		"asset_type":     []string{"COLLATERAL"},
		"signature_type": []string{"1"},
	})
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}

	var r struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return 0, fmt.Errorf("parse balance: %w", err)
	}
	raw, err := strconv.ParseFloat(r.Balance, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", r.Balance, err)
	}
	// Balance is reported in USDC base units.
	balance := raw / 1e6

	locked, err := c.OpenOrdersValue(ctx)
	if err != nil {
		c.logger.Warning("Open-order value unavailable, reporting raw balance: %v", err)
		return balance, nil
	}
	return balance - locked, nil
}

// TokenPosition returns the share balance held for a token.
func (c *Client) TokenPosition(ctx context.Context, tokenID string) (float64, error) {
	q := url.Values{}
	q.Set("user", c.cfg.FunderWallet)
	q.Set("market", tokenID)
	body, err := c.get(ctx, c.cfg.GammaHost, "/positions", q)
	if err != nil {
		return 0, fmt.Errorf("token position %s: %w", tokenID, err)
	}

	var rows []struct {
		Asset string  `json:"asset"`
		Size  float64 `json:"size"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, fmt.Errorf("parse positions: %w", err)
	}
	var total float64
	for _, row := range rows {
		if row.Asset == tokenID {
			total += row.Size
		}
	}
	return total, nil
}

// OpenOrdersValue sums the remaining notional value of resting orders,
// optionally restricted to the given tokens.
func (c *Client) OpenOrdersValue(ctx context.Context, tokenIDs ...string) (float64, error) {
	body, err := c.get(ctx, c.cfg.ClobHost, "/data/orders", url.Values{})
	if err != nil {
		return 0, fmt.Errorf("open orders: %w", err)
	}

	var rows []struct {
		AssetID      string `json:"asset_id"`
		Price        string `json:"price"`
		OriginalSize string `json:"original_size"`
		SizeMatched  string `json:"size_matched"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, fmt.Errorf("parse open orders: %w", err)
	}

	wanted := make(map[string]bool, len(tokenIDs))
	for _, id := range tokenIDs {
		wanted[id] = true
	}

	var total float64
	for _, row := range rows {
		if len(wanted) > 0 && !wanted[row.AssetID] {
			continue
		}
		price, _ := strconv.ParseFloat(row.Price, 64)
		size, _ := strconv.ParseFloat(row.OriginalSize, 64)
		matched, _ := strconv.ParseFloat(row.SizeMatched, 64)
		remaining := size - matched
		if remaining > 0 && price > 0 {
			total += remaining * price
		}
	}
	return total, nil
}

// SubmitOrder places a limit order and returns its id.
func (c *Client) SubmitOrder(ctx context.Context, tokenID string, price, size float64, side string) (string, error) {
	payload := map[string]interface{}{
		"token_id": tokenID,
		"price":    price,
		"size":     size,
		"side":     side,
		"owner":    c.cfg.FunderWallet,
	}
	body, err := c.post(ctx, "/order", payload)
	if err != nil {
		return "", fmt.Errorf("submit order %s %s: %w", side, tokenID, err)
	}

	var r struct {
		Success bool   `json:"success"`
		OrderID string `json:"orderID"`
		Error   string `json:"errorMsg"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return "", fmt.Errorf("parse order response: %w", err)
	}
	if !r.Success || r.OrderID == "" {
		return "", fmt.Errorf("order rejected: %s", r.Error)
	}
	return r.OrderID, nil
}

// OrderStatus fetches the gateway's view of an order.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (*models.OrderStatus, error) {
	body, err := c.get(ctx, c.cfg.ClobHost, "/data/order/"+orderID, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("order status %s: %w", orderID, err)
	}

	var r struct {
		Status      string `json:"status"`
		SizeMatched string `json:"size_matched"`
		Price       string `json:"price"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("parse order status: %w", err)
	}
	matched, _ := strconv.ParseFloat(r.SizeMatched, 64)
	price, _ := strconv.ParseFloat(r.Price, 64)
	return &models.OrderStatus{
		Status:      r.Status,
		SizeMatched: matched,
		Price:       price,
	}, nil
}

// CancelOrder cancels a resting order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if _, err := c.post(ctx, "/order/cancel", map[string]string{"orderID": orderID}); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}
