package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"polyradar/logging"
	"polyradar/models"
)

const restHost = "https://api.binance.com"

// Client is the Binance public REST client used for kline history and
// spot prices. It needs no credentials.
type Client struct {
	host   string
	http   *http.Client
	logger logging.LoggerInterface
}

// NewClient creates a new Binance REST client
func NewClient(log logging.LoggerInterface) *Client {
	return &Client{
		host:   restHost,
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: log,
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.host+path+"?"+q.Encode(), nil)
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
		return nil, fmt.Errorf("binance %s: status %d: %s", path, resp.StatusCode, body)
	}
	return body, nil
}

// GetKlines fetches the last limit candles for symbol at the given
// interval, newest last. The final candle may still be forming.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/api/v3/klines", q)
	if err != nil {
		return nil, fmt.Errorf("get klines: %w", err)
	}

	// Each row: [openTime, open, high, low, close, volume, closeTime, ...]
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse klines: %w", err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			continue
		}
		candle := models.Candle{OpenTime: time.UnixMilli(openTime)}
		fields := []*float64{&candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume}
		ok := true
		for i, dst := range fields {
			var s string
			if err := json.Unmarshal(row[i+1], &s); err != nil {
				ok = false
				break
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				ok = false
				break
			}
			*dst = v
		}
		if ok {
			candles = append(candles, candle)
		} else {
			c.logger.Debug("Skipping malformed kline row for %s", symbol)
		}
	}
	return candles, nil
}

// Price fetches the current spot price for symbol.
func (c *Client) Price(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	body, err := c.get(ctx, "/api/v3/ticker/price", q)
	if err != nil {
		return 0, fmt.Errorf("get price: %w", err)
	}

	var r struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return 0, fmt.Errorf("parse price: %w", err)
	}
	price, err := strconv.ParseFloat(r.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", r.Price, err)
	}
	return price, nil
}

// PriceAt fetches the open price of the one-minute candle covering ts
// (unix milliseconds). Used to pin the price-to-beat for a window.
func (c *Client) PriceAt(ctx context.Context, symbol string, ts int64) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", "1m")
	q.Set("startTime", strconv.FormatInt(ts, 10))
	q.Set("limit", "1")

	body, err := c.get(ctx, "/api/v3/klines", q)
	if err != nil {
		return 0, fmt.Errorf("get price at %d: %w", ts, err)
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 || len(rows[0]) < 2 {
		return 0, fmt.Errorf("no candle at %d", ts)
	}
	var s string
	if err := json.Unmarshal(rows[0][1], &s); err != nil {
		return 0, fmt.Errorf("parse candle open: %w", err)
	}
	open, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse candle open %q: %w", s, err)
	}
	return open, nil
}
