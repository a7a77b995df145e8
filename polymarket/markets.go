package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"polyradar/models"
)

// FindCurrentMarket resolves the live up/down market for an asset and
// window length. Market slugs embed the window start timestamp, so the
// current and adjacent aligned starts are tried in order until one
// resolves to an active market.
func (c *Client) FindCurrentMarket(ctx context.Context, asset string, windowMins int) (*models.Market, error) {
	now := time.Now().UTC()
	window := time.Duration(windowMins) * time.Minute
	aligned := now.Truncate(window)

	candidates := []time.Time{aligned, aligned.Add(window), aligned.Add(-window)}
	var lastErr error
	for _, start := range candidates {
		slug := fmt.Sprintf("%s-updown-%dm-%d", asset, windowMins, start.Unix())
		m, err := c.marketBySlug(ctx, slug)
		if err != nil {
			lastErr = err
			continue
		}
		m.WindowStart = start
		m.WindowEnd = start.Add(window)
		m.WindowMins = windowMins
		if m.WindowEnd.After(now) {
			return m, nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all candidate windows already closed")
	}
	return nil, fmt.Errorf("find market %s/%dm: %w", asset, windowMins, lastErr)
}

func (c *Client) marketBySlug(ctx context.Context, slug string) (*models.Market, error) {
	q := url.Values{}
	q.Set("slug", slug)
	body, err := c.get(ctx, c.cfg.GammaHost, "/markets", q)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Slug         string `json:"slug"`
		Active       bool   `json:"active"`
		Closed       bool   `json:"closed"`
		ClobTokenIDs string `json:"clobTokenIds"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse markets: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no market for slug %q", slug)
	}

	row := rows[0]
	if !row.Active || row.Closed {
		return nil, fmt.Errorf("market %q not active", slug)
	}

	// clobTokenIds is a JSON array encoded as a string.
	var tokens []string
	if err := json.Unmarshal([]byte(row.ClobTokenIDs), &tokens); err != nil || len(tokens) < 2 {
		return nil, fmt.Errorf("market %q has malformed token ids", slug)
	}

	return &models.Market{
		Slug:        row.Slug,
		UpTokenID:   tokens[0],
		DownTokenID: tokens[1],
	}, nil
}
