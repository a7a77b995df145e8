package trade

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"polyradar/config"
	"polyradar/interfaces"
	"polyradar/internal/pricing"
	"polyradar/logging"
	"polyradar/models"
)

// Residual share balances below this are ignored when closing.
const dustThreshold = 0.01

// Controller owns the position book, trade history and session P&L.
// Nothing else mutates them; the evaluation loop and the background
// sync job reach them only through Controller methods.
type Controller struct {
	cfg      *config.Config
	gateway  interfaces.Gateway
	recorder interfaces.Recorder
	logger   logging.LoggerInterface

	mu         sync.Mutex
	positions  []models.Position
	trades     []models.TradeEvent
	sessionPnL float64
}

// NewController creates a trade lifecycle controller
func NewController(cfg *config.Config, gw interfaces.Gateway, rec interfaces.Recorder, log logging.LoggerInterface) *Controller {
	return &Controller{
		cfg:      cfg,
		gateway:  gw,
		recorder: rec,
		logger:   log,
	}
}

// Positions returns a copy of the current position book.
func (c *Controller) Positions() []models.Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Position, len(c.positions))
	copy(out, c.positions)
	return out
}

// Trades returns a copy of the session trade history.
func (c *Controller) Trades() []models.TradeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.TradeEvent, len(c.trades))
	copy(out, c.trades)
	return out
}

// SessionPnL returns realized profit and loss for the session.
func (c *Controller) SessionPnL() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionPnL
}

func (c *Controller) localShares(direction models.Direction) float64 {
	var total float64
	for _, p := range c.positions {
		if p.Direction == direction {
			total += p.Shares
		}
	}
	return total
}

func (c *Controller) recordTrade(ev models.TradeEvent) {
	c.trades = append(c.trades, ev)
	c.sessionPnL += ev.PnL
	if err := c.recorder.RecordTrade(ev); err != nil {
		c.logger.Warning("Failed to persist trade event: %v", err)
	}
}

// BuyResult describes a completed entry.
type BuyResult struct {
	OrderID string
	Shares  float64
	Price   float64
}

// Buy enters a position on one side of the market. It prices the order
// aggressively above the current ask, waits for the fill and registers
// the position. A nil result with a message means the entry did not
// happen; it is not an error condition for the caller.
func (c *Controller) Buy(ctx context.Context, market *models.Market, direction models.Direction, amount float64) (*BuyResult, string) {
	tokenID := market.UpTokenID
	if direction == models.DirectionDown {
		tokenID = market.DownTokenID
	}

	quote, err := c.gateway.Quote(ctx, tokenID, "BUY")
	if err != nil || quote <= 0 {
		return nil, fmt.Sprintf("no quote for %s entry: %v", direction, err)
	}

	price := pricing.RoundToTick(pricing.ClampPrice(quote+c.cfg.BuyPriceOffset, c.cfg.MinTokenPrice, c.cfg.MaxTokenPrice), pricing.Tick)
	shares := math.Floor(amount / price)
	if shares < c.cfg.MinShares {
		return nil, fmt.Sprintf("%.0f shares at %.3f below minimum %g", shares, price, c.cfg.MinShares)
	}

	if ok, reason := c.CheckExposure(ctx, market, shares*price); !ok {
		return nil, reason
	}

	orderID, err := c.gateway.SubmitOrder(ctx, tokenID, price, shares, "BUY")
	if err != nil {
		return nil, fmt.Sprintf("order rejected: %v", err)
	}
	c.logger.Info("Submitted %s buy: %g shares at %s (order %s)", direction, shares, pricing.FormatPrice(price, pricing.Tick), orderID)

	filled, fillPrice, msg := c.awaitFill(ctx, orderID, price)
	if filled <= 0 {
		return nil, msg
	}

	c.mu.Lock()
	c.positions = append(c.positions, models.Position{
		Direction:  direction,
		Shares:     filled,
		EntryPrice: fillPrice,
		OpenedAt:   time.Now(),
		Source:     models.SourceLocal,
	})
	c.recordTrade(models.TradeEvent{
		Action:    models.ActionBuy,
		Direction: direction,
		Shares:    filled,
		Price:     fillPrice,
		Time:      time.Now(),
	})
	c.mu.Unlock()

	return &BuyResult{OrderID: orderID, Shares: filled, Price: fillPrice}, ""
}

// awaitFill polls order status until it fills, is cancelled, or the
// monitoring window runs out. A fill reporting zero matched size is
// re-queried once after a short delay before being trusted.
func (c *Controller) awaitFill(ctx context.Context, orderID string, submitPrice float64) (float64, float64, string) {
	deadline := time.Now().Add(time.Duration(c.cfg.OrderMonitorTimeoutSec) * time.Second)
	interval := time.Duration(c.cfg.OrderPollIntervalSec) * time.Second

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return 0, 0, "cancelled while awaiting fill"
		}

		st, err := c.gateway.OrderStatus(ctx, orderID)
		if err != nil {
			c.logger.Debug("Order status poll failed: %v", err)
		} else {
			switch st.Status {
			case models.OrderMatched:
				matched := st.SizeMatched
				if matched == 0 {
					// The gateway sometimes reports a fill
					// before the matched size settles.
					time.Sleep(2 * time.Second)
					if st2, err2 := c.gateway.OrderStatus(ctx, orderID); err2 == nil {
						matched = st2.SizeMatched
					}
				}
				if matched > 0 {
					price := st.Price
					if price <= 0 {
						price = submitPrice
					}
					return matched, price, ""
				}
				return 0, 0, "fill reported but matched size stayed zero"
			case models.OrderCancelled:
				return 0, 0, "order cancelled by exchange"
			}
		}

		select {
		case <-ctx.Done():
			return 0, 0, "cancelled while awaiting fill"
		case <-time.After(interval):
		}
	}

	if err := c.gateway.CancelOrder(ctx, orderID); err != nil {
		c.logger.Warning("Failed to cancel stale order %s: %v", orderID, err)
	}
	return 0, 0, "order not filled within timeout"
}

// CloseAll flattens on-exchange balances on both sides with aggressive
// sells, up to 3 passes. Best effort: it reports what it managed to
// close and never fails.
func (c *Controller) CloseAll(ctx context.Context, market *models.Market) float64 {
	var closed float64

	for attempt := 0; attempt < 3; attempt++ {
		remaining := false
		for _, tokenID := range []string{market.UpTokenID, market.DownTokenID} {
			balance, err := c.gateway.TokenPosition(ctx, tokenID)
			if err != nil {
				c.logger.Warning("Close pass %d: balance check failed: %v", attempt+1, err)
				continue
			}
			if balance <= dustThreshold {
				continue
			}
			remaining = true

			quote, err := c.gateway.Quote(ctx, tokenID, "SELL")
			if err != nil || quote <= 0 {
				c.logger.Warning("Close pass %d: no sell quote for %s", attempt+1, tokenID)
				continue
			}
			price := pricing.RoundToTick(pricing.ClampPrice(quote-c.cfg.SellPriceOffset, c.cfg.MinTokenPrice, c.cfg.MaxTokenPrice), pricing.Tick)

			if _, err := c.gateway.SubmitOrder(ctx, tokenID, price, balance, "SELL"); err != nil {
				c.logger.Warning("Close pass %d: sell rejected: %v", attempt+1, err)
				continue
			}
			closed += balance
			c.logger.Info("Close pass %d: selling %g shares of %s at %s", attempt+1, balance, tokenID, pricing.FormatPrice(price, pricing.Tick))
		}

		if !remaining {
			break
		}
		select {
		case <-ctx.Done():
			return closed
		case <-time.After(time.Second):
		}
	}
	return closed
}

// CloseAllTracked marks the local book to market and clears it,
// realizing P&L at current exit quotes. Used when the market window
// expires and positions settle.
func (c *Controller) CloseAllTracked(ctx context.Context, market *models.Market) {
	c.mu.Lock()
	book := make([]models.Position, len(c.positions))
	copy(book, c.positions)
	c.mu.Unlock()

	for _, pos := range book {
		tokenID := market.UpTokenID
		if pos.Direction == models.DirectionDown {
			tokenID = market.DownTokenID
		}
		exit, err := c.gateway.Quote(ctx, tokenID, "SELL")
		if err != nil || exit <= 0 {
			exit = pos.EntryPrice
		}
		pnl := (exit - pos.EntryPrice) * pos.Shares

		c.mu.Lock()
		c.recordTrade(models.TradeEvent{
			Action:    models.ActionClose,
			Direction: pos.Direction,
			Shares:    pos.Shares,
			Price:     exit,
			PnL:       pnl,
			Time:      time.Now(),
		})
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.positions = c.positions[:0]
	c.mu.Unlock()
}

// CheckExposure verifies that current positions valued at exit quotes
// plus resting order value plus the proposed order stay under the
// configured ceiling.
func (c *Controller) CheckExposure(ctx context.Context, market *models.Market, newOrderValue float64) (bool, string) {
	var exposure float64

	c.mu.Lock()
	upShares := c.localShares(models.DirectionUp)
	downShares := c.localShares(models.DirectionDown)
	c.mu.Unlock()

	for _, side := range []struct {
		tokenID string
		shares  float64
	}{
		{market.UpTokenID, upShares},
		{market.DownTokenID, downShares},
	} {
		if side.shares <= 0 {
			continue
		}
		quote, err := c.gateway.Quote(ctx, side.tokenID, "SELL")
		if err != nil || quote <= 0 {
			continue
		}
		exposure += side.shares * quote
	}

	openValue, err := c.gateway.OpenOrdersValue(ctx, market.UpTokenID, market.DownTokenID)
	if err != nil {
		c.logger.Warning("Open-order value unavailable during exposure check: %v", err)
	} else {
		exposure += openValue
	}

	projected := exposure + newOrderValue
	if projected > c.cfg.PositionLimit {
		return false, fmt.Sprintf("exposure %.2f + order %.2f exceeds limit %.2f", exposure, newOrderValue, c.cfg.PositionLimit)
	}
	return true, ""
}
