package trade

import (
	"context"
	"time"

	"polyradar/models"
)

// cancelPollInterval keeps cancellation responsive while a price fetch
// is in flight.
const cancelPollInterval = 100 * time.Millisecond

// monitorPollInterval paces threshold checks between fetches.
const monitorPollInterval = 500 * time.Millisecond

type quoteResult struct {
	price float64
	err   error
}

// MonitorTPSL watches an open position until its token price crosses
// the take-profit or stop-loss threshold, the caller cancels, or the
// monitoring window runs out. Price fetches run concurrently with
// cancellation polling and are always drained before returning, so no
// fetch is left in flight.
func (c *Controller) MonitorTPSL(ctx context.Context, market *models.Market, pos models.Position, takeProfit, stopLoss float64, cancel <-chan struct{}) (models.MonitorOutcome, float64) {
	tokenID := market.UpTokenID
	if pos.Direction == models.DirectionDown {
		tokenID = market.DownTokenID
	}

	deadline := time.Now().Add(time.Duration(c.cfg.TPSLMonitorTimeoutSec) * time.Second)
	var lastPrice float64

	for time.Now().Before(deadline) {
		fetchCtx, cancelFetch := context.WithTimeout(ctx, time.Duration(c.cfg.FetchTimeoutSec)*time.Second)
		resCh := make(chan quoteResult, 1)
		go func() {
			price, err := c.gateway.Quote(fetchCtx, tokenID, "SELL")
			resCh <- quoteResult{price: price, err: err}
		}()

		var res quoteResult
		var cancelled bool
	await:
		for {
			select {
			case res = <-resCh:
				break await
			case <-cancel:
				cancelled = true
				cancelFetch()
				res = <-resCh
				break await
			case <-ctx.Done():
				cancelled = true
				cancelFetch()
				res = <-resCh
				break await
			case <-time.After(cancelPollInterval):
			}
		}
		cancelFetch()

		if cancelled {
			c.logger.Info("TP/SL monitoring cancelled at price %.3f", lastPrice)
			return models.OutcomeCancel, lastPrice
		}

		if res.err != nil || res.price <= 0 {
			// Transient bad reads are retried, not fatal.
			c.logger.Debug("TP/SL price read failed, retrying: %v", res.err)
			continue
		}
		lastPrice = res.price

		if res.price >= takeProfit {
			c.logger.Info("Take profit hit at %.3f (target %.3f)", res.price, takeProfit)
			return models.OutcomeTP, res.price
		}
		if res.price <= stopLoss {
			c.logger.Info("Stop loss hit at %.3f (floor %.3f)", res.price, stopLoss)
			return models.OutcomeSL, res.price
		}

		select {
		case <-cancel:
			c.logger.Info("TP/SL monitoring cancelled at price %.3f", lastPrice)
			return models.OutcomeCancel, lastPrice
		case <-ctx.Done():
			return models.OutcomeCancel, lastPrice
		case <-time.After(monitorPollInterval):
		}
	}

	return models.OutcomeTimeout, lastPrice
}
