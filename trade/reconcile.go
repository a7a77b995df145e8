package trade

import (
	"context"
	"math"
	"time"

	"polyradar/models"
)

// Local and on-exchange balances are only reconciled when they differ
// by at least one whole share; smaller drift is rounding noise.
const reconcileMinDiff = 1.0

// Sync reconciles the local position book against on-exchange share
// balances per direction. Surplus shares on the exchange become a new
// platform-sourced position; a deficit removes shares from the most
// recently opened positions first. Re-running with unchanged balances
// changes nothing.
func (c *Controller) Sync(ctx context.Context, market *models.Market) error {
	sides := []struct {
		direction models.Direction
		tokenID   string
	}{
		{models.DirectionUp, market.UpTokenID},
		{models.DirectionDown, market.DownTokenID},
	}

	for _, side := range sides {
		onExchange, err := c.gateway.TokenPosition(ctx, side.tokenID)
		if err != nil {
			return err
		}

		c.mu.Lock()
		local := c.localShares(side.direction)
		diff := onExchange - local
		switch {
		case diff >= reconcileMinDiff:
			c.mu.Unlock()
			price := c.reconcilePrice(ctx, side.tokenID)
			c.mu.Lock()
			c.positions = append(c.positions, models.Position{
				Direction:  side.direction,
				Shares:     math.Floor(diff),
				EntryPrice: price,
				OpenedAt:   time.Now(),
				Source:     models.SourcePlatform,
			})
			c.logger.Info("Reconciliation: adopted %g %s shares from exchange at %.3f", math.Floor(diff), side.direction, price)
		case diff <= -reconcileMinDiff:
			removed := c.removeSharesLIFO(side.direction, -diff)
			c.logger.Info("Reconciliation: removed %g %s shares missing on exchange", removed, side.direction)
		}
		c.mu.Unlock()
	}
	return nil
}

// reconcilePrice values an adopted position at the exit-side quote,
// falling back to the entry-side quote.
func (c *Controller) reconcilePrice(ctx context.Context, tokenID string) float64 {
	if price, err := c.gateway.Quote(ctx, tokenID, "SELL"); err == nil && price > 0 {
		return price
	}
	if price, err := c.gateway.Quote(ctx, tokenID, "BUY"); err == nil && price > 0 {
		return price
	}
	return 0
}

// removeSharesLIFO absorbs a deficit starting from the newest position
// for the direction, splitting the last affected lot when it is only
// partially consumed. Caller holds the mutex.
func (c *Controller) removeSharesLIFO(direction models.Direction, deficit float64) float64 {
	var removed float64
	for i := len(c.positions) - 1; i >= 0 && deficit > 0; i-- {
		pos := &c.positions[i]
		if pos.Direction != direction {
			continue
		}
		if pos.Shares <= deficit {
			deficit -= pos.Shares
			removed += pos.Shares
			c.positions = append(c.positions[:i], c.positions[i+1:]...)
		} else {
			pos.Shares -= deficit
			removed += deficit
			deficit = 0
		}
	}
	return removed
}
