package stats

import "polyradar/models"

// Summary aggregates closed-trade results for a session.
type Summary struct {
	Trades       int
	Wins         int
	Losses       int
	WinRate      float64
	TotalPnL     float64
	Best         float64
	Worst        float64
	ProfitFactor float64
	MaxDrawdown  float64
}

// Compute builds a session summary from the trade history. Only CLOSE
// events carry realized P&L; BUY events are ignored.
func Compute(trades []models.TradeEvent) Summary {
	var s Summary
	var grossProfit, grossLoss float64
	var equity, peak float64

	for _, t := range trades {
		if t.Action != models.ActionClose {
			continue
		}
		s.Trades++
		s.TotalPnL += t.PnL

		if t.PnL > 0 {
			s.Wins++
			grossProfit += t.PnL
		} else if t.PnL < 0 {
			s.Losses++
			grossLoss -= t.PnL
		}

		if s.Trades == 1 || t.PnL > s.Best {
			s.Best = t.PnL
		}
		if s.Trades == 1 || t.PnL < s.Worst {
			s.Worst = t.PnL
		}

		equity += t.PnL
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
	}

	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100.0
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		s.ProfitFactor = grossProfit
	}
	return s
}
