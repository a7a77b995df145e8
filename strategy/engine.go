package strategy

import (
	"math"
	"time"

	"polyradar/config"
	"polyradar/indicators"
	"polyradar/logging"
	"polyradar/models"
)

// Suggestions are only attached to signals at or above this strength.
const suggestionMinStrength = 30

// Engine turns indicator snapshots and the rolling price history into a
// scored directional signal. It is the sole owner of the history window,
// which the evaluation loop advances once per cycle via Observe.
type Engine struct {
	cfg     *config.Config
	logger  logging.LoggerInterface
	history []models.HistorySample
}

// NewEngine creates a signal engine
func NewEngine(cfg *config.Config, log logging.LoggerInterface) *Engine {
	return &Engine{cfg: cfg, logger: log}
}

// Observe appends one sample to the rolling history window.
func (e *Engine) Observe(sample models.HistorySample) {
	e.history = append(e.history, sample)
	if len(e.history) > e.cfg.HistorySize {
		e.history = e.history[len(e.history)-e.cfg.HistorySize:]
	}
}

// HistoryLen returns the current history window size.
func (e *Engine) HistoryLen() int {
	return len(e.history)
}

// Reset clears the history window. Called when the market rotates to a
// new window, since contract prices do not carry across markets.
func (e *Engine) Reset() {
	e.history = e.history[:0]
}

// Compute produces the signal for one cycle. Returns nil when prices or
// indicators are unusable; the caller must not trade on a nil signal.
func (e *Engine) Compute(upPrice, downPrice, assetPrice float64, snap *models.IndicatorSnapshot, assetTrend indicators.TrendScore, phase models.Phase) *models.Signal {
	if upPrice <= 0 || assetPrice <= 0 || snap == nil {
		return nil
	}

	trendStrength := e.trendFilter()

	components := models.ComponentBreakdown{
		Momentum:   e.momentumScore(snap.RSI, assetTrend),
		Divergence: e.divergenceScore(),
		SR:         e.supportResistanceScore(upPrice, trendStrength),
		MACD:       e.macdScore(snap.MACDHist, snap.MACDHistDelta),
		VWAP:       e.vwapScore(snap.VWAPPos, snap.VWAPSlope),
		BB:         e.bollingerScore(snap.BBPos, snap.BBSqueeze),
	}

	total := components.Momentum*e.cfg.WeightMomentum +
		components.Divergence*e.cfg.WeightDivergence +
		components.SR*e.cfg.WeightSR +
		components.MACD*e.cfg.WeightMACD +
		components.VWAP*e.cfg.WeightVWAP +
		components.BB*e.cfg.WeightBB

	// High volatility amplifies whatever the components agree on.
	volatility := snap.ATR / assetPrice * 100.0
	if volatility > e.cfg.VolThreshold {
		total *= e.cfg.VolAmplifier
	}

	total *= e.regimeMultiplier(snap.Regime, total)
	total = indicators.Clamp(total, -1.0, 1.0)

	direction := models.DirectionNeutral
	if total > e.cfg.NeutralZone {
		direction = models.DirectionUp
	} else if total < -e.cfg.NeutralZone {
		direction = models.DirectionDown
	}
	strength := int(math.Round(math.Abs(total) * 100.0))

	sig := &models.Signal{
		Direction:  direction,
		Strength:   strength,
		Score:      total,
		Components: components,
		Regime:     snap.Regime,
		Phase:      phase,
		Time:       time.Now(),
	}

	if strength >= suggestionMinStrength && direction != models.DirectionNeutral {
		sig.Suggestion = e.suggest(direction, upPrice, downPrice, strength)
	}
	return sig
}

// trendFilter reads the short/long EMA relation of recent UP-contract
// prices into [-1, 1]. Zero when the history is too thin.
func (e *Engine) trendFilter() float64 {
	var ups []float64
	for _, s := range e.history {
		if s.UpPrice > 0 {
			ups = append(ups, s.UpPrice)
		}
	}
	if len(ups) < 12 {
		return 0
	}
	if len(ups) > 20 {
		ups = ups[len(ups)-20:]
	}
	emaFast := indicators.EMA(ups, 5)
	emaSlow := indicators.EMA(ups, 12)
	if emaSlow <= 0 {
		return 0
	}
	return indicators.Clamp((emaFast-emaSlow)/emaSlow/0.02, -1.0, 1.0)
}

func rsiBucket(rsi float64) float64 {
	switch {
	case rsi < 25:
		return 1.0
	case rsi < 35:
		return 0.6
	case rsi < 45:
		return 0.2
	case rsi > 75:
		return -1.0
	case rsi > 65:
		return -0.6
	case rsi > 55:
		return -0.2
	default:
		return 0
	}
}

// momentumScore blends the contrarian RSI read with the asset's
// composite trend score.
func (e *Engine) momentumScore(rsi float64, assetTrend indicators.TrendScore) float64 {
	trendPart := indicators.Clamp(assetTrend.Score/0.5, -1.0, 1.0)
	return rsiBucket(rsi)*0.4 + trendPart*0.6
}

// divergenceScore fires when the asset has moved but the UP contract
// has not caught up yet.
func (e *Engine) divergenceScore() float64 {
	lookback := e.cfg.DivergenceLookback
	if len(e.history) < lookback+1 {
		return 0
	}
	then := e.history[len(e.history)-1-lookback]
	now := e.history[len(e.history)-1]
	if then.AssetPrice <= 0 || then.UpPrice <= 0 {
		return 0
	}

	assetChangePct := (now.AssetPrice - then.AssetPrice) / then.AssetPrice * 100.0
	upChange := now.UpPrice - then.UpPrice

	// The contract lagging the asset includes the contract moving the
	// wrong way outright, so the gate is one-sided per direction.
	if assetChangePct > 0.01 && upChange < 0.02 {
		return indicators.Clamp(assetChangePct*8.0, 0.0, 1.0)
	}
	if assetChangePct < -0.01 && upChange > -0.02 {
		return indicators.Clamp(assetChangePct*8.0, -1.0, 0.0)
	}
	return 0
}

// supportResistanceScore reads the UP price's position inside its recent
// range, dampened when it argues against the prevailing trend.
func (e *Engine) supportResistanceScore(upPrice, trendStrength float64) float64 {
	lookback := e.cfg.SRLookback
	window := e.history
	if len(window) > lookback {
		window = window[len(window)-lookback:]
	}
	var ups []float64
	for _, s := range window {
		if s.UpPrice > 0 {
			ups = append(ups, s.UpPrice)
		}
	}
	if len(ups) < 5 {
		return 0
	}

	low := indicators.MinSlice(ups)
	high := indicators.MaxSlice(ups)
	priceRange := high - low
	if priceRange <= 0.03 {
		return 0
	}

	pos := (upPrice - low) / priceRange
	var score float64
	switch {
	case pos < 0.20:
		score = 0.8
	case pos < 0.35:
		score = 0.4
	case pos > 0.80:
		score = -0.8
	case pos > 0.65:
		score = -0.4
	}

	// A reversal read against a firm trend is usually noise.
	if math.Abs(trendStrength) > 0.3 && score*trendStrength < 0 {
		score *= 1.0 - math.Min(math.Abs(trendStrength)*2.0, 1.0)
	}
	return score
}

// macdScore reads histogram acceleration.
func (e *Engine) macdScore(hist, histDelta float64) float64 {
	var score float64
	switch {
	case histDelta > 0.5:
		score = 1.0
	case histDelta > 0.1:
		score = 0.5
	case histDelta < -0.5:
		score = -1.0
	case histDelta < -0.1:
		score = -0.5
	}
	if score != 0 && hist*histDelta > 0 {
		score = indicators.Clamp(score*1.2, -1.0, 1.0)
	}
	return score
}

// vwapScore combines position versus VWAP with the VWAP slope.
func (e *Engine) vwapScore(pos, slope float64) float64 {
	var score float64
	if pos > 0.02 {
		score += 0.5
	} else if pos < -0.02 {
		score -= 0.5
	}
	if slope > 0.2 {
		score += 0.5
	} else if slope < -0.2 {
		score -= 0.5
	}
	return indicators.Clamp(score, -1.0, 1.0)
}

// bollingerScore reads band position, amplified during a squeeze.
func (e *Engine) bollingerScore(pos float64, squeeze bool) float64 {
	var score float64
	switch {
	case pos < 0.15:
		score = 0.8
	case pos < 0.30:
		score = 0.4
	case pos > 0.85:
		score = -0.8
	case pos > 0.70:
		score = -0.4
	}
	if squeeze {
		score = indicators.Clamp(score*1.5, -1.0, 1.0)
	}
	return score
}

func (e *Engine) regimeMultiplier(regime models.Regime, total float64) float64 {
	switch regime {
	case models.RegimeChop:
		return e.cfg.RegimeChopMult
	case models.RegimeTrendUp:
		if total > 0 {
			return e.cfg.RegimeTrendBoost
		}
		if total < 0 {
			return e.cfg.RegimeCounterMult
		}
	case models.RegimeTrendDown:
		if total < 0 {
			return e.cfg.RegimeTrendBoost
		}
		if total > 0 {
			return e.cfg.RegimeCounterMult
		}
	}
	return 1.0
}

func (e *Engine) suggest(direction models.Direction, upPrice, downPrice float64, strength int) *models.Suggestion {
	entry := upPrice
	if direction == models.DirectionDown {
		entry = downPrice
	}
	if entry <= 0 {
		return nil
	}

	spread := e.cfg.TPBaseSpread + float64(strength)/100.0*e.cfg.TPStrengthScale
	return &models.Suggestion{
		Entry:      entry,
		TakeProfit: math.Min(entry+spread, e.cfg.TPMaxPrice),
		StopLoss:   math.Max(entry-e.cfg.SLDefault, e.cfg.SLMinPrice),
	}
}
