package strategy

import (
	"polyradar/config"
	"polyradar/models"
)

// Phase maps time remaining in the trading window to a market phase and
// the minimum signal strength required to trade in it. The CLOSING
// threshold is a sentinel above the strength ceiling, so no trade can
// clear it.
func Phase(remainingMins, windowMins float64, cfg *config.Config) (models.Phase, int) {
	if windowMins <= 0 {
		return models.PhaseClosing, cfg.PhaseClosingMin
	}
	pct := remainingMins / windowMins
	switch {
	case pct > 0.66:
		return models.PhaseEarly, cfg.PhaseEarlyMin
	case pct > 0.33:
		return models.PhaseMid, cfg.PhaseMidMin
	case pct > 0.06:
		return models.PhaseLate, cfg.PhaseLateMin
	default:
		return models.PhaseClosing, cfg.PhaseClosingMin
	}
}
