package strategy

import "polyradar/models"

// Scenario is a named trade setup recognized from a computed signal,
// used for log and record annotation only.
type Scenario string

const (
	ScenarioNone            Scenario = ""
	ScenarioSupportBounce   Scenario = "SUPPORT_BOUNCE"
	ScenarioResistanceFade  Scenario = "RESISTANCE_FADE"
	ScenarioMACDBreakout    Scenario = "MACD_BREAKOUT"
	ScenarioDivergencePlay  Scenario = "DIVERGENCE_PLAY"
	ScenarioChopWarning     Scenario = "CHOP_WARNING"
	ScenarioClosingBlackout Scenario = "CLOSING_BLACKOUT"
)

// DetectScenario names the dominant setup behind a signal. Warnings win
// over setups: a chop regime or a closing window overrides whatever the
// components say.
func DetectScenario(sig *models.Signal) Scenario {
	if sig == nil {
		return ScenarioNone
	}
	if sig.Phase == models.PhaseClosing {
		return ScenarioClosingBlackout
	}
	if sig.Regime == models.RegimeChop {
		return ScenarioChopWarning
	}

	c := sig.Components
	switch {
	case c.SR >= 0.4 && sig.Direction == models.DirectionUp:
		return ScenarioSupportBounce
	case c.SR <= -0.4 && sig.Direction == models.DirectionDown:
		return ScenarioResistanceFade
	case c.MACD >= 0.5 || c.MACD <= -0.5:
		return ScenarioMACDBreakout
	case c.Divergence >= 0.3 || c.Divergence <= -0.3:
		return ScenarioDivergencePlay
	}
	return ScenarioNone
}
