package strategy

import (
	"math"
	"testing"
	"time"

	"polyradar/config"
	"polyradar/indicators"
	"polyradar/logging"
	"polyradar/models"
)

func newTestEngine() *Engine {
	return NewEngine(config.Default(), logging.Nop{})
}

func baseSnapshot() *models.IndicatorSnapshot {
	return &models.IndicatorSnapshot{
		RSI:    50,
		Regime: models.RegimeRange,
		BBPos:  0.5,
	}
}

func TestPhaseBoundaries(t *testing.T) {
	cfg := config.Default()
	cases := []struct {
		name      string
		remaining float64
		window    float64
		wantPhase models.Phase
		wantMin   int
	}{
		{name: "early", remaining: 14, window: 15, wantPhase: models.PhaseEarly, wantMin: cfg.PhaseEarlyMin},
		{name: "mid", remaining: 7, window: 15, wantPhase: models.PhaseMid, wantMin: cfg.PhaseMidMin},
		{name: "late", remaining: 2, window: 15, wantPhase: models.PhaseLate, wantMin: cfg.PhaseLateMin},
		{name: "closing", remaining: 0.5, window: 15, wantPhase: models.PhaseClosing, wantMin: cfg.PhaseClosingMin},
		{name: "zero_window", remaining: 1, window: 0, wantPhase: models.PhaseClosing, wantMin: cfg.PhaseClosingMin},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			phase, min := Phase(tc.remaining, tc.window, cfg)
			if phase != tc.wantPhase {
				t.Fatalf("phase got %s want %s", phase, tc.wantPhase)
			}
			if min != tc.wantMin {
				t.Fatalf("threshold got %d want %d", min, tc.wantMin)
			}
		})
	}
}

func TestClosingThresholdBlocksAllStrengths(t *testing.T) {
	cfg := config.Default()
	_, min := Phase(0.2, 15, cfg)
	if min <= 100 {
		t.Fatalf("closing threshold %d must exceed the strength ceiling", min)
	}
}

func TestComputeNilOnBadInput(t *testing.T) {
	e := newTestEngine()
	trend := indicators.TrendScore{}

	if sig := e.Compute(0, 0.5, 50000, baseSnapshot(), trend, models.PhaseMid); sig != nil {
		t.Fatalf("expected nil for zero up price")
	}
	if sig := e.Compute(0.5, 0.5, 0, baseSnapshot(), trend, models.PhaseMid); sig != nil {
		t.Fatalf("expected nil for zero asset price")
	}
	if sig := e.Compute(0.5, 0.5, 50000, nil, trend, models.PhaseMid); sig != nil {
		t.Fatalf("expected nil for missing indicators")
	}
}

func TestComputeScoreAndStrengthBounds(t *testing.T) {
	e := newTestEngine()
	snaps := []*models.IndicatorSnapshot{
		{RSI: 10, Regime: models.RegimeTrendUp, MACDHist: 2, MACDHistDelta: 2, VWAPPos: 5, VWAPSlope: 1, BBPos: 0.05, BBSqueeze: true, ATR: 5000},
		{RSI: 90, Regime: models.RegimeTrendDown, MACDHist: -2, MACDHistDelta: -2, VWAPPos: -5, VWAPSlope: -1, BBPos: 0.95, BBSqueeze: true, ATR: 5000},
		baseSnapshot(),
	}

	for i, snap := range snaps {
		trend := indicators.TrendScore{Score: 1.0}
		if i == 1 {
			trend.Score = -1.0
		}
		sig := e.Compute(0.5, 0.5, 50000, snap, trend, models.PhaseMid)
		if sig == nil {
			t.Fatalf("case %d: unexpected nil signal", i)
		}
		if sig.Score < -1 || sig.Score > 1 {
			t.Fatalf("case %d: score out of range: %f", i, sig.Score)
		}
		if sig.Strength < 0 || sig.Strength > 100 {
			t.Fatalf("case %d: strength out of range: %d", i, sig.Strength)
		}
		want := int(math.Round(math.Abs(sig.Score) * 100))
		if sig.Strength != want {
			t.Fatalf("case %d: strength %d does not match score %f", i, sig.Strength, sig.Score)
		}
	}
}

func TestNeutralZone(t *testing.T) {
	e := newTestEngine()
	sig := e.Compute(0.5, 0.5, 50000, baseSnapshot(), indicators.TrendScore{}, models.PhaseMid)
	if sig == nil {
		t.Fatalf("unexpected nil signal")
	}
	if sig.Direction != models.DirectionNeutral {
		t.Fatalf("flat inputs: direction got %s want NEUTRAL", sig.Direction)
	}
	if sig.Suggestion != nil {
		t.Fatalf("neutral signal must carry no suggestion")
	}
}

func TestChopRegimeDampens(t *testing.T) {
	e := newTestEngine()
	snap := &models.IndicatorSnapshot{RSI: 20, Regime: models.RegimeRange, MACDHist: 1, MACDHistDelta: 1, VWAPPos: 5, VWAPSlope: 1, BBPos: 0.05}
	trend := indicators.TrendScore{Score: 0.8}

	rangeSig := e.Compute(0.5, 0.5, 50000, snap, trend, models.PhaseMid)

	snap2 := *snap
	snap2.Regime = models.RegimeChop
	chopSig := e.Compute(0.5, 0.5, 50000, &snap2, trend, models.PhaseMid)

	if rangeSig == nil || chopSig == nil {
		t.Fatalf("unexpected nil signal")
	}
	if chopSig.Score >= rangeSig.Score {
		t.Fatalf("chop must dampen: chop %f range %f", chopSig.Score, rangeSig.Score)
	}
}

func TestObserveBoundsHistory(t *testing.T) {
	e := newTestEngine()
	for i := 0; i < 100; i++ {
		e.Observe(models.HistorySample{
			Timestamp:  time.Now(),
			UpPrice:    0.5,
			DownPrice:  0.5,
			AssetPrice: 50000,
		})
	}
	if e.HistoryLen() != e.cfg.HistorySize {
		t.Fatalf("history got %d want %d", e.HistoryLen(), e.cfg.HistorySize)
	}
}

func TestDivergenceBullish(t *testing.T) {
	e := newTestEngine()
	// Asset rallies while the UP contract stays flat.
	for i := 0; i <= e.cfg.DivergenceLookback; i++ {
		e.Observe(models.HistorySample{
			UpPrice:    0.50,
			DownPrice:  0.50,
			AssetPrice: 50000 * (1 + 0.0005*float64(i)),
		})
	}
	got := e.divergenceScore()
	if got <= 0 {
		t.Fatalf("expected bullish divergence, got %f", got)
	}
}

func TestDivergenceBullishContractFalling(t *testing.T) {
	e := newTestEngine()
	// Asset rallies while the UP contract drops outright. That is a
	// bigger lag than a flat contract and must still score bullish.
	for i := 0; i <= e.cfg.DivergenceLookback; i++ {
		e.Observe(models.HistorySample{
			UpPrice:    0.50 - 0.01*float64(i),
			DownPrice:  0.50 + 0.01*float64(i),
			AssetPrice: 50000 * (1 + 0.0005*float64(i)),
		})
	}
	got := e.divergenceScore()
	if got <= 0 {
		t.Fatalf("expected bullish divergence with falling contract, got %f", got)
	}
}

func TestDivergenceBearishContractRising(t *testing.T) {
	e := newTestEngine()
	// Asset sells off while the UP contract climbs the wrong way.
	for i := 0; i <= e.cfg.DivergenceLookback; i++ {
		e.Observe(models.HistorySample{
			UpPrice:    0.50 + 0.01*float64(i),
			DownPrice:  0.50 - 0.01*float64(i),
			AssetPrice: 50000 * (1 - 0.0005*float64(i)),
		})
	}
	got := e.divergenceScore()
	if got >= 0 {
		t.Fatalf("expected bearish divergence with rising contract, got %f", got)
	}
}

func TestDivergenceContractCaughtUp(t *testing.T) {
	e := newTestEngine()
	// The UP contract already repriced the move, nothing to fade.
	for i := 0; i <= e.cfg.DivergenceLookback; i++ {
		e.Observe(models.HistorySample{
			UpPrice:    0.50 + 0.02*float64(i),
			DownPrice:  0.50 - 0.02*float64(i),
			AssetPrice: 50000 * (1 + 0.0005*float64(i)),
		})
	}
	if got := e.divergenceScore(); got != 0 {
		t.Fatalf("expected no divergence once the contract caught up, got %f", got)
	}
}

func TestEndToEndRisingMarketSignalsUp(t *testing.T) {
	e := newTestEngine()

	// 20 cycles of a rising market: asset and UP contract both climbing.
	for i := 0; i < 20; i++ {
		e.Observe(models.HistorySample{
			Timestamp:  time.Now(),
			UpPrice:    0.50 + 0.004*float64(i),
			DownPrice:  0.50 - 0.004*float64(i),
			AssetPrice: 50000 * (1 + 0.001*float64(i)),
		})
	}

	snap := &models.IndicatorSnapshot{
		RSI:           30, // oversold read during the climb
		ATR:           100,
		ADX:           40,
		Regime:        models.RegimeTrendUp,
		MACDHist:      0.8,
		MACDHistDelta: 0.6,
		VWAPPos:       2.5,
		VWAPSlope:     0.8,
		BBPos:         0.25,
	}
	trend := indicators.TrendScore{Score: 0.9, Direction: models.DirectionUp, Confidence: 1.0}

	sig := e.Compute(0.58, 0.42, 51000, snap, trend, models.PhaseMid)
	if sig == nil {
		t.Fatalf("unexpected nil signal")
	}
	if sig.Direction != models.DirectionUp {
		t.Fatalf("direction got %s want UP (score %f)", sig.Direction, sig.Score)
	}
	if sig.Strength < 50 {
		t.Fatalf("strength got %d want >= 50", sig.Strength)
	}
	if sig.Suggestion == nil {
		t.Fatalf("expected a suggestion on a strong signal")
	}
	s := sig.Suggestion
	if !(s.StopLoss < s.Entry && s.Entry < s.TakeProfit) {
		t.Fatalf("suggestion ordering broken: sl %f entry %f tp %f", s.StopLoss, s.Entry, s.TakeProfit)
	}
}

func TestSuggestionRespectsPriceBounds(t *testing.T) {
	e := newTestEngine()
	s := e.suggest(models.DirectionUp, 0.93, 0.07, 90)
	if s.TakeProfit > e.cfg.TPMaxPrice {
		t.Fatalf("tp %f exceeds cap %f", s.TakeProfit, e.cfg.TPMaxPrice)
	}
	s = e.suggest(models.DirectionDown, 0.96, 0.04, 90)
	if s.StopLoss < e.cfg.SLMinPrice {
		t.Fatalf("sl %f below floor %f", s.StopLoss, e.cfg.SLMinPrice)
	}
}

func TestDetectScenario(t *testing.T) {
	cases := []struct {
		name string
		sig  *models.Signal
		want Scenario
	}{
		{name: "nil", sig: nil, want: ScenarioNone},
		{
			name: "closing_wins",
			sig:  &models.Signal{Phase: models.PhaseClosing, Regime: models.RegimeChop},
			want: ScenarioClosingBlackout,
		},
		{
			name: "chop_warning",
			sig:  &models.Signal{Phase: models.PhaseMid, Regime: models.RegimeChop},
			want: ScenarioChopWarning,
		},
		{
			name: "support_bounce",
			sig: &models.Signal{
				Phase:      models.PhaseMid,
				Direction:  models.DirectionUp,
				Components: models.ComponentBreakdown{SR: 0.8},
			},
			want: ScenarioSupportBounce,
		},
		{
			name: "macd_breakout",
			sig: &models.Signal{
				Phase:      models.PhaseMid,
				Direction:  models.DirectionUp,
				Components: models.ComponentBreakdown{MACD: 0.6},
			},
			want: ScenarioMACDBreakout,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectScenario(tc.sig); got != tc.want {
				t.Fatalf("scenario got %q want %q", got, tc.want)
			}
		})
	}
}
