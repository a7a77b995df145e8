package models

import (
	"strconv"
	"time"
)

// Candle is a single OHLCV bar, newest last in any sequence.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Direction of a signal or position on a binary up/down market.
type Direction string

const (
	DirectionUp      Direction = "UP"
	DirectionDown    Direction = "DOWN"
	DirectionNeutral Direction = "NEUTRAL"
)

// Regime is the classified market condition.
type Regime string

const (
	RegimeTrendUp   Regime = "TREND_UP"
	RegimeTrendDown Regime = "TREND_DOWN"
	RegimeRange     Regime = "RANGE"
	RegimeChop      Regime = "CHOP"
)

// Phase is the position within a trading window.
type Phase string

const (
	PhaseEarly   Phase = "EARLY"
	PhaseMid     Phase = "MID"
	PhaseLate    Phase = "LATE"
	PhaseClosing Phase = "CLOSING"
)

// Source tells where a candle batch came from.
type Source string

const (
	SourceStream   Source = "stream"
	SourceFallback Source = "fallback"
)

// IndicatorSnapshot holds every indicator value for one evaluation cycle.
// Produced fresh per cycle, never mutated.
type IndicatorSnapshot struct {
	RSI           float64
	ATR           float64
	ADX           float64
	Regime        Regime
	MACDLine      float64
	MACDSignal    float64
	MACDHist      float64
	MACDHistDelta float64
	VWAP          float64
	VWAPPos       float64
	VWAPSlope     float64
	BBUpper       float64
	BBMid         float64
	BBLower       float64
	BBBandwidth   float64
	BBPos         float64
	BBSqueeze     bool
}

// HistorySample is one rolling-window observation of contract and asset prices.
type HistorySample struct {
	Timestamp  time.Time
	UpPrice    float64
	DownPrice  float64
	AssetPrice float64
}

// Suggestion is an optional entry plan attached to strong signals.
type Suggestion struct {
	Entry      float64
	TakeProfit float64
	StopLoss   float64
}

// ComponentBreakdown holds the weighted sub-scores that formed a signal.
type ComponentBreakdown struct {
	Momentum   float64
	Divergence float64
	SR         float64
	MACD       float64
	VWAP       float64
	BB         float64
}

// Signal is the engine's directional output for one cycle.
type Signal struct {
	Direction  Direction
	Strength   int
	Score      float64
	Components ComponentBreakdown
	Regime     Regime
	Phase      Phase
	Suggestion *Suggestion
	Time       time.Time
}

// PositionSource distinguishes locally opened lots from reconciliation finds.
type PositionSource string

const (
	SourceLocal    PositionSource = "local"
	SourcePlatform PositionSource = "platform"
)

// Position is one tracked lot on one side of the market.
type Position struct {
	Direction  Direction
	Shares     float64
	EntryPrice float64
	OpenedAt   time.Time
	Source     PositionSource
}

// TradeAction is the kind of a recorded trade event.
type TradeAction string

const (
	ActionBuy   TradeAction = "BUY"
	ActionClose TradeAction = "CLOSE"
)

// TradeEvent is one append-only fill or close record.
type TradeEvent struct {
	Action    TradeAction
	Direction Direction
	Shares    float64
	Price     float64
	PnL       float64
	Time      time.Time
}

// Market identifies the active up/down market for one window.
type Market struct {
	Slug        string
	UpTokenID   string
	DownTokenID string
	WindowStart time.Time
	WindowEnd   time.Time
	PriceToBeat float64
	WindowMins  int
}

// Remaining returns minutes left until the window closes.
func (m Market) Remaining(now time.Time) float64 {
	return m.WindowEnd.Sub(now).Minutes()
}

// OrderStatus is the gateway's view of a resting or finished order.
type OrderStatus struct {
	Status      string
	SizeMatched float64
	Price       float64
}

// Order terminal states as reported by the gateway.
const (
	OrderMatched   = "MATCHED"
	OrderLive      = "LIVE"
	OrderCancelled = "CANCELLED"
)

// MonitorOutcome is the terminal result of TP/SL monitoring.
type MonitorOutcome string

const (
	OutcomeTP      MonitorOutcome = "TP"
	OutcomeSL      MonitorOutcome = "SL"
	OutcomeCancel  MonitorOutcome = "CANCEL"
	OutcomeTimeout MonitorOutcome = "TIMEOUT"
)

// KlineEvent is the wire envelope for one streamed kline message.
type KlineEvent struct {
	Event  string    `json:"e"`
	Symbol string    `json:"s"`
	Kline  KlineData `json:"k"`
}

// KlineData is the kline payload inside a stream event.
type KlineData struct {
	StartTime int64  `json:"t"`
	EndTime   int64  `json:"T"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Close     string `json:"c"`
	Volume    string `json:"v"`
	Closed    bool   `json:"x"`
}

// Candle converts the wire payload to a Candle.
func (k KlineData) Candle() Candle {
	return Candle{
		OpenTime: time.UnixMilli(k.StartTime),
		Open:     parseFloat(k.Open),
		High:     parseFloat(k.High),
		Low:      parseFloat(k.Low),
		Close:    parseFloat(k.Close),
		Volume:   parseFloat(k.Volume),
	}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
