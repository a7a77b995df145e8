package indicators

import (
	"math"
	"testing"
	"time"

	"polyradar/models"
)

func makeCandles(closes []float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	base := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		high := math.Max(open, c) + 0.5
		low := math.Min(open, c) - 0.5
		out[i] = models.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Minute),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    c,
			Volume:   100,
		}
	}
	return out
}

func TestSMA(t *testing.T) {
	data := []float64{10, 20, 30, 40, 50}
	result := SMA(data)
	expected := 30.0
	if result != expected {
		t.Errorf("Expected %.1f, got %.2f", expected, result)
	}

	// Test empty slice
	emptyData := []float64{}
	result = SMA(emptyData)
	if result != 0 {
		t.Errorf("Expected 0 for empty slice, got %.2f", result)
	}
}

func TestStdDev(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	result := StdDev(data)
	expected := 2.0
	if math.Abs(result-expected) > 0.1 {
		t.Errorf("Expected ~%.1f, got %.2f", expected, result)
	}
}

func TestMaxMinSlice(t *testing.T) {
	data := []float64{1, 5, 3, 9, 2}
	max := MaxSlice(data)
	if max != 9 {
		t.Errorf("Expected max 9, got %.2f", max)
	}

	min := MinSlice(data)
	if min != 1 {
		t.Errorf("Expected min 1, got %.2f", min)
	}
}

func TestRSIFlatSeriesReturnsFifty(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100.0
	}
	got := RSI(makeCandles(closes), 7)
	if got != 50.0 {
		t.Fatalf("flat series RSI got %f want 50.0", got)
	}
}

func TestRSIAllGainsReturnsHundred(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100.0 + float64(i)
	}
	got := RSI(makeCandles(closes), 7)
	if got != 100.0 {
		t.Fatalf("all-gains RSI got %f want 100.0", got)
	}
}

func TestRSIInsufficientDataNeutral(t *testing.T) {
	got := RSI(makeCandles([]float64{100, 101, 102}), 7)
	if got != 50.0 {
		t.Fatalf("short series RSI got %f want 50.0", got)
	}
}

func TestRSIBounded(t *testing.T) {
	closes := []float64{100, 99, 101, 98, 102, 97, 103, 96, 104, 95}
	got := RSI(makeCandles(closes), 7)
	if got < 0 || got > 100 {
		t.Fatalf("RSI out of range: %f", got)
	}
}

func TestATRFewerThanTwoCandles(t *testing.T) {
	if got := ATR(makeCandles([]float64{100})); got != 0.0 {
		t.Fatalf("single-candle ATR got %f want 0.0", got)
	}
	if got := ATR(nil); got != 0.0 {
		t.Fatalf("empty ATR got %f want 0.0", got)
	}
}

func TestATRPositiveForMovingSeries(t *testing.T) {
	closes := []float64{100, 102, 99, 103, 98}
	got := ATR(makeCandles(closes))
	if got <= 0 {
		t.Fatalf("expected positive ATR, got %f", got)
	}
}

func TestDetectRegimeTrendUp(t *testing.T) {
	// Strictly rising closes: price above SMA(10), all candles green,
	// strong directional movement.
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100.0 + float64(i)*2.0
	}
	candles := makeCandles(closes)

	adx := ADX(candles, 7)
	if adx < 25 {
		t.Fatalf("expected ADX >= 25 on a pure trend, got %f", adx)
	}

	for i := 0; i < 3; i++ {
		regime, _ := DetectRegime(candles, 7)
		if regime != models.RegimeTrendUp {
			t.Fatalf("run %d: regime got %s want TREND_UP", i, regime)
		}
	}
}

func TestDetectRegimeInsufficientData(t *testing.T) {
	regime, adx := DetectRegime(makeCandles([]float64{100, 101}), 7)
	if regime != models.RegimeRange {
		t.Fatalf("regime got %s want RANGE", regime)
	}
	if adx != 25.0 {
		t.Fatalf("default ADX got %f want 25.0", adx)
	}
}

func TestMACDInsufficientDataZeros(t *testing.T) {
	got := MACD(makeCandles([]float64{100, 101, 102}), 5, 10, 4)
	if got.Line != 0 || got.Signal != 0 || got.Hist != 0 || got.HistDelta != 0 {
		t.Fatalf("expected zero MACD result, got %+v", got)
	}
}

func TestMACDRisingSeriesPositiveHistogram(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100.0 * math.Pow(1.01, float64(i))
	}
	got := MACD(makeCandles(closes), 5, 10, 4)
	if got.Line <= 0 {
		t.Fatalf("expected positive MACD line, got %f", got.Line)
	}
	if got.Hist <= 0 {
		t.Fatalf("expected positive histogram, got %f", got.Hist)
	}
}

func TestVWAPInsufficientData(t *testing.T) {
	got := VWAP(makeCandles([]float64{100, 101}))
	if got.VWAP != 0 || got.Pos != 0 || got.Slope != 0 {
		t.Fatalf("expected zero VWAP result, got %+v", got)
	}
}

func TestVWAPPriceAboveVWAPPositivePos(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 110}
	got := VWAP(makeCandles(closes))
	if got.Pos <= 0 {
		t.Fatalf("expected positive VWAP position, got %f", got.Pos)
	}
	if got.Slope < -1 || got.Slope > 1 {
		t.Fatalf("slope out of range: %f", got.Slope)
	}
}

func TestBollingerDegenerateBelowPeriod(t *testing.T) {
	candles := makeCandles([]float64{100, 101, 102})
	got := Bollinger(candles, 14, 2.0)
	last := candles[len(candles)-1].Close
	if got.Upper != last || got.Middle != last || got.Lower != last {
		t.Fatalf("expected degenerate bands at %f, got %+v", last, got)
	}
	if got.Pos != 0.5 {
		t.Fatalf("degenerate position got %f want 0.5", got.Pos)
	}
}

func TestBollingerPositionBounds(t *testing.T) {
	closes := []float64{100, 103, 97, 105, 95, 102, 98, 104, 96, 101, 99, 103, 97, 106}
	got := Bollinger(makeCandles(closes), 14, 2.0)
	if got.Pos < 0 || got.Pos > 1 {
		t.Fatalf("position out of range: %f", got.Pos)
	}
	if got.Upper <= got.Middle || got.Middle <= got.Lower {
		t.Fatalf("band ordering broken: %+v", got)
	}
}

func TestBollingerSqueezeDetection(t *testing.T) {
	// Wide swings in the first window, nearly flat in the second.
	closes := make([]float64, 28)
	for i := 0; i < 14; i++ {
		if i%2 == 0 {
			closes[i] = 110
		} else {
			closes[i] = 90
		}
	}
	for i := 14; i < 28; i++ {
		closes[i] = 100 + 0.01*float64(i%2)
	}
	got := Bollinger(makeCandles(closes), 14, 2.0)
	if !got.Squeeze {
		t.Fatalf("expected squeeze after volatility collapse, got %+v", got)
	}
}

func TestAnalyzeTrendRising(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100.0 * (1 + 0.001*float64(i))
	}
	got := AnalyzeTrend(makeCandles(closes))
	if got.Direction != models.DirectionUp {
		t.Fatalf("direction got %s want UP", got.Direction)
	}
	if got.Score <= 0 {
		t.Fatalf("expected positive score, got %f", got.Score)
	}
}

func TestAnalyzeTrendInsufficientData(t *testing.T) {
	got := AnalyzeTrend(makeCandles([]float64{100, 101}))
	if got.Direction != models.DirectionNeutral || got.Score != 0 {
		t.Fatalf("expected neutral result, got %+v", got)
	}
}
