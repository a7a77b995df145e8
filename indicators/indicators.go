package indicators

import (
	"math"

	"polyradar/models"
)

// SMA calculates Simple Moving Average
func SMA(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// SMAWithPeriod calculates Simple Moving Average over the last period elements
func SMAWithPeriod(data []float64, period int) float64 {
	if len(data) < period || period <= 0 {
		return 0
	}
	return SMA(data[len(data)-period:])
}

// StdDev calculates standard deviation
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	m := SMA(data)
	var sum float64
	for _, v := range data {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(data)))
}

// EMA calculates Exponential Moving Average over the full series
func EMA(src []float64, period int) float64 {
	if len(src) == 0 || period <= 0 {
		return 0
	}
	multiplier := 2.0 / float64(period+1)
	ema := src[0]
	for i := 1; i < len(src); i++ {
		ema = src[i]*multiplier + ema*(1-multiplier)
	}
	return ema
}

// EMASeries returns the EMA value at every index of src
func EMASeries(src []float64, period int) []float64 {
	if len(src) == 0 || period <= 0 {
		return nil
	}
	out := make([]float64, len(src))
	multiplier := 2.0 / float64(period+1)
	out[0] = src[0]
	for i := 1; i < len(src); i++ {
		out[i] = src[i]*multiplier + out[i-1]*(1-multiplier)
	}
	return out
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Closes extracts close prices from a candle sequence
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// RSI calculates Relative Strength Index over the last period changes.
// Returns 50.0 for a flat series and 100.0 when there are no losses.
func RSI(candles []models.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 50.0
	}
	closes := Closes(candles)
	var gain, loss float64
	for i := len(closes) - period; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta >= 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgGain == 0 && avgLoss == 0 {
		return 50.0
	}
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// ATR calculates Average True Range as the mean true range over all
// adjacent candle pairs. Returns 0.0 with fewer than 2 candles.
func ATR(candles []models.Candle) float64 {
	if len(candles) < 2 {
		return 0.0
	}
	var trSum float64
	for i := 1; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close
		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trSum += tr
	}
	return trSum / float64(len(candles)-1)
}

// ADX calculates the Average Directional Index with Wilder smoothing.
// Returns 25.0 when fewer than period+2 candles are available.
func ADX(candles []models.Candle, period int) float64 {
	if len(candles) < period+2 {
		return 25.0
	}

	var plusDMs, minusDMs, trs []float64
	for i := 1; i < len(candles); i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low
		plusDM, minusDM := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}
		plusDMs = append(plusDMs, plusDM)
		minusDMs = append(minusDMs, minusDM)

		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close
		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trs = append(trs, tr)
	}

	// Wilder smoothing: SMA seed, then recursive (prev*(n-1)+new)/n.
	smPlus := SMA(plusDMs[:period])
	smMinus := SMA(minusDMs[:period])
	smTR := SMA(trs[:period])

	var dxs []float64
	for i := period; i < len(trs); i++ {
		smPlus = (smPlus*float64(period-1) + plusDMs[i]) / float64(period)
		smMinus = (smMinus*float64(period-1) + minusDMs[i]) / float64(period)
		smTR = (smTR*float64(period-1) + trs[i]) / float64(period)
		if smTR == 0 {
			dxs = append(dxs, 0)
			continue
		}
		plusDI := smPlus / smTR * 100.0
		minusDI := smMinus / smTR * 100.0
		if plusDI+minusDI == 0 {
			dxs = append(dxs, 0)
			continue
		}
		dx := math.Abs(plusDI-minusDI) / (plusDI + minusDI) * 100.0
		dxs = append(dxs, dx)
	}

	if len(dxs) == 0 {
		return 25.0
	}
	if len(dxs) > period {
		dxs = dxs[len(dxs)-period:]
	}
	return SMA(dxs)
}

// DetectRegime classifies market condition from trend strength, SMA
// direction, candle color balance and Bollinger bandwidth.
// Returns RANGE when fewer than 14 candles are available.
func DetectRegime(candles []models.Candle, adxPeriod int) (models.Regime, float64) {
	if len(candles) < 14 {
		return models.RegimeRange, 25.0
	}

	adx := ADX(candles, adxPeriod)
	closes := Closes(candles)
	price := closes[len(closes)-1]
	sma := SMAWithPeriod(closes, 10)

	greens := 0
	last7 := candles
	if len(last7) > 7 {
		last7 = last7[len(last7)-7:]
	}
	for _, c := range last7 {
		if c.Close > c.Open {
			greens++
		}
	}

	bb := Bollinger(candles, 14, 2.0)

	switch {
	case adx >= 25:
		if price > sma && greens >= 4 {
			return models.RegimeTrendUp, adx
		}
		if price < sma && greens <= 3 {
			return models.RegimeTrendDown, adx
		}
		return models.RegimeRange, adx
	case adx < 18:
		if bb.Bandwidth > 0.15 {
			return models.RegimeChop, adx
		}
		return models.RegimeRange, adx
	default:
		return models.RegimeRange, adx
	}
}

// MACDResult holds the MACD line, signal line, histogram and the
// histogram's change since the previous bar.
type MACDResult struct {
	Line      float64
	Signal    float64
	Hist      float64
	HistDelta float64
}

// MACD calculates Moving Average Convergence Divergence with the given
// fast/slow/signal periods. Returns zeros with insufficient candles.
func MACD(candles []models.Candle, fast, slow, signalPeriod int) MACDResult {
	if len(candles) < slow+signalPeriod {
		return MACDResult{}
	}
	closes := Closes(candles)

	fastEMA := EMASeries(closes, fast)
	slowEMA := EMASeries(closes, slow)
	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	// Signal line is smoothed over the MACD values from the first bar
	// where the slow EMA is fully formed.
	signal := EMASeries(macd[slow-1:], signalPeriod)

	line := macd[len(macd)-1]
	sig := signal[len(signal)-1]
	hist := line - sig

	prevHist := macd[len(macd)-2] - signal[len(signal)-2]
	return MACDResult{
		Line:      line,
		Signal:    sig,
		Hist:      hist,
		HistDelta: hist - prevHist,
	}
}

// VWAPResult holds the VWAP level plus the close's relative position
// and the recent VWAP slope.
type VWAPResult struct {
	VWAP  float64
	Pos   float64
	Slope float64
}

// VWAP calculates the cumulative volume-weighted typical price.
// Returns zeros with fewer than 3 candles.
func VWAP(candles []models.Candle) VWAPResult {
	if len(candles) < 3 {
		return VWAPResult{}
	}

	var pvSum, volSum float64
	series := make([]float64, 0, len(candles))
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3.0
		vol := c.Volume
		if vol <= 0 {
			vol = 1.0
		}
		pvSum += typical * vol
		volSum += vol
		series = append(series, pvSum/volSum)
	}

	vwap := series[len(series)-1]
	last := candles[len(candles)-1].Close
	pos := 0.0
	if vwap > 0 {
		pos = (last - vwap) / vwap * 100.0
	}

	slope := 0.0
	if len(series) >= 5 {
		recent := series[len(series)-5:]
		if recent[0] > 0 {
			slope = (recent[len(recent)-1] - recent[0]) / recent[0] * 100.0 * 50.0
			slope = Clamp(slope, -1.0, 1.0)
		}
	}

	return VWAPResult{VWAP: vwap, Pos: pos, Slope: slope}
}

// BollingerResult holds band levels plus derived bandwidth, position
// and squeeze state.
type BollingerResult struct {
	Upper     float64
	Middle    float64
	Lower     float64
	Bandwidth float64
	Pos       float64
	Squeeze   bool
}

// Bollinger calculates SMA +- mult*stddev bands over the last period
// closes. With fewer than period candles every band collapses to the
// last close and position is 0.5.
func Bollinger(candles []models.Candle, period int, mult float64) BollingerResult {
	if len(candles) == 0 {
		return BollingerResult{Pos: 0.5}
	}
	price := candles[len(candles)-1].Close
	if len(candles) < period {
		return BollingerResult{Upper: price, Middle: price, Lower: price, Pos: 0.5}
	}

	closes := Closes(candles)
	recent := closes[len(closes)-period:]
	middle := SMA(recent)
	sd := StdDev(recent)
	upper := middle + mult*sd
	lower := middle - mult*sd

	bandwidth := 0.0
	if middle > 0 {
		bandwidth = (upper - lower) / middle * 100.0
	}

	pos := 0.5
	if upper > lower {
		pos = Clamp((price-lower)/(upper-lower), 0.0, 1.0)
	}

	squeeze := false
	if len(closes) >= 2*period {
		prev := closes[len(closes)-2*period : len(closes)-period]
		prevMid := SMA(prev)
		prevSD := StdDev(prev)
		if prevMid > 0 {
			prevBW := (2 * mult * prevSD) / prevMid * 100.0
			squeeze = bandwidth < prevBW*0.5
		}
	}

	return BollingerResult{
		Upper:     upper,
		Middle:    middle,
		Lower:     lower,
		Bandwidth: bandwidth,
		Pos:       pos,
		Squeeze:   squeeze,
	}
}

// MaxSlice returns the maximum value in a slice
func MaxSlice(arr []float64) float64 {
	if len(arr) == 0 {
		return 0
	}
	max := arr[0]
	for _, v := range arr[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// MinSlice returns the minimum value in a slice
func MinSlice(arr []float64) float64 {
	if len(arr) == 0 {
		return 0
	}
	min := arr[0]
	for _, v := range arr[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
