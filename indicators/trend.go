package indicators

import "polyradar/models"

// TrendScore is the composite short-horizon trend read over a candle
// window: overall change, momentum, candle color balance and the share
// of volume on rising candles.
type TrendScore struct {
	Score      float64
	Direction  models.Direction
	Confidence float64
}

// AnalyzeTrend scores the recent candle window into [-1, 1].
// Returns a neutral score with fewer than 6 candles.
func AnalyzeTrend(candles []models.Candle) TrendScore {
	if len(candles) < 6 {
		return TrendScore{Direction: models.DirectionNeutral}
	}

	closes := Closes(candles)
	first := closes[0]
	last := closes[len(closes)-1]

	score := 0.0

	// Overall change across the window.
	if first > 0 {
		totalChange := (last - first) / first * 100.0
		switch {
		case totalChange > 0.02:
			score += 0.35
		case totalChange > 0.01:
			score += 0.20
		case totalChange < -0.02:
			score -= 0.35
		case totalChange < -0.01:
			score -= 0.20
		}
	}

	// Momentum: the last 3 closes against the 3 before them.
	recent := SMA(closes[len(closes)-3:])
	older := SMA(closes[len(closes)-6 : len(closes)-3])
	if older > 0 {
		momentum := (recent - older) / older * 100.0
		switch {
		case momentum > 0.02:
			score += 0.35
		case momentum > 0.01:
			score += 0.20
		case momentum < -0.02:
			score -= 0.35
		case momentum < -0.01:
			score -= 0.20
		}
	}

	// Candle color balance over the last 7.
	window := candles
	if len(window) > 7 {
		window = window[len(window)-7:]
	}
	greens := 0
	var upVol, totalVol float64
	for _, c := range window {
		if c.Close > c.Open {
			greens++
			upVol += c.Volume
		}
		totalVol += c.Volume
	}
	switch {
	case greens >= 4:
		score += 0.15
	case greens <= 1:
		score -= 0.15
	case greens >= 3:
		score += 0.07
	case greens <= 2:
		score -= 0.07
	}

	// Volume share on rising candles.
	if totalVol > 0 {
		ratio := upVol / totalVol
		switch {
		case ratio > 0.65:
			score += 0.15
		case ratio < 0.35:
			score -= 0.15
		case ratio > 0.55:
			score += 0.07
		case ratio < 0.45:
			score -= 0.07
		}
	}

	score = Clamp(score, -1.0, 1.0)

	dir := models.DirectionNeutral
	if score > 0.15 {
		dir = models.DirectionUp
	} else if score < -0.15 {
		dir = models.DirectionDown
	}

	confidence := Clamp(absFloat(score)/0.7, 0.0, 1.0)
	return TrendScore{Score: score, Direction: dir, Confidence: confidence}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
