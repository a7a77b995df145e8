package pricing

import (
	"math"
	"strconv"
)

// Tick is the smallest price increment the exchange accepts for
// binary contracts. Orders priced off-tick are rejected outright.
const Tick = 0.01

// RoundToTick rounds a price to the nearest valid tick.
func RoundToTick(price, tick float64) float64 {
	if tick > 0 {
		return math.Round(price/tick) * tick
	}
	return price
}

// FormatPrice formats a price to string with tick precision.
func FormatPrice(price, tick float64) string {
	if tick <= 0 {
		return "0.00"
	}

	decimals := 0
	for tick < 1 {
		tick *= 10
		decimals++
	}

	return strconv.FormatFloat(price, 'f', decimals, 64)
}

// ClampPrice bounds a price to the tradeable range after tick
// rounding, so an aggressive offset never produces an order the
// exchange would refuse.
func ClampPrice(price, min, max float64) float64 {
	return math.Max(min, math.Min(price, max))
}
