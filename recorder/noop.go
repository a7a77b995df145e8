package recorder

import "polyradar/models"

// Noop discards everything. Used when persistence is disabled.
type Noop struct{}

func (Noop) RecordSignal(*models.Signal, models.IndicatorSnapshot, float64, float64, float64) error {
	return nil
}
func (Noop) RecordTrade(models.TradeEvent) error   { return nil }
func (Noop) RecordSummary(int, int, float64) error { return nil }
func (Noop) Close() error                          { return nil }
