package interfaces

import (
	"context"

	"polyradar/models"
)

// MarketData defines the interface for the market-data collaborator
type MarketData interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	Price(ctx context.Context, symbol string) (float64, error)
	PriceAt(ctx context.Context, symbol string, ts int64) (float64, error)
}

// Gateway defines the interface for the execution-gateway collaborator
type Gateway interface {
	Quote(ctx context.Context, tokenID, side string) (float64, error)
	Balance(ctx context.Context) (float64, error)
	TokenPosition(ctx context.Context, tokenID string) (float64, error)
	OpenOrdersValue(ctx context.Context, tokenIDs ...string) (float64, error)
	SubmitOrder(ctx context.Context, tokenID string, price, size float64, side string) (string, error)
	OrderStatus(ctx context.Context, orderID string) (*models.OrderStatus, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Recorder defines the interface for the persistence sinks
type Recorder interface {
	RecordSignal(sig *models.Signal, snap models.IndicatorSnapshot, upPrice, downPrice, assetPrice float64) error
	RecordTrade(ev models.TradeEvent) error
	RecordSummary(wins, losses int, pnl float64) error
	Close() error
}
