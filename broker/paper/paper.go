// Package paper composes the live gateway's market data with the sim
// engine's account, so demo runs trade real prices without touching a
// terminal account.
package paper

import (
	"context"

	"github.com/janosik-trading/janosik/broker"
	"github.com/janosik-trading/janosik/broker/sim"
	"github.com/janosik-trading/janosik/market"
)

// MarketData is the quote side of the gateway.
type MarketData interface {
	GetTick(ctx context.Context, symbol string) (market.Tick, error)
	GetCandles(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error)
}

// Broker fills orders on the simulator at the prices the tick pump
// feeds it, while candles and ticks come from the gateway.
type Broker struct {
	data MarketData
	acct *sim.Engine
}

var _ broker.Broker = (*Broker)(nil)

func New(data MarketData, acct *sim.Engine) *Broker {
	return &Broker{data: data, acct: acct}
}

// Pump pushes a gateway tick into the simulator, driving stop-loss,
// take-profit, and equity marks.
func (b *Broker) Pump(tick market.Tick) error {
	return b.acct.UpdateTick(tick)
}

func (b *Broker) GetTick(ctx context.Context, symbol string) (market.Tick, error) {
	return b.data.GetTick(ctx, symbol)
}

func (b *Broker) GetCandles(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error) {
	return b.data.GetCandles(ctx, symbol, tf, count)
}

func (b *Broker) GetAccount(ctx context.Context) (broker.Account, error) {
	return b.acct.GetAccount(ctx)
}

func (b *Broker) CreateMarketOrder(ctx context.Context, req broker.MarketOrderRequest) (broker.OrderFill, error) {
	return b.acct.CreateMarketOrder(ctx, req)
}

func (b *Broker) ClosePosition(ctx context.Context, symbol string) ([]string, error) {
	return b.acct.ClosePosition(ctx, symbol)
}

func (b *Broker) OpenPositions(ctx context.Context, symbol string) ([]broker.Position, error) {
	return b.acct.OpenPositions(ctx, symbol)
}
