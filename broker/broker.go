// Package broker defines the trading-terminal interface the bot trades
// through, implemented by the MT5 gateway bridge and the sim engine.
package broker

import (
	"context"
	"time"

	"github.com/janosik-trading/janosik/market"
)

type Broker interface {
	GetAccount(ctx context.Context) (Account, error)
	GetTick(ctx context.Context, symbol string) (market.Tick, error)
	GetCandles(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error)
	CreateMarketOrder(ctx context.Context, req MarketOrderRequest) (OrderFill, error)
	ClosePosition(ctx context.Context, symbol string) ([]string, error)
	OpenPositions(ctx context.Context, symbol string) ([]Position, error)
}

// Account is a snapshot of the terminal account state.
type Account struct {
	ID          string
	Currency    string
	Balance     float64
	Equity      float64
	MarginUsed  float64
	FreeMargin  float64
	MarginLevel float64
}

// Direction of a position or order.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// MarketOrderRequest asks for an immediate fill at the current price.
type MarketOrderRequest struct {
	Symbol     string
	Direction  Direction
	Lots       float64
	StopLoss   *float64
	TakeProfit *float64
	Comment    string
}

// OrderFill reports the executed order.
type OrderFill struct {
	Ticket string
	Symbol string
	Lots   float64
	Price  float64
	Time   time.Time
}

// Position is an open position at the terminal.
type Position struct {
	Ticket       string
	Symbol       string
	Direction    Direction
	Lots         float64
	OpenPrice    float64
	CurrentPrice float64
	Profit       float64
	OpenTime     time.Time
}
