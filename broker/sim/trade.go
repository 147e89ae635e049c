package sim

import (
	"time"

	"github.com/janosik-trading/janosik/broker"
	"github.com/janosik-trading/janosik/market"
)

// Trade is a simulated position.
type Trade struct {
	Ticket     string
	Symbol     string
	Direction  broker.Direction
	Lots       float64
	EntryPrice float64
	OpenTime   time.Time

	StopLoss   *float64
	TakeProfit *float64
	Comment    string

	ClosePrice float64
	CloseTime  time.Time
	RealizedPL float64 // account currency
	Reason     string
	Open       bool
}

func (t *Trade) sign() float64 {
	if t.Direction == broker.Sell {
		return -1
	}
	return 1
}

// unrealizedPL marks the trade against price, converted to account currency.
func unrealizedPL(t *Trade, price, quoteToAccount float64) float64 {
	meta := market.Instruments[t.Symbol]
	plQuote := t.sign() * t.Lots * meta.ContractSize * (price - t.EntryPrice)
	return plQuote * quoteToAccount
}

// tradeMargin is the margin a position consumes, in account currency.
func tradeMargin(t *Trade, price, quoteToAccount float64) float64 {
	meta := market.Instruments[t.Symbol]
	notionalQuote := t.Lots * meta.ContractSize * price
	return notionalQuote * quoteToAccount * meta.MarginRate
}

func hitStopLoss(t *Trade, price float64) bool {
	if t.StopLoss == nil {
		return false
	}
	if t.Direction == broker.Buy {
		return price <= *t.StopLoss
	}
	return price >= *t.StopLoss
}

func hitTakeProfit(t *Trade, price float64) bool {
	if t.TakeProfit == nil {
		return false
	}
	if t.Direction == broker.Buy {
		return price >= *t.TakeProfit
	}
	return price <= *t.TakeProfit
}
