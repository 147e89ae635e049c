// Package sim is an in-memory trading terminal. It fills market orders at
// the current bid/ask, marks open positions on every price update, and
// auto-closes them when stop loss, take profit, or a margin call hits.
// Backtests and the demo environment run against it instead of a live
// terminal.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/janosik-trading/janosik/broker"
	"github.com/janosik-trading/janosik/market"
	"github.com/janosik-trading/janosik/pkg/id"
)

// CloseReason labels why the engine closed a trade.
const (
	ReasonManual      = "MANUAL"
	ReasonStopLoss    = "STOP_LOSS"
	ReasonTakeProfit  = "TAKE_PROFIT"
	ReasonLiquidation = "LIQUIDATION"
)

// TradeObserver is notified about trade lifecycle events. Calls happen
// outside the engine lock, so observers may call back into the engine.
type TradeObserver interface {
	TradeOpened(t Trade)
	TradeClosed(t Trade)
}

// Engine simulates a terminal account.
type Engine struct {
	mu       sync.Mutex
	acct     broker.Account
	ticks    *market.TickStore
	history  map[string][]market.Candle
	trades   map[string]*Trade
	observer TradeObserver
}

func NewEngine(acct broker.Account) *Engine {
	return &Engine{
		acct:    acct,
		ticks:   market.NewTickStore(),
		history: make(map[string][]market.Candle),
		trades:  make(map[string]*Trade),
	}
}

// SetObserver registers an optional trade lifecycle listener.
func (e *Engine) SetObserver(obs TradeObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = obs
}

func (e *Engine) GetAccount(ctx context.Context) (broker.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct, nil
}

func (e *Engine) GetTick(ctx context.Context, symbol string) (market.Tick, error) {
	return e.ticks.Get(symbol)
}

func historyKey(symbol string, tf market.Timeframe) string {
	return symbol + "/" + tf.String()
}

// GetCandles returns the most recent count candles from the loaded
// history, oldest first.
func (e *Engine) GetCandles(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	series := e.history[historyKey(symbol, tf)]
	if count > 0 && len(series) > count {
		series = series[len(series)-count:]
	}
	out := make([]market.Candle, len(series))
	copy(out, series)
	return out, nil
}

// CreateMarketOrder fills immediately at the current ask (buy) or bid
// (sell). Orders are rejected when no price is known or free margin does
// not cover the position.
func (e *Engine) CreateMarketOrder(ctx context.Context, req broker.MarketOrderRequest) (broker.OrderFill, error) {
	tick, err := e.ticks.Get(req.Symbol)
	if err != nil {
		return broker.OrderFill{}, fmt.Errorf("sim order %s: %w", req.Symbol, err)
	}
	if req.Lots <= 0 {
		return broker.OrderFill{}, fmt.Errorf("sim order %s: invalid lots %v", req.Symbol, req.Lots)
	}

	e.mu.Lock()

	fillPrice := tick.Ask
	if req.Direction == broker.Sell {
		fillPrice = tick.Bid
	}

	trade := &Trade{
		Ticket:     id.New(),
		Symbol:     req.Symbol,
		Direction:  req.Direction,
		Lots:       req.Lots,
		EntryPrice: fillPrice,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Comment:    req.Comment,
		OpenTime:   tick.Time,
		Open:       true,
	}

	rate, err := market.QuoteToAccountRate(req.Symbol, e.acct.Currency, e.ticks)
	if err != nil {
		e.mu.Unlock()
		return broker.OrderFill{}, err
	}
	if err := e.refreshLocked(); err != nil {
		e.mu.Unlock()
		return broker.OrderFill{}, err
	}
	required := tradeMargin(trade, tick.Mid(), rate)
	if required > e.acct.FreeMargin {
		e.mu.Unlock()
		return broker.OrderFill{}, fmt.Errorf("sim order %s: insufficient margin (need %.2f, free %.2f)",
			req.Symbol, required, e.acct.FreeMargin)
	}

	e.trades[trade.Ticket] = trade
	if err := e.refreshLocked(); err != nil {
		delete(e.trades, trade.Ticket)
		e.mu.Unlock()
		return broker.OrderFill{}, err
	}

	opened := *trade
	obs := e.observer
	e.mu.Unlock()

	if obs != nil {
		obs.TradeOpened(opened)
	}

	return broker.OrderFill{
		Ticket: trade.Ticket,
		Symbol: req.Symbol,
		Lots:   req.Lots,
		Price:  fillPrice,
		Time:   tick.Time,
	}, nil
}

// ClosePosition closes every open trade on the symbol at the current
// price and returns the closed tickets.
func (e *Engine) ClosePosition(ctx context.Context, symbol string) ([]string, error) {
	tick, err := e.ticks.Get(symbol)
	if err != nil {
		return nil, fmt.Errorf("sim close %s: %w", symbol, err)
	}

	e.mu.Lock()

	var closed []Trade
	for _, t := range e.trades {
		if !t.Open || t.Symbol != symbol {
			continue
		}
		closePrice := tick.Bid
		if t.Direction == broker.Sell {
			closePrice = tick.Ask
		}
		if err := e.closeTradeLocked(t, closePrice, tick.Time, ReasonManual); err != nil {
			e.mu.Unlock()
			return nil, err
		}
		closed = append(closed, *t)
	}

	if err := e.refreshLocked(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	obs := e.observer
	e.mu.Unlock()

	tickets := make([]string, 0, len(closed))
	for _, t := range closed {
		tickets = append(tickets, t.Ticket)
		if obs != nil {
			obs.TradeClosed(t)
		}
	}
	return tickets, nil
}

// OpenPositions lists open trades as terminal positions, marked at the
// current price.
func (e *Engine) OpenPositions(ctx context.Context, symbol string) ([]broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []broker.Position
	for _, t := range e.trades {
		if !t.Open {
			continue
		}
		if symbol != "" && t.Symbol != symbol {
			continue
		}

		mark := t.EntryPrice
		profit := 0.0
		if tick, err := e.ticks.Get(t.Symbol); err == nil {
			mark = tick.Bid
			if t.Direction == broker.Sell {
				mark = tick.Ask
			}
			if rate, err := market.QuoteToAccountRate(t.Symbol, e.acct.Currency, e.ticks); err == nil {
				profit = unrealizedPL(t, mark, rate)
			}
		}

		out = append(out, broker.Position{
			Ticket:       t.Ticket,
			Symbol:       t.Symbol,
			Direction:    t.Direction,
			Lots:         t.Lots,
			OpenPrice:    t.EntryPrice,
			CurrentPrice: mark,
			Profit:       profit,
			OpenTime:     t.OpenTime,
		})
	}
	return out, nil
}

// UpdateTick publishes a new price, triggers stop loss and take profit
// exits, revalues the account, and liquidates the worst positions while
// equity stays below used margin.
func (e *Engine) UpdateTick(tick market.Tick) error {
	e.ticks.Set(tick)

	e.mu.Lock()

	var closed []Trade
	for _, t := range e.trades {
		if !t.Open || t.Symbol != tick.Symbol {
			continue
		}

		mark := tick.Bid
		if t.Direction == broker.Sell {
			mark = tick.Ask
		}

		var reason string
		var exit float64
		switch {
		case hitStopLoss(t, mark):
			reason, exit = ReasonStopLoss, *t.StopLoss
		case hitTakeProfit(t, mark):
			reason, exit = ReasonTakeProfit, *t.TakeProfit
		}
		if reason == "" {
			continue
		}
		if err := e.closeTradeLocked(t, exit, tick.Time, reason); err != nil {
			e.mu.Unlock()
			return err
		}
		closed = append(closed, *t)
	}

	if err := e.refreshLocked(); err != nil {
		e.mu.Unlock()
		return err
	}

	liquidated, err := e.enforceMarginLocked()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	closed = append(closed, liquidated...)

	obs := e.observer
	e.mu.Unlock()

	if obs != nil {
		for _, t := range closed {
			obs.TradeClosed(t)
		}
	}
	return nil
}

// AppendCandle records a closed candle into the history and publishes its
// close as the current price. The candle's high/low sweep exits that a
// close-only tick would miss.
func (e *Engine) AppendCandle(c market.Candle) error {
	e.mu.Lock()
	key := historyKey(c.Symbol, c.Timeframe)
	e.history[key] = append(e.history[key], c)

	// Intrabar exit check against the candle extremes.
	var closed []Trade
	for _, t := range e.trades {
		if !t.Open || t.Symbol != c.Symbol {
			continue
		}
		var reason string
		var exit float64
		switch {
		case t.StopLoss != nil && t.Direction == broker.Buy && c.Low <= *t.StopLoss:
			reason, exit = ReasonStopLoss, *t.StopLoss
		case t.StopLoss != nil && t.Direction == broker.Sell && c.High >= *t.StopLoss:
			reason, exit = ReasonStopLoss, *t.StopLoss
		case t.TakeProfit != nil && t.Direction == broker.Buy && c.High >= *t.TakeProfit:
			reason, exit = ReasonTakeProfit, *t.TakeProfit
		case t.TakeProfit != nil && t.Direction == broker.Sell && c.Low <= *t.TakeProfit:
			reason, exit = ReasonTakeProfit, *t.TakeProfit
		}
		if reason == "" {
			continue
		}
		if err := e.closeTradeLocked(t, exit, c.Time, reason); err != nil {
			e.mu.Unlock()
			return err
		}
		closed = append(closed, *t)
	}

	obs := e.observer
	e.mu.Unlock()

	for _, t := range closed {
		if obs != nil {
			obs.TradeClosed(t)
		}
	}

	return e.UpdateTick(market.Tick{
		Symbol: c.Symbol,
		Bid:    c.Close,
		Ask:    c.Close,
		Time:   c.Time,
	})
}

// ClosedTrades returns all closed trades, for end-of-run reporting.
func (e *Engine) ClosedTrades() []Trade {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Trade
	for _, t := range e.trades {
		if !t.Open {
			out = append(out, *t)
		}
	}
	return out
}

func (e *Engine) closeTradeLocked(t *Trade, closePrice float64, closeTime time.Time, reason string) error {
	rate, err := market.QuoteToAccountRate(t.Symbol, e.acct.Currency, e.ticks)
	if err != nil {
		return err
	}

	if closeTime.IsZero() {
		closeTime = time.Now().UTC()
	}

	t.ClosePrice = closePrice
	t.CloseTime = closeTime
	t.RealizedPL = unrealizedPL(t, closePrice, rate)
	t.Reason = reason
	t.Open = false

	e.acct.Balance += t.RealizedPL
	return nil
}

// refreshLocked revalues equity and recomputes margin from open trades.
func (e *Engine) refreshLocked() error {
	equity := e.acct.Balance
	var used float64

	for _, t := range e.trades {
		if !t.Open {
			continue
		}

		tick, err := e.ticks.Get(t.Symbol)
		if err != nil {
			return err
		}
		rate, err := market.QuoteToAccountRate(t.Symbol, e.acct.Currency, e.ticks)
		if err != nil {
			return err
		}

		mark := tick.Bid
		if t.Direction == broker.Sell {
			mark = tick.Ask
		}

		equity += unrealizedPL(t, mark, rate)
		used += tradeMargin(t, tick.Mid(), rate)
	}

	e.acct.Equity = equity
	e.acct.MarginUsed = used
	e.acct.FreeMargin = equity - used
	if used > 0 {
		e.acct.MarginLevel = equity / used
	} else {
		e.acct.MarginLevel = 0
	}
	return nil
}

// enforceMarginLocked force-closes the worst open trade until equity
// covers used margin again.
func (e *Engine) enforceMarginLocked() ([]Trade, error) {
	var liquidated []Trade

	for {
		if e.acct.MarginUsed <= 0 || e.acct.Equity >= e.acct.MarginUsed {
			return liquidated, nil
		}

		var worst *Trade
		var worstPL float64
		for _, t := range e.trades {
			if !t.Open {
				continue
			}
			tick, err := e.ticks.Get(t.Symbol)
			if err != nil {
				return liquidated, err
			}
			rate, err := market.QuoteToAccountRate(t.Symbol, e.acct.Currency, e.ticks)
			if err != nil {
				return liquidated, err
			}
			mark := tick.Bid
			if t.Direction == broker.Sell {
				mark = tick.Ask
			}
			pl := unrealizedPL(t, mark, rate)
			if worst == nil || pl < worstPL {
				worst, worstPL = t, pl
			}
		}
		if worst == nil {
			return liquidated, nil
		}

		tick, _ := e.ticks.Get(worst.Symbol)
		closePrice := tick.Bid
		if worst.Direction == broker.Sell {
			closePrice = tick.Ask
		}
		if err := e.closeTradeLocked(worst, closePrice, tick.Time, ReasonLiquidation); err != nil {
			return liquidated, err
		}
		liquidated = append(liquidated, *worst)

		if err := e.refreshLocked(); err != nil {
			return liquidated, err
		}
	}
}
