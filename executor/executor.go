// Package executor turns combined strategy signals into orders. Every
// signal passes through the risk checks, gets sized by the policy, and is
// recorded in the store. The executor also owns the daily counters, the
// end-of-day stats rollover, and the emergency stop.
package executor

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/janosik-trading/janosik/broker"
	"github.com/janosik-trading/janosik/market"
	"github.com/janosik-trading/janosik/risk"
	"github.com/janosik-trading/janosik/store"
	"github.com/janosik-trading/janosik/strategies"
)

// kellyHistory is how many closed trades feed Kelly sizing.
const kellyHistory = 30

// TradeStore is the slice of the Postgres store the executor uses.
type TradeStore interface {
	OpenTrade(ctx context.Context, strategyID int64, symbol, direction string, entryPrice, lotSize float64, entryTime time.Time) (int64, error)
	CloseTrade(ctx context.Context, tradeID int64, exitPrice float64, exitTime time.Time) error
	OpenTrades(ctx context.Context, strategyID int64) ([]store.Trade, error)
	RecentClosedTrades(ctx context.Context, strategyID int64, limit int) ([]store.Trade, error)
	TradesOn(ctx context.Context, date time.Time) ([]store.Trade, error)
	LatestCloses(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]float64, error)
	UpsertDailyStats(ctx context.Context, st store.DailyStats) error
}

// Result reports what happened to one signal.
type Result struct {
	Decision risk.Decision
	Fill     broker.OrderFill
	TradeID  int64
	Placed   bool
}

type Executor struct {
	broker  broker.Broker
	store   TradeStore
	policy  risk.Policy
	tracker *risk.Tracker
	tf      market.Timeframe
	logger  *slog.Logger
	now     func() time.Time

	mu            sync.Mutex
	day           time.Time
	tradesToday   int
	realizedToday float64
	maxDDToday    float64
	halted        bool
	haltReason    string
}

func New(b broker.Broker, st TradeStore, policy risk.Policy, tracker *risk.Tracker, tf market.Timeframe, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		broker:  b,
		store:   st,
		policy:  policy,
		tracker: tracker,
		tf:      tf,
		logger:  logger,
		now:     time.Now,
		day:     time.Now().UTC().Truncate(24 * time.Hour),
	}
}

// SetClock replaces the wall clock and realigns the daily counters to
// it. Candle replay drives this with the bar timestamps.
func (e *Executor) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.day = now().UTC().Truncate(24 * time.Hour)
	e.tradesToday = 0
	e.realizedToday = 0
	e.maxDDToday = 0
	e.mu.Unlock()
}

// HandleSignal risk-checks, sizes, and places one combined signal. A hold
// or a rejected signal returns with Placed=false and no error.
func (e *Executor) HandleSignal(ctx context.Context, strategyID int64, symbol string, action strategies.Action, confidence float64) (Result, error) {
	if action == strategies.ActionHold {
		return Result{}, nil
	}
	if e.Halted() {
		e.logger.Warn("signal dropped, trading halted", "symbol", symbol, "reason", e.HaltReason())
		return Result{}, nil
	}

	acct, err := e.broker.GetAccount(ctx)
	if err != nil {
		return Result{}, err
	}
	e.tracker.Update(acct.Equity)
	e.rolloverIfNeeded(ctx, e.now().UTC())

	tick, err := e.broker.GetTick(ctx, symbol)
	if err != nil {
		return Result{}, err
	}
	entry := tick.Ask
	if action == strategies.ActionSell {
		entry = tick.Bid
	}

	exposure, err := e.buildExposure(ctx, symbol)
	if err != nil {
		return Result{}, err
	}

	decision := risk.Evaluate(e.policy,
		risk.TradeIntent{Symbol: symbol, Direction: string(action), Lots: 0, EntryPrice: entry},
		risk.AccountSnapshot{Equity: acct.Equity, DrawdownPct: e.tracker.Drawdown()},
		risk.PnLSnapshot{DayRealized: e.RealizedToday()},
		exposure,
	)
	if !decision.Allowed {
		for _, v := range decision.Violations {
			e.logger.Warn("trade rejected", "symbol", symbol, "code", v.Code, "detail", v.Msg)
		}
		return Result{Decision: decision}, nil
	}

	lots := roundLots(symbol, decision.MaxLots)
	if lots <= 0 {
		e.logger.Warn("sized to zero lots", "symbol", symbol, "max_lots", decision.MaxLots)
		return Result{Decision: decision}, nil
	}

	fill, err := e.broker.CreateMarketOrder(ctx, broker.MarketOrderRequest{
		Symbol:    symbol,
		Direction: broker.Direction(action),
		Lots:      lots,
	})
	if err != nil {
		return Result{Decision: decision}, err
	}

	tradeID, err := e.store.OpenTrade(ctx, strategyID, symbol, string(action), fill.Price, fill.Lots, fill.Time)
	if err != nil {
		return Result{Decision: decision, Fill: fill}, err
	}

	e.mu.Lock()
	e.tradesToday++
	e.mu.Unlock()

	e.logger.Info("trade placed",
		"symbol", symbol,
		"direction", action,
		"lots", fill.Lots,
		"price", fill.Price,
		"confidence", confidence,
		"trade_id", tradeID,
	)

	return Result{Decision: decision, Fill: fill, TradeID: tradeID, Placed: true}, nil
}

// RefreshEquity pulls the account snapshot and feeds the drawdown tracker.
func (e *Executor) RefreshEquity(ctx context.Context) error {
	acct, err := e.broker.GetAccount(ctx)
	if err != nil {
		return err
	}
	e.tracker.Update(acct.Equity)
	return nil
}

// CloseSymbol closes every position on a symbol at the terminal and marks
// the matching store trades closed at the current price.
func (e *Executor) CloseSymbol(ctx context.Context, symbol string) error {
	tickets, err := e.broker.ClosePosition(ctx, symbol)
	if err != nil {
		return err
	}
	if len(tickets) > 0 {
		e.logger.Info("positions closed", "symbol", symbol, "count", len(tickets))
	}

	tick, err := e.broker.GetTick(ctx, symbol)
	if err != nil {
		return err
	}

	open, err := e.store.OpenTrades(ctx, 0)
	if err != nil {
		return err
	}
	for _, t := range open {
		if t.Symbol != symbol {
			continue
		}
		exit := tick.Bid
		if t.Direction == store.DirectionSell {
			exit = tick.Ask
		}
		if err := e.store.CloseTrade(ctx, t.ID, exit, tick.Time); err != nil {
			return err
		}
		e.recordRealized(tradePL(t, exit))
	}
	return nil
}

// EmergencyStop closes every open position and halts trading.
func (e *Executor) EmergencyStop(ctx context.Context, reason string) error {
	e.mu.Lock()
	if e.halted {
		e.mu.Unlock()
		return nil
	}
	e.halted = true
	e.haltReason = reason
	e.mu.Unlock()

	e.logger.Error("emergency stop", "reason", reason)

	positions, err := e.broker.OpenPositions(ctx, "")
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	for _, p := range positions {
		if seen[p.Symbol] {
			continue
		}
		seen[p.Symbol] = true
		if err := e.CloseSymbol(ctx, p.Symbol); err != nil {
			return err
		}
	}
	return nil
}

// CheckStopConditions halts and flattens when the policy's stop
// conditions hold. Reports whether trading is halted.
func (e *Executor) CheckStopConditions(ctx context.Context) (bool, error) {
	if e.Halted() {
		return true, nil
	}

	dd := e.tracker.Drawdown()
	e.trackDrawdown(dd)

	stop, reason := risk.StopTrading(e.policy, dd, e.RealizedToday())
	if !stop {
		return false, nil
	}
	return true, e.EmergencyStop(ctx, reason)
}

func (e *Executor) Halted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted
}

func (e *Executor) HaltReason() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.haltReason
}

func (e *Executor) TradesToday() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tradesToday
}

func (e *Executor) RealizedToday() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.realizedToday
}

// RecordClose folds an externally observed close (terminal SL/TP, sim
// auto-close) into the daily counters.
func (e *Executor) recordRealized(pl float64) {
	e.mu.Lock()
	e.realizedToday += pl
	e.mu.Unlock()
}

// Metrics builds the monitor-facing risk summary.
func (e *Executor) Metrics(ctx context.Context) (risk.Metrics, error) {
	open, err := e.store.OpenTrades(ctx, 0)
	if err != nil {
		return risk.Metrics{}, err
	}

	dailyLossPct := 0.0
	if e.policy.Capital > 0 {
		dailyLossPct = -e.RealizedToday() / e.policy.Capital * 100
	}

	return risk.Metrics{
		Equity:        e.tracker.Equity(),
		PeakEquity:    e.tracker.Peak(),
		DrawdownPct:   e.tracker.Drawdown(),
		DrawdownLevel: e.tracker.Level(),
		DailyLossPct:  dailyLossPct,
		OpenPositions: len(open),
		TradesToday:   e.TradesToday(),
		Halted:        e.Halted(),
	}, nil
}

func (e *Executor) buildExposure(ctx context.Context, symbol string) (risk.Exposure, error) {
	open, err := e.store.OpenTrades(ctx, 0)
	if err != nil {
		return risk.Exposure{}, err
	}

	candidate, err := e.store.LatestCloses(ctx, symbol, e.tf, 20)
	if err != nil {
		return risk.Exposure{}, err
	}

	openCloses := make(map[string][]float64)
	for _, t := range open {
		if t.Symbol == symbol {
			continue
		}
		if _, ok := openCloses[t.Symbol]; ok {
			continue
		}
		closes, err := e.store.LatestCloses(ctx, t.Symbol, e.tf, 20)
		if err != nil {
			return risk.Exposure{}, err
		}
		openCloses[t.Symbol] = closes
	}

	recent, err := e.store.RecentClosedTrades(ctx, 0, kellyHistory)
	if err != nil {
		return risk.Exposure{}, err
	}
	pls := make([]float64, 0, len(recent))
	for _, t := range recent {
		if t.ProfitLoss != nil {
			pls = append(pls, *t.ProfitLoss)
		}
	}

	return risk.Exposure{
		OpenPositions:    len(open),
		TradesToday:      e.TradesToday(),
		CandidateCloses:  candidate,
		OpenSymbolCloses: openCloses,
		RecentClosedPL:   pls,
	}, nil
}

func (e *Executor) trackDrawdown(dd float64) {
	e.mu.Lock()
	if dd > e.maxDDToday {
		e.maxDDToday = dd
	}
	e.mu.Unlock()
}

// rolloverIfNeeded upserts yesterday's daily_stats row and resets the
// counters when the UTC date has changed.
func (e *Executor) rolloverIfNeeded(ctx context.Context, now time.Time) {
	today := now.Truncate(24 * time.Hour)

	e.mu.Lock()
	if !today.After(e.day) {
		e.mu.Unlock()
		return
	}
	prevDay := e.day
	realized := e.realizedToday
	maxDD := e.maxDDToday

	e.day = today
	e.tradesToday = 0
	e.realizedToday = 0
	e.maxDDToday = 0
	e.mu.Unlock()

	if err := e.flushDailyStats(ctx, prevDay, realized, maxDD); err != nil {
		e.logger.Error("daily stats rollover failed", "date", prevDay, "error", err)
	}
}

// FlushDailyStats writes the current day's stats row without resetting
// anything. Called on shutdown and at the end of a backtest.
func (e *Executor) FlushDailyStats(ctx context.Context) error {
	e.mu.Lock()
	day := e.day
	realized := e.realizedToday
	maxDD := e.maxDDToday
	e.mu.Unlock()
	return e.flushDailyStats(ctx, day, realized, maxDD)
}

func (e *Executor) flushDailyStats(ctx context.Context, day time.Time, realized, maxDD float64) error {
	trades, err := e.store.TradesOn(ctx, day)
	if err != nil {
		return err
	}

	var closed, wins int
	for _, t := range trades {
		if t.Status != store.StatusClosed || t.ProfitLoss == nil {
			continue
		}
		closed++
		if *t.ProfitLoss > 0 {
			wins++
		}
	}
	winRate := 0.0
	if closed > 0 {
		winRate = float64(wins) / float64(closed)
	}

	dailyLossPct := 0.0
	if e.policy.Capital > 0 && realized < 0 {
		dailyLossPct = -realized / e.policy.Capital * 100
	}

	return e.store.UpsertDailyStats(ctx, store.DailyStats{
		Date:         day,
		TradesCount:  len(trades),
		TotalPL:      realized,
		WinRate:      winRate,
		MaxDrawdown:  maxDD,
		DailyLossPct: dailyLossPct,
	})
}

// tradePL mirrors the store's close-time P&L computation.
func tradePL(t store.Trade, exit float64) float64 {
	if t.Direction == store.DirectionSell {
		return (t.EntryPrice - exit) * t.LotSize
	}
	return (exit - t.EntryPrice) * t.LotSize
}

// roundLots snaps a lot size down to the instrument's lot step, returning
// zero when below the minimum.
func roundLots(symbol string, lots float64) float64 {
	meta, ok := market.Instruments[symbol]
	if !ok {
		return 0
	}
	if meta.LotStep > 0 {
		steps := math.Floor(lots/meta.LotStep + 1e-9)
		lots = steps * meta.LotStep
	}
	if lots < meta.MinimumLot {
		return 0
	}
	return lots
}
