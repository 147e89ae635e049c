// Package engine runs the live trading loop: fetch candles from the
// terminal on the configured cadence, persist them, evaluate the strategy
// ensemble, and hand combined signals to the executor. The loop stops
// itself when a risk stop condition fires.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/janosik-trading/janosik/broker"
	"github.com/janosik-trading/janosik/executor"
	"github.com/janosik-trading/janosik/market"
	"github.com/janosik-trading/janosik/strategies"
)

// CandleSink receives fetched candles for persistence.
type CandleSink interface {
	Write(market.Candle)
}

// Notifier delivers operator alerts. Implementations must be safe to call
// from the polling goroutine.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Config holds the trading loop settings.
type Config struct {
	Symbols   []string
	Timeframe market.Timeframe
	Interval  time.Duration // poll cadence; defaults to the timeframe duration
	History   int           // candles fetched per round (default 100)
}

type Engine struct {
	cfg      Config
	broker   broker.Broker
	sink     CandleSink
	strats   map[int64]strategies.Strategy
	exec     *executor.Executor
	notifier Notifier
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	lastCandle map[string]time.Time
}

func New(cfg Config, b broker.Broker, sink CandleSink, strats map[int64]strategies.Strategy, exec *executor.Executor, notifier Notifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = cfg.Timeframe.Duration()
	}
	if cfg.History <= 0 {
		cfg.History = 100
	}
	return &Engine{
		cfg:        cfg,
		broker:     b,
		sink:       sink,
		strats:     strats,
		exec:       exec,
		notifier:   notifier,
		logger:     logger,
		lastCandle: make(map[string]time.Time),
	}
}

// Start begins the trading loop.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go e.run()

	e.logger.Info("trading engine started",
		"symbols", e.cfg.Symbols,
		"timeframe", e.cfg.Timeframe,
		"interval", e.cfg.Interval,
	)
	return nil
}

// Stop shuts the loop down and waits for the current round to finish.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("trading engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	// Trade immediately on start.
	e.round()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.round()
		}
	}
}

// round is one full fetch-evaluate-execute pass.
func (e *Engine) round() {
	ctx := e.ctx

	if err := e.exec.RefreshEquity(ctx); err != nil {
		e.logger.Error("equity refresh failed", "error", err)
		return
	}

	halted, err := e.exec.CheckStopConditions(ctx)
	if err != nil {
		e.logger.Error("stop condition check failed", "error", err)
	}
	if halted {
		e.notify(ctx, fmt.Sprintf("trading halted: %s", e.exec.HaltReason()))
		e.cancel()
		return
	}

	candles := e.fetchCandles(ctx)
	if len(candles) == 0 {
		return
	}

	votes := strategies.EvaluateAll(ctx, e.strats, candles, e.logger)
	for _, symbol := range e.cfg.Symbols {
		action := strategies.CombineSymbol(votes, symbol)
		if action == strategies.ActionHold {
			continue
		}

		strategyID, confidence := leadVote(votes, symbol, action)
		res, err := e.exec.HandleSignal(ctx, strategyID, symbol, action, confidence)
		if err != nil {
			e.logger.Error("signal execution failed", "symbol", symbol, "error", err)
			continue
		}
		if res.Placed {
			e.notify(ctx, fmt.Sprintf("%s %s %.2f lots @ %.5f",
				action, symbol, res.Fill.Lots, res.Fill.Price))
		}
	}
}

// fetchCandles pulls recent history per symbol and streams unseen candles
// into the sink.
func (e *Engine) fetchCandles(ctx context.Context) map[string][]market.Candle {
	out := make(map[string][]market.Candle, len(e.cfg.Symbols))
	for _, symbol := range e.cfg.Symbols {
		candles, err := e.broker.GetCandles(ctx, symbol, e.cfg.Timeframe, e.cfg.History)
		if err != nil {
			e.logger.Error("candle fetch failed", "symbol", symbol, "error", err)
			continue
		}
		if len(candles) == 0 {
			continue
		}
		out[symbol] = candles

		if e.sink == nil {
			continue
		}
		last := e.lastCandle[symbol]
		for _, c := range candles {
			if !c.Time.After(last) {
				continue
			}
			e.sink.Write(c)
		}
		e.lastCandle[symbol] = candles[len(candles)-1].Time
	}
	return out
}

func (e *Engine) notify(ctx context.Context, text string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Send(ctx, text); err != nil {
		e.logger.Warn("alert delivery failed", "error", err)
	}
}

// leadVote picks the highest-confidence vote agreeing with the combined
// action, for trade attribution.
func leadVote(votes []strategies.Vote, symbol string, action strategies.Action) (int64, float64) {
	var id int64
	var best float64
	for _, v := range votes {
		if v.Symbol != symbol || v.Signal.Action != action {
			continue
		}
		if v.Signal.Confidence >= best {
			best = v.Signal.Confidence
			id = v.StrategyID
		}
	}
	return id, best
}
