// Package backtest replays stored candle history through the simulated
// account, the strategy ensemble, and the risk-checked executor.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/janosik-trading/janosik/broker"
	"github.com/janosik-trading/janosik/broker/sim"
	"github.com/janosik-trading/janosik/executor"
	"github.com/janosik-trading/janosik/journal"
	"github.com/janosik-trading/janosik/market"
	"github.com/janosik-trading/janosik/risk"
	"github.com/janosik-trading/janosik/strategies"
)

const (
	defaultWarmup   = 30
	historyWindow   = 100
	accountCurrency = "USD"
)

// Config describes one replay.
type Config struct {
	Policy     risk.Policy
	Timeframe  market.Timeframe
	Strategies map[int64]strategies.Strategy
	// Warmup is the number of bars per symbol consumed before any
	// signal is acted on. Defaults to 30.
	Warmup  int
	Journal journal.Journal
	Logger  *slog.Logger
}

// Result summarizes a finished replay.
type Result struct {
	StartEquity    float64
	FinalEquity    float64
	NetProfit      float64
	Trades         int
	Wins           int
	Losses         int
	WinRate        float64
	MaxDrawdownPct float64
	Halted         bool
	HaltReason     string
}

func (r Result) String() string {
	return fmt.Sprintf("trades=%d win_rate=%.1f%% net=%.2f max_dd=%.2f%% equity %.2f -> %.2f",
		r.Trades, r.WinRate*100, r.NetProfit, r.MaxDrawdownPct, r.StartEquity, r.FinalEquity)
}

// journalObserver forwards sim trade closes to the journal.
type journalObserver struct {
	journal journal.Journal
	logger  *slog.Logger
}

func (o *journalObserver) TradeOpened(sim.Trade) {}

func (o *journalObserver) TradeClosed(t sim.Trade) {
	err := o.journal.RecordTrade(journal.TradeRecord{
		Ticket:     t.Ticket,
		Symbol:     t.Symbol,
		Direction:  string(t.Direction),
		Lots:       t.Lots,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ClosePrice,
		OpenTime:   t.OpenTime,
		CloseTime:  t.CloseTime,
		RealizedPL: t.RealizedPL,
		Reason:     t.Reason,
	})
	if err != nil {
		o.logger.Error("journal write failed", "ticket", t.Ticket, "error", err)
	}
}

// Runner owns the replay state for one Run.
type Runner struct {
	cfg     Config
	logger  *slog.Logger
	journal journal.Journal
}

func NewRunner(cfg Config) (*Runner, error) {
	if len(cfg.Strategies) == 0 {
		return nil, fmt.Errorf("backtest: no strategies configured")
	}
	if !cfg.Timeframe.Valid() {
		return nil, fmt.Errorf("backtest: invalid timeframe %d", cfg.Timeframe)
	}
	if cfg.Warmup <= 0 {
		cfg.Warmup = defaultWarmup
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.Nop{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger, journal: cfg.Journal}, nil
}

// Run replays candles, oldest first, and returns the summary. Candles
// are keyed by symbol and must all carry the runner's timeframe.
func (r *Runner) Run(ctx context.Context, candles map[string][]market.Candle) (Result, error) {
	bars := mergeBars(candles)
	if len(bars) == 0 {
		return Result{}, fmt.Errorf("backtest: no candles to replay")
	}

	engine := sim.NewEngine(broker.Account{
		ID:       "backtest",
		Currency: accountCurrency,
		Balance:  r.cfg.Policy.Capital,
		Equity:   r.cfg.Policy.Capital,
	})
	engine.SetObserver(&journalObserver{journal: r.journal, logger: r.logger})

	mem := newMemoryStore()
	tracker := risk.NewTracker(r.cfg.Policy)
	exec := executor.New(engine, mem, r.cfg.Policy, tracker, r.cfg.Timeframe, r.logger)

	clock := bars[0].Time
	exec.SetClock(func() time.Time { return clock })

	seen := make(map[string]int, len(candles))
	var maxDD float64

	for _, bar := range bars {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		clock = bar.Time

		if err := engine.AppendCandle(bar); err != nil {
			return Result{}, fmt.Errorf("backtest: apply candle %s %s: %w", bar.Symbol, bar.Time, err)
		}
		mem.appendClose(bar.Symbol, bar.Close)
		seen[bar.Symbol]++

		if err := exec.RefreshEquity(ctx); err != nil {
			return Result{}, err
		}
		if dd := tracker.Drawdown(); dd > maxDD {
			maxDD = dd
		}
		if err := r.snapshotEquity(ctx, engine, tracker, bar.Time); err != nil {
			return Result{}, err
		}

		if stopped, err := exec.CheckStopConditions(ctx); err != nil {
			return Result{}, err
		} else if stopped {
			break
		}

		if seen[bar.Symbol] < r.cfg.Warmup {
			continue
		}
		if err := r.step(ctx, engine, exec, bar); err != nil {
			return Result{}, err
		}
	}

	// Flatten whatever is still open so the summary reflects final
	// prices, then write the last day's stats row.
	for symbol := range candles {
		if err := exec.CloseSymbol(ctx, symbol); err != nil {
			r.logger.Warn("flatten failed", "symbol", symbol, "error", err)
		}
	}
	if err := exec.FlushDailyStats(ctx); err != nil {
		r.logger.Warn("daily stats flush failed", "error", err)
	}

	return r.summarize(ctx, engine, maxDD, exec.Halted(), exec.HaltReason())
}

// step evaluates the strategies voting on the bar's symbol and hands the
// combined signal to the executor.
func (r *Runner) step(ctx context.Context, engine *sim.Engine, exec *executor.Executor, bar market.Candle) error {
	history, err := engine.GetCandles(ctx, bar.Symbol, r.cfg.Timeframe, historyWindow)
	if err != nil {
		return err
	}

	votes := strategies.EvaluateAll(ctx, r.cfg.Strategies,
		map[string][]market.Candle{bar.Symbol: history}, r.logger)
	action := strategies.CombineSymbol(votes, bar.Symbol)
	if action == strategies.ActionHold {
		return nil
	}

	strategyID, confidence := leadVote(votes, bar.Symbol, action)
	_, err = exec.HandleSignal(ctx, strategyID, bar.Symbol, action, confidence)
	return err
}

func (r *Runner) snapshotEquity(ctx context.Context, engine *sim.Engine, tracker *risk.Tracker, at time.Time) error {
	acct, err := engine.GetAccount(ctx)
	if err != nil {
		return err
	}
	return r.journal.RecordEquity(journal.EquitySnapshot{
		Time:        at,
		Balance:     acct.Balance,
		Equity:      acct.Equity,
		MarginUsed:  acct.MarginUsed,
		FreeMargin:  acct.FreeMargin,
		DrawdownPct: tracker.Drawdown(),
	})
}

func (r *Runner) summarize(ctx context.Context, engine *sim.Engine, maxDD float64, halted bool, haltReason string) (Result, error) {
	acct, err := engine.GetAccount(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		StartEquity:    r.cfg.Policy.Capital,
		FinalEquity:    acct.Equity,
		NetProfit:      acct.Equity - r.cfg.Policy.Capital,
		MaxDrawdownPct: maxDD,
		Halted:         halted,
		HaltReason:     haltReason,
	}
	for _, t := range engine.ClosedTrades() {
		res.Trades++
		if t.RealizedPL > 0 {
			res.Wins++
		} else {
			res.Losses++
		}
	}
	if res.Trades > 0 {
		res.WinRate = float64(res.Wins) / float64(res.Trades)
	}
	return res, nil
}

// mergeBars interleaves the per-symbol series into one time-ordered
// stream. Ties keep symbol order stable.
func mergeBars(candles map[string][]market.Candle) []market.Candle {
	var out []market.Candle
	for _, series := range candles {
		out = append(out, series...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time.Equal(out[j].Time) {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Time.Before(out[j].Time)
	})
	return out
}

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
