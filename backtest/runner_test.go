package backtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janosik-trading/janosik/journal"
	"github.com/janosik-trading/janosik/market"
	"github.com/janosik-trading/janosik/risk"
	"github.com/janosik-trading/janosik/strategies"
)

type fixedStrategy struct {
	name   string
	symbol string
	signal strategies.Signal
}

func (f *fixedStrategy) Name() string                { return f.name }
func (f *fixedStrategy) Symbol() string              { return f.symbol }
func (f *fixedStrategy) Timeframe() market.Timeframe { return market.H1 }

func (f *fixedStrategy) Evaluate([]market.Candle) (strategies.Signal, error) {
	return f.signal, nil
}

type captureJournal struct {
	mu     sync.Mutex
	trades []journal.TradeRecord
	equity []journal.EquitySnapshot
}

func (j *captureJournal) RecordTrade(r journal.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.trades = append(j.trades, r)
	return nil
}

func (j *captureJournal) RecordEquity(s journal.EquitySnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.equity = append(j.equity, s)
	return nil
}

func (j *captureJournal) Close() error { return nil }

func hourlyCandles(symbol string, start time.Time, closes []float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			Symbol:    symbol,
			Timeframe: market.H1,
			Open:      c - 1,
			High:      c + 2,
			Low:       c - 2,
			Close:     c,
			Volume:    1000,
			Time:      start.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func testPolicy() risk.Policy {
	return risk.Policy{
		Capital:          100_000,
		DrawdownSafe:     4,
		DrawdownCaution:  8,
		DrawdownCritical: 12,
		MaxDailyLossPct:  5,
		MaxTradesPerDay:  3,
		MaxOpenPositions: 10,
		MaxCorrelation:   0.8,
		SizingMode:       risk.SizingFixed,
		FixedLot:         0.5,
	}
}

func TestNewRunnerValidates(t *testing.T) {
	_, err := NewRunner(Config{Timeframe: market.H1})
	assert.Error(t, err)

	_, err = NewRunner(Config{
		Timeframe:  market.Timeframe(240),
		Strategies: map[int64]strategies.Strategy{1: &fixedStrategy{symbol: "XAUUSD"}},
	})
	assert.Error(t, err)
}

func TestRunRequiresCandles(t *testing.T) {
	r, err := NewRunner(Config{
		Policy:     testPolicy(),
		Timeframe:  market.H1,
		Strategies: map[int64]strategies.Strategy{1: &fixedStrategy{symbol: "XAUUSD"}},
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunUptrend(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 2300 + float64(i)
	}

	jrn := &captureJournal{}
	r, err := NewRunner(Config{
		Policy:    testPolicy(),
		Timeframe: market.H1,
		Strategies: map[int64]strategies.Strategy{
			1: &fixedStrategy{
				name:   "always_buy",
				symbol: "XAUUSD",
				signal: strategies.Signal{Action: strategies.ActionBuy, Confidence: 0.9},
			},
		},
		Warmup:  5,
		Journal: jrn,
	})
	require.NoError(t, err)

	res, err := r.Run(context.Background(), map[string][]market.Candle{
		"XAUUSD": hourlyCandles("XAUUSD", start, closes),
	})
	require.NoError(t, err)

	// Three buys land on the first eligible bars (daily cap), 0.5 lots
	// of 100 oz each, all flattened at the last close of 2319.
	assert.Equal(t, 3, res.Trades)
	assert.Equal(t, 3, res.Wins)
	assert.Equal(t, 0, res.Losses)
	assert.InDelta(t, 1.0, res.WinRate, 1e-9)
	assert.InDelta(t, (15+14+13)*50.0, res.NetProfit, 1e-6)
	assert.InDelta(t, res.StartEquity+res.NetProfit, res.FinalEquity, 1e-6)
	assert.False(t, res.Halted)

	assert.Len(t, jrn.trades, 3)
	assert.Len(t, jrn.equity, len(closes))
	assert.Equal(t, "XAUUSD", jrn.trades[0].Symbol)
	assert.Equal(t, "BUY", jrn.trades[0].Direction)
}

func TestRunDailyCapResetsAcrossDays(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, 48)
	for i := range closes {
		closes[i] = 2300 + float64(i)
	}

	r, err := NewRunner(Config{
		Policy:    testPolicy(),
		Timeframe: market.H1,
		Strategies: map[int64]strategies.Strategy{
			1: &fixedStrategy{
				name:   "always_buy",
				symbol: "XAUUSD",
				signal: strategies.Signal{Action: strategies.ActionBuy, Confidence: 0.9},
			},
		},
		Warmup: 5,
	})
	require.NoError(t, err)

	res, err := r.Run(context.Background(), map[string][]market.Candle{
		"XAUUSD": hourlyCandles("XAUUSD", start, closes),
	})
	require.NoError(t, err)

	// Three trades on day one, then three more once the date rolls.
	assert.Equal(t, 6, res.Trades)
	assert.False(t, res.Halted)
}

func TestRunHaltsOnDrawdown(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 2400 - 10*float64(i)
	}

	policy := testPolicy()
	policy.DrawdownSafe = 1
	policy.DrawdownCaution = 2
	policy.DrawdownCritical = 3

	r, err := NewRunner(Config{
		Policy:    policy,
		Timeframe: market.H1,
		Strategies: map[int64]strategies.Strategy{
			1: &fixedStrategy{
				name:   "always_buy",
				symbol: "XAUUSD",
				signal: strategies.Signal{Action: strategies.ActionBuy, Confidence: 0.9},
			},
		},
		Warmup: 3,
	})
	require.NoError(t, err)

	res, err := r.Run(context.Background(), map[string][]market.Candle{
		"XAUUSD": hourlyCandles("XAUUSD", start, closes),
	})
	require.NoError(t, err)

	assert.True(t, res.Halted)
	assert.NotEmpty(t, res.HaltReason)
	assert.Less(t, res.NetProfit, 0.0)
	assert.Greater(t, res.MaxDrawdownPct, policy.DrawdownCritical)
}

func TestMergeBarsOrdersByTime(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	bars := mergeBars(map[string][]market.Candle{
		"NAS100": hourlyCandles("NAS100", start.Add(30*time.Minute), []float64{100, 101}),
		"XAUUSD": hourlyCandles("XAUUSD", start, []float64{2300, 2301}),
	})

	require.Len(t, bars, 4)
	assert.Equal(t, "XAUUSD", bars[0].Symbol)
	assert.Equal(t, "NAS100", bars[1].Symbol)
	assert.True(t, bars[2].Time.After(bars[1].Time))
}
