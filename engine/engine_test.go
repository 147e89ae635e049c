package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janosik-trading/janosik/broker"
	"github.com/janosik-trading/janosik/broker/sim"
	"github.com/janosik-trading/janosik/executor"
	"github.com/janosik-trading/janosik/market"
	"github.com/janosik-trading/janosik/risk"
	"github.com/janosik-trading/janosik/store"
	"github.com/janosik-trading/janosik/strategies"
)

// memStore is a minimal in-memory executor.TradeStore.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	trades []store.Trade
}

func (m *memStore) OpenTrade(_ context.Context, strategyID int64, symbol, direction string, entryPrice, lotSize float64, entryTime time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.trades = append(m.trades, store.Trade{
		ID: m.nextID, StrategyID: strategyID, Symbol: symbol, Direction: direction,
		EntryPrice: entryPrice, LotSize: lotSize, EntryTime: entryTime, Status: store.StatusOpen,
	})
	return m.nextID, nil
}

func (m *memStore) CloseTrade(context.Context, int64, float64, time.Time) error { return nil }

func (m *memStore) OpenTrades(context.Context, int64) ([]store.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Trade
	for _, t := range m.trades {
		if t.Status == store.StatusOpen {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) RecentClosedTrades(context.Context, int64, int) ([]store.Trade, error) {
	return nil, nil
}
func (m *memStore) TradesOn(context.Context, time.Time) ([]store.Trade, error) { return nil, nil }
func (m *memStore) LatestCloses(context.Context, string, market.Timeframe, int) ([]float64, error) {
	return nil, nil
}
func (m *memStore) UpsertDailyStats(context.Context, store.DailyStats) error { return nil }

func (m *memStore) placed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trades)
}

type captureSink struct {
	mu      sync.Mutex
	candles []market.Candle
}

func (s *captureSink) Write(c market.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles = append(s.candles, c)
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.candles)
}

type captureNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *captureNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, text)
	return nil
}

func (n *captureNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

type fixedStrategy struct {
	symbol string
	signal strategies.Signal
}

func (f fixedStrategy) Name() string                { return "fixed-" + f.symbol }
func (f fixedStrategy) Symbol() string              { return f.symbol }
func (f fixedStrategy) Timeframe() market.Timeframe { return market.H1 }
func (f fixedStrategy) Evaluate([]market.Candle) (strategies.Signal, error) {
	return f.signal, nil
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

func seededSim(t *testing.T) *sim.Engine {
	t.Helper()

	b := sim.NewEngine(broker.Account{ID: "sim", Currency: "USD", Balance: 100_000, Equity: 100_000})
	base := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		require.NoError(t, b.AppendCandle(market.Candle{
			Symbol: "XAUUSD", Timeframe: market.H1,
			Open: 2300, High: 2305, Low: 2295, Close: 2300 + float64(i),
			Time: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	return b
}

func TestEngineRoundTrades(t *testing.T) {
	t.Parallel()

	b := seededSim(t)
	st := &memStore{}
	policy := testPolicy()
	exec := executor.New(b, st, policy, risk.NewTracker(policy), market.H1, nil)

	sink := &captureSink{}
	notifier := &captureNotifier{}
	strats := map[int64]strategies.Strategy{
		1: fixedStrategy{symbol: "XAUUSD", signal: strategies.Signal{Action: strategies.ActionBuy, Confidence: 0.9}},
		2: fixedStrategy{symbol: "XAUUSD", signal: strategies.Signal{Action: strategies.ActionBuy, Confidence: 0.6}},
		3: fixedStrategy{symbol: "XAUUSD", signal: strategies.Signal{Action: strategies.ActionSell, Confidence: 0.5}},
	}

	eng := New(Config{
		Symbols:   []string{"XAUUSD"},
		Timeframe: market.H1,
		Interval:  time.Hour, // only the immediate round fires
		History:   50,
	}, b, sink, strats, exec, notifier, nil)

	require.NoError(t, eng.Start(context.Background()))

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Eventually(t, func() bool { return st.placed() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, eng.Stop(stopCtx))

	// Two of three voted BUY: majority trades, attributed to the most
	// confident agreeing strategy.
	require.Equal(t, 1, st.placed())
	assert.Equal(t, int64(1), st.trades[0].StrategyID)
	assert.Equal(t, store.DirectionBuy, st.trades[0].Direction)

	assert.Equal(t, 30, sink.count())

	msgs := notifier.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "BUY XAUUSD")
}

func TestEngineHaltsOnStopCondition(t *testing.T) {
	t.Parallel()

	b := seededSim(t)
	st := &memStore{}
	policy := testPolicy()
	tracker := risk.NewTracker(policy)
	exec := executor.New(b, st, policy, tracker, market.H1, nil)

	// Force a critical drawdown before the first round.
	tracker.Update(150_000)

	notifier := &captureNotifier{}
	eng := New(Config{
		Symbols:   []string{"XAUUSD"},
		Timeframe: market.H1,
		Interval:  time.Hour,
	}, b, nil, nil, exec, notifier, nil)

	require.NoError(t, eng.Start(context.Background()))
	assert.Eventually(t, exec.Halted, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, eng.Stop(stopCtx))

	assert.Zero(t, st.placed())
	msgs := notifier.messages()
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0], "trading halted")
}

func TestLeadVote(t *testing.T) {
	t.Parallel()

	votes := []strategies.Vote{
		{StrategyID: 1, Symbol: "XAUUSD", Signal: strategies.Signal{Action: strategies.ActionBuy, Confidence: 0.4}},
		{StrategyID: 2, Symbol: "XAUUSD", Signal: strategies.Signal{Action: strategies.ActionBuy, Confidence: 0.9}},
		{StrategyID: 3, Symbol: "XAUUSD", Signal: strategies.Signal{Action: strategies.ActionSell, Confidence: 1.0}},
	}
	id, conf := leadVote(votes, "XAUUSD", strategies.ActionBuy)
	assert.Equal(t, int64(2), id)
	assert.InDelta(t, 0.9, conf, 1e-9)
}
