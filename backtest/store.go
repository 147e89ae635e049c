package backtest

import (
	"context"
	"sync"
	"time"

	"github.com/janosik-trading/janosik/executor"
	"github.com/janosik-trading/janosik/market"
	"github.com/janosik-trading/janosik/store"
)

// memoryStore keeps trade rows and close series in memory so a replay
// needs no database. It mirrors the Postgres store's P&L convention.
type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	order  []int64
	trades map[int64]*store.Trade
	closes map[string][]float64
	stats  []store.DailyStats
}

var _ executor.TradeStore = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{
		trades: make(map[int64]*store.Trade),
		closes: make(map[string][]float64),
	}
}

func (m *memoryStore) OpenTrade(_ context.Context, strategyID int64, symbol, direction string, entryPrice, lotSize float64, entryTime time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.trades[m.nextID] = &store.Trade{
		ID:         m.nextID,
		StrategyID: strategyID,
		Symbol:     symbol,
		Direction:  direction,
		EntryPrice: entryPrice,
		LotSize:    lotSize,
		EntryTime:  entryTime,
		Status:     store.StatusOpen,
	}
	m.order = append(m.order, m.nextID)
	return m.nextID, nil
}

func (m *memoryStore) CloseTrade(_ context.Context, tradeID int64, exitPrice float64, exitTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[tradeID]
	if !ok || t.Status != store.StatusOpen {
		return nil
	}
	pl := (exitPrice - t.EntryPrice) * t.LotSize
	if t.Direction == store.DirectionSell {
		pl = (t.EntryPrice - exitPrice) * t.LotSize
	}
	t.ExitPrice = &exitPrice
	t.ExitTime = &exitTime
	t.ProfitLoss = &pl
	t.Status = store.StatusClosed
	return nil
}

func (m *memoryStore) OpenTrades(_ context.Context, strategyID int64) ([]store.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Trade
	for _, id := range m.order {
		t := m.trades[id]
		if t.Status != store.StatusOpen {
			continue
		}
		if strategyID != 0 && t.StrategyID != strategyID {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (m *memoryStore) RecentClosedTrades(_ context.Context, strategyID int64, limit int) ([]store.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Trade
	for i := len(m.order) - 1; i >= 0; i-- {
		t := m.trades[m.order[i]]
		if t.Status != store.StatusClosed {
			continue
		}
		if strategyID != 0 && t.StrategyID != strategyID {
			continue
		}
		out = append(out, *t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryStore) TradesOn(_ context.Context, date time.Time) ([]store.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := date.UTC().Truncate(24 * time.Hour)
	var out []store.Trade
	for _, id := range m.order {
		t := m.trades[id]
		if t.EntryTime.UTC().Truncate(24 * time.Hour).Equal(day) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memoryStore) LatestCloses(_ context.Context, symbol string, _ market.Timeframe, limit int) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	series := m.closes[symbol]
	if limit > 0 && len(series) > limit {
		series = series[len(series)-limit:]
	}
	out := make([]float64, len(series))
	copy(out, series)
	return out, nil
}

func (m *memoryStore) UpsertDailyStats(_ context.Context, st store.DailyStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.stats {
		if m.stats[i].Date.Equal(st.Date) {
			m.stats[i] = st
			return nil
		}
	}
	m.stats = append(m.stats, st)
	return nil
}

func (m *memoryStore) appendClose(symbol string, close float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes[symbol] = append(m.closes[symbol], close)
}
