package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janosik-trading/janosik/market"
	"github.com/janosik-trading/janosik/risk"
	"github.com/janosik-trading/janosik/store"
)

type fakeRisk struct {
	metrics risk.Metrics
	err     error
}

func (f *fakeRisk) Metrics(context.Context) (risk.Metrics, error) {
	return f.metrics, f.err
}

type fakeStore struct {
	open    []store.Trade
	closed  []store.Trade
	stats   []store.DailyStats
	rows    []store.StrategyRow
	candles []market.Candle

	candleSymbol string
	candleTF     market.Timeframe
	candleLimit  int
	statsDays    int
	err          error
}

func (f *fakeStore) OpenTrades(context.Context, int64) ([]store.Trade, error) {
	return f.open, f.err
}

func (f *fakeStore) RecentClosedTrades(context.Context, int64, int) ([]store.Trade, error) {
	return f.closed, f.err
}

func (f *fakeStore) PerformanceStats(_ context.Context, days int) ([]store.DailyStats, error) {
	f.statsDays = days
	return f.stats, f.err
}

func (f *fakeStore) ActiveStrategies(context.Context) ([]store.StrategyRow, error) {
	return f.rows, f.err
}

func (f *fakeStore) Candles(_ context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	f.candleSymbol = symbol
	f.candleTF = tf
	f.candleLimit = limit
	return f.candles, f.err
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func ptr[T any](v T) *T { return &v }

func TestHealth(t *testing.T) {
	srv := NewServer(":0", &fakeRisk{}, &fakeStore{}, nil)

	rec := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRiskEndpoint(t *testing.T) {
	rs := &fakeRisk{metrics: risk.Metrics{
		Equity:        95_000,
		PeakEquity:    100_000,
		DrawdownPct:   5,
		DrawdownLevel: risk.LevelWarning,
		OpenPositions: 2,
		TradesToday:   1,
	}}
	srv := NewServer(":0", rs, &fakeStore{}, nil)

	rec := get(t, srv, "/api/risk")
	assert.Equal(t, http.StatusOK, rec.Code)

	var got risk.Metrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.InDelta(t, 5.0, got.DrawdownPct, 1e-9)
	assert.Equal(t, risk.LevelWarning, got.DrawdownLevel)
	assert.Equal(t, 2, got.OpenPositions)
}

func TestRiskEndpointError(t *testing.T) {
	srv := NewServer(":0", &fakeRisk{err: errors.New("gateway down")}, &fakeStore{}, nil)

	rec := get(t, srv, "/api/risk")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "gateway down")
}

func TestTradesClosedByDefault(t *testing.T) {
	exit := 2310.0
	pl := 95.0
	when := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	ds := &fakeStore{closed: []store.Trade{{
		ID:         7,
		StrategyID: 1,
		Symbol:     "XAUUSD",
		Direction:  "BUY",
		EntryPrice: 2300.5,
		ExitPrice:  &exit,
		LotSize:    0.5,
		ProfitLoss: &pl,
		EntryTime:  when,
		ExitTime:   ptr(when.Add(time.Hour)),
		Status:     "CLOSED",
	}}}
	srv := NewServer(":0", &fakeRisk{}, ds, nil)

	rec := get(t, srv, "/api/trades")
	assert.Equal(t, http.StatusOK, rec.Code)

	var got []tradeView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "XAUUSD", got[0].Symbol)
	require.NotNil(t, got[0].ProfitLoss)
	assert.InDelta(t, 95.0, *got[0].ProfitLoss, 1e-9)
}

func TestTradesOpenStatus(t *testing.T) {
	ds := &fakeStore{open: []store.Trade{{ID: 3, Symbol: "NAS100", Direction: "SELL", Status: "OPEN"}}}
	srv := NewServer(":0", &fakeRisk{}, ds, nil)

	rec := get(t, srv, "/api/trades?status=open")
	assert.Equal(t, http.StatusOK, rec.Code)

	var got []tradeView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "NAS100", got[0].Symbol)
	assert.Nil(t, got[0].ExitPrice)
}

func TestTradesRejectsBadStatus(t *testing.T) {
	srv := NewServer(":0", &fakeRisk{}, &fakeStore{}, nil)

	rec := get(t, srv, "/api/trades?status=pending")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTradesRejectsBadLimit(t *testing.T) {
	srv := NewServer(":0", &fakeRisk{}, &fakeStore{}, nil)

	rec := get(t, srv, "/api/trades?limit=-5")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsPassesDays(t *testing.T) {
	ds := &fakeStore{stats: []store.DailyStats{{
		Date:        time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		TradesCount: 3,
		TotalPL:     120,
		WinRate:     0.67,
	}}}
	srv := NewServer(":0", &fakeRisk{}, ds, nil)

	rec := get(t, srv, "/api/stats?days=7")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, ds.statsDays)

	var got []dailyStatsView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "2026-03-04", got[0].Date)
	assert.InDelta(t, 120.0, got[0].TotalPL, 1e-9)
}

func TestStatsDefaultDays(t *testing.T) {
	ds := &fakeStore{}
	srv := NewServer(":0", &fakeRisk{}, ds, nil)

	rec := get(t, srv, "/api/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultStatsDays, ds.statsDays)
}

func TestStrategies(t *testing.T) {
	ds := &fakeStore{rows: []store.StrategyRow{{
		ID:         1,
		Name:       "rsi_xauusd",
		Type:       "rsi_mean_reversion",
		Parameters: map[string]any{"period": float64(14)},
		Allocation: 60,
		Active:     true,
	}}}
	srv := NewServer(":0", &fakeRisk{}, ds, nil)

	rec := get(t, srv, "/api/strategies")
	assert.Equal(t, http.StatusOK, rec.Code)

	var got []strategyView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "rsi_xauusd", got[0].Name)
	assert.InDelta(t, 60.0, got[0].Allocation, 1e-9)
}

func TestCandles(t *testing.T) {
	ds := &fakeStore{candles: []market.Candle{{
		Symbol:    "XAUUSD",
		Timeframe: market.H1,
		Open:      2300,
		High:      2310,
		Low:       2295,
		Close:     2305,
		Volume:    1200,
		Time:      time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}}}
	srv := NewServer(":0", &fakeRisk{}, ds, nil)

	rec := get(t, srv, "/api/candles?symbol=XAUUSD&timeframe=H1&limit=10")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "XAUUSD", ds.candleSymbol)
	assert.Equal(t, market.H1, ds.candleTF)
	assert.Equal(t, 10, ds.candleLimit)

	var got struct {
		Symbol    string       `json:"symbol"`
		Timeframe string       `json:"timeframe"`
		Candles   []candleView `json:"candles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "H1", got.Timeframe)
	require.Len(t, got.Candles, 1)
	assert.InDelta(t, 2305.0, got.Candles[0].Close, 1e-9)
}

func TestCandlesRequiresSymbol(t *testing.T) {
	srv := NewServer(":0", &fakeRisk{}, &fakeStore{}, nil)

	rec := get(t, srv, "/api/candles")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "symbol is required")
}

func TestCandlesRejectsUnknownTimeframe(t *testing.T) {
	srv := NewServer(":0", &fakeRisk{}, &fakeStore{}, nil)

	rec := get(t, srv, "/api/candles?symbol=XAUUSD&timeframe=H4")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCandlesCapsLimit(t *testing.T) {
	ds := &fakeStore{}
	srv := NewServer(":0", &fakeRisk{}, ds, nil)

	rec := get(t, srv, "/api/candles?symbol=XAUUSD&limit=5000")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxCandleLimit, ds.candleLimit)
}
