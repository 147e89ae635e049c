package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/janosik-trading/janosik/market"
)

func candlesFromCloses(closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestSimpleMA(t *testing.T) {
	t.Parallel()

	ma := NewMA(3)
	assert.Equal(t, "MA(3)", ma.Name())
	assert.Equal(t, 3, ma.Warmup())

	for _, c := range candlesFromCloses(1, 2) {
		ma.Update(c)
	}
	assert.False(t, ma.Ready())
	assert.Equal(t, 0.0, ma.Value())

	ma.Update(market.Candle{Close: 3})
	assert.True(t, ma.Ready())
	assert.InDelta(t, 2.0, ma.Value(), 1e-9)

	// Window slides: (2+3+4)/3
	ma.Update(market.Candle{Close: 4})
	assert.InDelta(t, 3.0, ma.Value(), 1e-9)

	ma.Reset()
	assert.False(t, ma.Ready())
}

func TestExponentialMA(t *testing.T) {
	t.Parallel()

	ema := NewEMA(3)

	for _, c := range candlesFromCloses(1, 2, 3) {
		ema.Update(c)
	}
	assert.True(t, ema.Ready())
	// Seeded with SMA of the first 3 closes.
	assert.InDelta(t, 2.0, ema.Value(), 1e-9)

	// multiplier = 2/(3+1) = 0.5, next value: (4-2)*0.5 + 2 = 3
	ema.Update(market.Candle{Close: 4})
	assert.InDelta(t, 3.0, ema.Value(), 1e-9)
}

func TestRSIAllGains(t *testing.T) {
	t.Parallel()

	rsi := NewRSI(14)
	closes := make([]float64, 0, 20)
	for i := 0; i < 20; i++ {
		closes = append(closes, 100+float64(i))
	}
	for _, c := range candlesFromCloses(closes...) {
		rsi.Update(c)
	}

	assert.True(t, rsi.Ready())
	assert.InDelta(t, 100.0, rsi.Value(), 1e-9)
}

func TestRSINotReadyDuringWarmup(t *testing.T) {
	t.Parallel()

	rsi := NewRSI(14)
	assert.Equal(t, 15, rsi.Warmup())

	for _, c := range candlesFromCloses(1, 2, 3, 4, 5) {
		rsi.Update(c)
	}
	assert.False(t, rsi.Ready())
	assert.Equal(t, 0.0, rsi.Value())
}

func TestRSIMixedMoves(t *testing.T) {
	t.Parallel()

	rsi := NewRSI(2)
	// changes: +1, -1, +1, -1 -> balanced gains/losses, RSI near 50
	for _, c := range candlesFromCloses(10, 11, 10, 11, 10) {
		rsi.Update(c)
	}
	assert.True(t, rsi.Ready())
	v := rsi.Value()
	assert.Greater(t, v, 30.0)
	assert.Less(t, v, 70.0)
}

func TestSeriesGuards(t *testing.T) {
	t.Parallel()

	assert.Nil(t, RSISeries([]float64{1, 2}, 14))
	assert.Nil(t, SMASeries([]float64{1, 2}, 5))
	assert.Nil(t, EMASeries(nil, 5))
	assert.Nil(t, ATRSeries([]float64{1}, []float64{1}, []float64{1}, 14))
	assert.Equal(t, 0.0, Last(nil))
	assert.Equal(t, 3.0, Last([]float64{1, 2, 3}))
}

func TestSMASeriesMatchesStreaming(t *testing.T) {
	t.Parallel()

	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	series := SMASeries(closes, 3)

	ma := NewMA(3)
	for _, c := range candlesFromCloses(closes...) {
		ma.Update(c)
	}

	assert.InDelta(t, ma.Value(), Last(series), 1e-9)
}
