package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickMidAndSpread(t *testing.T) {
	t.Parallel()

	tick := Tick{Symbol: "EUR_USD", Bid: 1.0849, Ask: 1.0851}
	assert.InDelta(t, 1.0850, tick.Mid(), 1e-9)
	assert.InDelta(t, 0.0002, tick.Spread(), 1e-9)
}

func TestTickStore(t *testing.T) {
	t.Parallel()

	ts := NewTickStore()

	_, err := ts.Get("XAUUSD")
	assert.ErrorIs(t, err, ErrNoTick)

	tick := Tick{Symbol: "XAUUSD", Bid: 2315.4, Ask: 2315.9, Time: time.Now()}
	ts.Set(tick)

	got, err := ts.Get("XAUUSD")
	assert.NoError(t, err)
	assert.Equal(t, tick, got)
}

func TestParseTimeframe(t *testing.T) {
	t.Parallel()

	cases := map[string]Timeframe{
		"M1":  M1,
		"M5":  M5,
		"M15": M15,
		"H1":  H1,
		"D1":  D1,
	}
	for s, want := range cases {
		got, err := ParseTimeframe(s)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, s, got.String())
	}

	_, err := ParseTimeframe("H4")
	assert.Error(t, err)
}

func TestTimeframeTruncate(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 5, 14, 37, 22, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC), H1.Truncate(at))
	assert.Equal(t, time.Date(2024, 3, 5, 14, 35, 0, 0, time.UTC), M5.Truncate(at))
}

type fixedTicks struct{ tick Tick }

func (f fixedTicks) GetTick(_ context.Context, _ string) (Tick, error) {
	return f.tick, nil
}

func TestQuoteToAccountRate(t *testing.T) {
	t.Parallel()

	rate, err := QuoteToAccountRate("EUR_USD", "USD", fixedTicks{})
	assert.NoError(t, err)
	assert.Equal(t, 1.0, rate)

	_, err = QuoteToAccountRate("NOPE", "USD", fixedTicks{})
	assert.Error(t, err)
}

func TestCandleSeries(t *testing.T) {
	t.Parallel()

	candles := []Candle{
		{Open: 1, High: 3, Low: 0.5, Close: 2},
		{Open: 2, High: 4, Low: 1.5, Close: 3},
	}
	assert.Equal(t, []float64{2, 3}, Closes(candles))
	assert.Equal(t, []float64{3, 4}, Highs(candles))
	assert.Equal(t, []float64{0.5, 1.5}, Lows(candles))
}
