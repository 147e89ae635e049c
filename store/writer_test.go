package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janosik-trading/janosik/market"
)

type fakeInserter struct {
	mu      sync.Mutex
	rows    []market.Candle
	flushes int
}

func (f *fakeInserter) InsertCandles(_ context.Context, candles []market.Candle) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, candles...)
	f.flushes++
	return 0, nil
}

func (f *fakeInserter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func testCandle(i int) market.Candle {
	return market.Candle{
		Symbol:    "XAUUSD",
		Timeframe: market.H1,
		Open:      2300 + float64(i),
		High:      2301 + float64(i),
		Low:       2299 + float64(i),
		Close:     2300.5 + float64(i),
		Time:      time.Date(2024, 6, 1, i, 0, 0, 0, time.UTC),
	}
}

func TestCandleWriterFlushesFullBatch(t *testing.T) {
	t.Parallel()

	sink := &fakeInserter{}
	w := NewCandleWriter(WriterConfig{BatchSize: 3, FlushInterval: time.Hour, BufferSize: 16}, sink, nil)
	w.Start(context.Background())

	for i := 0; i < 3; i++ {
		w.Write(testCandle(i))
	}

	require.Eventually(t, func() bool { return sink.count() == 3 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)

	stats := w.Stats()
	assert.Equal(t, int64(3), stats.Inserts)
	assert.GreaterOrEqual(t, stats.Flushes, int64(1))
}

func TestCandleWriterStopFlushesRemainder(t *testing.T) {
	t.Parallel()

	sink := &fakeInserter{}
	w := NewCandleWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour, BufferSize: 16}, sink, nil)
	w.Start(context.Background())

	w.Write(testCandle(0))
	w.Write(testCandle(1))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)

	assert.Equal(t, 2, sink.count())
}

func TestCandleWriterTimerFlush(t *testing.T) {
	t.Parallel()

	sink := &fakeInserter{}
	w := NewCandleWriter(WriterConfig{BatchSize: 100, FlushInterval: 20 * time.Millisecond, BufferSize: 16}, sink, nil)
	w.Start(context.Background())

	w.Write(testCandle(0))

	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)
}
