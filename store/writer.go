package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/janosik-trading/janosik/market"
)

// CandleInserter is the sink a CandleWriter flushes into. *Store satisfies it.
type CandleInserter interface {
	InsertCandles(ctx context.Context, candles []market.Candle) (conflicts int, err error)
}

// WriterConfig holds batching knobs for the candle writer.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     200,
		FlushInterval: 5 * time.Second,
		BufferSize:    1024,
	}
}

// WriterMetrics counts writer activity.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
	Dropped   int64
}

// CandleWriter accumulates candles and flushes them to the store in
// batches, either when the batch fills or on a timer.
type CandleWriter struct {
	cfg    WriterConfig
	sink   CandleInserter
	logger *slog.Logger

	input chan market.Candle

	batchMu sync.Mutex
	batch   []market.Candle
	metrics WriterMetrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCandleWriter creates a CandleWriter flushing into sink.
func NewCandleWriter(cfg WriterConfig, sink CandleInserter, logger *slog.Logger) *CandleWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultWriterConfig().BufferSize
	}
	return &CandleWriter{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		input:  make(chan market.Candle, cfg.BufferSize),
		batch:  make([]market.Candle, 0, cfg.BatchSize),
	}
}

// Write enqueues a candle. Drops (and counts) the candle when the buffer
// is full rather than blocking the market-data path.
func (w *CandleWriter) Write(c market.Candle) {
	select {
	case w.input <- c:
	default:
		w.batchMu.Lock()
		w.metrics.Dropped++
		w.batchMu.Unlock()
	}
}

// Start begins consuming candles and flushing batches.
func (w *CandleWriter) Start(ctx context.Context) {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Info("candle writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
}

// Stop drains and flushes outstanding candles, then shuts down.
func (w *CandleWriter) Stop(ctx context.Context) {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("candle writer stop timed out")
	}

	// Drain anything left in the channel, then flush.
	for {
		select {
		case c := <-w.input:
			w.batchMu.Lock()
			w.batch = append(w.batch, c)
			w.batchMu.Unlock()
		default:
			w.flush()
			w.logger.Info("candle writer stopped")
			return
		}
	}
}

// Stats returns current metrics.
func (w *CandleWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *CandleWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case c := <-w.input:
			w.batchMu.Lock()
			w.batch = append(w.batch, c)
			shouldFlush := len(w.batch) >= w.cfg.BatchSize
			w.batchMu.Unlock()

			if shouldFlush {
				w.flush()
			}
		}
	}
}

func (w *CandleWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *CandleWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]market.Candle, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	// Flush with a background context: the writer context is already
	// canceled during Stop but the final batch must still land.
	conflicts, err := w.sink.InsertCandles(context.Background(), batch)
	if err != nil {
		w.logger.Error("candle batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed candles",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}
