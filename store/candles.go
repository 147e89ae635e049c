package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/janosik-trading/janosik/market"
)

// InsertCandles writes candles in one round trip using pgx.Batch.
// Duplicate candles (same symbol, timeframe, timestamp) are skipped via
// ON CONFLICT DO NOTHING; the number of skipped rows is returned.
func (s *Store) InsertCandles(ctx context.Context, candles []market.Candle) (conflicts int, err error) {
	if len(candles) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(`
			INSERT INTO market_data (symbol, timeframe, open, high, low, close, volume, ts)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (symbol, timeframe, ts) DO NOTHING
		`, c.Symbol, int(c.Timeframe), c.Open, c.High, c.Low, c.Close, c.Volume, c.Time)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range candles {
		ct, err := results.Exec()
		if err != nil {
			return 0, fmt.Errorf("insert candle: %w", err)
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

// Candles returns the last N candles for a symbol/timeframe in
// chronological order (oldest first).
func (s *Store) Candles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT symbol, timeframe, open, high, low, close, COALESCE(volume, 0), ts
		FROM market_data
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY ts DESC
		LIMIT $3
	`, symbol, int(tf), limit)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var out []market.Candle
	for rows.Next() {
		var c market.Candle
		var tfMinutes int
		if err := rows.Scan(&c.Symbol, &tfMinutes, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Time); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Timeframe = market.Timeframe(tfMinutes)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returns newest first; reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// LatestCloses returns the last N closes for a symbol/timeframe,
// chronological order. Used by the correlation check.
func (s *Store) LatestCloses(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]float64, error) {
	candles, err := s.Candles(ctx, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	return market.Closes(candles), nil
}
