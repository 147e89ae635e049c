package store

import (
	"context"
	"fmt"
	"time"
)

// DailyStats is one row of the daily_stats table.
type DailyStats struct {
	Date         time.Time
	TradesCount  int
	TotalPL      float64
	WinRate      float64
	MaxDrawdown  float64
	DailyLossPct float64
}

// UpsertDailyStats inserts or replaces the stats row for a date.
func (s *Store) UpsertDailyStats(ctx context.Context, st DailyStats) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO daily_stats (date, trades_count, total_pl, win_rate, max_drawdown, daily_loss_pct)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (date) DO UPDATE SET
			trades_count = EXCLUDED.trades_count,
			total_pl = EXCLUDED.total_pl,
			win_rate = EXCLUDED.win_rate,
			max_drawdown = EXCLUDED.max_drawdown,
			daily_loss_pct = EXCLUDED.daily_loss_pct
	`, st.Date, st.TradesCount, st.TotalPL, st.WinRate, st.MaxDrawdown, st.DailyLossPct)
	if err != nil {
		return fmt.Errorf("upsert daily stats: %w", err)
	}
	return nil
}

// PerformanceStats returns daily stats for the last N days, newest first.
func (s *Store) PerformanceStats(ctx context.Context, days int) ([]DailyStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date, COALESCE(trades_count, 0), COALESCE(total_pl, 0),
			COALESCE(win_rate, 0), COALESCE(max_drawdown, 0), COALESCE(daily_loss_pct, 0)
		FROM daily_stats
		WHERE date >= CURRENT_DATE - $1 * INTERVAL '1 day'
		ORDER BY date DESC
	`, days)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	var out []DailyStats
	for rows.Next() {
		var st DailyStats
		if err := rows.Scan(&st.Date, &st.TradesCount, &st.TotalPL, &st.WinRate, &st.MaxDrawdown, &st.DailyLossPct); err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
