package store

import (
	"context"
	"fmt"
	"time"
)

// Trade directions and lifecycle states.
const (
	DirectionBuy  = "BUY"
	DirectionSell = "SELL"

	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Trade is one row of the trades table.
type Trade struct {
	ID         int64
	StrategyID int64
	Symbol     string
	Direction  string
	EntryPrice float64
	ExitPrice  *float64
	LotSize    float64
	ProfitLoss *float64
	ProfitPct  *float64
	EntryTime  time.Time
	ExitTime   *time.Time
	Status     string
}

// OpenTrade inserts a new OPEN trade and returns its id.
func (s *Store) OpenTrade(ctx context.Context, strategyID int64, symbol, direction string, entryPrice, lotSize float64, entryTime time.Time) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO trades (strategy_id, symbol, direction, entry_price, entry_time, lot_size, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, strategyID, symbol, direction, entryPrice, entryTime, lotSize, StatusOpen).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("open trade: %w", err)
	}
	return id, nil
}

// CloseTrade marks a trade CLOSED and records realized P&L. A SELL trade
// profits when price falls, so the direction flips the sign.
func (s *Store) CloseTrade(ctx context.Context, tradeID int64, exitPrice float64, exitTime time.Time) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE trades
		SET exit_price = $1,
			exit_time = $2,
			profit_loss = CASE WHEN direction = 'BUY'
				THEN ($1 - entry_price) * lot_size
				ELSE (entry_price - $1) * lot_size END,
			profit_pct = CASE WHEN direction = 'BUY'
				THEN ($1 - entry_price) / entry_price * 100
				ELSE (entry_price - $1) / entry_price * 100 END,
			status = 'CLOSED'
		WHERE id = $3 AND status = 'OPEN'
	`, exitPrice, exitTime, tradeID)
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("close trade: trade %d not open", tradeID)
	}
	return nil
}

// OpenTrades lists all OPEN trades, optionally filtered by strategy.
func (s *Store) OpenTrades(ctx context.Context, strategyID int64) ([]Trade, error) {
	query := `SELECT id, COALESCE(strategy_id, 0), symbol, direction, entry_price, exit_price,
		lot_size, profit_loss, profit_pct, entry_time, exit_time, status
		FROM trades WHERE status = 'OPEN'`
	args := []any{}
	if strategyID > 0 {
		query += ` AND strategy_id = $1`
		args = append(args, strategyID)
	}
	query += ` ORDER BY entry_time`
	return s.queryTrades(ctx, query, args...)
}

// TradesOn lists all trades entered on a given date, newest first.
func (s *Store) TradesOn(ctx context.Context, date time.Time) ([]Trade, error) {
	return s.queryTrades(ctx, `
		SELECT id, COALESCE(strategy_id, 0), symbol, direction, entry_price, exit_price,
			lot_size, profit_loss, profit_pct, entry_time, exit_time, status
		FROM trades
		WHERE entry_time::date = $1::date
		ORDER BY entry_time DESC
	`, date)
}

// RecentClosedTrades lists the last N closed trades, newest first.
// Optionally filtered by strategy.
func (s *Store) RecentClosedTrades(ctx context.Context, strategyID int64, limit int) ([]Trade, error) {
	query := `SELECT id, COALESCE(strategy_id, 0), symbol, direction, entry_price, exit_price,
		lot_size, profit_loss, profit_pct, entry_time, exit_time, status
		FROM trades WHERE status = 'CLOSED'`
	args := []any{}
	if strategyID > 0 {
		query += ` AND strategy_id = $1`
		args = append(args, strategyID)
	}
	query += fmt.Sprintf(` ORDER BY exit_time DESC LIMIT %d`, limit)
	return s.queryTrades(ctx, query, args...)
}

// DailyRealizedPL sums realized P&L of trades closed on the given date.
func (s *Store) DailyRealizedPL(ctx context.Context, date time.Time) (float64, error) {
	var pl float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(profit_loss), 0)
		FROM trades
		WHERE exit_time::date = $1::date AND status = 'CLOSED'
	`, date).Scan(&pl)
	if err != nil {
		return 0, fmt.Errorf("daily realized pl: %w", err)
	}
	return pl, nil
}

func (s *Store) queryTrades(ctx context.Context, query string, args ...any) ([]Trade, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.StrategyID, &t.Symbol, &t.Direction, &t.EntryPrice,
			&t.ExitPrice, &t.LotSize, &t.ProfitLoss, &t.ProfitPct,
			&t.EntryTime, &t.ExitTime, &t.Status); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
