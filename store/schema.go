package store

import (
	"context"
	"fmt"
)

// Schema is the full database schema. All statements are idempotent so
// initdb can run against an existing database.
const Schema = `
CREATE TABLE IF NOT EXISTS market_data (
	id BIGSERIAL PRIMARY KEY,
	symbol VARCHAR(20) NOT NULL,
	timeframe INTEGER NOT NULL,
	open DECIMAL(20, 8) NOT NULL,
	high DECIMAL(20, 8) NOT NULL,
	low DECIMAL(20, 8) NOT NULL,
	close DECIMAL(20, 8) NOT NULL,
	volume DECIMAL(20, 8),
	ts TIMESTAMPTZ NOT NULL,
	CONSTRAINT unique_candle UNIQUE (symbol, timeframe, ts)
);
CREATE INDEX IF NOT EXISTS idx_market_data_lookup
	ON market_data (symbol, timeframe, ts);

CREATE TABLE IF NOT EXISTS strategies (
	id SERIAL PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	type VARCHAR(50) NOT NULL,
	parameters JSONB,
	allocation DECIMAL(5, 2) DEFAULT 0,
	active BOOLEAN DEFAULT TRUE,
	created_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS trades (
	id SERIAL PRIMARY KEY,
	strategy_id INTEGER REFERENCES strategies(id),
	symbol VARCHAR(20) NOT NULL,
	direction VARCHAR(10) NOT NULL,
	entry_price DECIMAL(20, 8) NOT NULL,
	exit_price DECIMAL(20, 8),
	lot_size DECIMAL(20, 8) NOT NULL,
	profit_loss DECIMAL(20, 8),
	profit_pct DECIMAL(10, 2),
	entry_time TIMESTAMPTZ NOT NULL,
	exit_time TIMESTAMPTZ,
	status VARCHAR(20) DEFAULT 'OPEN'
);
CREATE INDEX IF NOT EXISTS idx_trades_strategy_entry
	ON trades (strategy_id, entry_time);
CREATE INDEX IF NOT EXISTS idx_trades_status
	ON trades (status);

CREATE TABLE IF NOT EXISTS daily_stats (
	id SERIAL PRIMARY KEY,
	date DATE UNIQUE NOT NULL,
	trades_count INTEGER,
	total_pl DECIMAL(20, 8),
	win_rate DECIMAL(5, 2),
	max_drawdown DECIMAL(5, 2),
	daily_loss_pct DECIMAL(5, 2)
);

CREATE TABLE IF NOT EXISTS rl_training (
	id SERIAL PRIMARY KEY,
	episode INTEGER,
	reward DECIMAL(20, 8),
	total_profit DECIMAL(20, 8),
	model_version VARCHAR(50),
	ts TIMESTAMPTZ DEFAULT NOW()
);
`

// InitSchema creates or verifies all tables.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.logger.Info("database schema created/verified")
	return nil
}
