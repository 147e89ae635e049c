package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// StrategyRow is one row of the strategies table. Parameters carry the
// strategy-specific knobs (periods, thresholds) as JSONB.
type StrategyRow struct {
	ID         int64
	Name       string
	Type       string
	Parameters map[string]any
	Allocation float64
	Active     bool
	CreatedAt  time.Time
}

// RegisterStrategy inserts a strategy and returns its id.
func (s *Store) RegisterStrategy(ctx context.Context, name, typ string, params map[string]any) (int64, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("marshal parameters: %w", err)
	}

	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO strategies (name, type, parameters, active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id
	`, name, typ, data).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("register strategy: %w", err)
	}
	return id, nil
}

// ActiveStrategies lists all active strategies.
func (s *Store) ActiveStrategies(ctx context.Context) ([]StrategyRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, type, COALESCE(parameters, '{}'::jsonb), COALESCE(allocation, 0), active, created_at
		FROM strategies
		WHERE active = TRUE
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query strategies: %w", err)
	}
	defer rows.Close()

	var out []StrategyRow
	for rows.Next() {
		var r StrategyRow
		var params []byte
		if err := rows.Scan(&r.ID, &r.Name, &r.Type, &params, &r.Allocation, &r.Active, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		if err := json.Unmarshal(params, &r.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal parameters for strategy %d: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// StrategyByID fetches a single strategy.
func (s *Store) StrategyByID(ctx context.Context, id int64) (StrategyRow, error) {
	var r StrategyRow
	var params []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, type, COALESCE(parameters, '{}'::jsonb), COALESCE(allocation, 0), active, created_at
		FROM strategies
		WHERE id = $1
	`, id).Scan(&r.ID, &r.Name, &r.Type, &params, &r.Allocation, &r.Active, &r.CreatedAt)
	if err != nil {
		return StrategyRow{}, fmt.Errorf("strategy %d: %w", id, err)
	}
	if err := json.Unmarshal(params, &r.Parameters); err != nil {
		return StrategyRow{}, fmt.Errorf("unmarshal parameters for strategy %d: %w", id, err)
	}
	return r, nil
}

// DisableStrategy deactivates a strategy.
func (s *Store) DisableStrategy(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE strategies SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("disable strategy %d: %w", id, err)
	}
	return nil
}

// SetAllocation stores the capital allocation percentage for a strategy.
func (s *Store) SetAllocation(ctx context.Context, id int64, allocation float64) error {
	_, err := s.pool.Exec(ctx, `UPDATE strategies SET allocation = $1 WHERE id = $2`, allocation, id)
	if err != nil {
		return fmt.Errorf("set allocation for strategy %d: %w", id, err)
	}
	return nil
}
