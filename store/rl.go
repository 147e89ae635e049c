package store

import (
	"context"
	"fmt"
	"time"
)

// TrainingRun is one row of the rl_training table.
type TrainingRun struct {
	ID           int64
	Episode      int
	Reward       float64
	TotalProfit  float64
	ModelVersion string
	Time         time.Time
}

// LogTraining appends a training metrics row.
func (s *Store) LogTraining(ctx context.Context, run TrainingRun) error {
	ts := run.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rl_training (episode, reward, total_profit, model_version, ts)
		VALUES ($1, $2, $3, $4, $5)
	`, run.Episode, run.Reward, run.TotalProfit, run.ModelVersion, ts)
	if err != nil {
		return fmt.Errorf("log training: %w", err)
	}
	return nil
}

// TrainingHistory returns the last N training rows, newest episode first.
func (s *Store) TrainingHistory(ctx context.Context, limit int) ([]TrainingRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, episode, reward, total_profit, model_version, ts
		FROM rl_training
		ORDER BY episode DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query training history: %w", err)
	}
	defer rows.Close()

	var out []TrainingRun
	for rows.Next() {
		var r TrainingRun
		if err := rows.Scan(&r.ID, &r.Episode, &r.Reward, &r.TotalProfit, &r.ModelVersion, &r.Time); err != nil {
			return nil, fmt.Errorf("scan training run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
