package strategies

import (
	"context"
	"log/slog"

	"github.com/janosik-trading/janosik/store"
)

const (
	// DefaultWinRateThreshold disables strategies losing more often
	// than they win by a wide margin.
	DefaultWinRateThreshold = 0.40

	// performanceWindow is how many recent closed trades score a strategy.
	performanceWindow = 50
)

// Performance summarizes a strategy's recent closed trades.
type Performance struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalProfit   float64 `json:"total_profit"`
	AvgProfit     float64 `json:"avg_profit"`
	MaxProfit     float64 `json:"max_profit"`
	MaxLoss       float64 `json:"max_loss"`
}

// ComputePerformance aggregates a series of closed-trade P&L values.
func ComputePerformance(pls []float64) Performance {
	if len(pls) == 0 {
		return Performance{}
	}

	p := Performance{
		TotalTrades: len(pls),
		MaxProfit:   pls[0],
		MaxLoss:     pls[0],
	}
	for _, pl := range pls {
		if pl > 0 {
			p.WinningTrades++
		}
		p.TotalProfit += pl
		if pl > p.MaxProfit {
			p.MaxProfit = pl
		}
		if pl < p.MaxLoss {
			p.MaxLoss = pl
		}
	}
	p.LosingTrades = p.TotalTrades - p.WinningTrades
	p.WinRate = float64(p.WinningTrades) / float64(p.TotalTrades)
	p.AvgProfit = p.TotalProfit / float64(p.TotalTrades)
	return p
}

// Manager loads strategies from the database and curates them: scoring,
// disabling underperformers, and rebalancing allocations.
type Manager struct {
	store  *store.Store
	logger *slog.Logger
}

func NewManager(st *store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: st, logger: logger}
}

// Load builds the active strategy set from the database. Rows with an
// unknown type are logged and skipped.
func (m *Manager) Load(ctx context.Context) (map[int64]Strategy, error) {
	rows, err := m.store.ActiveStrategies(ctx)
	if err != nil {
		return nil, err
	}

	strats := make(map[int64]Strategy, len(rows))
	for _, row := range rows {
		strat, err := FromRow(row)
		if err != nil {
			m.logger.Warn("skipping strategy", "name", row.Name, "error", err)
			continue
		}
		strats[row.ID] = strat
		m.logger.Info("loaded strategy", "id", row.ID, "name", row.Name, "type", row.Type)
	}
	return strats, nil
}

// Performance scores one strategy over its recent closed trades.
func (m *Manager) Performance(ctx context.Context, strategyID int64) (Performance, error) {
	trades, err := m.store.RecentClosedTrades(ctx, strategyID, performanceWindow)
	if err != nil {
		return Performance{}, err
	}

	pls := make([]float64, 0, len(trades))
	for _, t := range trades {
		if t.ProfitLoss != nil {
			pls = append(pls, *t.ProfitLoss)
		}
	}
	return ComputePerformance(pls), nil
}

// DisableUnderperformers deactivates strategies whose recent win rate sits
// under the threshold and returns the disabled ids. Strategies without any
// closed trades are left alone.
func (m *Manager) DisableUnderperformers(ctx context.Context, strats map[int64]Strategy, threshold float64) ([]int64, error) {
	var disabled []int64
	for id, strat := range strats {
		perf, err := m.Performance(ctx, id)
		if err != nil {
			return disabled, err
		}
		if perf.TotalTrades == 0 || perf.WinRate >= threshold {
			continue
		}

		if err := m.store.DisableStrategy(ctx, id); err != nil {
			return disabled, err
		}
		delete(strats, id)
		disabled = append(disabled, id)
		m.logger.Warn("disabled strategy",
			"id", id,
			"name", strat.Name(),
			"win_rate", perf.WinRate,
		)
	}
	return disabled, nil
}

// AdjustAllocations rebalances strategy allocations proportionally to
// their normalized scores. A non-positive score total leaves allocations
// untouched.
func (m *Manager) AdjustAllocations(ctx context.Context, scores map[int64]float64) error {
	var total float64
	for _, score := range scores {
		total += score
	}
	if total <= 0 {
		return nil
	}

	for id, score := range scores {
		allocation := score / total * 100
		if err := m.store.SetAllocation(ctx, id, allocation); err != nil {
			return err
		}
		m.logger.Info("allocation updated", "id", id, "allocation", allocation)
	}
	return nil
}
