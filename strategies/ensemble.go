package strategies

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/janosik-trading/janosik/market"
)

// Vote is one strategy's signal in an evaluation round.
type Vote struct {
	StrategyID int64
	Strategy   string
	Symbol     string
	Signal     Signal
}

// EvaluateAll runs every strategy against its symbol's candle history
// concurrently and collects the non-nil votes. A failing strategy is
// logged and skipped; it never sinks the round.
func EvaluateAll(ctx context.Context, strats map[int64]Strategy, candles map[string][]market.Candle, logger *slog.Logger) []Vote {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		mu    sync.Mutex
		votes []Vote
	)

	g, _ := errgroup.WithContext(ctx)
	for id, strat := range strats {
		id, strat := id, strat
		series, ok := candles[strat.Symbol()]
		if !ok || len(series) == 0 {
			continue
		}

		g.Go(func() error {
			sig, err := strat.Evaluate(series)
			if err != nil {
				logger.Error("strategy failed", "strategy", strat.Name(), "error", err)
				return nil
			}

			mu.Lock()
			votes = append(votes, Vote{
				StrategyID: id,
				Strategy:   strat.Name(),
				Symbol:     strat.Symbol(),
				Signal:     sig,
			})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return votes
}

// Combine reduces votes by strict majority: more than half the voters
// must agree on BUY or SELL, anything else is HOLD.
func Combine(votes []Vote) Action {
	if len(votes) == 0 {
		return ActionHold
	}

	var buy, sell int
	for _, v := range votes {
		switch v.Signal.Action {
		case ActionBuy:
			buy++
		case ActionSell:
			sell++
		}
	}

	half := float64(len(votes)) / 2
	switch {
	case float64(buy) > half:
		return ActionBuy
	case float64(sell) > half:
		return ActionSell
	default:
		return ActionHold
	}
}

// CombineSymbol reduces only the votes for one symbol.
func CombineSymbol(votes []Vote, symbol string) Action {
	filtered := make([]Vote, 0, len(votes))
	for _, v := range votes {
		if v.Symbol == symbol {
			filtered = append(filtered, v)
		}
	}
	return Combine(filtered)
}
