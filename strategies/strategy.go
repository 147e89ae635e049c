// Package strategies holds the signal-generating strategies and the
// ensemble that combines their votes. Strategies are pure over candle
// history: they hold no broker or database handles, which keeps them
// identical between live trading and backtests.
package strategies

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/janosik-trading/janosik/config"
	"github.com/janosik-trading/janosik/market"
	"github.com/janosik-trading/janosik/store"
)

// Action is a trading signal direction.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Signal is a strategy's verdict for the latest candle.
type Signal struct {
	Action     Action
	Confidence float64 // 0..1
}

// Hold is the neutral signal.
var Hold = Signal{Action: ActionHold}

// Strategy evaluates candle history for one symbol and timeframe.
type Strategy interface {
	Name() string
	Symbol() string
	Timeframe() market.Timeframe
	Evaluate(candles []market.Candle) (Signal, error)
}

// Strategy types as stored in the strategies table.
const (
	TypeRSI = "RSI"
	TypeMA  = "MA"
)

// FromRow builds a strategy from its database row. Symbol and timeframe
// live inside the JSONB parameters next to the strategy knobs.
func FromRow(row store.StrategyRow) (Strategy, error) {
	symbol := cast.ToString(row.Parameters["symbol"])
	if symbol == "" {
		symbol = "XAUUSD"
	}
	tf := market.Timeframe(cast.ToInt(row.Parameters["timeframe"]))
	if tf == 0 {
		tf = market.H1
	}
	if !tf.Valid() {
		return nil, fmt.Errorf("strategy %s: invalid timeframe %d", row.Name, int(tf))
	}

	switch row.Type {
	case TypeRSI:
		return NewRSI(row.Name, symbol, tf,
			cast.ToInt(row.Parameters["period"]),
			cast.ToFloat64(row.Parameters["overbought"]),
			cast.ToFloat64(row.Parameters["oversold"]),
		), nil
	case TypeMA:
		return NewMACross(row.Name, symbol, tf,
			cast.ToInt(row.Parameters["fast"]),
			cast.ToInt(row.Parameters["slow"]),
		), nil
	default:
		return nil, fmt.Errorf("unknown strategy type %q", row.Type)
	}
}

// ParamsFromConfig flattens a config strategy declaration into the shape
// stored in the strategies table.
func ParamsFromConfig(sc config.StrategyConfig) (map[string]any, error) {
	tf, err := market.ParseTimeframe(sc.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", sc.Name, err)
	}

	params := make(map[string]any, len(sc.Params)+2)
	for k, v := range sc.Params {
		params[k] = v
	}
	params["symbol"] = sc.Symbol
	params["timeframe"] = int(tf)
	return params, nil
}
