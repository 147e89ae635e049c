package strategies

import (
	"github.com/janosik-trading/janosik/indicators"
	"github.com/janosik-trading/janosik/market"
)

// MACross follows the fast/slow SMA relationship: buy while the fast
// average rides above the slow one, sell while below. Confidence is the
// averages' spread relative to price, in percent, capped at 1.
type MACross struct {
	name   string
	symbol string
	tf     market.Timeframe
	fast   int
	slow   int
}

func NewMACross(name, symbol string, tf market.Timeframe, fast, slow int) *MACross {
	if fast <= 0 {
		fast = 5
	}
	if slow <= 0 {
		slow = 20
	}
	return &MACross{name: name, symbol: symbol, tf: tf, fast: fast, slow: slow}
}

func (s *MACross) Name() string                { return s.name }
func (s *MACross) Symbol() string              { return s.symbol }
func (s *MACross) Timeframe() market.Timeframe { return s.tf }

func (s *MACross) Evaluate(candles []market.Candle) (Signal, error) {
	fastMA := indicators.NewMA(s.fast)
	slowMA := indicators.NewMA(s.slow)
	for _, c := range candles {
		fastMA.Update(c)
		slowMA.Update(c)
	}
	if !fastMA.Ready() || !slowMA.Ready() {
		return Hold, nil
	}

	fast, slow := fastMA.Value(), slowMA.Value()
	close := candles[len(candles)-1].Close
	if close == 0 {
		return Hold, nil
	}

	switch {
	case fast > slow:
		return Signal{Action: ActionBuy, Confidence: capConfidence((fast - slow) / close * 100)}, nil
	case fast < slow:
		return Signal{Action: ActionSell, Confidence: capConfidence((slow - fast) / close * 100)}, nil
	default:
		return Hold, nil
	}
}
