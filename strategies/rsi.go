package strategies

import (
	"github.com/janosik-trading/janosik/indicators"
	"github.com/janosik-trading/janosik/market"
)

// RSI trades overbought/oversold extremes: sell above the overbought
// threshold, buy below the oversold one. Confidence grows with the
// distance past the threshold, saturating 30 RSI points out.
type RSI struct {
	name       string
	symbol     string
	tf         market.Timeframe
	period     int
	overbought float64
	oversold   float64
}

func NewRSI(name, symbol string, tf market.Timeframe, period int, overbought, oversold float64) *RSI {
	if period <= 0 {
		period = 14
	}
	if overbought <= 0 {
		overbought = 70
	}
	if oversold <= 0 {
		oversold = 30
	}
	return &RSI{
		name:       name,
		symbol:     symbol,
		tf:         tf,
		period:     period,
		overbought: overbought,
		oversold:   oversold,
	}
}

func (s *RSI) Name() string                { return s.name }
func (s *RSI) Symbol() string              { return s.symbol }
func (s *RSI) Timeframe() market.Timeframe { return s.tf }

func (s *RSI) Evaluate(candles []market.Candle) (Signal, error) {
	if len(candles) <= s.period {
		return Hold, nil
	}

	rsi := indicators.Last(indicators.RSISeries(market.Closes(candles), s.period))

	switch {
	case rsi > s.overbought:
		return Signal{Action: ActionSell, Confidence: capConfidence((rsi - s.overbought) / 30)}, nil
	case rsi < s.oversold:
		return Signal{Action: ActionBuy, Confidence: capConfidence((s.oversold - rsi) / 30)}, nil
	default:
		return Hold, nil
	}
}

func capConfidence(c float64) float64 {
	if c > 1 {
		return 1
	}
	if c < 0 {
		return 0
	}
	return c
}
