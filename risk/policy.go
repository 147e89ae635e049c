// Package risk enforces portfolio-level limits: drawdown tiers, daily loss,
// trade and position caps, correlation between open symbols, and position
// sizing. All checks are pure functions over snapshots so they can run
// identically in live trading and in backtests.
package risk

import "github.com/janosik-trading/janosik/config"

// SizingMode selects how the maximum position size is computed.
type SizingMode string

const (
	SizingFixed    SizingMode = "fixed"
	SizingKelly    SizingMode = "kelly"
	SizingAdaptive SizingMode = "adaptive"
)

// Policy holds the portfolio risk limits.
type Policy struct {
	Capital float64

	// Drawdown tiers, in percent of peak equity.
	DrawdownSafe     float64
	DrawdownCaution  float64
	DrawdownCritical float64

	MaxDailyLossPct  float64 // percent of capital
	MaxTradesPerDay  int
	MaxOpenPositions int
	MaxCorrelation   float64 // absolute Pearson r cap

	SizingMode    SizingMode
	FixedLot      float64
	KellyFraction float64
}

// PolicyFromConfig maps the trading config onto a Policy.
func PolicyFromConfig(tc config.TradingConfig) Policy {
	return Policy{
		Capital:          tc.Capital,
		DrawdownSafe:     tc.DrawdownSafe,
		DrawdownCaution:  tc.DrawdownCaution,
		DrawdownCritical: tc.DrawdownCritical,
		MaxDailyLossPct:  tc.MaxDailyLossPct,
		MaxTradesPerDay:  tc.MaxTradesPerDay,
		MaxOpenPositions: tc.MaxOpenPositions,
		MaxCorrelation:   tc.MaxCorrelation,
		SizingMode:       SizingMode(tc.SizingMode),
		FixedLot:         tc.FixedLot,
		KellyFraction:    tc.KellyFraction,
	}
}

// DailyLossLimit is the realized P&L threshold (negative, account currency)
// below which trading stops for the day.
func (p Policy) DailyLossLimit() float64 {
	return -(p.MaxDailyLossPct / 100.0) * p.Capital
}
