package risk

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// correlationWindow is how many recent closes the correlation check uses.
const correlationWindow = 20

type Violation struct {
	Code string
	Msg  string
}

// Decision is the outcome of a pre-trade risk evaluation.
type Decision struct {
	Allowed    bool
	Violations []Violation

	// MaxLots is the largest size the policy currently permits,
	// regardless of whether this intent was allowed.
	MaxLots float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// TradeIntent is the trade a strategy wants to place.
type TradeIntent struct {
	Symbol     string
	Direction  string // BUY or SELL
	Lots       float64
	EntryPrice float64
}

// AccountSnapshot carries the equity state the checks need.
type AccountSnapshot struct {
	Equity      float64
	DrawdownPct float64
}

// PnLSnapshot carries realized P&L aggregates.
type PnLSnapshot struct {
	DayRealized float64
}

// Exposure carries current portfolio exposure plus the close-price series
// needed for the correlation check and the closed-trade P&L history needed
// for Kelly sizing.
type Exposure struct {
	OpenPositions int
	TradesToday   int

	// CandidateCloses are recent closes for the intent's symbol;
	// OpenSymbolCloses maps each open-position symbol to its recent closes.
	CandidateCloses  []float64
	OpenSymbolCloses map[string][]float64

	// RecentClosedPL is the realized P&L of recent closed trades,
	// newest last.
	RecentClosedPL []float64
}

// Evaluate runs every pre-trade check and returns the combined decision.
func Evaluate(p Policy, intent TradeIntent, acct AccountSnapshot, pnl PnLSnapshot, exp Exposure) Decision {
	d := Decision{Allowed: true}

	if acct.DrawdownPct > p.DrawdownCritical {
		d.add("DRAWDOWN_CRITICAL",
			fmt.Sprintf("drawdown %.2f%% exceeds critical tier %.2f%%",
				acct.DrawdownPct, p.DrawdownCritical))
	}

	if pnl.DayRealized <= p.DailyLossLimit() {
		d.add("DAILY_LOSS_LIMIT",
			fmt.Sprintf("day realized %.2f at or below limit %.2f",
				pnl.DayRealized, p.DailyLossLimit()))
	}

	if exp.TradesToday >= p.MaxTradesPerDay {
		d.add("MAX_TRADES_PER_DAY",
			fmt.Sprintf("trades today %d >= max %d", exp.TradesToday, p.MaxTradesPerDay))
	}

	if exp.OpenPositions >= p.MaxOpenPositions {
		d.add("MAX_OPEN_POSITIONS",
			fmt.Sprintf("open positions %d >= max %d", exp.OpenPositions, p.MaxOpenPositions))
	}

	for symbol, closes := range exp.OpenSymbolCloses {
		if symbol == intent.Symbol {
			continue
		}
		r := Correlation(exp.CandidateCloses, closes)
		if math.Abs(r) > p.MaxCorrelation {
			d.add("CORRELATION_LIMIT",
				fmt.Sprintf("correlation %.2f between %s and %s exceeds cap %.2f",
					r, intent.Symbol, symbol, p.MaxCorrelation))
			break
		}
	}

	d.MaxLots = MaxPositionSize(p, acct.DrawdownPct, exp.RecentClosedPL)
	if intent.Lots > d.MaxLots {
		d.add("POSITION_TOO_LARGE",
			fmt.Sprintf("%.2f lots exceeds max %.2f", intent.Lots, d.MaxLots))
	}

	return d
}

// Correlation computes the Pearson correlation of the overlapping tail of
// two close-price series, at most correlationWindow points. Returns 0 when
// either series is too short.
func Correlation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n > correlationWindow {
		n = correlationWindow
	}
	if n < 2 {
		return 0
	}

	x := a[len(a)-n:]
	y := b[len(b)-n:]
	series := talib.Correl(x, y, n)
	r := series[len(series)-1]
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// StopTrading reports whether a halt condition holds: drawdown beyond the
// critical tier or the daily loss limit breached.
func StopTrading(p Policy, drawdownPct, dayRealized float64) (bool, string) {
	if drawdownPct > p.DrawdownCritical {
		return true, fmt.Sprintf("critical drawdown %.2f%%", drawdownPct)
	}
	if dayRealized < p.DailyLossLimit() {
		return true, fmt.Sprintf("daily loss %.2f beyond limit %.2f", dayRealized, p.DailyLossLimit())
	}
	return false, ""
}

// Metrics is the monitor-facing risk summary.
type Metrics struct {
	Equity        float64 `json:"equity"`
	PeakEquity    float64 `json:"peak_equity"`
	DrawdownPct   float64 `json:"drawdown_pct"`
	DrawdownLevel Level   `json:"drawdown_level"`
	DailyLossPct  float64 `json:"daily_loss_pct"`
	OpenPositions int     `json:"open_positions"`
	TradesToday   int     `json:"trades_today"`
	Halted        bool    `json:"halted"`
}
