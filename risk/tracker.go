package risk

import "sync"

// Level classifies the current drawdown against the policy tiers.
type Level string

const (
	LevelSafe     Level = "SAFE"
	LevelWarning  Level = "WARNING"
	LevelCaution  Level = "CAUTION"
	LevelCritical Level = "CRITICAL"
)

// Tracker follows equity against its running peak. Safe for concurrent use:
// the trading loop updates it, the monitor reads it.
type Tracker struct {
	mu     sync.RWMutex
	policy Policy
	equity float64
	peak   float64
}

func NewTracker(p Policy) *Tracker {
	return &Tracker{
		policy: p,
		equity: p.Capital,
		peak:   p.Capital,
	}
}

// Update records a new equity value, advancing the peak when exceeded.
func (t *Tracker) Update(equity float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.equity = equity
	if equity > t.peak {
		t.peak = equity
	}
}

func (t *Tracker) Equity() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.equity
}

func (t *Tracker) Peak() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.peak
}

// Drawdown returns the current drawdown from peak, in percent.
func (t *Tracker) Drawdown() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.peak <= 0 {
		return 0
	}
	return (t.peak - t.equity) / t.peak * 100
}

// Level classifies the current drawdown.
func (t *Tracker) Level() Level {
	return t.policy.ClassifyDrawdown(t.Drawdown())
}

// ClassifyDrawdown maps a drawdown percentage onto a tier.
func (p Policy) ClassifyDrawdown(dd float64) Level {
	switch {
	case dd > p.DrawdownCritical:
		return LevelCritical
	case dd > p.DrawdownCaution:
		return LevelCaution
	case dd > p.DrawdownSafe:
		return LevelWarning
	default:
		return LevelSafe
	}
}
