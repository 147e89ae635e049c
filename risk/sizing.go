package risk

// Sizing converts policy and recent performance into a maximum lot size.
// The Kelly variant needs a history of closed-trade P&L; the adaptive
// variant scales the fixed lot down as drawdown approaches the critical
// tier.

const (
	kellyMinTrades = 5
	kellyFloorLots = 0.1
	adaptiveFloor  = 0.1
)

// MaxPositionSize returns the largest lot size the policy allows right now.
func MaxPositionSize(p Policy, drawdownPct float64, recentPL []float64) float64 {
	switch p.SizingMode {
	case SizingKelly:
		return kellyLots(p, recentPL)
	case SizingAdaptive:
		scale := 1 - drawdownPct/p.DrawdownCritical
		if scale < adaptiveFloor {
			scale = adaptiveFloor
		}
		return p.FixedLot * scale
	default:
		return p.FixedLot
	}
}

// kellyLots sizes from the Kelly criterion over recent closed trades:
// f = (winRate*avgWin - lossRate*avgLoss) / avgWin, scaled by the policy
// fraction, one lot per percent, clamped to [0.1, 2*fixed]. Falls back to
// the fixed lot until enough history exists or when one side is empty.
func kellyLots(p Policy, recentPL []float64) float64 {
	if len(recentPL) < kellyMinTrades {
		return p.FixedLot
	}

	var wins, losses int
	var winSum, lossSum float64
	for _, pl := range recentPL {
		switch {
		case pl > 0:
			wins++
			winSum += pl
		case pl < 0:
			losses++
			lossSum += -pl
		}
	}

	total := wins + losses
	if wins == 0 || losses == 0 || total == 0 {
		return p.FixedLot
	}

	winRate := float64(wins) / float64(total)
	lossRate := float64(losses) / float64(total)
	avgWin := winSum / float64(wins)
	avgLoss := lossSum / float64(losses)
	if avgLoss == 0 || avgWin == 0 {
		return p.FixedLot
	}

	kelly := (winRate*avgWin - lossRate*avgLoss) / avgWin
	kelly *= p.KellyFraction

	lots := kelly * 100
	if max := p.FixedLot * 2; lots > max {
		lots = max
	}
	if lots < kellyFloorLots {
		lots = kellyFloorLots
	}
	return lots
}
