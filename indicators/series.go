package indicators

import "github.com/markcheno/go-talib"

// Batch helpers over go-talib for strategies that evaluate a full candle
// history at once. Each returns the complete series; callers normally look
// at the last element. Inputs shorter than the period return nil so callers
// can distinguish "not enough data" from a computed zero.

// RSISeries computes the Relative Strength Index over the close series.
func RSISeries(closes []float64, period int) []float64 {
	if len(closes) <= period {
		return nil
	}
	return talib.Rsi(closes, period)
}

// SMASeries computes the Simple Moving Average over the close series.
func SMASeries(closes []float64, period int) []float64 {
	if len(closes) < period {
		return nil
	}
	return talib.Sma(closes, period)
}

// EMASeries computes the Exponential Moving Average over the close series.
func EMASeries(closes []float64, period int) []float64 {
	if len(closes) < period {
		return nil
	}
	return talib.Ema(closes, period)
}

// ATRSeries computes the Average True Range over high/low/close series.
func ATRSeries(highs, lows, closes []float64, period int) []float64 {
	if len(closes) <= period {
		return nil
	}
	return talib.Atr(highs, lows, closes, period)
}

// Last returns the final value of a series, or 0 if the series is empty.
func Last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}
