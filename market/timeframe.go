package market

import (
	"fmt"
	"time"
)

// Timeframe is the candle interval expressed in minutes. The terminal
// protocol and the market_data table both key candles by minute counts.
type Timeframe int

const (
	M1  Timeframe = 1
	M5  Timeframe = 5
	M15 Timeframe = 15
	H1  Timeframe = 60
	D1  Timeframe = 1440
)

var tfNames = map[Timeframe]string{
	M1:  "M1",
	M5:  "M5",
	M15: "M15",
	H1:  "H1",
	D1:  "D1",
}

func (tf Timeframe) String() string {
	if s, ok := tfNames[tf]; ok {
		return s
	}
	return fmt.Sprintf("M%d", int(tf))
}

// Duration returns the timeframe interval as a time.Duration.
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf) * time.Minute
}

// Valid reports whether tf is one of the supported timeframes.
func (tf Timeframe) Valid() bool {
	_, ok := tfNames[tf]
	return ok
}

// ParseTimeframe maps a timeframe label like "H1" or "M15" to its
// minute count.
func ParseTimeframe(s string) (Timeframe, error) {
	for tf, name := range tfNames {
		if name == s {
			return tf, nil
		}
	}
	return 0, fmt.Errorf("unsupported timeframe %q", s)
}

// Truncate aligns t down to the start of the timeframe interval.
func (tf Timeframe) Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(tf.Duration())
}
