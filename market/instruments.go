package market

import (
	"context"
	"fmt"
	"math"
)

type InstrumentMeta struct {
	Symbol        string
	BaseCurrency  string
	QuoteCurrency string
	PipLocation   int
	MinimumLot    float64
	LotStep       float64
	ContractSize  float64
	MarginRate    float64
}

// PipSize returns the size of one pip in price units, e.g. EUR_USD: 0.0001.
func (m InstrumentMeta) PipSize() float64 {
	return math.Pow10(m.PipLocation) // PipLocation is negative
}

var Instruments = map[string]InstrumentMeta{
	"EUR_USD": {
		Symbol:        "EUR_USD",
		BaseCurrency:  "EUR",
		QuoteCurrency: "USD",
		PipLocation:   -4,
		MinimumLot:    0.01,
		LotStep:       0.01,
		ContractSize:  100_000,
		MarginRate:    0.02,
	},
	"XAUUSD": {
		Symbol:        "XAUUSD",
		BaseCurrency:  "XAU",
		QuoteCurrency: "USD",
		PipLocation:   -1,
		MinimumLot:    0.01,
		LotStep:       0.01,
		ContractSize:  100,
		MarginRate:    0.05,
	},
	"NAS100": {
		Symbol:        "NAS100",
		BaseCurrency:  "NAS",
		QuoteCurrency: "USD",
		PipLocation:   0,
		MinimumLot:    0.1,
		LotStep:       0.1,
		ContractSize:  1,
		MarginRate:    0.05,
	},
}

// QuoteToAccountRate converts one unit of the instrument's quote currency
// into account currency. USD-quoted instruments with a USD account need no
// conversion; everything else requires a tick for the instrument itself.
func QuoteToAccountRate(symbol, accountCurrency string, prices TickSource) (float64, error) {
	meta, ok := Instruments[symbol]
	if !ok {
		return 0, fmt.Errorf("unknown instrument %s", symbol)
	}

	if meta.QuoteCurrency == accountCurrency {
		return 1.0, nil
	}

	if meta.BaseCurrency == accountCurrency {
		px, err := prices.GetTick(context.Background(), symbol)
		if err != nil {
			return 0, err
		}
		return 1.0 / px.Mid(), nil
	}

	return 0, fmt.Errorf("cross conversion not implemented for %s -> %s",
		meta.QuoteCurrency, accountCurrency)
}
