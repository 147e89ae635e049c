// Package journal records sim and backtest activity locally, either as
// CSV files or a SQLite database. The Postgres store is the system of
// record for live trading; the journal is the lightweight offline trail.
package journal

import (
	"fmt"
	"time"

	"github.com/janosik-trading/janosik/config"
)

// TradeRecord is one closed trade.
type TradeRecord struct {
	Ticket     string
	Symbol     string
	Direction  string
	Lots       float64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Reason     string
}

// EquitySnapshot is the account state at a point in time.
type EquitySnapshot struct {
	Time        time.Time
	Balance     float64
	Equity      float64
	MarginUsed  float64
	FreeMargin  float64
	DrawdownPct float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything. Used when no journal is configured.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }

// FromConfig builds the configured journal backend.
func FromConfig(jc config.JournalConfig) (Journal, error) {
	switch jc.Type {
	case "":
		return Nop{}, nil
	case "csv":
		return NewCSV(jc.TradesFile, jc.EquityFile)
	case "sqlite":
		return NewSQLite(jc.DBPath)
	default:
		return nil, fmt.Errorf("unknown journal type %q", jc.Type)
	}
}
