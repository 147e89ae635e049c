package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janosik-trading/janosik/config"
)

func sampleTrade() TradeRecord {
	open := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return TradeRecord{
		Ticket:     "01JD3EXAMPLE",
		Symbol:     "XAUUSD",
		Direction:  "BUY",
		Lots:       0.5,
		EntryPrice: 2300.5,
		ExitPrice:  2310.0,
		OpenTime:   open,
		CloseTime:  open.Add(2 * time.Hour),
		RealizedPL: 475.0,
		Reason:     "TAKE_PROFIT",
	}
}

func TestCSVJournal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)

	require.NoError(t, j.RecordTrade(sampleTrade()))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		Time: time.Now().UTC(), Balance: 100_475, Equity: 100_475,
	}))
	require.NoError(t, j.Close())

	tf, err := os.Open(tradesPath)
	require.NoError(t, err)
	defer tf.Close()

	rows, err := csv.NewReader(tf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2) // header + one trade
	assert.Equal(t, "ticket", rows[0][0])
	assert.Equal(t, "01JD3EXAMPLE", rows[1][0])
	assert.Equal(t, "XAUUSD", rows[1][1])
	assert.Equal(t, "BUY", rows[1][2])
	assert.Equal(t, "TAKE_PROFIT", rows[1][9])
}

func TestSQLiteJournal(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	defer j.Close()

	trade := sampleTrade()
	require.NoError(t, j.RecordTrade(trade))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		Time: time.Now().UTC(), Balance: 100_475, Equity: 100_475, DrawdownPct: 0,
	}))

	got, err := j.Trades("XAUUSD")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, trade.Ticket, got[0].Ticket)
	assert.InDelta(t, trade.RealizedPL, got[0].RealizedPL, 1e-9)

	none, err := j.Trades("EUR_USD")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	j, err := FromConfig(config.JournalConfig{})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, j)

	dir := t.TempDir()
	j, err = FromConfig(config.JournalConfig{
		Type:       "csv",
		TradesFile: filepath.Join(dir, "t.csv"),
		EquityFile: filepath.Join(dir, "e.csv"),
	})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = FromConfig(config.JournalConfig{Type: "parquet"})
	assert.Error(t, err)
}
