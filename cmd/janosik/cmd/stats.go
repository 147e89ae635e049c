package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janosik-trading/janosik/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print daily performance statistics",
	Long: `Print the trades-per-day, P&L, win rate, and drawdown rows the
executor writes at each daily rollover.

Example:
  janosik stats -f janosik.yaml --days 7`,
	RunE: runStats,
}

var statsDays int

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().IntVar(&statsDays, "days", 30, "number of days to show")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	ctx := cmd.Context()

	st, err := store.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	rows, err := st.PerformanceStats(ctx, statsDays)
	if err != nil {
		return fmt.Errorf("query stats: %w", err)
	}
	if len(rows) == 0 {
		fmt.Println("No daily stats recorded yet.")
		return nil
	}

	fmt.Printf("%-12s %7s %12s %9s %9s %9s\n",
		"DATE", "TRADES", "P&L", "WIN%", "MAXDD%", "LOSS%")
	var totalPL float64
	var totalTrades int
	for _, r := range rows {
		fmt.Printf("%-12s %7d %12.2f %9.1f %9.2f %9.2f\n",
			r.Date.Format("2006-01-02"), r.TradesCount, r.TotalPL,
			r.WinRate*100, r.MaxDrawdown, r.DailyLossPct)
		totalPL += r.TotalPL
		totalTrades += r.TradesCount
	}
	fmt.Printf("\nTotal: %d trades, %.2f P&L over %d days\n",
		totalTrades, totalPL, len(rows))
	return nil
}
