package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janosik-trading/janosik/broker/mt5"
	"github.com/janosik-trading/janosik/store"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download candle history from the gateway into the database",
	Long: `Fetch recent candles for every configured symbol from the terminal
gateway and store them. Duplicate bars are skipped.

Example:
  janosik fetch -f janosik.yaml --bars 2000`,
	RunE: runFetch,
}

var fetchBars int

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().IntVar(&fetchBars, "bars", 1000, "candles per symbol to fetch")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	tf, err := tradingTimeframe(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	st, err := store.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	gateway := mt5.NewClient(cfg.Terminal, logger)
	if err := gateway.Login(ctx); err != nil {
		return fmt.Errorf("terminal login: %w", err)
	}

	for _, symbol := range cfg.Trading.Symbols {
		candles, err := gateway.GetCandles(ctx, symbol, tf, fetchBars)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", symbol, err)
		}
		conflicts, err := st.InsertCandles(ctx, candles)
		if err != nil {
			return fmt.Errorf("store %s: %w", symbol, err)
		}
		fmt.Printf("  %s %s: fetched %d, stored %d new\n",
			symbol, tf, len(candles), len(candles)-conflicts)
	}
	return nil
}
