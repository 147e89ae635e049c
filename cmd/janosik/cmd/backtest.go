package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janosik-trading/janosik/backtest"
	"github.com/janosik-trading/janosik/journal"
	"github.com/janosik-trading/janosik/market"
	"github.com/janosik-trading/janosik/risk"
	"github.com/janosik-trading/janosik/store"
	"github.com/janosik-trading/janosik/strategies"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay stored candle history through the strategies",
	Long: `Replay stored candle history through the registered strategies and
the full risk pipeline on a simulated account.

Trades and the equity curve go to the configured journal.

Example:
  janosik backtest -f janosik.yaml --bars 1000`,
	RunE: runBacktest,
}

var (
	backtestBars   int
	backtestWarmup int
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().IntVar(&backtestBars, "bars", 500, "candles per symbol to replay")
	backtestCmd.Flags().IntVar(&backtestWarmup, "warmup", 30, "bars consumed before trading starts")
}

func runBacktest(cmd *cobra.Command, args []string) error {
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

	strats, err := strategies.NewManager(st, logger).Load(ctx)
	if err != nil {
		return fmt.Errorf("load strategies: %w", err)
	}
	if len(strats) == 0 {
		return fmt.Errorf("no active strategies registered, run 'janosik initdb' first")
	}

	jrn, err := journal.FromConfig(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer jrn.Close()

	candles := make(map[string][]market.Candle, len(cfg.Trading.Symbols))
	for _, symbol := range cfg.Trading.Symbols {
		series, err := st.Candles(ctx, symbol, tf, backtestBars)
		if err != nil {
			return fmt.Errorf("load candles for %s: %w", symbol, err)
		}
		if len(series) == 0 {
			return fmt.Errorf("no stored candles for %s %s, run 'janosik fetch' first", symbol, tf)
		}
		candles[symbol] = series
		fmt.Printf("  %s: %d candles (%s .. %s)\n", symbol, len(series),
			series[0].Time.Format("2006-01-02 15:04"),
			series[len(series)-1].Time.Format("2006-01-02 15:04"))
	}

	runner, err := backtest.NewRunner(backtest.Config{
		Policy:     risk.PolicyFromConfig(cfg.Trading),
		Timeframe:  tf,
		Strategies: strats,
		Warmup:     backtestWarmup,
		Journal:    jrn,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	res, err := runner.Run(ctx, candles)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Backtest complete:")
	fmt.Printf("  Trades:       %d (%d wins / %d losses)\n", res.Trades, res.Wins, res.Losses)
	fmt.Printf("  Win rate:     %.1f%%\n", res.WinRate*100)
	fmt.Printf("  Net P&L:      %.2f\n", res.NetProfit)
	fmt.Printf("  Max drawdown: %.2f%%\n", res.MaxDrawdownPct)
	fmt.Printf("  Equity:       %.2f -> %.2f\n", res.StartEquity, res.FinalEquity)
	if res.Halted {
		fmt.Printf("  Halted:       %s\n", res.HaltReason)
	}
	return nil
}
