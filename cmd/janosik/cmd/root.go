package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/janosik-trading/janosik/config"
	"github.com/janosik-trading/janosik/market"
)

var rootCmd = &cobra.Command{
	Use:   "janosik",
	Short: "A multi-strategy forex trading bot with risk-managed execution",
	Long: `Janosik trades a portfolio of rule-based strategies through an MT5
gateway, with drawdown-tiered risk limits, Kelly position sizing, and a
Postgres-backed market data store.

It provides commands for:
  - Running the live or demo trading loop
  - Backtesting the configured strategies on stored history
  - Initializing the database schema and strategy registry
  - Fetching candle history from the gateway
  - Inspecting daily performance statistics`,
}

var cfgPath string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "f", "janosik.yaml", "path to config file (YAML)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("JANOSIK_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func tradingTimeframe(cfg *config.Config) (market.Timeframe, error) {
	tf, err := market.ParseTimeframe(cfg.Trading.Timeframe)
	if err != nil {
		return 0, fmt.Errorf("trading.timeframe: %w", err)
	}
	return tf, nil
}
