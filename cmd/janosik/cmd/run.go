package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/janosik-trading/janosik/alert"
	"github.com/janosik-trading/janosik/broker"
	"github.com/janosik-trading/janosik/broker/mt5"
	"github.com/janosik-trading/janosik/broker/paper"
	"github.com/janosik-trading/janosik/broker/sim"
	"github.com/janosik-trading/janosik/engine"
	"github.com/janosik-trading/janosik/executor"
	"github.com/janosik-trading/janosik/market"
	"github.com/janosik-trading/janosik/monitor"
	"github.com/janosik-trading/janosik/risk"
	"github.com/janosik-trading/janosik/rl"
	"github.com/janosik-trading/janosik/store"
	"github.com/janosik-trading/janosik/strategies"
)

const shutdownTimeout = 15 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading loop until interrupted",
	Long: `Run the trading loop against the configured environment.

In the live environment orders go to the terminal account. In the demo
environment quotes still come from the gateway, but orders fill on an
in-memory simulated account funded with the configured capital.

Example:
  janosik run -f janosik.yaml`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	tf, err := tradingTimeframe(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	gateway := mt5.NewClient(cfg.Terminal, logger)
	if err := gateway.Login(ctx); err != nil {
		return fmt.Errorf("terminal login: %w", err)
	}

	var b broker.Broker = gateway
	if cfg.IsDemo() {
		account := sim.NewEngine(broker.Account{
			ID:       "demo",
			Currency: "USD",
			Balance:  cfg.Trading.Capital,
			Equity:   cfg.Trading.Capital,
		})
		pb := paper.New(gateway, account)
		b = pb

		go func() {
			err := gateway.StreamTicks(ctx, cfg.Trading.Symbols, func(tick market.Tick) {
				if err := pb.Pump(tick); err != nil {
					logger.Debug("tick rejected", "symbol", tick.Symbol, "error", err)
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("tick stream stopped", "error", err)
			}
		}()
		logger.Info("demo mode, orders fill on the simulated account", "capital", cfg.Trading.Capital)
	}

	strats, err := strategies.NewManager(st, logger).Load(ctx)
	if err != nil {
		return fmt.Errorf("load strategies: %w", err)
	}
	if len(strats) == 0 {
		return fmt.Errorf("no active strategies registered, run 'janosik initdb' first")
	}

	policy := risk.PolicyFromConfig(cfg.Trading)
	tracker := risk.NewTracker(policy)
	exec := executor.New(b, st, policy, tracker, tf, logger)

	writer := store.NewCandleWriter(store.DefaultWriterConfig(), st, logger)
	writer.Start(ctx)

	notifier := alert.New(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID, logger)

	eng := engine.New(engine.Config{
		Symbols:   cfg.Trading.Symbols,
		Timeframe: tf,
	}, b, writer, strats, exec, notifier, logger)
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	registry, err := rl.NewRegistry(cfg.RL.ModelDir)
	if err != nil {
		return fmt.Errorf("model registry: %w", err)
	}
	scheduler := rl.NewScheduler(cfg.RL.RetrainInterval, rl.NewNopTrainer(registry), st, logger)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start training scheduler: %w", err)
	}

	mon := monitor.NewServer(cfg.Monitor.Listen, exec, st, logger)
	mon.Start()

	logger.Info("janosik running",
		"environment", cfg.Environment,
		"symbols", cfg.Trading.Symbols,
		"timeframe", tf.String(),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := eng.Stop(sctx); err != nil {
		logger.Error("engine stop failed", "error", err)
	}
	if err := scheduler.Stop(sctx); err != nil {
		logger.Error("scheduler stop failed", "error", err)
	}
	if err := mon.Stop(sctx); err != nil {
		logger.Error("monitor stop failed", "error", err)
	}
	writer.Stop(sctx)
	if err := exec.FlushDailyStats(sctx); err != nil {
		logger.Error("daily stats flush failed", "error", err)
	}
	return nil
}
