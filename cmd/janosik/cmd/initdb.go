package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janosik-trading/janosik/store"
	"github.com/janosik-trading/janosik/strategies"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the database schema and register configured strategies",
	Long: `Apply the database schema and register every strategy declared in
the config file. Safe to run repeatedly, existing tables are kept.

Example:
  janosik initdb -f janosik.yaml`,
	RunE: runInitdb,
}

func init() {
	rootCmd.AddCommand(initdbCmd)
}

func runInitdb(cmd *cobra.Command, args []string) error {
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

	if err := st.InitSchema(ctx); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	fmt.Println("Schema applied.")

	for _, sc := range cfg.Strategies {
		params, err := strategies.ParamsFromConfig(sc)
		if err != nil {
			return err
		}
		id, err := st.RegisterStrategy(ctx, sc.Name, sc.Type, params)
		if err != nil {
			return fmt.Errorf("register strategy %s: %w", sc.Name, err)
		}
		fmt.Printf("  strategy %-24s id=%d symbol=%s\n", sc.Name, id, sc.Symbol)
	}
	if len(cfg.Strategies) == 0 {
		fmt.Println("No strategies declared in config.")
	}
	return nil
}
