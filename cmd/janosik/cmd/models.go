package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janosik-trading/janosik/rl"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage trained model versions",
	Long: `List, promote, or roll back the model versions the training
scheduler records under rl.model_dir.`,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List model versions and the current pointer",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := openRegistry()
		if err != nil {
			return err
		}
		versions, err := registry.Versions()
		if err != nil {
			return err
		}
		current, err := registry.Current()
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			fmt.Println("No model versions.")
			return nil
		}
		for _, v := range versions {
			marker := " "
			if v == current {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, v)
		}
		return nil
	},
}

var modelsPromoteCmd = &cobra.Command{
	Use:   "promote <version>",
	Short: "Promote a version to current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := openRegistry()
		if err != nil {
			return err
		}
		if err := registry.Promote(args[0]); err != nil {
			return err
		}
		fmt.Printf("Promoted %s.\n", args[0])
		return nil
	},
}

var modelsRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back to the previous version",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := openRegistry()
		if err != nil {
			return err
		}
		if err := registry.Rollback(); err != nil {
			return err
		}
		current, err := registry.Current()
		if err != nil {
			return err
		}
		fmt.Printf("Rolled back to %s.\n", current)
		return nil
	},
}

func openRegistry() (*rl.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return rl.NewRegistry(cfg.RL.ModelDir)
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd, modelsPromoteCmd, modelsRollbackCmd)
}
