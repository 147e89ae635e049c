package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the janosik CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("janosik version %s\n", version)
		fmt.Println("A multi-strategy forex trading bot with risk-managed execution")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
