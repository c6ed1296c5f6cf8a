package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/solver-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "solver-cli",
	Short: "Automated quiz task-chain solver",
	Long:  "Fetches server-driven quiz task pages, derives answers through an ordered extraction chain, submits them, and follows the response chain to the next task.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
