package main

import (
	"os"

	"shopflow/internal/config"
	"shopflow/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "shopflow",
		Short:         "Storefront backend with a fan-out/fan-in work queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load()
			logger.InitLogger(cfg.Server.Environment)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgRef := func() *config.Config { return cfg }
	rootCmd.AddCommand(newServeCommand(cfgRef))
	rootCmd.AddCommand(newDispatchCommand(cfgRef))
	rootCmd.AddCommand(newQueueCommand(cfgRef))

	return rootCmd
}
