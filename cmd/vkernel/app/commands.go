// Package app provides the entry point for the vkernel command-line
// application: a capability-gated hostcall kernel for sandboxed wasm guest
// modules.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/vkernel/pkg/logger"
)

// NewRootCmd creates a new root command for the vkernel CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "vkernel",
		DisableAutoGenTag: true,
		Short:             "vkernel runs and inspects a capability-gated hostcall kernel for sandboxed wasm guests",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				logger.Errorw("error displaying help", "error", err)
			}
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorw("error binding config flag", "error", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCatalogueCmd())
	rootCmd.AddCommand(newSessionCmd())

	rootCmd.SilenceUsage = true

	return rootCmd
}
