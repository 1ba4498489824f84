package main

import (
	"github.com/spf13/cobra"

	"papertrade/internal/ops"
)

type rootFlags struct {
	config   string
	envFiles []string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "papertrade",
		Short:         "Paper trading engine",
		Long:          "papertrade runs strategies against live market data with virtual capital and keeps positions, trades and the account in a database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.config, "config", "", "Path to JSON config (defaults when empty)")
	root.PersistentFlags().StringSliceVar(&flags.envFiles, "env", []string{".env"}, "Env files read before the process environment")

	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newStatusCmd(flags))
	root.AddCommand(newLiquidateCmd(flags))
	return root
}

func (f *rootFlags) load() (ops.Config, error) {
	return ops.Load(f.config, f.envFiles...)
}
