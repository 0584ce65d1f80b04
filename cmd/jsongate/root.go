package main

import "github.com/spf13/cobra"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jsongate",
		Short:         "Bounded JSON ingestion with schema selection by root property",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCheckCmd(), newServeCmd(), newVersionCmd())
	return root
}
