package main

import "github.com/spf13/cobra"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gguf",
		Short:         "Inspect and produce GGUF files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newShowCmd(),
		newInspectTensorCmd(),
		newCompareCmd(),
		newSplitMixtralCmd(),
	)
	return cmd
}
