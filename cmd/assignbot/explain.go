package main

import (
	"github.com/spf13/cobra"
)

var explainOpts runOptions

func newExplainCmd(o *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show why an issue would or would not be assigned",
		Long: `Run the full decision in dry-run mode and print every step: the effective
mode, the workload guard, each pool searched, and the reason every issue was
skipped. Nothing is assigned, created or labeled.`,
		Example: `  assignbot explain --repo octo/widgets
  assignbot explain --trigger issue_closed
  assignbot explain --snapshot testdata/widgets.json --skip-labels wontfix,blocked`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecision(cmd, o, true)
		},
	}
	addRunFlags(cmd, o)
	return cmd
}

func init() {
	rootCmd.AddCommand(newExplainCmd(&explainOpts))
}
