package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version is the current version of assignbot (overridden by ldflags at build time)
	Version = "0.1.0"
	// Build is the build identifier (overridden by ldflags at build time)
	Build = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "assignbot version %s (%s)\n", Version, Build)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
