// Package main provides the entry point for the changegate CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/changegate/cmd/changegate/commands"
	"github.com/Sumatoshi-tech/changegate/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "changegate",
		Short: "Changegate - change-gated pipeline selector",
		Long: `Changegate decides whether a CI pipeline needs to run by diffing two
revisions and filtering the changed paths against a relevance policy.

Commands:
  decide    Evaluate a repository and emit a run/skip decision
  serve     Run the decision pipeline as an HTTP service
  policy    Inspect and validate relevance policies`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewDecideCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewPolicyCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitUsage)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "changegate %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
