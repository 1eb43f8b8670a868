package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/changegate/internal/config"
)

// PolicyCommand holds configuration for the policy subcommands.
type PolicyCommand struct {
	policyFile string
	patterns   []string
	configFile string
	noColor    bool
}

// NewPolicyCommand creates the policy command group.
func NewPolicyCommand() *cobra.Command {
	pc := &PolicyCommand{}

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and validate relevance policies",
	}

	check := &cobra.Command{
		Use:   "check [file]",
		Short: "Validate that a policy loads and all patterns compile",
		Args:  cobra.MaximumNArgs(1),
		RunE:  pc.check,
	}

	check.Flags().StringVar(&pc.policyFile, "policy", "", "Path to a YAML policy file")
	check.Flags().StringArrayVar(&pc.patterns, "pattern", nil, "Relevance pattern (repeatable; overrides --policy)")
	check.Flags().StringVarP(&pc.configFile, "config", "c", "", "Config file path (default: .changegate.yaml in CWD or $HOME)")
	check.Flags().BoolVar(&pc.noColor, "no-color", false, "Disable colored output")

	match := &cobra.Command{
		Use:   "match [path...]",
		Short: "Dry-run paths against the policy",
		Args:  cobra.MinimumNArgs(1),
		RunE:  pc.match,
	}

	match.Flags().StringVar(&pc.policyFile, "policy", "", "Path to a YAML policy file")
	match.Flags().StringArrayVar(&pc.patterns, "pattern", nil, "Relevance pattern (repeatable; overrides --policy)")
	match.Flags().StringVarP(&pc.configFile, "config", "c", "", "Config file path (default: .changegate.yaml in CWD or $HOME)")
	match.Flags().BoolVar(&pc.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(check)
	cmd.AddCommand(match)

	return cmd
}

func (pc *PolicyCommand) check(cmd *cobra.Command, args []string) error {
	if pc.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	if len(args) > 0 {
		pc.policyFile = args[0]
	}

	cfg, loadErr := config.LoadConfig(pc.configFile)
	if loadErr != nil {
		return loadErr
	}

	compiled, policyErr := loadPolicy(pc.patterns, pc.policyFile, cfg)
	if policyErr != nil {
		return policyErr
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "policy ok (%d patterns)\n", compiled.Len())

	return nil
}

func (pc *PolicyCommand) match(cmd *cobra.Command, args []string) error {
	if pc.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	cfg, loadErr := config.LoadConfig(pc.configFile)
	if loadErr != nil {
		return loadErr
	}

	compiled, policyErr := loadPolicy(pc.patterns, pc.policyFile, cfg)
	if policyErr != nil {
		return policyErr
	}

	for _, path := range args {
		if compiled.Match(path) {
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "match    %s\n", path)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "no match %s\n", path)
		}
	}

	return nil
}
