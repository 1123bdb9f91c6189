package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type CheckArgs struct {
	*RootArgs

	Output string
}

func NewCheckArgs(rootArgs *RootArgs) *CheckArgs {
	return &CheckArgs{RootArgs: rootArgs}
}

func (ca *CheckArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&ca.Output, "output", "o", OutputAuto, fmt.Sprintf("Output format, one of: %s", AllOutputs))

	must(cmd.RegisterFlagCompletionFunc("output",
		cobra.FixedCompletions(AllOutputs, cobra.ShellCompDirectiveNoFileComp),
	))
}

func NewCheckCmd(rootArgs *RootArgs) *cobra.Command {
	ca := NewCheckArgs(rootArgs)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare requested filters with the rule engine and heal divergence",
		Long: `Compare the filters that should be enabled with the static rulesets the rule
engine actually runs. When the engine dropped rulesets, the divergence is
recorded and filter state is aligned with the engine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, ca)
		},
	}
	ca.AddFlags(cmd)

	return cmd
}

func runCheck(cmd *cobra.Command, ca *CheckArgs) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	format, err := resolveOutput(ca.Output, w)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ca.ConfigPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer closeApp(a)

	report, err := a.check(ctx)
	if err != nil {
		return err
	}

	if format == OutputText {
		printReport(w, report)
		return nil
	}

	return encode(w, format, report)
}
