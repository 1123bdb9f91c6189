package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macropower/rulelimits/pkg/alert"
)

type LimitsArgs struct {
	*RootArgs

	Output string
}

func NewLimitsArgs(rootArgs *RootArgs) *LimitsArgs {
	return &LimitsArgs{RootArgs: rootArgs}
}

func (la *LimitsArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&la.Output, "output", "o", OutputAuto, fmt.Sprintf("Output format, one of: %s", AllOutputs))

	must(cmd.RegisterFlagCompletionFunc("output",
		cobra.FixedCompletions(AllOutputs, cobra.ShellCompDirectiveNoFileComp),
	))
}

func NewLimitsCmd(rootArgs *RootArgs) *cobra.Command {
	la := NewLimitsArgs(rootArgs)

	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Show rule quota usage for the last applied configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLimits(cmd, la)
		},
	}
	la.AddFlags(cmd)

	return cmd
}

func runLimits(cmd *cobra.Command, la *LimitsArgs) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	format, err := resolveOutput(la.Output, w)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(la.ConfigPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer closeApp(a)

	err = a.reload(ctx)
	if err != nil {
		return err
	}

	snap, err := a.service.Limits(ctx)
	if err != nil {
		return fmt.Errorf("get limits: %w", err)
	}

	out := newLimitsOutput(snap,
		alert.Evaluate(cfg.Alerts.All(), snap),
		a.service.FilterLimitsExceeded(ctx),
	)

	if format == OutputText {
		printLimits(w, out, snap)
		return nil
	}

	return encode(w, format, out)
}
